package adapter

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cours-de-latin/cgrule"
)

// DecodePlaintextWindow reads one vislcg3-stream SingleWindow from r: a
// wordform line `"<token>"` followed by indented reading lines
// `\tlemma tag1 tag2 ...`, terminated by a blank line or EOF. Mirrors
// PlaintextApplicator's cohort-then-readings line grammar, using the
// same bufio.Scanner + prefix-sniffing technique as the teacher's
// loadMorphos/loadModels in loader.go. Recognizes the stream commands
// named in SPEC_FULL.md §6: FLUSH, IGNORE, RESUME, EXIT, SETVAR, REMVAR.
func DecodePlaintextWindow(g *cgrule.Grammar, w *cgrule.Window, sc *bufio.Scanner, report cgrule.AnomalyReporter) (*cgrule.SingleWindow, error) {
	sw := cgrule.NewSingleWindow(w, g.Pool, g.BeginTag)
	lineNo := 0
	var cur *cgrule.Cohort
	sawAny := false
	ignoring := false

scan:
	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		if strings.TrimSpace(raw) == "" {
			if sawAny {
				break
			}
			continue
		}

		trimmed := strings.TrimSpace(raw)
		if cmd, arg, ok := parseStreamCommand(trimmed); ok {
			switch cmd {
			case "FLUSH":
				if sawAny {
					break scan
				}
			case "IGNORE":
				ignoring = true
			case "RESUME":
				ignoring = false
			case "EXIT":
				if sawAny {
					w.PushCurrent(sw)
					return sw, nil
				}
				return nil, io.EOF
			case "SETVAR":
				key, _, _ := strings.Cut(arg, "=")
				sw.VariablesSet[key] = true
			case "REMVAR":
				delete(sw.VariablesSet, arg)
			}
			continue
		}
		if ignoring {
			continue
		}

		if strings.HasPrefix(raw, "\t") || strings.HasPrefix(raw, "    ") {
			if cur == nil {
				reportLine(report, lineNo, "reading line with no preceding wordform")
				continue
			}
			reading, err := decodePlaintextReading(g, cur.Wordform, trimmed)
			if err != nil {
				reportLine(report, lineNo, err.Error())
				continue
			}
			cur.Readings = append(cur.Readings, reading)
			continue
		}

		if !strings.HasPrefix(trimmed, `"<`) {
			reportLine(report, lineNo, fmt.Sprintf("expected wordform line, got %q", trimmed))
			continue
		}
		wf, err := g.Pool.AddTag(trimmed, cgrule.TagWordform)
		if err != nil {
			reportLine(report, lineNo, err.Error())
			continue
		}
		if cur != nil && len(cur.Readings) == 0 {
			cur.InitEmptyCohort(g.Pool)
		}
		cur = cgrule.NewCohort(sw, wf.ID())
		sw.Cohorts = append(sw.Cohorts, cur)
		sw.AllCohorts = append(sw.AllCohorts, cur)
		sawAny = true
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if cur != nil && len(cur.Readings) == 0 {
		cur.InitEmptyCohort(g.Pool)
	}
	if !sawAny {
		return nil, io.EOF
	}
	w.PushCurrent(sw)
	return sw, nil
}

// parseStreamCommand recognizes a vislcg3 stream command line, e.g.
// `<STREAMCMD:FLUSH>` or `<STREAMCMD:SETVAR:key=value>`.
func parseStreamCommand(line string) (cmd, arg string, ok bool) {
	if !strings.HasPrefix(line, "<STREAMCMD:") || !strings.HasSuffix(line, ">") {
		return "", "", false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(line, "<STREAMCMD:"), ">")
	parts := strings.SplitN(body, ":", 2)
	cmd = parts[0]
	if len(parts) > 1 {
		arg = parts[1]
	}
	return cmd, arg, true
}

func decodePlaintextReading(g *cgrule.Grammar, wordform cgrule.TagID, line string) (*cgrule.Reading, error) {
	fields := splitReadingLine(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty reading line")
	}
	tagsList := []cgrule.TagID{wordform}
	var baseform cgrule.TagID
	for i, field := range fields {
		flags := tagFlagsForText(field, g.Pool.MappingPrefix)
		if i == 0 {
			flags |= cgrule.TagBaseform
		}
		t, err := g.Pool.AddTag(field, flags)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			baseform = t.ID()
		}
		tagsList = append(tagsList, t.ID())
	}
	reading := cgrule.NewReading(g.Pool, tagsList)
	reading.Wordform = wordform
	reading.Baseform = baseform
	return reading, nil
}

// splitReadingLine splits a reading line on whitespace, honoring
// double-quoted fields (lemma text that itself contains spaces) the
// way the teacher's strconv-based field parsers handle quoted tokens.
func splitReadingLine(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == ' ' && !inQuotes:
			if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}

// EncodePlaintextWindow serializes sw back to the vislcg3 stream
// format, skipping the sentinel begin cohort.
func EncodePlaintextWindow(g *cgrule.Grammar, sw *cgrule.SingleWindow, w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i, c := range sw.Cohorts {
		if i == 0 {
			continue
		}
		if _, err := fmt.Fprintln(bw, tagText(g, c.Wordform)); err != nil {
			return err
		}
		for _, r := range c.LiveReadings() {
			if err := writePlaintextReading(bw, g, r); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func writePlaintextReading(bw *bufio.Writer, g *cgrule.Grammar, r *cgrule.Reading) error {
	var sb strings.Builder
	sb.WriteString("\t")
	sb.WriteString(tagText(g, r.Baseform))
	for _, tid := range r.TagsList {
		if tid == r.Wordform || tid == r.Baseform {
			continue
		}
		sb.WriteString(" ")
		sb.WriteString(tagText(g, tid))
	}
	_, err := fmt.Fprintln(bw, sb.String())
	return err
}

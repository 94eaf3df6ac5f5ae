package adapter

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cours-de-latin/cgrule"
)

// NewLineScanner wraps r in a *bufio.Scanner with bufio's default
// buffer, so a single line may be at most bufio.MaxScanTokenSize
// (64 KiB) long. Callers decoding more than one window from the same stream
// must reuse a single scanner across calls to DecodeWindow/
// DecodePlaintextWindow rather than constructing one per call, since a
// fresh bufio.Scanner can buffer input past the window boundary the
// previous one stopped at.
func NewLineScanner(r io.Reader) *bufio.Scanner {
	return bufio.NewScanner(r)
}

// DecodeWindow reads one JSONL-encoded SingleWindow from sc: one
// cohortDoc per line, terminated by a line with "s":"end" or EOF.
// Grounded on JsonlApplicator::addWindow's per-cohort decode loop.
func DecodeWindow(g *cgrule.Grammar, w *cgrule.Window, sc *bufio.Scanner, report cgrule.AnomalyReporter) (*cgrule.SingleWindow, error) {
	sw := cgrule.NewSingleWindow(w, g.Pool, g.BeginTag)
	lineNo := 0
	sawAny := false
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var doc cohortDoc
		if err := json.Unmarshal(line, &doc); err != nil {
			reportLine(report, lineNo, fmt.Sprintf("malformed json: %v", err))
			continue
		}
		if doc.S == "end" {
			sawAny = true
			break
		}
		if err := decodeCohort(g, sw, &doc); err != nil {
			reportLine(report, lineNo, err.Error())
			continue
		}
		sawAny = true
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !sawAny {
		return nil, io.EOF
	}
	w.PushCurrent(sw)
	return sw, nil
}

func decodeCohort(g *cgrule.Grammar, sw *cgrule.SingleWindow, doc *cohortDoc) error {
	wf, err := g.Pool.AddTag(quoteWordform(doc.W), cgrule.TagWordform)
	if err != nil {
		return err
	}
	c := cgrule.NewCohort(sw, wf.ID())

	for _, rd := range doc.RS {
		reading, err := decodeReading(g, wf.ID(), &rd)
		if err != nil {
			return err
		}
		c.Readings = append(c.Readings, reading)
	}
	if len(c.Readings) == 0 {
		c.InitEmptyCohort(g.Pool)
	}
	for _, rd := range doc.DRS {
		reading, err := decodeReading(g, wf.ID(), &rd)
		if err != nil {
			return err
		}
		reading.Deleted = true
		c.Deleted = append(c.Deleted, reading)
	}
	if doc.DS != nil {
		c.DepSelf = *doc.DS
	}
	if doc.DP != nil {
		c.DepParent = *doc.DP
	}
	sw.Cohorts = append(sw.Cohorts, c)
	sw.AllCohorts = append(sw.AllCohorts, c)
	return nil
}

func decodeReading(g *cgrule.Grammar, wordform cgrule.TagID, rd *readingDoc) (*cgrule.Reading, error) {
	var tagsList []cgrule.TagID
	tagsList = append(tagsList, wordform)
	var baseform cgrule.TagID
	if rd.L != "" {
		bf, err := g.Pool.AddTag(quoteWordform(rd.L), cgrule.TagBaseform)
		if err != nil {
			return nil, err
		}
		baseform = bf.ID()
		tagsList = append(tagsList, baseform)
	}
	for _, text := range rd.TS {
		t, err := g.Pool.AddTag(text, tagFlagsForText(text, g.Pool.MappingPrefix))
		if err != nil {
			return nil, err
		}
		tagsList = append(tagsList, t.ID())
	}
	reading := cgrule.NewReading(g.Pool, tagsList)
	reading.Wordform = wordform
	reading.Baseform = baseform
	return reading, nil
}

// tagFlagsForText infers ordinary tag flags from text shape, the way
// the teacher's own loader infers flags from surface punctuation
// rather than a separate per-tag type annotation.
func tagFlagsForText(text string, mappingPrefix byte) cgrule.TagFlag {
	var f cgrule.TagFlag
	if len(text) > 0 && text[0] == mappingPrefix {
		f |= cgrule.TagMapping
	}
	f |= cgrule.TagTextual
	return f
}

func quoteWordform(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s
	}
	return `"` + s + `"`
}

// EncodeWindow serializes sw back to JSONL, one cohortDoc per cohort
// (skipping the sentinel begin cohort), including deleted readings and
// dependency fields. Grounded on JsonlApplicator::printCohort.
func EncodeWindow(g *cgrule.Grammar, sw *cgrule.SingleWindow, w io.Writer) error {
	enc := json.NewEncoder(w)
	for i, c := range sw.Cohorts {
		if i == 0 {
			continue
		}
		doc := cohortDoc{W: tagText(g, c.Wordform)}
		for _, r := range c.Readings {
			if r.Deleted {
				doc.DRS = append(doc.DRS, encodeReading(g, r))
				continue
			}
			doc.RS = append(doc.RS, encodeReading(g, r))
		}
		if c.DepParent != 0 {
			dp := c.DepParent
			doc.DP = &dp
		}
		ds := c.GlobalNumber
		doc.DS = &ds
		if err := enc.Encode(&doc); err != nil {
			return err
		}
	}
	return enc.Encode(&cohortDoc{S: "end"})
}

func encodeReading(g *cgrule.Grammar, r *cgrule.Reading) readingDoc {
	rd := readingDoc{L: tagText(g, r.Baseform)}
	for _, tid := range r.TagsList {
		if tid == r.Wordform || tid == r.Baseform {
			continue
		}
		rd.TS = append(rd.TS, tagText(g, tid))
	}
	return rd
}

func tagText(g *cgrule.Grammar, id cgrule.TagID) string {
	t := g.Pool.Tag(id)
	if t == nil {
		return ""
	}
	return t.Text
}

func reportLine(report cgrule.AnomalyReporter, line int, reason string) {
	if report == nil {
		return
	}
	report.ReportAnomaly(cgrule.NewAdapterLineError(line, reason))
}

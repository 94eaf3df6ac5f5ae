package adapter

import (
	"bytes"
	"io"
	"testing"

	"github.com/cours-de-latin/cgrule"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePlaintextWindow_ParsesWordformAndReading(t *testing.T) {
	g := newTestGrammar(t)
	w := cgrule.NewWindow(2)

	input := "\"<cat>\"\n\tcat N\n"
	sc := NewLineScanner(bytes.NewReader([]byte(input)))
	sw, err := DecodePlaintextWindow(g, w, sc, nil)
	require.NoError(t, err)
	require.Len(t, sw.Cohorts, 2) // sentinel + cat

	cat := sw.Cohorts[1]
	assert.Equal(t, `"<cat>"`, tagText(g, cat.Wordform))
	require.Len(t, cat.LiveReadings(), 1)
	rd := cat.LiveReadings()[0]
	assert.Equal(t, "cat", tagText(g, rd.Baseform))
	assert.Equal(t, []string{"cat", "N"}, tagTextsPlaintext(g, rd))
}

func tagTextsPlaintext(g *cgrule.Grammar, rd *cgrule.Reading) []string {
	var out []string
	for _, tid := range rd.TagsList {
		if tid == rd.Wordform {
			continue
		}
		out = append(out, tagText(g, tid))
	}
	return out
}

func TestDecodePlaintextWindow_EOFOnEmptyStream(t *testing.T) {
	g := newTestGrammar(t)
	w := cgrule.NewWindow(2)

	sc := NewLineScanner(bytes.NewReader(nil))
	_, err := DecodePlaintextWindow(g, w, sc, nil)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodePlaintextWindow_SetvarRemvarTrackVariables(t *testing.T) {
	g := newTestGrammar(t)
	w := cgrule.NewWindow(2)

	input := "<STREAMCMD:SETVAR:seen=1>\n\"<cat>\"\n\tcat N\n<STREAMCMD:REMVAR:seen>\n"
	sc := NewLineScanner(bytes.NewReader([]byte(input)))
	sw, err := DecodePlaintextWindow(g, w, sc, nil)
	require.NoError(t, err)
	assert.False(t, sw.VariablesSet["seen"], "REMVAR after SETVAR must leave the variable unset")
}

func TestDecodePlaintextWindow_IgnoreSkipsLinesUntilResume(t *testing.T) {
	g := newTestGrammar(t)
	w := cgrule.NewWindow(2)

	input := "\"<cat>\"\n\tcat N\n<STREAMCMD:IGNORE>\n\"<dog>\"\n\tdog N\n<STREAMCMD:RESUME>\n\"<runs>\"\n\truns V\n"
	sc := NewLineScanner(bytes.NewReader([]byte(input)))
	sw, err := DecodePlaintextWindow(g, w, sc, nil)
	require.NoError(t, err)
	require.Len(t, sw.Cohorts, 3) // sentinel + cat + runs, "dog" was ignored

	assert.Equal(t, `"<cat>"`, tagText(g, sw.Cohorts[1].Wordform))
	assert.Equal(t, `"<runs>"`, tagText(g, sw.Cohorts[2].Wordform))
}

func TestEncodePlaintextWindow_RoundTripsWordformAndReading(t *testing.T) {
	g := newTestGrammar(t)
	w := cgrule.NewWindow(2)

	input := "\"<cat>\"\n\tcat N\n"
	sc := NewLineScanner(bytes.NewReader([]byte(input)))
	sw, err := DecodePlaintextWindow(g, w, sc, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodePlaintextWindow(g, sw, &buf))

	golden := goldie.New(t)
	golden.Assert(t, "encode_plaintext_window", buf.Bytes())
}

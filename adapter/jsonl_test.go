package adapter

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/cours-de-latin/cgrule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGrammar(t *testing.T) *cgrule.Grammar {
	b, err := cgrule.NewGrammarBuilder()
	require.NoError(t, err)
	b.DefineTagSet("n", []string{"N"}, cgrule.TagTextual)
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestDecodeWindow_RoundTripsCohortAndReading(t *testing.T) {
	g := newTestGrammar(t)
	w := cgrule.NewWindow(2)

	input := `{"w":"\"<cat>\"","rs":[{"l":"\"cat\"","ts":["N"]}]}
{"s":"end"}
`
	sc := NewLineScanner(bytes.NewReader([]byte(input)))
	sw, err := DecodeWindow(g, w, sc, nil)
	require.NoError(t, err)
	require.Len(t, sw.Cohorts, 2) // sentinel + cat

	cat := sw.Cohorts[1]
	require.Len(t, cat.LiveReadings(), 1)
	assert.Equal(t, "\"cat\"", tagText(g, cat.LiveReadings()[0].Baseform))

	var buf bytes.Buffer
	require.NoError(t, EncodeWindow(g, sw, &buf))

	dec := json.NewDecoder(&buf)
	var cohort, end cohortDoc
	require.NoError(t, dec.Decode(&cohort))
	require.NoError(t, dec.Decode(&end))

	assert.Equal(t, "\"<cat>\"", cohort.W)
	require.Len(t, cohort.RS, 1)
	assert.Equal(t, "\"cat\"", cohort.RS[0].L)
	assert.Equal(t, []string{"N"}, cohort.RS[0].TS)
	assert.Equal(t, "end", end.S)
}

func TestDecodeWindow_EOFOnEmptyStream(t *testing.T) {
	g := newTestGrammar(t)
	w := cgrule.NewWindow(2)

	sc := NewLineScanner(bytes.NewReader(nil))
	_, err := DecodeWindow(g, w, sc, nil)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodeWindow_ScannerReusedAcrossMultipleWindows(t *testing.T) {
	g := newTestGrammar(t)
	w := cgrule.NewWindow(2)

	input := `{"w":"\"<a>\"","rs":[{"l":"\"a\"","ts":["N"]}]}
{"s":"end"}
{"w":"\"<b>\"","rs":[{"l":"\"b\"","ts":["N"]}]}
{"s":"end"}
`
	sc := NewLineScanner(bytes.NewReader([]byte(input)))

	sw1, err := DecodeWindow(g, w, sc, nil)
	require.NoError(t, err)
	require.Len(t, sw1.Cohorts, 2)
	assert.Equal(t, "\"<a>\"", tagText(g, sw1.Cohorts[1].Wordform))

	sw2, err := DecodeWindow(g, w, sc, nil)
	require.NoError(t, err)
	require.Len(t, sw2.Cohorts, 2)
	assert.Equal(t, "\"<b>\"", tagText(g, sw2.Cohorts[1].Wordform), "a single scanner must not drop the second window's bytes")

	_, err = DecodeWindow(g, w, sc, nil)
	assert.ErrorIs(t, err, io.EOF)
}

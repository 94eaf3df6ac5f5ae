package adapter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/cours-de-latin/cgrule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeGrammar_BuildsSetsAndRulesFromDocument(t *testing.T) {
	doc := `{
		"sets": [{"name": "n", "tags": ["N"]}],
		"rules": [{"line": 1, "type": "SELECT", "target": "n", "tests": [{"offset": 0, "target": "n"}]}],
		"sections": [[1]]
	}`

	g, err := DecodeGrammar(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, g.Sections, 1)
	require.Len(t, g.Sections[0], 1)
	rule := g.Pool.Rule(g.Sections[0][0])
	require.NotNil(t, rule)
	assert.Equal(t, cgrule.RuleSelect, rule.Type)
}

func TestDecodeGrammar_UnknownRuleTypeIsReported(t *testing.T) {
	doc := `{
		"sets": [{"name": "n", "tags": ["N"]}],
		"rules": [{"line": 1, "type": "NOT-A-RULE", "target": "n"}],
		"sections": [[1]]
	}`

	_, err := DecodeGrammar(strings.NewReader(doc))
	assert.Error(t, err)
}

// TestDecodeGrammar_DecodesDepTargetAndChildSets checks that a SETPARENT
// rule's dep_target test and a MOVE rule's childset1/childset2 operands
// survive the JSON round trip into the engine's Rule fields.
func TestDecodeGrammar_DecodesDepTargetAndChildSets(t *testing.T) {
	doc := `{
		"sets": [{"name": "n", "tags": ["N"]}, {"name": "adj", "tags": ["ADJ"]}],
		"rules": [
			{"line": 1, "type": "SETPARENT", "target": "n", "dep_target": {"offset": 1, "target": "n"}},
			{"line": 2, "type": "MOVE-AFTER", "target": "n", "dep_target": {"offset": 1, "target": "n"}, "childset1": "adj", "childset2": "n"}
		],
		"sections": [[1, 2]]
	}`

	g, err := DecodeGrammar(strings.NewReader(doc))
	require.NoError(t, err)

	setParent := g.Pool.Rule(g.Sections[0][0])
	require.NotNil(t, setParent)
	require.NotNil(t, setParent.DepTarget)
	assert.Equal(t, 1, setParent.DepTarget.Offset)

	move := g.Pool.Rule(g.Sections[0][1])
	require.NotNil(t, move)
	require.NotNil(t, move.DepTarget)
	assert.NotZero(t, move.ChildSet1)
	assert.NotZero(t, move.ChildSet2)
}

// TestDecodeGrammar_SelectRuleRunsEndToEnd decodes a grammar document
// containing a single SELECT rule, runs it over a JSONL-decoded cohort
// carrying two competing readings, and checks the loser is no longer a
// live reading, in memory and in the encoded output. This
// is the same shape as the runner-level SELECT scenario, but driven
// entirely through the adapter boundary: JSON grammar document in,
// JSONL corpus in, mutated JSONL corpus out.
func TestDecodeGrammar_SelectRuleRunsEndToEnd(t *testing.T) {
	doc := `{
		"sets": [{"name": "n", "tags": ["N"]}],
		"rules": [{"line": 1, "type": "SELECT", "target": "n", "tests": [{"offset": 0, "target": "n"}]}],
		"sections": [[1]]
	}`
	g, err := DecodeGrammar(strings.NewReader(doc))
	require.NoError(t, err)

	win := cgrule.NewWindow(2)
	corpus := `{"w":"\"<the>\"","rs":[{"l":"\"the\"","ts":["DET"]},{"l":"\"the\"","ts":["N"]}]}
{"s":"end"}
`
	sc := NewLineScanner(bytes.NewReader([]byte(corpus)))
	sw, err := DecodeWindow(g, win, sc, nil)
	require.NoError(t, err)

	cgrule.RunWindow(g, win, sw, 10, nil, nil)

	the := sw.Cohorts[1]
	live := the.LiveReadings()
	require.Len(t, live, 1)
	assert.Equal(t, []string{"N"}, encodeReading(g, live[0]).TS)

	var out bytes.Buffer
	require.NoError(t, EncodeWindow(g, sw, &out))
	var encoded cohortDoc
	require.NoError(t, json.NewDecoder(&out).Decode(&encoded))
	require.Len(t, encoded.RS, 1)
	assert.Equal(t, []string{"N"}, encoded.RS[0].TS)
	require.Len(t, encoded.DRS, 1)
	assert.Equal(t, []string{"DET"}, encoded.DRS[0].TS, "the removed reading is written under drs, not rs")
}

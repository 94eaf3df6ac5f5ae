package cgrule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWindow_SelectByTag(t *testing.T) {
	f := newFixture()
	f.b.DefineTagSet("n", []string{"N"}, TagTextual)
	f.b.DefineTagSet("the_lit", []string{"the"}, TagTextual|TagBaseform)
	nSet, _ := f.b.SetID("n")
	theSet, _ := f.b.SetID("the_lit")
	f.b.AddRule(&Rule{
		Type:   RuleSelect,
		Target: nSet,
		Tests:  []*ContextualTest{{Offset: 0, Target: theSet}},
	}, 1)
	f.build()

	c := f.addCohort(`"<the>"`, []string{"the", "DET"}, []string{"the", "N"})
	f.finish()

	RunWindow(f.g, f.w, f.sw, 10, nil, nil)

	live := c.liveReadings()
	require.Len(t, live, 1)
	assert.Contains(t, tagTexts(f.g, live[0]), "N")
	assert.NotContains(t, tagTexts(f.g, live[0]), "DET")
}

func TestRunWindow_RemoveWithBarrierScanLeavesVIntact(t *testing.T) {
	f := newFixture()
	f.b.DefineTagSet("v", []string{"V"}, TagTextual)
	f.b.DefineTagSet("n", []string{"N"}, TagTextual)
	f.b.DefineTagSet("delim", []string{"DELIM"}, TagTextual)
	vSet, _ := f.b.SetID("v")
	nSet, _ := f.b.SetID("n")
	delimSet, _ := f.b.SetID("delim")
	f.b.AddRule(&Rule{
		Type:   RuleRemove,
		Target: vSet,
		Tests:  []*ContextualTest{{Offset: -1, ScanFirst: true, Target: nSet, Barrier: delimSet}},
	}, 1)
	f.build()

	f.addCohort(`"<cat>"`, []string{"cat", "N"})
	f.addCohort(`","`, []string{",", "DELIM"})
	v := f.addCohort(`"<runs>"`, []string{"runs", "V"})
	f.finish()

	RunWindow(f.g, f.w, f.sw, 10, nil, nil)

	live := v.liveReadings()
	require.Len(t, live, 1)
	assert.Contains(t, tagTexts(f.g, live[0]), "V", "the barrier must prevent REMOVE from firing on V")
}

func TestRunWindow_MapFiresOnceAcrossRepeatedRuns(t *testing.T) {
	f := newFixture()
	f.b.MappingPrefix('@')
	f.b.DefineTagSet("n", []string{"N"}, TagTextual)
	f.b.DefineTagSet("cat_lit", []string{"cat"}, TagTextual|TagBaseform)
	nSet, _ := f.b.SetID("n")
	catSet, _ := f.b.SetID("cat_lit")
	subj, err := f.b.Tag("@SUBJ", TagTextual)
	require.NoError(t, err)
	f.b.AddRule(&Rule{
		Type:    RuleMap,
		Target:  nSet,
		Maplist: []TagID{subj},
		Tests:   []*ContextualTest{{Offset: 0, Target: catSet}},
	}, 1)
	f.build()

	c := f.addCohort(`"<cat>"`, []string{"cat", "N"})
	f.finish()

	RunWindow(f.g, f.w, f.sw, 10, nil, nil)
	rd := c.Readings[0]
	require.True(t, rd.Mapped)
	require.Equal(t, []string{"N", "@SUBJ"}, tagTexts(f.g, rd))

	RunWindow(f.g, f.w, f.sw, 10, nil, nil)
	assert.Equal(t, []string{"N", "@SUBJ"}, tagTexts(f.g, rd), "a second run must not append the mapping tag again")
}

func TestRunWindow_DelimitProducesTwoWindows(t *testing.T) {
	f := newFixture()
	f.b.DefineTagSet("delim", []string{"DELIM"}, TagTextual)
	delimSet, _ := f.b.SetID("delim")
	f.b.AddRule(&Rule{Type: RuleDelimit, Target: delimSet}, 1)
	f.build()

	f.addCohort(`"<w1>"`, []string{"w1", "N"})
	f.addCohort(`"<.>"`, []string{".", "DELIM"})
	f.addCohort(`"<w3>"`, []string{"w3", "N"})
	f.finish()

	RunWindow(f.g, f.w, f.sw, 10, nil, nil)

	require.Len(t, f.w.Next, 1, "the DELIMIT split must leave exactly one pending window")
	assert.Len(t, f.sw.Cohorts, 3, "sentinel + w1 + DELIM stay in the original window")
	assert.Len(t, f.w.Next[0].Cohorts, 2, "sentinel + w3 move into the split-off window")
}

func TestRunWindow_IffPromotesToSelectOnTestsPass(t *testing.T) {
	f := newFixture()
	f.b.DefineTagSet("n", []string{"N"}, TagTextual)
	f.b.DefineTagSet("adj", []string{"ADJ"}, TagTextual)
	nSet, _ := f.b.SetID("n")
	adjSet, _ := f.b.SetID("adj")
	f.b.AddRule(&Rule{
		Type:   RuleIff,
		Target: nSet,
		Tests:  []*ContextualTest{{Offset: -1, Target: adjSet}},
	}, 1)
	f.build()

	f.addCohort(`"<big>"`, []string{"big", "ADJ"})
	cat := f.addCohort(`"<cat>"`, []string{"cat", "N"}, []string{"cat", "V"})
	f.finish()

	RunWindow(f.g, f.w, f.sw, 10, nil, nil)

	live := cat.liveReadings()
	require.Len(t, live, 1)
	assert.Contains(t, tagTexts(f.g, live[0]), "N", "IFF must promote to SELECT when its tests pass")
}

func TestRunWindow_IffDemotesToRemoveOnTestsFail(t *testing.T) {
	f := newFixture()
	f.b.DefineTagSet("n", []string{"N"}, TagTextual)
	f.b.DefineTagSet("adj", []string{"ADJ"}, TagTextual)
	nSet, _ := f.b.SetID("n")
	adjSet, _ := f.b.SetID("adj")
	f.b.AddRule(&Rule{
		Type:   RuleIff,
		Target: nSet,
		Tests:  []*ContextualTest{{Offset: -1, Target: adjSet}},
	}, 1)
	f.build()

	f.addCohort(`"<runs>"`, []string{"runs", "V"})
	cat := f.addCohort(`"<cat>"`, []string{"cat", "N"}, []string{"cat", "V"})
	f.finish()

	RunWindow(f.g, f.w, f.sw, 10, nil, nil)

	live := cat.liveReadings()
	require.Len(t, live, 1)
	assert.NotContains(t, tagTexts(f.g, live[0]), "N", "IFF must demote to REMOVE of the target-matching reading when its tests fail")
	assert.Contains(t, tagTexts(f.g, live[0]), "V")
}

func TestRunWindow_SectionReFiresEarlierSectionRules(t *testing.T) {
	f := newFixture()
	f.b.DefineTagSet("v", []string{"V"}, TagTextual)
	f.b.DefineTagSet("adv", []string{"ADV"}, TagTextual)
	vSet, _ := f.b.SetID("v")
	advSet, _ := f.b.SetID("adv")
	advTag, err := f.b.Tag("ADV", TagTextual)
	require.NoError(t, err)
	subj, err := f.b.Tag("@SUBJ", TagTextual)
	require.NoError(t, err)
	// Section 1's rule can only fire once the cohort carries ADV, which
	// section 2's rule is what adds. Under runsections[k]'s "sections
	// 1..k, to a fixpoint" semantics, section 1's rule must be retried
	// once section 2 runs within the k=2 pass; it must not simply run
	// once in isolation before section 2 exists.
	f.b.AddRule(&Rule{
		Type:    RuleMap,
		Target:  vSet,
		Maplist: []TagID{subj},
		Tests:   []*ContextualTest{{Offset: 0, Target: advSet}},
	}, 1)
	f.b.AddRule(&Rule{
		Type:    RuleAdd,
		Target:  vSet,
		Maplist: []TagID{advTag},
	}, 2)
	f.build()

	c := f.addCohort(`"<runs>"`, []string{"runs", "V"})
	f.finish()

	RunWindow(f.g, f.w, f.sw, 10, nil, nil)

	rd := c.Readings[0]
	assert.Contains(t, tagTexts(f.g, rd), "@SUBJ", "section 1's MAP must re-fire once section 2 adds ADV, per runsections[k] covering sections 1..k")
	assert.Contains(t, tagTexts(f.g, rd), "ADV")
}

func TestRunWindow_EnclosurePhasesScopeToRegion(t *testing.T) {
	f := newFixture()
	f.b.DefineParentheses(`"<(>"`, `"<)>"`)
	f.b.DefineTagSet("n", []string{"N"}, TagTextual)
	f.b.DefineTagSet("v", []string{"V"}, TagTextual)
	nSet, _ := f.b.SetID("n")
	vSet, _ := f.b.SetID("v")
	inTag, err := f.b.Tag("@IN", TagTextual)
	require.NoError(t, err)
	outTag, err := f.b.Tag("@OUT", TagTextual)
	require.NoError(t, err)
	finTag, err := f.b.Tag("@FIN", TagTextual)
	require.NoError(t, err)
	f.b.AddRule(&Rule{Type: RuleMap, Target: vSet, Maplist: []TagID{inTag}, Flags: RuleEnclInner}, 1)
	f.b.AddRule(&Rule{Type: RuleMap, Target: nSet, Maplist: []TagID{outTag}, Flags: RuleEnclOuter}, 1)
	f.b.AddRule(&Rule{Type: RuleMap, Target: vSet, Maplist: []TagID{finTag}, Flags: RuleEnclFinal}, 1)
	f.build()

	before := f.addCohort(`"<cat1>"`, []string{"cat1", "N"})
	openParen := f.addCohort(`"<(>"`, []string{"(", "PUNCT"})
	inside := f.addCohort(`"<runs>"`, []string{"runs", "V"})
	closeParen := f.addCohort(`"<)>"`, []string{")", "PUNCT"})
	after := f.addCohort(`"<dog>"`, []string{"dog", "N"})
	f.finish()

	RunWindow(f.g, f.w, f.sw, 10, nil, nil)

	assert.Contains(t, tagTexts(f.g, inside.Readings[0]), "@IN", "ENCL_INNER must fire on the cohort inside the parens")
	assert.NotContains(t, tagTexts(f.g, before.Readings[0]), "@IN")
	assert.NotContains(t, tagTexts(f.g, after.Readings[0]), "@IN")

	assert.Contains(t, tagTexts(f.g, before.Readings[0]), "@OUT", "ENCL_OUTER must fire on cohorts outside the parens")
	assert.Contains(t, tagTexts(f.g, after.Readings[0]), "@OUT")
	assert.NotContains(t, tagTexts(f.g, inside.Readings[0]), "@OUT", "ENCL_OUTER must not reach inside the region")

	assert.Contains(t, tagTexts(f.g, inside.Readings[0]), "@FIN", "ENCL_FINAL must run once after reinsertion")

	require.Len(t, f.sw.Cohorts, 6, "sentinel + all five cohorts must be back in original order")
	assert.Equal(t, openParen.GlobalNumber, f.sw.Cohorts[2].GlobalNumber)
	assert.Equal(t, inside.GlobalNumber, f.sw.Cohorts[3].GlobalNumber)
	assert.Equal(t, closeParen.GlobalNumber, f.sw.Cohorts[4].GlobalNumber)
	assert.False(t, inside.Type&CohortEnclosed != 0, "CohortEnclosed must be cleared on reinsertion")
}

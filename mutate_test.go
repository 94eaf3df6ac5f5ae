package cgrule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMap_AddsPrefixTagAndIsIdempotent(t *testing.T) {
	f := newFixture()
	f.b.MappingPrefix('@')
	f.b.DefineTagSet("n", []string{"N"}, TagTextual)
	f.build()

	subj, err := f.g.Pool.AddTag("@SUBJ", TagTextual)
	require.NoError(t, err)

	c := f.addCohort(`"<cat>"`, []string{"cat", "N"})
	f.finish()

	rd := c.Readings[0]
	r1 := applyMap(f.g, f.sw, c, []*Reading{rd}, &Rule{Maplist: []TagID{subj.ID()}})
	assert.True(t, r1.Changed)
	assert.True(t, rd.Mapped)
	assert.Equal(t, []string{"N", "@SUBJ"}, tagTexts(f.g, rd))

	r2 := applyMap(f.g, f.sw, c, []*Reading{rd}, &Rule{Maplist: []TagID{subj.ID()}})
	assert.False(t, r2.Changed, "re-applying MAP to an already-mapped reading must be a no-op")
	assert.Equal(t, []string{"N", "@SUBJ"}, tagTexts(f.g, rd))
}

func TestApplySelect_KeepsOnlyMatchedReadings(t *testing.T) {
	f := newFixture()
	f.build()

	c := f.addCohort(`"<the>"`, []string{"the", "DET"}, []string{"the", "N"})
	f.finish()

	keep := c.Readings[1]
	res := applySelect(f.sw, c, []*Reading{keep})
	assert.True(t, res.Changed)

	live := c.liveReadings()
	require.Len(t, live, 1)
	assert.Equal(t, keep, live[0])
}

func TestApplyRemove_NeverEmptiesCohort(t *testing.T) {
	f := newFixture()
	f.build()

	c := f.addCohort(`"<x>"`, []string{"x", "N"})
	f.finish()

	res := applyRemove(f.sw, c, c.liveReadings(), &Rule{})
	assert.False(t, res.Changed, "removing every reading must leave the last one standing")
	assert.Len(t, c.liveReadings(), 1)
}

func TestApplyRemove_UnsafeMayEmptyCohort(t *testing.T) {
	f := newFixture()
	f.build()

	c := f.addCohort(`"<x>"`, []string{"x", "N"})
	f.finish()

	res := applyRemove(f.sw, c, c.liveReadings(), &Rule{Flags: RuleUnsafe})
	assert.True(t, res.Changed, "UNSAFE lifts the never-empty-a-cohort guard")
	assert.Len(t, c.liveReadings(), 0)
}

func TestApplySubstitute_PreservesPosition(t *testing.T) {
	f := newFixture()
	f.build()

	bTag, err := f.g.Pool.AddTag("B", TagTextual)
	require.NoError(t, err)
	cTag, err := f.g.Pool.AddTag("C", TagTextual)
	require.NoError(t, err)
	x, err := f.g.Pool.AddTag("X", TagTextual)
	require.NoError(t, err)
	y, err := f.g.Pool.AddTag("Y", TagTextual)
	require.NoError(t, err)

	cohort := f.addCohort(`"<w>"`, []string{"w", "A"})
	rd := cohort.Readings[0]
	rd.TagsList = append(rd.TagsList, bTag.ID(), cTag.ID())
	rd.Reflow(f.g.Pool)

	r := &Rule{Sublist: []TagID{bTag.ID()}, Maplist: []TagID{x.ID(), y.ID()}}
	res := applySubstitute(f.g, f.sw, cohort, []*Reading{rd}, r)
	assert.True(t, res.Changed)
	assert.Equal(t, []string{"A", "X", "Y", "C"}, tagTexts(f.g, rd))
}

func TestApplySetParentChild_RefusesCycle(t *testing.T) {
	f := newFixture()
	f.b.DefineTagSet("a_lbl", []string{"A"}, TagTextual)
	f.b.DefineTagSet("b_lbl", []string{"B"}, TagTextual)
	f.build()

	a := f.addCohort(`"<a>"`, []string{"a", "A"})
	b := f.addCohort(`"<b>"`, []string{"b", "B"})
	f.addCohort(`"<c>"`, []string{"c", "C"})
	f.finish()

	forward := &Rule{
		Type:      RuleSetParent,
		DepTarget: &ContextualTest{Offset: 1, Target: f.g.SetsAny},
	}
	res := applySetParentChild(f.g, f.w, f.sw, a, forward, nil)
	assert.True(t, res.Changed)
	assert.Equal(t, b.GlobalNumber, a.DepParent, "A should now attach to B")

	var captured *RuleAnomaly
	report := &captureReporter{onAnomaly: func(a *RuleAnomaly) { captured = a }}

	backward := &Rule{
		Type:      RuleSetParent,
		DepTarget: &ContextualTest{Offset: -1, Target: f.g.SetsAny},
	}
	res2 := applySetParentChild(f.g, f.w, f.sw, b, backward, report)
	assert.False(t, res2.Changed, "attaching B to A must be refused once A already depends on B")
	require.NotNil(t, captured)
	assert.Contains(t, captured.Reason, "cycle")
}

func TestApplyDelimit_SplitsWindowWithBoundaryTags(t *testing.T) {
	f := newFixture()
	f.build()

	f.addCohort(`"<w1>"`, []string{"w1", "N"})
	delim := f.addCohort(`"<.>"`, []string{".", "DELIM"})
	f.addCohort(`"<w3>"`, []string{"w3", "N"})
	f.finish()

	before := len(f.sw.Cohorts)
	res := applyDelimit(f.g, f.w, f.sw, delim)
	assert.True(t, res.Changed)
	assert.True(t, res.Delimited)

	assert.Less(t, len(f.sw.Cohorts), before, "the split window keeps only the cohorts up to and including the delimiter")

	last := delim.liveReadings()[len(delim.liveReadings())-1]
	assert.True(t, last.HasTag(f.g.EndTag), "the delimiter's last live reading must carry the window end-tag")

	next := f.w.NextFrom(f.sw)
	require.NotNil(t, next)
	require.NotEmpty(t, next.Cohorts)
	first := next.Cohorts[0].liveReadings()[0]
	assert.True(t, first.HasTag(f.g.BeginTag), "the new window's sentinel cohort carries the begin-tag")
}

func TestApplyRelation_SingularWritesOnlyForwardEdge(t *testing.T) {
	f := newFixture()
	f.build()

	name, err := f.g.Pool.AddTag("subj", TagTextual)
	require.NoError(t, err)

	a := f.addCohort(`"<a>"`, []string{"a", "A"})
	b := f.addCohort(`"<b>"`, []string{"b", "B"})
	f.finish()

	r := &Rule{
		Type:      RuleAddRelation,
		Maplist:   []TagID{name.ID()},
		DepTarget: &ContextualTest{Offset: 1, Target: f.g.SetsAny},
	}
	res := applyRelation(f.g, f.w, f.sw, a, r, relAdd)
	assert.True(t, res.Changed)
	assert.True(t, a.Relations[name.ID()][b.GlobalNumber], "C->A edge must be keyed by maplist's tag")
	assert.Empty(t, b.Relations, "singular form must not write the mirrored A->C edge")
}

func TestApplyRelation_PluralWritesMirroredEdge(t *testing.T) {
	f := newFixture()
	f.build()

	fwd, err := f.g.Pool.AddTag("subj", TagTextual)
	require.NoError(t, err)
	rev, err := f.g.Pool.AddTag("subj-of", TagTextual)
	require.NoError(t, err)

	a := f.addCohort(`"<a>"`, []string{"a", "A"})
	b := f.addCohort(`"<b>"`, []string{"b", "B"})
	f.finish()

	r := &Rule{
		Type:      RuleAddRelations,
		Maplist:   []TagID{fwd.ID()},
		Sublist:   []TagID{rev.ID()},
		DepTarget: &ContextualTest{Offset: 1, Target: f.g.SetsAny},
	}
	res := applyRelation(f.g, f.w, f.sw, a, r, relAdd)
	assert.True(t, res.Changed)
	assert.True(t, a.Relations[fwd.ID()][b.GlobalNumber], "C->A edge must use maplist's name")
	assert.True(t, b.Relations[rev.ID()][a.GlobalNumber], "A->C edge must use sublist's name")
}

func TestApplyMove_ChildSpanPreservesOrderRelativeToAnchor(t *testing.T) {
	f := newFixture()
	f.b.DefineTagSet("adj", []string{"ADJ"}, TagTextual)
	f.build()

	head := f.addCohort(`"<dog>"`, []string{"dog", "N"})
	c1 := f.addCohort(`"<big>"`, []string{"big", "ADJ"})
	c2 := f.addCohort(`"<red>"`, []string{"red", "ADJ"})
	anchor := f.addCohort(`"<cat>"`, []string{"cat", "N"})
	f.finish()

	c1.DepParent = head.GlobalNumber
	c2.DepParent = head.GlobalNumber

	adjSet, ok := f.b.SetID("adj")
	require.True(t, ok)

	r := &Rule{
		Type:      RuleMoveAfter,
		ChildSet1: adjSet,
		DepTarget: &ContextualTest{Offset: 3, Target: f.g.SetsAny},
	}
	res := applyMove(f.g, f.w, f.sw, head, r, nil)
	assert.True(t, res.Changed)

	var order []*Cohort
	for _, c := range f.sw.Cohorts {
		if !c.IsSentinel() {
			order = append(order, c)
		}
	}
	assert.Equal(t, []*Cohort{head, anchor, c1, c2}, order, "both ADJ children must land after the anchor, in their original relative order")
}

func TestApplySwitch_ChildSetSwapsMatchingChildren(t *testing.T) {
	f := newFixture()
	f.b.DefineTagSet("adj", []string{"ADJ"}, TagTextual)
	f.b.DefineTagSet("det", []string{"DET"}, TagTextual)
	f.build()

	headA := f.addCohort(`"<dog>"`, []string{"dog", "N"})
	childA := f.addCohort(`"<big>"`, []string{"big", "ADJ"})
	headB := f.addCohort(`"<cat>"`, []string{"cat", "N"})
	childB := f.addCohort(`"<the>"`, []string{"the", "DET"})
	f.finish()

	childA.DepParent = headA.GlobalNumber
	childB.DepParent = headB.GlobalNumber

	adjSet, ok := f.b.SetID("adj")
	require.True(t, ok)
	detSet, ok := f.b.SetID("det")
	require.True(t, ok)

	r := &Rule{
		Type:      RuleSwitch,
		ChildSet1: adjSet,
		ChildSet2: detSet,
		DepTarget: &ContextualTest{Offset: 2, Target: f.g.SetsAny},
	}
	res := applySwitch(f.g, f.w, f.sw, headA, r)
	assert.True(t, res.Changed)

	iChild := indexOf(f.sw, childB)
	jChild := indexOf(f.sw, childA)
	assert.Greater(t, jChild, 0)
	assert.Greater(t, iChild, 0)
	assert.Less(t, iChild, jChild, "childB (DET) should now occupy the ADJ child's earlier slot")
}

type captureReporter struct {
	onAnomaly func(*RuleAnomaly)
}

func (r *captureReporter) ReportAnomaly(err error) {
	if a, ok := err.(*RuleAnomaly); ok && r.onAnomaly != nil {
		r.onAnomaly(a)
	}
}

package cgrule

// This file implements the write side of rule application: the effect
// each RuleType has on a matched Cohort once its ContextualTests have
// all succeeded. Grounded on the addTag/delTag/doSelect/doRemove/
// doMap/doReplace/doSubstitute/doAppend/doCopy/moveCohort/switchCohort
// family of helpers in GrammarApplicator, as invoked from
// GrammarApplicator::runRulesOnWindow (GrammarApplicator_runRules.cpp).

// ApplyResult reports what a rule application changed, for the
// runner's section-restart and statistics bookkeeping.
type ApplyResult struct {
	Changed      bool
	Delimited    bool // DELIMIT split the window: the runner must stop this pass
	StructuralOp bool // REMCOHORT/MOVE/SWITCH: cohort order changed, renumber needed
}

// ApplyRule performs rule's effect on cohort c within sw, using the
// readings already selected as matches (for Select/Remove, the subset
// that did NOT match the rule's set is what gets removed/kept). For
// IFF, testsPassed distinguishes the promote-to-SELECT case (tests
// passed) from the demote-to-REMOVE case (tests failed but the target
// itself matched); it is always true for every other rule type. report
// receives any non-fatal anomaly (refused move, refused attach) and
// may be nil.
func ApplyRule(g *Grammar, w *Window, sw *SingleWindow, c *Cohort, r *Rule, matched []*Reading, report AnomalyReporter, testsPassed bool) ApplyResult {
	switch r.Type {
	case RuleSelect:
		return applySelect(sw, c, matched)
	case RuleRemove:
		return applyRemove(sw, c, matched, r)
	case RuleIff:
		return applyIff(sw, c, matched, r, testsPassed)
	case RuleMap:
		return applyMap(g, sw, c, matched, r)
	case RuleAdd:
		return applyAdd(g, sw, c, matched, r)
	case RuleReplace:
		return applyReplace(g, sw, c, matched, r)
	case RuleSubstitute:
		return applySubstitute(g, sw, c, matched, r)
	case RuleAppend:
		return applyAppend(g, sw, c, r)
	case RuleDelimit:
		return applyDelimit(g, w, sw, c)
	case RuleRemCohort:
		return applyRemCohort(sw, c)
	case RuleMoveBefore, RuleMoveAfter:
		return applyMove(g, w, sw, c, r, report)
	case RuleSwitch:
		return applySwitch(g, w, sw, c, r)
	case RuleSetParent, RuleSetChild:
		return applySetParentChild(g, w, sw, c, r, report)
	case RuleAddRelation, RuleAddRelations:
		return applyRelation(g, w, sw, c, r, relAdd)
	case RuleSetRelation, RuleSetRelations:
		return applyRelation(g, w, sw, c, r, relSet)
	case RuleRemRelation, RuleRemRelations:
		return applyRelation(g, w, sw, c, r, relRem)
	case RuleSetVariable:
		return applySetVariable(sw, r)
	case RuleRemVariable:
		return applyRemVariable(sw, r)
	}
	return ApplyResult{}
}

// applySelect keeps only the readings in matched, deleting the rest.
// Mirrors GrammarApplicator::doSelect: a no-op when matched already
// spans every live reading.
func applySelect(sw *SingleWindow, c *Cohort, matched []*Reading) ApplyResult {
	set := readingSet(matched)
	changed := false
	for _, r := range c.Readings {
		if r.Deleted {
			continue
		}
		if !set[r] {
			r.Deleted = true
			c.Deleted = append(c.Deleted, r)
			changed = true
		}
	}
	if changed {
		sw.resetCaches()
	}
	return ApplyResult{Changed: changed}
}

// applyRemove deletes exactly the readings in matched. Mirrors
// GrammarApplicator::doRemove. If this would delete every remaining
// reading, nothing is removed (a cohort may never go empty other than
// via REMCOHORT), mirroring the "don't remove the last reading" guard
// in doRemove — unless r carries UNSAFE, which allows a cohort to go
// empty.
func applyRemove(sw *SingleWindow, c *Cohort, matched []*Reading, r *Rule) ApplyResult {
	live := c.liveReadings()
	if len(matched) >= len(live) && !r.Flags.has(RuleUnsafe) {
		return ApplyResult{}
	}
	set := readingSet(matched)
	changed := false
	for _, r := range c.Readings {
		if r.Deleted || !set[r] {
			continue
		}
		r.Deleted = true
		c.Deleted = append(c.Deleted, r)
		changed = true
	}
	if changed {
		sw.resetCaches()
	}
	return ApplyResult{Changed: changed}
}

// applyIff promotes matched to a SELECT when testsPassed (the rule's
// contextual tests passed, so the target readings are kept and
// everything else on the cohort is removed), or demotes to a REMOVE of
// matched otherwise (the target matched but the tests failed, so the
// target readings themselves are removed). Mirrors
// GrammarApplicator::doRemove's num_active/num_iff classification for
// IFF rules.
func applyIff(sw *SingleWindow, c *Cohort, matched []*Reading, r *Rule, testsPassed bool) ApplyResult {
	if testsPassed {
		return applySelect(sw, c, matched)
	}
	return applyRemove(sw, c, matched, r)
}

// applyMap appends the rule's maplist tags to each matched reading, as
// applyAdd does, and marks the reading Mapped. A reading that already
// carries every maplist tag is left untouched, so a second run over an
// already-mapped window is a no-op. Mirrors
// GrammarApplicator::doMap.
func applyMap(g *Grammar, sw *SingleWindow, c *Cohort, matched []*Reading, r *Rule) ApplyResult {
	changed := false
	for _, rd := range matched {
		if readingHasAllTags(rd, r.Maplist) {
			continue
		}
		rd.TagsList = append(rd.TagsList, r.Maplist...)
		rd.Mapped = true
		rd.HitBy = append(rd.HitBy, r.id)
		rd.Reflow(g.Pool)
		changed = true
	}
	if changed {
		sw.resetCaches()
	}
	return ApplyResult{Changed: changed}
}

// readingHasAllTags reports whether rd already carries every tag in
// ids, the guard applyMap and applyAdd use to stay idempotent across
// reruns.
func readingHasAllTags(rd *Reading, ids []TagID) bool {
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if !rd.HasTag(id) {
			return false
		}
	}
	return true
}

// applyAdd appends the rule's maplist tags onto each matched reading's
// tag list. A reading that already carries every maplist tag is left
// untouched, so re-running the rule to a fixpoint terminates. Mirrors
// GrammarApplicator::doAddTagToReading (APPEND builds a separate new
// reading instead, see applyAppend).
func applyAdd(g *Grammar, sw *SingleWindow, c *Cohort, matched []*Reading, r *Rule) ApplyResult {
	changed := false
	for _, rd := range matched {
		if readingHasAllTags(rd, r.Maplist) {
			continue
		}
		rd.TagsList = append(rd.TagsList, r.Maplist...)
		rd.HitBy = append(rd.HitBy, r.id)
		rd.Reflow(g.Pool)
		changed = true
	}
	if changed {
		sw.resetCaches()
	}
	return ApplyResult{Changed: changed}
}

// applyReplace clears each matched reading's tag list and installs the
// rule's maplist in its place, preserving wordform/baseform: the new
// list is [wordform, baseform] followed by the maplist. Mirrors
// GrammarApplicator::doReplace.
func applyReplace(g *Grammar, sw *SingleWindow, c *Cohort, matched []*Reading, r *Rule) ApplyResult {
	changed := false
	for _, rd := range matched {
		wf, bf := rd.Wordform, rd.Baseform
		rd.TagsList = append([]TagID(nil), r.Maplist...)
		if bf != 0 {
			rd.TagsList = prependMissing(rd.TagsList, bf)
		}
		if wf != 0 {
			rd.TagsList = prependMissing(rd.TagsList, wf)
		}
		rd.HitBy = append(rd.HitBy, r.id)
		rd.Reflow(g.Pool)
		changed = true
	}
	if changed {
		sw.resetCaches()
	}
	return ApplyResult{Changed: changed}
}

// applySubstitute removes each tag in r.Sublist and inserts r.Maplist
// at the position of the last removed tag, preserving reading order
// at the substitution point. Mirrors GrammarApplicator::doSubstitute.
func applySubstitute(g *Grammar, sw *SingleWindow, c *Cohort, matched []*Reading, r *Rule) ApplyResult {
	changed := false
	for _, rd := range matched {
		insertAt := len(rd.TagsList)
		removedAny := false
		for _, sub := range r.Sublist {
			for i, t := range rd.TagsList {
				if t == sub {
					insertAt = i
					removedAny = true
					rd.TagsList = append(rd.TagsList[:i], rd.TagsList[i+1:]...)
					break
				}
			}
		}
		if !removedAny {
			continue
		}
		if insertAt > len(rd.TagsList) {
			insertAt = len(rd.TagsList)
		}
		tail := append([]TagID(nil), rd.TagsList[insertAt:]...)
		rd.TagsList = append(rd.TagsList[:insertAt], append(append([]TagID(nil), r.Maplist...), tail...)...)
		rd.HitBy = append(rd.HitBy, r.id)
		rd.Reflow(g.Pool)
		changed = true
	}
	if changed {
		sw.resetCaches()
	}
	return ApplyResult{Changed: changed}
}

// applyAppend adds a brand-new reading, the cohort's wordform followed
// by the rule's maplist, to the cohort, the way doCopy/
// addReadingToCohort install an ADD/APPEND reading distinct from the
// matched ones. A cohort that already holds a reading appended by r is
// left unchanged. Mirrors GrammarApplicator::doAddReadingToCohort.
func applyAppend(g *Grammar, sw *SingleWindow, c *Cohort, r *Rule) ApplyResult {
	for _, existing := range c.Readings {
		for _, id := range existing.HitBy {
			if id == r.id {
				return ApplyResult{}
			}
		}
	}
	rd := NewReading(g.Pool, append([]TagID{c.Wordform}, r.Maplist...))
	rd.Wordform = c.Wordform
	rd.Baseform = c.Wordform
	rd.HitBy = append(rd.HitBy, r.id)
	c.Readings = append(c.Readings, rd)
	sw.resetCaches()
	return ApplyResult{Changed: true}
}

// applyDelimit splits sw into two SingleWindows at c: cohorts up to and
// including c stay in sw, the rest move into a freshly inserted window
// immediately after it, queued onto w.Next so it is reachable by later
// cross-window tests and by the corpus driver's next run. The last live
// reading of c is tagged with the window's end-tag, marking where the
// old window closed. Mirrors GrammarApplicator::doDelimit's
// window-splitting behavior.
func applyDelimit(g *Grammar, w *Window, sw *SingleWindow, c *Cohort) ApplyResult {
	idx := indexOf(sw, c)
	if idx < 0 || idx >= len(sw.Cohorts)-1 {
		return ApplyResult{}
	}
	tail := sw.Cohorts[idx+1:]
	sw.Cohorts = sw.Cohorts[:idx+1]

	if live := c.liveReadings(); len(live) > 0 {
		last := live[len(live)-1]
		last.TagsList = append(last.TagsList, g.EndTag)
		last.Reflow(g.Pool)
	}

	newSW := NewSingleWindow(w, g.Pool, g.BeginTag)
	newSW.Cohorts = append(newSW.Cohorts, tail...)
	for _, cohort := range tail {
		cohort.Parent = newSW
	}
	sw.renumber()
	newSW.renumber()
	w.Next = append(w.Next, newSW)
	return ApplyResult{Changed: true, Delimited: true}
}

// applyRemCohort deletes c from sw.Cohorts and marks all its readings
// deleted; c stays in AllCohorts, flagged CohortRemoved. Mirrors
// GrammarApplicator::doRemCohort.
func applyRemCohort(sw *SingleWindow, c *Cohort) ApplyResult {
	c.Type |= CohortRemoved
	for _, rd := range c.Readings {
		rd.Deleted = true
	}
	for i, cur := range sw.Cohorts {
		if cur == c {
			sw.Cohorts = append(sw.Cohorts[:i], sw.Cohorts[i+1:]...)
			break
		}
	}
	sw.renumber()
	sw.resetCaches()
	return ApplyResult{Changed: true, StructuralOp: true}
}

// applyMove relocates c (or, with ChildSet1 set, each of c's children
// matching ChildSet1) to just before or after the cohort resolved by
// r.DepTarget's test (or, with ChildSet2 set, that cohort's child
// matching ChildSet2). A target in another window is refused. No
// dependency-cycle check is made, so ALLOWLOOP has no effect here.
// Mirrors GrammarApplicator::moveCohort.
func applyMove(g *Grammar, w *Window, sw *SingleWindow, c *Cohort, r *Rule, report AnomalyReporter) ApplyResult {
	if r.DepTarget == nil {
		return ApplyResult{}
	}
	matched, pos := evalTestPositions(&testEnv{g: g, w: w, sw: sw, c: c}, r.DepTarget)
	if !matched || pos == nil {
		return ApplyResult{}
	}
	if pos.sw != sw {
		reportAnomaly(report, r.id, c.GlobalNumber, "refused cross-window move")
		return ApplyResult{}
	}

	if r.ChildSet1 != 0 {
		return applyMoveChildSpan(g, sw, c, pos.c, r)
	}

	return moveOneCohort(sw, c, pos.c, r.Type == RuleMoveAfter)
}

// moveOneCohort relocates one to sit just before or after anchor in
// sw.Cohorts.
func moveOneCohort(sw *SingleWindow, one, anchor *Cohort, after bool) ApplyResult {
	from := indexOf(sw, one)
	to := indexOf(sw, anchor)
	if from < 0 || to < 0 || from == to {
		return ApplyResult{}
	}
	sw.Cohorts = append(sw.Cohorts[:from], sw.Cohorts[from+1:]...)
	if to > from {
		to--
	}
	if after {
		to++
	}
	if to < 0 {
		to = 0
	}
	if to > len(sw.Cohorts) {
		to = len(sw.Cohorts)
	}
	sw.Cohorts = append(sw.Cohorts[:to], append([]*Cohort{one}, sw.Cohorts[to:]...)...)
	sw.renumber()
	return ApplyResult{Changed: true, StructuralOp: true}
}

// applyMoveChildSpan moves each of c's children matching r.ChildSet1
// to sit relative to target's child matching r.ChildSet2 (or target
// itself, if ChildSet2 is unset), preserving the moved children's
// relative order: MOVE-BEFORE keeps the anchor fixed across the span
// so every moved child lands before it in its original order;
// MOVE-AFTER advances the anchor to the just-moved child after each
// step so the span lands after it in the same order.
func applyMoveChildSpan(g *Grammar, sw *SingleWindow, c, target *Cohort, r *Rule) ApplyResult {
	children := matchingChildren(g, sw, c, r.ChildSet1)
	if len(children) == 0 {
		return ApplyResult{}
	}
	anchor := target
	if r.ChildSet2 != 0 {
		anchors := matchingChildren(g, sw, target, r.ChildSet2)
		if len(anchors) == 0 {
			return ApplyResult{}
		}
		anchor = anchors[0]
	}

	after := r.Type == RuleMoveAfter
	changed := false
	for _, child := range children {
		res := moveOneCohort(sw, child, anchor, after)
		if !res.Changed {
			continue
		}
		changed = true
		if after {
			anchor = child
		}
	}
	return ApplyResult{Changed: changed, StructuralOp: changed}
}

// childrenOf returns parent's dependency children within sw, in window
// order.
func childrenOf(sw *SingleWindow, parent *Cohort) []*Cohort {
	var out []*Cohort
	for _, cur := range sw.Cohorts {
		if cur.DepParent == parent.GlobalNumber {
			out = append(out, cur)
		}
	}
	return out
}

// matchingChildren returns parent's children whose readings satisfy
// set, in window order; an unset set matches nothing.
func matchingChildren(g *Grammar, sw *SingleWindow, parent *Cohort, set SetID) []*Cohort {
	if set == 0 {
		return nil
	}
	var out []*Cohort
	for _, child := range childrenOf(sw, parent) {
		if ok, _ := SetMatchesCohort(g.Pool, sw, set, child, MatchNormal); ok {
			out = append(out, child)
		}
	}
	return out
}

// applySwitch exchanges the positions of c and the cohort resolved by
// r.DepTarget's test — or, with ChildSet1/ChildSet2 set, a child of c
// matching ChildSet1 with a child of the resolved cohort matching
// ChildSet2. Mirrors GrammarApplicator::doSwitch.
func applySwitch(g *Grammar, w *Window, sw *SingleWindow, c *Cohort, r *Rule) ApplyResult {
	if r.DepTarget == nil {
		return ApplyResult{}
	}
	matched, pos := evalTestPositions(&testEnv{g: g, w: w, sw: sw, c: c}, r.DepTarget)
	if !matched || pos == nil || pos.sw != sw {
		return ApplyResult{}
	}

	left, right := c, pos.c
	if r.ChildSet1 != 0 {
		leftChildren := matchingChildren(g, sw, c, r.ChildSet1)
		if len(leftChildren) == 0 {
			return ApplyResult{}
		}
		left = leftChildren[0]
		if r.ChildSet2 != 0 {
			rightChildren := matchingChildren(g, sw, pos.c, r.ChildSet2)
			if len(rightChildren) == 0 {
				return ApplyResult{}
			}
			right = rightChildren[0]
		}
	}

	i := indexOf(sw, left)
	j := indexOf(sw, right)
	if i < 0 || j < 0 || i == j {
		return ApplyResult{}
	}
	sw.Cohorts[i], sw.Cohorts[j] = sw.Cohorts[j], sw.Cohorts[i]
	sw.renumber()
	return ApplyResult{Changed: true, StructuralOp: true}
}

// applySetParentChild attaches c to the cohort resolved by r.DepTarget
// (SETPARENT: c becomes the target's child; SETCHILD: the target
// becomes c's child), honoring ALLOWLOOP (skip the ancestor-cycle
// guard). Only the first cohort DepTarget resolves to is tried: NEAREST
// is not consulted, and a refused attachment does not continue the
// search past that cohort. An edge that is already in place is left as
// it is and reported as no change. Mirrors
// GrammarApplicator::attachParentChild.
func applySetParentChild(g *Grammar, w *Window, sw *SingleWindow, c *Cohort, r *Rule, report AnomalyReporter) ApplyResult {
	if r.DepTarget == nil {
		return ApplyResult{}
	}
	matched, pos := evalTestPositions(&testEnv{g: g, w: w, sw: sw, c: c}, r.DepTarget)
	if !matched || pos == nil {
		return ApplyResult{}
	}
	child, parent := c, pos.c
	if r.Type == RuleSetChild {
		child, parent = pos.c, c
	}
	if child.DepParent == parent.GlobalNumber {
		return ApplyResult{}
	}
	if !r.Flags.has(RuleAllowLoop) && createsCycle(sw, child, parent) {
		reportAnomaly(report, r.id, c.GlobalNumber, "refused attach: would create a dependency cycle")
		return ApplyResult{}
	}
	child.DepParent = parent.GlobalNumber
	return ApplyResult{Changed: true}
}

// createsCycle reports whether making target an ancestor of child would
// close a dependency cycle, walking up target's existing parent chain.
func createsCycle(sw *SingleWindow, child, target *Cohort) bool {
	seen := map[uint32]bool{child.GlobalNumber: true}
	cur := target
	for cur != nil && cur.DepParent != 0 {
		if seen[cur.DepParent] {
			return true
		}
		seen[cur.DepParent] = true
		next := findCohortByGlobal(sw, cur.DepParent)
		if next == nil {
			break
		}
		cur = next
	}
	return false
}

func findCohortByGlobal(sw *SingleWindow, gn uint32) *Cohort {
	for _, c := range sw.Cohorts {
		if c.GlobalNumber == gn {
			return c
		}
	}
	return nil
}

type relOp int

const (
	relAdd relOp = iota
	relSet
	relRem
)

// applyRelation edits the relation edge between c and the cohort A
// resolved by r.DepTarget's test. The singular ADDRELATION/SETRELATION/
// REMRELATION forms write only the C→A edge, keyed by maplist.front()'s
// tag text. The plural ADDRELATIONS/SETRELATIONS/REMRELATIONS forms
// additionally write the mirrored A→C edge, keyed by sublist.front()'s
// tag text. Mirrors GrammarApplicator::doAddRelation(s)/
// doSetRelation(s)/doRemRelation(s).
func applyRelation(g *Grammar, w *Window, sw *SingleWindow, c *Cohort, r *Rule, op relOp) ApplyResult {
	if r.DepTarget == nil {
		return ApplyResult{}
	}
	matched, pos := evalTestPositions(&testEnv{g: g, w: w, sw: sw, c: c}, r.DepTarget)
	if !matched || pos == nil {
		return ApplyResult{}
	}
	target := pos.c

	nameTag := TagID(0)
	if len(r.Maplist) > 0 {
		nameTag = r.Maplist[0]
	}
	changed := writeRelation(c, nameTag, target.GlobalNumber, op)

	if isPluralRelation(r.Type) && len(r.Sublist) > 0 {
		changed = writeRelation(target, r.Sublist[0], c.GlobalNumber, op) || changed
	}

	return ApplyResult{Changed: changed}
}

// writeRelation applies op to the relation edge from c to target under
// name, and reports whether c's relations changed.
func writeRelation(c *Cohort, name TagID, target uint32, op relOp) bool {
	had := c.Relations[name][target]
	switch op {
	case relAdd:
		c.AddRelation(name, target)
		return !had
	case relSet:
		changed := !had || len(c.Relations[name]) != 1
		c.SetRelation(name, target)
		return changed
	case relRem:
		c.RemRelation(name, target)
		return had
	}
	return false
}

// isPluralRelation reports whether t is one of the symmetric
// ADDRELATIONS/SETRELATIONS/REMRELATIONS forms, which write a mirrored
// A→C edge alongside the usual C→A one.
func isPluralRelation(t RuleType) bool {
	switch t {
	case RuleAddRelations, RuleSetRelations, RuleRemRelations:
		return true
	default:
		return false
	}
}

// applySetVariable/applyRemVariable mutate the window-scoped variable
// set. Mirror GrammarApplicator::doSetVariable/doRemVariable.
func applySetVariable(sw *SingleWindow, r *Rule) ApplyResult {
	if sw.VariablesSet[r.Varname] {
		return ApplyResult{}
	}
	sw.VariablesSet[r.Varname] = true
	return ApplyResult{Changed: true}
}

func applyRemVariable(sw *SingleWindow, r *Rule) ApplyResult {
	if sw.VariablesSet[r.Varname] {
		delete(sw.VariablesSet, r.Varname)
		return ApplyResult{Changed: true}
	}
	return ApplyResult{}
}

// reportAnomaly sends a RuleAnomaly to report if non-nil.
func reportAnomaly(report AnomalyReporter, rule RuleID, cohort uint32, reason string) {
	if report == nil {
		return
	}
	report.ReportAnomaly(&RuleAnomaly{Rule: rule, Cohort: cohort, Reason: reason})
}

func readingSet(rs []*Reading) map[*Reading]bool {
	m := make(map[*Reading]bool, len(rs))
	for _, r := range rs {
		m[r] = true
	}
	return m
}

// prependMissing inserts id at the front of list if not already
// present, used by REPLACE to keep the wordform/baseform tags alive
// through a full tag-list replacement.
func prependMissing(list []TagID, id TagID) []TagID {
	for _, t := range list {
		if t == id {
			return list
		}
	}
	return append([]TagID{id}, list...)
}

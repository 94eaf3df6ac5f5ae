package cgrule

// This file evaluates ContextualTest predicates against a target
// cohort's position in a window, implementing linear scanning
// (offset/scanall/scanfirst), barrier/cbarrier interruption,
// span_both/left/right cross-window traversal, dependency-relative
// positioning (dep_child/sibling/parent), and linked re-entrant tests.
// Grounded on GrammarApplicator::runContextualTest and
// GrammarApplicator::runSingleTest in GrammarApplicator_runRules.cpp,
// generalized from that function's int/hairy-pointer plumbing into a
// slice-and-struct walk over SingleWindow.Cohorts.

// testEnv bundles the state a ContextualTest evaluation needs beyond
// the test itself: the grammar, the window buffer (for cross-window
// scans), and the window+cohort the test is relative to.
type testEnv struct {
	g  *Grammar
	w  *Window
	sw *SingleWindow
	c  *Cohort
}

// EvalContextualTest reports whether t is satisfied starting from c in
// sw, chaining into t.Linked on success. Mirrors runContextualTest's
// top-level dispatch between dependency mode and linear scanning.
func EvalContextualTest(g *Grammar, w *Window, sw *SingleWindow, c *Cohort, t *ContextualTest) bool {
	env := &testEnv{g: g, w: w, sw: sw, c: c}
	matched, at := evalTestPositions(env, t)
	if t.Negative {
		matched = !matched
	}
	if !matched {
		t.NumFail++
		return false
	}
	t.NumMatch++
	if t.Linked != nil {
		if at == nil {
			return false
		}
		return EvalContextualTest(g, w, at.sw, at.c, t.Linked)
	}
	return true
}

// resolvedPos is a cohort plus the window it lives in, used to thread
// the "re-entry point" for linked tests.
type resolvedPos struct {
	sw *SingleWindow
	c  *Cohort
}

// evalTestPositions resolves every candidate position t could apply to
// (a single offset position, or a scanned range) and reports whether
// any of them satisfies t.Target, honoring barrier/cbarrier
// interruption. scanall and scanfirst both widen which positions
// scanPositions returns; either way the test as a whole is existential
// over that set, per SPEC_FULL §4.2. Returns the position at which the
// (first, for linked-test purposes) match occurred.
func evalTestPositions(env *testEnv, t *ContextualTest) (bool, *resolvedPos) {
	if t.DepMode != DepModeNone {
		return evalDependencyTest(env, t)
	}

	positions := scanPositions(env, t)
	if len(positions) == 0 {
		return false, nil
	}

	for _, pos := range positions {
		if testSucceedsAt(env.g, pos, t) {
			return true, pos
		}
	}
	return false, nil
}

// testSucceedsAt reports whether t.Target matches pos's cohort under
// t.Careful's match mode.
func testSucceedsAt(g *Grammar, pos *resolvedPos, t *ContextualTest) bool {
	mode := MatchNormal
	if t.Careful {
		mode = MatchCareful
	}
	if !possibleSetsMatch(g, pos.c, t.Target) {
		return false
	}
	ok, _ := SetMatchesCohort(g.Pool, pos.sw, t.Target, pos.c, mode)
	return ok
}

// scanPositions walks outward from env.c by t.Offset, continuing to
// scan across cohorts (and, if t.SpanLeft/SpanRight/SpanBoth, across
// window boundaries) until a barrier halts the scan, collecting every
// position a scanfirst/scanall test should consider. Offset 0 without
// scanfirst/scanall resolves to env.c itself, with no stepping. Mirrors
// the position-stepping loop in runContextualTest.
func scanPositions(env *testEnv, t *ContextualTest) []*resolvedPos {
	sw, idx := env.sw, indexOf(env.sw, env.c)
	if idx < 0 {
		return nil
	}

	if t.Absolute {
		pos := absolutePosition(env, t.Offset)
		if pos == nil {
			return nil
		}
		return []*resolvedPos{pos}
	}

	if t.Offset == 0 && !t.ScanAll && !t.ScanFirst {
		return []*resolvedPos{{sw: sw, c: env.c}}
	}

	step := 1
	if t.Offset < 0 {
		step = -1
	}
	remaining := t.Offset
	if remaining < 0 {
		remaining = -remaining
	}

	cur := sw
	curIdx := idx
	var out []*resolvedPos

	canGoLeft := step < 0 && (t.SpanBoth || t.SpanLeft)
	canGoRight := step > 0 && (t.SpanBoth || t.SpanRight)

	for steps := 0; steps < remaining || (t.ScanAll || t.ScanFirst); steps++ {
		curIdx += step
		if curIdx < 0 || curIdx >= len(cur.Cohorts) {
			if step < 0 && canGoLeft {
				prev := env.w.PreviousFrom(cur)
				if prev == nil {
					break
				}
				cur = prev
				curIdx = len(cur.Cohorts) - 1
			} else if step > 0 && canGoRight {
				next := env.w.NextFrom(cur)
				if next == nil {
					break
				}
				cur = next
				curIdx = 0
			} else {
				break
			}
		}
		pos := &resolvedPos{sw: cur, c: cur.Cohorts[curIdx]}

		if steps >= remaining-1 {
			if t.CBarrier != 0 && possibleSetsMatch(env.g, pos.c, t.CBarrier) {
				if ok, _ := SetMatchesCohort(env.g.Pool, cur, t.CBarrier, pos.c, MatchCareful); ok {
					out = append(out, pos)
					break
				}
			}
			out = append(out, pos)
			if !t.ScanAll && !t.ScanFirst {
				break
			}
		}

		if t.Barrier != 0 && possibleSetsMatch(env.g, pos.c, t.Barrier) {
			if ok, _ := SetMatchesCohort(env.g.Pool, cur, t.Barrier, pos.c, MatchNormal); ok {
				break
			}
		}
	}
	return out
}

// absolutePosition resolves an ABS-offset test: offset counts from the
// start of the current window (1-based, per CG-3's absolute addressing).
func absolutePosition(env *testEnv, offset int) *resolvedPos {
	if offset < 0 || offset >= len(env.sw.Cohorts) {
		return nil
	}
	return &resolvedPos{sw: env.sw, c: env.sw.Cohorts[offset]}
}

// evalDependencyTest resolves a DEPMODE test relative to env.c's
// dependency edges: the parent, a named child, or a sibling sharing
// env.c's parent. Mirrors the dep_parent/dep_child/dep_sibling branches
// of runContextualTest.
func evalDependencyTest(env *testEnv, t *ContextualTest) (bool, *resolvedPos) {
	switch t.DepMode {
	case DepModeParent:
		parent := env.w.CohortMap[env.c.DepParent]
		if parent == nil {
			return false, nil
		}
		pos := &resolvedPos{sw: findOwningWindow(env.w, parent), c: parent}
		return testSucceedsAt(env.g, pos, t), pos
	case DepModeChild:
		for _, cohort := range env.sw.Cohorts {
			if cohort.DepParent == env.c.GlobalNumber {
				pos := &resolvedPos{sw: env.sw, c: cohort}
				if testSucceedsAt(env.g, pos, t) {
					return true, pos
				}
			}
		}
		return false, nil
	case DepModeSibling:
		for _, cohort := range env.sw.Cohorts {
			if cohort.GlobalNumber != env.c.GlobalNumber && cohort.DepParent == env.c.DepParent {
				pos := &resolvedPos{sw: env.sw, c: cohort}
				if testSucceedsAt(env.g, pos, t) {
					return true, pos
				}
			}
		}
		return false, nil
	default:
		return false, nil
	}
}

// findOwningWindow returns the SingleWindow holding c: its Parent
// link, or w.Current when c has none.
func findOwningWindow(w *Window, c *Cohort) *SingleWindow {
	if c.Parent != nil {
		return c.Parent
	}
	return w.Current
}

func indexOf(sw *SingleWindow, c *Cohort) int {
	for i, cur := range sw.Cohorts {
		if cur == c {
			return i
		}
	}
	return -1
}

package cgrule

// This file is the rule runner: the section-scheduled fixpoint loop
// that drives a Grammar over a Window of SingleWindows. Grounded on
// GrammarApplicator::runGrammarOnWindow and
// GrammarApplicator::runRulesOnWindow in GrammarApplicator_runRules.cpp,
// restructured from that function's single sprawling method into a
// small set of composable passes (SPEC_FULL.md §4.3).

// RunnerStats accumulates the run-level counters SPEC_FULL.md §6's
// optional statistics configuration exposes.
type RunnerStats struct {
	Passes     int
	RuleFires  int
	Iterations map[int]int // section number -> iterations run

	// Stats, if non-nil, mirrors RuleFires/Iterations onto prometheus
	// collectors for the optional statistics configuration (SPEC_FULL.md
	// §6/§7A). Left nil, nothing is recorded.
	Stats *Statistics `json:"-"`
}

// RunWindow processes sw to a fixpoint: before-section rules once,
// then each numbered section repeatedly up to its max-iteration bound,
// then after-section rules once. Mirrors runGrammarOnWindow's three
// phases. If the grammar defines PARENTHESES pairs, enclosed regions
// are extracted before this main pass runs and reinserted region by
// region afterward, firing the ENCL_INNER/ENCL_OUTER/ENCL_FINAL phases
// (SPEC_FULL.md §4.3.4).
func RunWindow(g *Grammar, w *Window, sw *SingleWindow, sectionMaxCount int, stats *RunnerStats, report AnomalyReporter) {
	regions := findEnclosures(g, sw)
	extractEnclosures(sw, regions)

	runMainPasses(g, w, sw, sectionMaxCount, stats, report)

	reinsertEnclosures(g, w, sw, regions, stats, report)
}

// runMainPasses is runGrammarOnWindow's three-phase body: before-
// section rules once, each section to a fixpoint, after-section rules
// once. ENCL_INNER/ENCL_OUTER/ENCL_FINAL-flagged rules never fire here;
// they are reserved for reinsertEnclosures's dedicated phases.
func runMainPasses(g *Grammar, w *Window, sw *SingleWindow, sectionMaxCount int, stats *RunnerStats, report AnomalyReporter) {
	IndexSingleWindow(g, sw, g.SectionRules(len(g.Sections)))

	runRuleList(g, w, sw, g.BeforeSections, stats, report, nil)

	for i := range g.Sections {
		runSections := g.SectionRules(i + 1)
		IndexSingleWindow(g, sw, runSections)
		iterations := runSectionToFixpoint(g, w, sw, runSections, sectionMaxCount, stats, report)
		if stats != nil {
			if stats.Iterations == nil {
				stats.Iterations = make(map[int]int)
			}
			stats.Iterations[i+1] = iterations
			stats.Stats.observeSectionPasses(i+1, iterations)
		}
	}

	IndexSingleWindow(g, sw, g.AfterSections)
	runRuleList(g, w, sw, g.AfterSections, stats, report, nil)
}

// runSectionToFixpoint repeats one full pass over section's rules until
// a pass produces no change, or maxCount passes have run (0 means
// unbounded, per SPEC_FULL.md's Open Question resolution recorded in
// DESIGN.md). Returns the number of passes actually run.
func runSectionToFixpoint(g *Grammar, w *Window, sw *SingleWindow, section []RuleID, maxCount int, stats *RunnerStats, report AnomalyReporter) int {
	passes := 0
	for {
		passes++
		changed := runRuleList(g, w, sw, section, stats, report, nil)
		if !changed {
			return passes
		}
		if maxCount > 0 && passes >= maxCount {
			return passes
		}
	}
}

// enclRuleFlags is the set of flags reserved for the enclosure phase;
// a rule carrying any of them only fires from reinsertEnclosures, never
// from the ordinary section/before/after passes.
const enclRuleFlags = RuleEnclInner | RuleEnclOuter | RuleEnclFinal

// runRuleList runs every rule in rules, in ascending line-number order,
// each against every still-valid candidate cohort matching inScope (nil
// means every cohort), left to right. Returns whether any rule fired. A
// DELIMIT or structural mutation re-indexes the window for every rule
// that still has candidates, since cohort identity/order may have
// shifted, and ends the current rule's sweep.
func runRuleList(g *Grammar, w *Window, sw *SingleWindow, rules []RuleID, stats *RunnerStats, report AnomalyReporter, inScope func(*Cohort) bool) bool {
	anyChanged := false
	for _, rid := range rules {
		r := g.Pool.Rule(rid)
		if r == nil || r.Flags.has(enclRuleFlags) {
			continue
		}
		if fireRule(g, w, sw, r, stats, report, inScope) {
			anyChanged = true
		}
	}
	return anyChanged
}

// fireRule evaluates r against every remaining candidate cohort in sw
// matching inScope (nil means every cohort), applying its effect
// wherever all contextual tests succeed. Returns whether any
// application changed state.
func fireRule(g *Grammar, w *Window, sw *SingleWindow, r *Rule, stats *RunnerStats, report AnomalyReporter, inScope func(*Cohort) bool) bool {
	changed := false
	for {
		candidates := CandidateCohorts(sw, r.id)
		firedThisSweep := false
		for _, c := range candidates {
			if inScope != nil && !inScope(c) {
				continue
			}
			if r.isNoOpOnSingleton() && len(c.liveReadings()) <= 1 {
				continue
			}
			ok, matched, failedIdx, testsPassed := evaluateRule(g, w, sw, c, r)
			if !ok {
				MarkRuleCohortFailed(sw, r.id, c)
				if failedIdx >= 0 {
					r.hoistTest(failedIdx)
				}
				r.NumFail++
				if stats != nil {
					stats.Stats.observeFail(r)
				}
				continue
			}
			r.NumMatch++
			res := ApplyRule(g, w, sw, c, r, matched, report, testsPassed)
			if stats != nil {
				stats.RuleFires++
				stats.Stats.observeFire(r)
			}
			if !res.Changed {
				MarkRuleCohortFailed(sw, r.id, c)
				continue
			}
			changed = true
			if res.Delimited || res.StructuralOp {
				rids := []RuleID{r.id}
				for rid := range sw.RuleToCohorts {
					rids = append(rids, rid)
				}
				IndexSingleWindow(g, sw, rids)
				firedThisSweep = true
				break
			}
			UpdateValidRules(g, sw, c)
			if r.Flags.has(RuleNoIterate) {
				continue
			}
			firedThisSweep = true
		}
		if !firedThisSweep {
			return changed
		}
		if r.Type != RuleSelect && r.Type != RuleRemove && r.Type != RuleIff &&
			r.Type != RuleMap && r.Type != RuleAdd {
			// Structural/relation/variable rules fire at most once per
			// sweep per cohort set; re-looping risks oscillation without
			// ALLOWLOOP, so a single sweep is enough for them.
			return changed
		}
	}
}

// evaluateRule resolves the target-set match on c and runs r's
// contextual tests (in cost-hoisted order). Returns the matched
// readings and, on failure, the index (into r.Tests, not the reordered
// view) of the first test that failed, for hoistTest. For an ordinary
// rule a failed test makes ok false and discards matched. IFF is the
// exception (SPEC_FULL §4.3.2 step 4): once the target itself matches,
// IFF always applies — ok is true regardless of the test outcome, and
// testsPassed tells ApplyRule whether to promote (SELECT) or demote
// (REMOVE) the matched readings. hoistTest is never called for an IFF
// test failure, since the candidate still matched and was applied.
func evaluateRule(g *Grammar, w *Window, sw *SingleWindow, c *Cohort, r *Rule) (ok bool, matched []*Reading, failedIdx int, testsPassed bool) {
	if !possibleSetsMatch(g, c, r.Target) {
		return false, nil, -1, false
	}

	mode := MatchNormal
	setOK, setMatched := SetMatchesCohort(g.Pool, sw, r.Target, c, mode)
	if !setOK {
		return false, nil, -1, false
	}

	ordered := r.orderedTests()
	for _, t := range ordered {
		if !EvalContextualTest(g, w, sw, c, t) {
			idx := indexOfTest(r.Tests, t)
			if r.Type == RuleIff {
				return true, setMatched, idx, false
			}
			return false, nil, idx, false
		}
	}
	return true, setMatched, -1, true
}

func indexOfTest(tests []*ContextualTest, t *ContextualTest) int {
	for i, cur := range tests {
		if cur == t {
			return i
		}
	}
	return -1
}

// enclosureRegion is one top-level PARENTHESES-matched span: left and
// right are the paren cohorts themselves (never removed from the
// window); cohorts is the enclosed sub-sequence extracted between them.
// Nested parens inside a region travel along inside cohorts rather than
// forming their own region, matching §4.3.4's "enclosed sub-sequence"
// wording.
type enclosureRegion struct {
	left, right *Cohort
	cohorts     []*Cohort
}

// findEnclosures scans sw for top-level PARENTHESES-matched spans,
// pairing each opening cohort against the specific closing tag its
// pair registered, via a depth stack so nested pairs don't split the
// outer region. Returns nil if the grammar defines no PARENTHESES
// pairs.
func findEnclosures(g *Grammar, sw *SingleWindow) []*enclosureRegion {
	if len(g.Parentheses) == 0 {
		return nil
	}
	type open struct {
		idx   int
		c     *Cohort
		right TagID
	}
	var stack []open
	var regions []*enclosureRegion
	for i, c := range sw.Cohorts {
		if c.IsSentinel() {
			continue
		}
		if right, ok := g.parenRight(c.Wordform); ok {
			stack = append(stack, open{idx: i, c: c, right: right})
			continue
		}
		if len(stack) > 0 && g.isParenRight(c.Wordform) {
			top := stack[len(stack)-1]
			if top.right == c.Wordform {
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					inner := append([]*Cohort(nil), sw.Cohorts[top.idx+1:i]...)
					regions = append(regions, &enclosureRegion{left: top.c, right: c, cohorts: inner})
				}
			}
		}
	}
	return regions
}

// extractEnclosures removes every region's enclosed cohorts from sw,
// flagging them CohortEnclosed so the main pass runs on the stripped
// window, per §4.3.4.
func extractEnclosures(sw *SingleWindow, regions []*enclosureRegion) {
	if len(regions) == 0 {
		return
	}
	enclosed := make(map[*Cohort]bool)
	for _, r := range regions {
		for _, c := range r.cohorts {
			enclosed[c] = true
			c.Type |= CohortEnclosed
		}
	}
	if len(enclosed) == 0 {
		return
	}
	kept := make([]*Cohort, 0, len(sw.Cohorts))
	for _, c := range sw.Cohorts {
		if !enclosed[c] {
			kept = append(kept, c)
		}
	}
	sw.Cohorts = kept
	sw.renumber()
}

// reinsertEnclosures re-inserts each region's cohorts back at its
// paren's current position, clearing CohortEnclosed, then runs
// ENCL_INNER rules scoped to the region, ENCL_OUTER rules scoped to
// everywhere else, setting sw.ParLeftPos/ParRightPos to the region's
// boundary for the duration. After every region is back, ENCL_FINAL
// rules run once, unscoped (§4.3.4).
func reinsertEnclosures(g *Grammar, w *Window, sw *SingleWindow, regions []*enclosureRegion, stats *RunnerStats, report AnomalyReporter) {
	defer func() { sw.ParLeftPos, sw.ParRightPos = -1, -1 }()
	if len(regions) == 0 {
		return
	}

	for _, r := range regions {
		leftPos := indexOf(sw, r.left)
		if leftPos < 0 {
			// the left paren cohort itself was removed by the stripped
			// pass (e.g. REMCOHORT); there is no position to reinsert
			// the region's cohorts against.
			continue
		}
		tail := append([]*Cohort(nil), sw.Cohorts[leftPos+1:]...)
		sw.Cohorts = append(sw.Cohorts[:leftPos+1], append(append([]*Cohort(nil), r.cohorts...), tail...)...)
		for _, c := range r.cohorts {
			c.Type &^= CohortEnclosed
			c.Parent = sw
		}
		sw.renumber()

		rightPos := indexOf(sw, r.right)
		sw.ParLeftPos, sw.ParRightPos = leftPos, rightPos

		runEnclosurePhase(g, w, sw, RuleEnclInner, func(c *Cohort) bool {
			return rightPos >= 0 && int(c.LocalNumber) > leftPos && int(c.LocalNumber) < rightPos
		}, stats, report)

		runEnclosurePhase(g, w, sw, RuleEnclOuter, func(c *Cohort) bool {
			return rightPos < 0 || int(c.LocalNumber) <= leftPos || int(c.LocalNumber) >= rightPos
		}, stats, report)
	}

	runEnclosurePhase(g, w, sw, RuleEnclFinal, nil, stats, report)
}

// runEnclosurePhase runs every rule flagged with phase to a fixpoint,
// restricted to cohorts inScope selects (nil means every cohort).
func runEnclosurePhase(g *Grammar, w *Window, sw *SingleWindow, phase RuleFlag, inScope func(*Cohort) bool, stats *RunnerStats, report AnomalyReporter) {
	var rules []RuleID
	for _, r := range g.Pool.AllRules() {
		if r.Flags.has(phase) {
			rules = append(rules, r.id)
		}
	}
	if len(rules) == 0 {
		return
	}
	IndexSingleWindow(g, sw, rules)
	for {
		changed := false
		for _, rid := range rules {
			r := g.Pool.Rule(rid)
			if r == nil {
				continue
			}
			if fireRule(g, w, sw, r, stats, report, inScope) {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

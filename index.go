package cgrule

import "sort"

// This file maintains the per-window indexes that let the runner skip
// rules that cannot possibly match rather than re-testing every rule
// against every cohort every pass. Grounded on
// GrammarApplicator::index_ruleCohort_no and the possible_sets
// bookkeeping described across GrammarApplicator_runRules.cpp and
// GrammarApplicator_matchSet.cpp (SPEC_FULL.md §4.4).

// IndexSingleWindow computes each cohort's PossibleSets cache from
// grammar.SetsByTag, and seeds sw.RuleToCohorts/ValidRules from
// grammar.RulesByTag restricted to rules in runRules. Call once before
// a window's first section pass, and again after any structural edit
// (REMCOHORT/MOVE/SWITCH/DELIMIT) invalidates cohort positions.
func IndexSingleWindow(g *Grammar, sw *SingleWindow, runRules []RuleID) {
	for _, c := range sw.Cohorts {
		c.PossibleSets = computePossibleSets(g, c)
	}

	sw.RuleToCohorts = make(map[RuleID]map[uint32]bool)
	validSet := map[RuleID]bool{}
	for _, rid := range runRules {
		for _, c := range sw.Cohorts {
			if c.IsSentinel() {
				continue
			}
			if ruleCouldMatchCohort(g, rid, c) {
				m, ok := sw.RuleToCohorts[rid]
				if !ok {
					m = make(map[uint32]bool)
					sw.RuleToCohorts[rid] = m
				}
				m[c.GlobalNumber] = true
				validSet[rid] = true
			}
		}
	}
	sw.ValidRules = make([]RuleID, 0, len(validSet))
	for rid := range validSet {
		sw.ValidRules = append(sw.ValidRules, rid)
	}
	sort.Slice(sw.ValidRules, func(i, j int) bool { return sw.ValidRules[i] < sw.ValidRules[j] })
}

// computePossibleSets unions grammar.SetsByTag over every tag appearing
// in any live reading of c, plus the always-present match-any set.
func computePossibleSets(g *Grammar, c *Cohort) map[SetID]bool {
	out := map[SetID]bool{g.SetsAny: true}
	for _, r := range c.liveReadings() {
		for _, tid := range r.TagsList {
			for sid := range g.SetsByTag[tid] {
				out[sid] = true
			}
		}
	}
	return out
}

// ruleCouldMatchCohort is the cheap pre-filter: a rule's target set
// must be among the cohort's PossibleSets. The rule-cohort negative
// cache is not consulted here; CandidateCohorts applies it.
func ruleCouldMatchCohort(g *Grammar, rid RuleID, c *Cohort) bool {
	r := g.Pool.Rule(rid)
	if r == nil {
		return false
	}
	return possibleSetsMatch(g, c, r.Target)
}

// MarkRuleCohortFailed records that rid failed to fire on c this
// section, so later passes skip re-testing it — the rule-cohort
// negative cache (SPEC_FULL.md §4.4).
func MarkRuleCohortFailed(sw *SingleWindow, rid RuleID, c *Cohort) {
	if sw.indexRuleCohortNo == nil {
		sw.indexRuleCohortNo = make(map[ruleCohortKey]bool)
	}
	sw.indexRuleCohortNo[ruleCohortKey{rule: rid, cohort: c.GlobalNumber}] = true
}

// RuleCohortFailed reports whether rid has already failed on c this
// section.
func RuleCohortFailed(sw *SingleWindow, rid RuleID, c *Cohort) bool {
	return sw.indexRuleCohortNo[ruleCohortKey{rule: rid, cohort: c.GlobalNumber}]
}

// UpdateValidRules recomputes, for a single cohort whose readings just
// changed, which of sw.ValidRules still have it as a candidate —
// called after every mutation so the next rule iteration doesn't retry
// already-exhausted rule/cohort pairs unless the cohort's tag set
// actually changed (SPEC_FULL.md §4.4's "update_valid_rules").
func UpdateValidRules(g *Grammar, sw *SingleWindow, c *Cohort) {
	c.PossibleSets = computePossibleSets(g, c)
	for rid, cohorts := range sw.RuleToCohorts {
		if possibleSetsMatch(g, c, g.Pool.Rule(rid).Target) {
			cohorts[c.GlobalNumber] = true
		} else {
			delete(cohorts, c.GlobalNumber)
		}
	}
	for k := range sw.indexRuleCohortNo {
		if k.cohort == c.GlobalNumber {
			delete(sw.indexRuleCohortNo, k)
		}
	}
}

// CandidateCohorts returns the cohorts rid might still fire on within
// sw, in increasing LocalNumber order, skipping any already in the
// negative cache.
func CandidateCohorts(sw *SingleWindow, rid RuleID) []*Cohort {
	ids, ok := sw.RuleToCohorts[rid]
	if !ok {
		return nil
	}
	byGlobal := make(map[uint32]*Cohort, len(ids))
	for _, c := range sw.Cohorts {
		if ids[c.GlobalNumber] {
			byGlobal[c.GlobalNumber] = c
		}
	}
	out := make([]*Cohort, 0, len(byGlobal))
	for _, c := range sw.Cohorts {
		if byGlobal[c.GlobalNumber] != nil && !RuleCohortFailed(sw, rid, c) {
			out = append(out, c)
		}
	}
	return out
}

package cgrule

import "sort"

// Grammar is the compiled, ready-to-run rule set: interned tags/sets/
// rules plus the indexes built once at load time. Mirrors the Grammar
// class in Grammar.hpp. Building a Grammar from CG-3's own rule-source
// syntax is out of scope (SPEC_FULL.md §1 Non-goals); Grammars are
// assembled programmatically via GrammarBuilder, or decoded from the
// compiled-grammar JSON document described in SPEC_FULL.md's Adapter
// Contract section.
type Grammar struct {
	Pool *Pool

	BeginTag TagID
	EndTag   TagID

	BeforeSections []RuleID
	Sections       [][]RuleID // Sections[0] is section 1's rules, etc.
	AfterSections  []RuleID

	Delimiters     SetID // 0 means unset
	SoftDelimiters SetID

	// SetsByTag indexes Set ids by every Tag id they transitively
	// reference, used both for the possible_sets pre-filter in the
	// matcher and for index maintenance (SPEC_FULL.md §4.1.2, §4.4).
	SetsByTag map[TagID]map[SetID]bool

	// RulesByTag indexes Rule ids by every Tag id their target set
	// transitively references (SPEC_FULL.md §4.4).
	RulesByTag map[TagID]map[RuleID]bool

	// SetsAny is the implicit "(*)" match-any set, registered once and
	// reused by every cohort's possible_sets seed.
	SetsAny SetID

	// Parentheses lists the PARENTHESES-directive left/right wordform
	// tag pairs the enclosure pass (SPEC_FULL.md §4.3.4) recognizes.
	Parentheses []ParenPair
}

// ParenPair is one left/right wordform tag pairing registered by
// GrammarBuilder.DefineParentheses, e.g. "(" paired with ")".
type ParenPair struct {
	Left  TagID
	Right TagID
}

// parenRight returns the right-hand partner tag for wordform if it
// opens a registered parenthesis pair.
func (g *Grammar) parenRight(wordform TagID) (TagID, bool) {
	for _, p := range g.Parentheses {
		if p.Left == wordform {
			return p.Right, true
		}
	}
	return 0, false
}

// isParenRight reports whether wordform closes some registered
// parenthesis pair.
func (g *Grammar) isParenRight(wordform TagID) bool {
	for _, p := range g.Parentheses {
		if p.Right == wordform {
			return true
		}
	}
	return false
}

// NewGrammar creates an empty Grammar bound to pool, interning the
// sentence-boundary begin/end tags and the implicit match-any set.
func NewGrammar(pool *Pool) (*Grammar, error) {
	g := &Grammar{
		Pool:       pool,
		SetsByTag:  make(map[TagID]map[SetID]bool),
		RulesByTag: make(map[TagID]map[RuleID]bool),
	}
	begin, err := pool.AddTag(`">>>"`, TagWordform)
	if err != nil {
		return nil, err
	}
	end, err := pool.AddTag(`"<<<"`, TagWordform)
	if err != nil {
		return nil, err
	}
	g.BeginTag = begin.ID()
	g.EndTag = end.ID()

	any := &Set{Name: "(*)", Flags: SetMatchAny}
	g.SetsAny = pool.AddSet(any)
	return g, nil
}

// indexSet computes the transitive tag closure of set (following
// sub-sets) and registers it into SetsByTag, the way grammar load
// builds sets_by_tag before any window is processed.
func (g *Grammar) indexSet(id SetID) {
	s := g.Pool.Set(id)
	if s == nil {
		return
	}
	seen := map[SetID]bool{}
	var walk func(SetID)
	walk = func(sid SetID) {
		if seen[sid] {
			return
		}
		seen[sid] = true
		cur := g.Pool.Set(sid)
		if cur == nil {
			return
		}
		for _, t := range cur.referencedTags(g.Pool) {
			m, ok := g.SetsByTag[t]
			if !ok {
				m = make(map[SetID]bool)
				g.SetsByTag[t] = m
			}
			m[id] = true
		}
		for _, sub := range cur.Sets {
			walk(sub)
		}
	}
	walk(id)
}

// IndexAllSets runs indexSet over every set the Pool knows about, in
// increasing id order. Call once after a Grammar's sets are all
// registered and before the first window is processed.
func (g *Grammar) IndexAllSets() {
	ids := make([]SetID, 0, len(g.Pool.sets))
	for id := range g.Pool.sets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		g.indexSet(id)
	}
}

// indexRule registers rule into RulesByTag under every tag its target
// set transitively references (SPEC_FULL.md §4.4, "Tag→Rules index").
func (g *Grammar) indexRule(r *Rule) {
	s := g.Pool.Set(r.Target)
	if s == nil {
		return
	}
	seen := map[SetID]bool{}
	var walk func(SetID)
	walk = func(sid SetID) {
		if seen[sid] {
			return
		}
		seen[sid] = true
		cur := g.Pool.Set(sid)
		if cur == nil {
			return
		}
		for _, t := range cur.referencedTags(g.Pool) {
			m, ok := g.RulesByTag[t]
			if !ok {
				m = make(map[RuleID]bool)
				g.RulesByTag[t] = m
			}
			m[r.id] = true
		}
		for _, sub := range cur.Sets {
			walk(sub)
		}
	}
	walk(r.Target)
}

// IndexAllRules runs indexRule over every registered rule. Call once
// after all rules are added and sets are indexed.
func (g *Grammar) IndexAllRules() {
	for _, r := range g.Pool.AllRules() {
		g.indexRule(r)
	}
}

// SectionRules returns the set of rule ids belonging to sections 1..k
// inclusive (SPEC_FULL.md §4.3.1's runsections[k]).
func (g *Grammar) SectionRules(k int) []RuleID {
	var out []RuleID
	for i := 0; i < k && i < len(g.Sections); i++ {
		out = append(out, g.Sections[i]...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

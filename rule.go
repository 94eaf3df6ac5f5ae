package cgrule

// RuleID identifies a Rule; equal to its source line number, which
// SPEC_FULL.md §3 specifies as the rule's unique id.
type RuleID uint32

// RuleType is the action keyword a Rule performs. Mirrors the K_*
// constants in cg3.h.
type RuleType int

const (
	RuleSelect RuleType = iota
	RuleRemove
	RuleIff
	RuleMap
	RuleAdd
	RuleReplace
	RuleSubstitute
	RuleAppend
	RuleDelimit
	RuleRemCohort
	RuleMoveBefore
	RuleMoveAfter
	RuleSwitch
	RuleSetParent
	RuleSetChild
	RuleAddRelation
	RuleSetRelation
	RuleRemRelation
	RuleAddRelations
	RuleSetRelations
	RuleRemRelations
	RuleSetVariable
	RuleRemVariable
)

// RuleFlag is a bit in a Rule's flag set. Mirrors the RF_* bitmask in
// cg3.h.
type RuleFlag uint32

const (
	RuleNearest RuleFlag = 1 << iota
	RuleAllowLoop
	RuleAllowCross
	RuleDelayed
	RuleUnsafe
	RuleSafe
	RuleRememberX
	RuleResetX
	RuleKeepOrder
	RuleEnclInner
	RuleEnclOuter
	RuleEnclFinal
	RuleNoIterate
)

func (f RuleFlag) has(bit RuleFlag) bool { return f&bit != 0 }

// DepMode selects how SETPARENT/SETCHILD or a ContextualTest resolves
// its attachment/search target relative to C's own dependency edges.
type DepMode int

const (
	DepModeNone DepMode = iota
	DepModeChild
	DepModeSibling
	DepModeParent
)

// Rule is immutable after grammar load. Mirrors the Rule class in
// Rule.hpp.
type Rule struct {
	id   RuleID
	Line RuleID
	Type RuleType

	Target   SetID
	Wordform TagID // optional filter; 0 means unset

	Flags RuleFlag

	Maplist []TagID // mutation payload: tags to add/replace/relation names
	Sublist []TagID // mutation payload: tags to remove (SUBSTITUTE) or relation name (RELATIONS)

	Tests []*ContextualTest // linked chain, modeled as an ordered slice
	// HeadIndex is the index into Tests currently tried first; swapped
	// to the front by the cost-based test-reordering heuristic
	// (SPEC_FULL.md §4.3.2) unless KeepOrder is set.
	HeadIndex int

	DepTarget   *ContextualTest // test resolving the SETPARENT/SETCHILD/MOVE target cohort
	DepTestHead *ContextualTest

	ChildSet1 SetID
	ChildSet2 SetID
	Varname   string

	// Section is the 1-based section number this rule belongs to (0 for
	// before-sections, -1 for after-sections), assigned at grammar-build
	// time (SPEC_FULL.md §4.3.1).
	Section int

	// Counters mirror Rule::num_match/num_fail, exposed for the
	// optional statistics configuration (SPEC_FULL.md §6).
	NumMatch uint64
	NumFail  uint64
}

// ID returns the rule's id (its line number).
func (r *Rule) ID() RuleID { return r.id }

// orderedTests returns r.Tests with HeadIndex rotated to the front,
// without mutating r.Tests itself.
func (r *Rule) orderedTests() []*ContextualTest {
	if r.HeadIndex <= 0 || r.HeadIndex >= len(r.Tests) {
		return r.Tests
	}
	out := make([]*ContextualTest, 0, len(r.Tests))
	out = append(out, r.Tests[r.HeadIndex])
	out = append(out, r.Tests[:r.HeadIndex]...)
	out = append(out, r.Tests[r.HeadIndex+1:]...)
	return out
}

// hoistTest moves the test at index idx (within r.Tests, not the
// reordered view) to the front, the "cost-based reordering" mentioned
// in SPEC_FULL.md §4.3.2: a test that fails once is tried first next
// time, since contextual tests are evaluated left to right and an
// early failure short-circuits the rest.
func (r *Rule) hoistTest(idx int) {
	if r.Flags.has(RuleKeepOrder) {
		return
	}
	r.HeadIndex = idx
}

// isNoOpOnSingleton reports whether this rule type would be a no-op on
// a cohort with exactly one reading, absent UNSAFE — the early-skip
// named in SPEC_FULL.md §4.3.2 step 2.
func (r *Rule) isNoOpOnSingleton() bool {
	switch r.Type {
	case RuleSelect, RuleRemove, RuleIff:
		return !r.Flags.has(RuleUnsafe)
	default:
		return false
	}
}

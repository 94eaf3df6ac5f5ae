package cgrule

// ContextualTest is an immutable predicate over cohort positions
// relative to a target cohort. Mirrors the ContextualTest class in
// ContextualTest.hpp. Per SPEC_FULL.md §9, the prev/next/linked linked
// list in the original is replaced here by an ordered slice on Rule
// (prev/next) plus a distinct recursive Linked child (linked).
type ContextualTest struct {
	Offset   int
	Absolute bool

	SpanBoth  bool
	SpanLeft  bool
	SpanRight bool

	ScanAll   bool
	ScanFirst bool

	Careful  bool
	Negative bool

	Target   SetID
	Barrier  SetID // 0 means unset
	CBarrier SetID // 0 means unset

	DepMode DepMode

	// Linked chains to another test that must also succeed, re-entering
	// at the position where this test matched (SPEC_FULL.md §4.2).
	Linked *ContextualTest

	// NumMatch/NumFail mirror ContextualTest::num_match/num_fail for
	// the optional statistics configuration.
	NumMatch uint64
	NumFail  uint64
}

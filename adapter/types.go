// Package adapter turns wire formats into a *cgrule.Window and back,
// staying a thin shell around the engine per the adapter contract:
// "hand me a window of cohorts with readings and tags; I will mutate
// it in place." Grounded on the VISL CG-3 JsonlApplicator field layout
// (w/l/ts/s/sts/rs/ds/dp/drs/z) and the PlaintextApplicator stream
// grammar, and on the teacher's bufio.Scanner + directive-line parsing
// technique in loader.go.
package adapter

// cohortDoc is one JSONL line: a cohort plus its readings. Field names
// mirror JsonlApplicator.cpp's wire format exactly.
type cohortDoc struct {
	W   string       `json:"w"`
	STS []string     `json:"sts,omitempty"`
	RS  []readingDoc  `json:"rs"`
	DRS []readingDoc  `json:"drs,omitempty"`
	DS  *uint32      `json:"ds,omitempty"`
	DP  *uint32      `json:"dp,omitempty"`
	Z   string       `json:"z,omitempty"`
	S   string       `json:"s,omitempty"` // sentence/window boundary marker: "start"|"end"
}

// readingDoc is one reading within a cohortDoc's "rs"/"drs" array.
type readingDoc struct {
	L   string   `json:"l,omitempty"`
	TS  []string `json:"ts"`
	DRS []string `json:"drs,omitempty"` // dependency relation names on this reading
}

// GrammarDoc is the compiled-grammar JSON document decoded by
// DecodeGrammar: the "compiled" half of the grammar-source-parsing
// boundary that this repository never crosses. A separate external
// compiler produces this document from CG rule-source syntax.
type GrammarDoc struct {
	MappingPrefix string         `json:"mapping_prefix,omitempty"`
	Sets          []SetDoc       `json:"sets"`
	Rules         []RuleDoc      `json:"rules"`
	Sections      [][]uint32     `json:"sections"`
	BeforeSections []uint32      `json:"before_sections,omitempty"`
	AfterSections  []uint32      `json:"after_sections,omitempty"`
	Delimiters     string        `json:"delimiters,omitempty"`
	Parentheses    [][2]string   `json:"parentheses,omitempty"`
}

// SetDoc is one named set definition: a flat OR-list of tag texts,
// the common case: definitions needing sub-set algebra (sets/ops) are
// expressed as nested SetDoc names resolved by DecodeGrammar in a
// second pass.
type SetDoc struct {
	Name string   `json:"name"`
	Tags []string `json:"tags,omitempty"`
	Sets []string `json:"sets,omitempty"`
	Ops  []string `json:"ops,omitempty"`
}

// RuleDoc is one rule definition.
type RuleDoc struct {
	Line      uint32    `json:"line"`
	Type      string    `json:"type"`
	Target    string    `json:"target"`
	Maplist   []string  `json:"maplist,omitempty"`
	Sublist   []string  `json:"sublist,omitempty"`
	Flags     []string  `json:"flags,omitempty"`
	Varname   string    `json:"varname,omitempty"`
	Tests     []TestDoc `json:"tests,omitempty"`
	DepTarget *TestDoc  `json:"dep_target,omitempty"`
	ChildSet1 string    `json:"childset1,omitempty"`
	ChildSet2 string    `json:"childset2,omitempty"`
}

// TestDoc is one contextual test definition attached to a RuleDoc.
type TestDoc struct {
	Offset   int    `json:"offset"`
	Target   string `json:"target"`
	Barrier  string `json:"barrier,omitempty"`
	CBarrier string `json:"cbarrier,omitempty"`
	ScanAll  bool   `json:"scanall,omitempty"`
	Careful  bool   `json:"careful,omitempty"`
	Negative bool   `json:"negative,omitempty"`
}

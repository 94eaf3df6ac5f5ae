package cgrule

// This file implements the set/tag matcher: whether a Reading satisfies
// a Tag, a CompositeTag, or a (possibly compound) Set, plus the
// per-window reading->set memoization cache. Grounded on
// GrammarApplicator::doesTagMatchReading and
// GrammarApplicator::doesSetMatchReading in GrammarApplicator_matchSet.cpp.

// tagMatchesReading reports whether tag is satisfied by reading,
// handling plain text, regexp, and numerical-comparison tags. Negative
// tags invert the underlying test, the way NEGATIVE is applied as a
// final inversion in doesTagMatchReading rather than folded into the
// comparison itself.
func tagMatchesReading(pool *Pool, tag *Tag, reading *Reading) bool {
	ok := tagMatchesReadingRaw(pool, tag, reading)
	if tag.IsNegative() {
		return !ok
	}
	return ok
}

func tagMatchesReadingRaw(pool *Pool, tag *Tag, reading *Reading) bool {
	if tag.Flags.has(TagAny) {
		return true
	}
	if tag.Flags.has(TagNumerical) {
		for _, id := range reading.NumericalTags() {
			other := pool.Tag(id)
			if other == nil || other.CompareKey != tag.CompareKey {
				continue
			}
			if compareCompatible(tag.CompareOp, tag.CompareVal, other.CompareOp, other.CompareVal) {
				return true
			}
		}
		return false
	}
	if tag.Flags.has(TagRegexp) {
		for _, id := range reading.TextualTags() {
			other := pool.Tag(id)
			if other == nil {
				continue
			}
			if tag.matchRegexp(other.Text) {
				return true
			}
		}
		return false
	}
	return reading.HasTag(tag.ID())
}

// compositeTagMatchesReading reports whether every member of ct matches
// some tag on reading — a composite tag is a conjunction (AND) of its
// members, per Set.hpp's "composite tags" comment.
func compositeTagMatchesReading(pool *Pool, ct *CompositeTag, reading *Reading) bool {
	for _, id := range ct.Members {
		t := pool.Tag(id)
		if t == nil || !tagMatchesReading(pool, t, reading) {
			return false
		}
	}
	return true
}

// setMatchesReadingRaw evaluates a Set's full definition against
// reading, without consulting or updating the memoization cache.
// single_tags and composite tags are OR-combined; sub-sets combine
// left-to-right via Ops, mirroring the S_OR/S_PLUS/S_MINUS/S_FAILFAST/
// S_NOT/S_ISECT_U/S_SYMDIFF_U cascade in doesSetMatchReading. Each run
// of non-OR operators forms one term group; an OR closes the group, and
// the first group that closes true decides the match.
func setMatchesReadingRaw(pool *Pool, s *Set, reading *Reading, careful bool) bool {
	if s.Flags.has(SetMatchAny) {
		return true
	}

	matched := false
	for _, id := range s.SingleTags {
		t := pool.Tag(id)
		if t != nil && tagMatchesReading(pool, t, reading) {
			matched = true
			if !careful {
				reading.CurrentMappingTag = 0
			}
			break
		}
	}
	if !matched {
		for _, ctID := range s.Tags {
			ct := pool.CompositeTag(ctID)
			if ct != nil && compositeTagMatchesReading(pool, ct, reading) {
				matched = true
				break
			}
		}
	}

	if careful && s.HasMappings() && matched {
		if len(reading.MappedTags()) > 1 {
			matched = false
		}
	}

	if len(s.Sets) == 0 {
		return matched
	}

	result := matched
	if len(s.SingleTags) == 0 && len(s.Tags) == 0 {
		first := pool.Set(s.Sets[0])
		result = first != nil && setMatchesReadingCached(pool, nil, first, reading, careful)
	}
	for i := 0; i+1 < len(s.Sets); i++ {
		rhs := pool.Set(s.Sets[i+1])
		rhsMatch := rhs != nil && setMatchesReadingCached(pool, nil, rhs, reading, careful)
		op := SetOpOr
		if i < len(s.Ops) {
			op = s.Ops[i]
		}
		switch op {
		case SetOpOr:
			if result {
				return true
			}
			result = rhsMatch
		case SetOpPlus:
			result = result && rhsMatch
		case SetOpMinus:
			result = result && !rhsMatch
		case SetOpFailfast:
			if result && rhsMatch {
				return false
			}
		case SetOpNot:
			result = !result && !rhsMatch
		case SetOpIsectU:
			result = result && rhsMatch
		case SetOpSymdiffU:
			result = result != rhsMatch
		}
	}
	return result
}

// setMatchesReadingCached is the memoized entry point every matcher
// caller should use. sw may be nil (grammar-load-time self-checks);
// when non-nil, results are cached per reading hash, the reading->set
// cache named in SPEC_FULL.md §4.1.2.
func setMatchesReadingCached(pool *Pool, sw *SingleWindow, s *Set, reading *Reading, careful bool) bool {
	if sw == nil || s.IsSpecial() {
		return setMatchesReadingRaw(pool, s, reading, careful)
	}
	if yes, ok := sw.indexReadingYes[reading.Hash]; ok && yes[s.id] {
		return true
	}
	if no, ok := sw.indexReadingNo[reading.Hash]; ok && no[s.id] {
		return false
	}
	result := setMatchesReadingRaw(pool, s, reading, careful)
	if result {
		m, ok := sw.indexReadingYes[reading.Hash]
		if !ok {
			m = make(map[SetID]bool)
			sw.indexReadingYes[reading.Hash] = m
		}
		m[s.id] = true
	} else {
		m, ok := sw.indexReadingNo[reading.Hash]
		if !ok {
			m = make(map[SetID]bool)
			sw.indexReadingNo[reading.Hash] = m
		}
		m[s.id] = true
	}
	return result
}

// MatchMode selects how a Set is matched against a Cohort's readings.
type MatchMode int

const (
	// MatchNormal requires only one live reading to satisfy the set.
	MatchNormal MatchMode = iota
	// MatchCareful (CG-3's "careful" matching, used for SELECT/REMOVE's
	// default semantics absent ALL) requires every live reading to
	// satisfy the set, and applies the single-mapped-tag restriction.
	MatchCareful
)

// SetMatchesCohort reports whether set matches c under mode, and
// returns every live reading that matches (in mode Careful, that is
// every live reading, or none when the cohort fails).
func SetMatchesCohort(pool *Pool, sw *SingleWindow, setID SetID, c *Cohort, mode MatchMode) (bool, []*Reading) {
	s := pool.Set(setID)
	if s == nil {
		return false, nil
	}
	live := c.liveReadings()
	if len(live) == 0 {
		return false, nil
	}
	var matches []*Reading
	switch mode {
	case MatchCareful:
		for _, r := range live {
			if !setMatchesReadingCached(pool, sw, s, r, true) {
				return false, nil
			}
			matches = append(matches, r)
		}
		return true, matches
	default:
		for _, r := range live {
			if setMatchesReadingCached(pool, sw, s, r, false) {
				matches = append(matches, r)
			}
		}
		return len(matches) > 0, matches
	}
}

// possibleSetsMatch is the cheap pre-filter named in SPEC_FULL.md
// §4.1.2: a cohort cannot satisfy setID unless setID (or one of its
// special flags) appears in the cohort's PossibleSets cache, built from
// grammar.SetsByTag over the cohort's own tags. A cohort that has not
// been indexed yet gets its cache built here on first use.
func possibleSetsMatch(g *Grammar, c *Cohort, setID SetID) bool {
	s := g.Pool.Set(setID)
	if s == nil {
		return false
	}
	if s.IsSpecial() {
		return true
	}
	if len(c.PossibleSets) == 0 {
		c.PossibleSets = computePossibleSets(g, c)
	}
	return c.PossibleSets[setID]
}

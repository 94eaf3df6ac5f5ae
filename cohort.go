package cgrule

// CohortType is a bitset of structural flags on a Cohort.
type CohortType uint32

const (
	CohortRemoved CohortType = 1 << iota
	CohortEnclosed
	CohortRelated
	CohortNumCurrent
)

func (t CohortType) has(bit CohortType) bool { return t&bit != 0 }

// Cohort is one input token: a wordform plus its candidate readings.
// Mirrors the Cohort class in Cohort.hpp.
type Cohort struct {
	Wordform TagID

	Readings []*Reading
	Deleted  []*Reading // readings removed this run (output fidelity)
	Delayed  []*Reading // readings deferred by DELAYED-flagged rules

	LocalNumber  uint32 // position in parent window
	GlobalNumber uint32 // unique id, assigned from the window's counter

	// PossibleSets caches the union of grammar.sets_by_tag[t] over the
	// cohort's tags — an indexing hint maintained by indexSingleWindow
	// and update_valid_rules (SPEC_FULL.md §4.4).
	PossibleSets map[SetID]bool

	DepSelf   uint32
	DepParent uint32
	// Relations maps a relation-name Tag id to the set of target
	// global_numbers it points at.
	Relations map[TagID]map[uint32]bool

	Type CohortType

	Parent *SingleWindow
}

// NewCohort allocates a cohort owned by sw, assigning GlobalNumber from
// the window buffer's monotonic counter as the adapter contract
// requires (SPEC_FULL.md §6), and LocalNumber as the index the cohort
// takes when the caller appends it to sw.Cohorts.
func NewCohort(sw *SingleWindow, wordform TagID) *Cohort {
	c := &Cohort{
		Wordform:     wordform,
		PossibleSets: make(map[SetID]bool),
		Relations:    make(map[TagID]map[uint32]bool),
		Parent:       sw,
	}
	if sw != nil {
		c.LocalNumber = uint32(len(sw.Cohorts))
	}
	if sw != nil && sw.parentWindow != nil {
		c.GlobalNumber = sw.parentWindow.nextGlobalNumber()
		sw.parentWindow.CohortMap[c.GlobalNumber] = c
	}
	return c
}

// IsSentinel reports whether this is the window's index-0 "begin"
// cohort, which is never a rule target (SPEC_FULL.md §8).
func (c *Cohort) IsSentinel() bool { return c.LocalNumber == 0 }

// InitEmptyCohort re-initializes a cohort with no readings by giving it
// a single reading carrying only the wordform tag, mirroring
// GrammarApplicator::initEmptyCohort — the boundary behavior named in
// SPEC_FULL.md §8.
func (c *Cohort) InitEmptyCohort(pool *Pool) {
	r := NewReading(pool, []TagID{c.Wordform})
	r.Wordform = c.Wordform
	r.Baseform = c.Wordform
	c.Readings = []*Reading{r}
}

// AddRelation records a C→target relation edge keyed by the relation
// name tag.
func (c *Cohort) AddRelation(name TagID, target uint32) {
	set, ok := c.Relations[name]
	if !ok {
		set = make(map[uint32]bool)
		c.Relations[name] = set
	}
	set[target] = true
}

// SetRelation replaces all existing targets for name with a single
// target.
func (c *Cohort) SetRelation(name TagID, target uint32) {
	c.Relations[name] = map[uint32]bool{target: true}
}

// RemRelation removes a single target from name's relation set.
func (c *Cohort) RemRelation(name TagID, target uint32) {
	if set, ok := c.Relations[name]; ok {
		delete(set, target)
		if len(set) == 0 {
			delete(c.Relations, name)
		}
	}
}

// liveReadings returns the subset of Readings not marked Deleted.
func (c *Cohort) liveReadings() []*Reading {
	out := make([]*Reading, 0, len(c.Readings))
	for _, r := range c.Readings {
		if !r.Deleted {
			out = append(out, r)
		}
	}
	return out
}

// LiveReadings is the exported form of liveReadings, for adapters
// serializing a processed cohort's surviving readings.
func (c *Cohort) LiveReadings() []*Reading { return c.liveReadings() }

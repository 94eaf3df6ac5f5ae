package cgrule

// Shared test scaffolding for the engine's own package tests. Builds
// grammars and windows directly through GrammarBuilder/NewCohort/
// NewReading rather than through an adapter, so these tests exercise
// engine semantics independent of wire format.

// testFixture bundles a grammar, a window buffer and its current
// SingleWindow for a test case to mutate and run rules against.
type testFixture struct {
	b  *GrammarBuilder
	g  *Grammar
	w  *Window
	sw *SingleWindow
}

// newFixture starts a fresh grammar builder; call addCohort repeatedly
// then build() once sets/rules are registered.
func newFixture() *testFixture {
	b, err := NewGrammarBuilder()
	if err != nil {
		panic(err)
	}
	return &testFixture{b: b}
}

// build finalizes the grammar and opens a single window ready to
// receive cohorts.
func (f *testFixture) build() {
	g, err := f.b.Build()
	if err != nil {
		panic(err)
	}
	f.g = g
	f.w = NewWindow(2)
	f.sw = NewSingleWindow(f.w, g.Pool, g.BeginTag)
}

// addCohort appends a cohort with one reading per readingTags entry (a
// baseform followed by its tags) onto the fixture's current window,
// returning the new cohort.
func (f *testFixture) addCohort(wordform string, readingTags ...[]string) *Cohort {
	wf, err := f.g.Pool.AddTag(wordform, TagWordform)
	if err != nil {
		panic(err)
	}
	c := NewCohort(f.sw, wf.ID())
	for _, rt := range readingTags {
		var tagsList []TagID
		tagsList = append(tagsList, wf.ID())
		var baseform TagID
		for i, text := range rt {
			flags := TagTextual
			if i == 0 {
				flags |= TagBaseform
			}
			t, err := f.g.Pool.AddTag(text, flags)
			if err != nil {
				panic(err)
			}
			if i == 0 {
				baseform = t.ID()
			}
			tagsList = append(tagsList, t.ID())
		}
		r := NewReading(f.g.Pool, tagsList)
		r.Wordform = wf.ID()
		r.Baseform = baseform
		c.Readings = append(c.Readings, r)
	}
	f.sw.Cohorts = append(f.sw.Cohorts, c)
	f.sw.AllCohorts = append(f.sw.AllCohorts, c)
	return c
}

// finish pushes sw as the window's current window, for tests that need
// Window.PreviousFrom/NextFrom plumbing wired up as a real adapter call
// would leave it.
func (f *testFixture) finish() {
	f.w.PushCurrent(f.sw)
}

// tagTexts returns the textual tags of a reading, in order, excluding
// its wordform and baseform, for assertions on survivor content.
func tagTexts(g *Grammar, r *Reading) []string {
	var out []string
	for _, id := range r.TagsList {
		if id == r.Wordform || id == r.Baseform {
			continue
		}
		if t := g.Pool.Tag(id); t != nil {
			out = append(out, t.Text)
		}
	}
	return out
}

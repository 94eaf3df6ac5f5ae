package cgrule

import "github.com/cockroachdb/errors"

// GrammarBuilder is the programmatic grammar-assembly surface that
// stands in for grammar-source-syntax parsing, which stays an external
// collaborator per SPEC_FULL.md §1/§3A. Callers — an embedding program,
// or adapter.DecodeGrammar reading a compiled-grammar JSON document —
// drive this fluent API instead of a textual rule compiler.
type GrammarBuilder struct {
	g         *Grammar
	setByName map[string]SetID
	err       error
}

// NewGrammarBuilder starts building a grammar backed by a fresh Pool.
func NewGrammarBuilder() (*GrammarBuilder, error) {
	pool := NewPool()
	g, err := NewGrammar(pool)
	if err != nil {
		return nil, err
	}
	return &GrammarBuilder{g: g, setByName: make(map[string]SetID)}, nil
}

// MappingPrefix sets the grammar-level mapping-tag prefix character.
func (b *GrammarBuilder) MappingPrefix(c byte) *GrammarBuilder {
	b.g.Pool.MappingPrefix = c
	return b
}

// DefineTagSet interns each of texts as a plain tag and registers a
// named Set that OR-matches any of them — the common case for a
// grammar's leaf sets.
func (b *GrammarBuilder) DefineTagSet(name string, texts []string, flags TagFlag) *GrammarBuilder {
	if b.err != nil {
		return b
	}
	s := &Set{Name: name}
	for _, text := range texts {
		t, err := b.g.Pool.AddTag(text, flags)
		if err != nil {
			b.err = NewUnresolvedSetError(err, name)
			return b
		}
		s.SingleTags = append(s.SingleTags, t.ID())
	}
	id := b.g.Pool.AddSet(s)
	b.setByName[name] = id
	return b
}

// DefineCompoundSet registers a named Set that combines previously
// defined sets (by name) with ops, left to right.
func (b *GrammarBuilder) DefineCompoundSet(name string, subsets []string, ops []SetOp) *GrammarBuilder {
	if b.err != nil {
		return b
	}
	s := &Set{Name: name}
	for _, sub := range subsets {
		id, ok := b.setByName[sub]
		if !ok {
			b.err = NewUnresolvedSetError(errors.Newf("unknown set %q", sub), name)
			return b
		}
		s.Sets = append(s.Sets, id)
	}
	s.Ops = ops
	id := b.g.Pool.AddSet(s)
	b.setByName[name] = id
	return b
}

// SetID looks up a previously defined set by name, for callers
// constructing Rule/ContextualTest values directly.
func (b *GrammarBuilder) SetID(name string) (SetID, bool) {
	id, ok := b.setByName[name]
	return id, ok
}

// Tag interns text with flags, returning its id.
func (b *GrammarBuilder) Tag(text string, flags TagFlag) (TagID, error) {
	t, err := b.g.Pool.AddTag(text, flags)
	if err != nil {
		return 0, err
	}
	return t.ID(), nil
}

// AddRule registers a fully constructed rule and assigns it to
// section (0 means before_sections, -1 means after_sections, >0 means
// sections[section-1]).
func (b *GrammarBuilder) AddRule(r *Rule, section int) *GrammarBuilder {
	if b.err != nil {
		return b
	}
	r.Section = section
	id := b.g.Pool.AddRule(r)
	switch {
	case section == 0:
		b.g.BeforeSections = append(b.g.BeforeSections, id)
	case section < 0:
		b.g.AfterSections = append(b.g.AfterSections, id)
	default:
		for len(b.g.Sections) < section {
			b.g.Sections = append(b.g.Sections, nil)
		}
		b.g.Sections[section-1] = append(b.g.Sections[section-1], id)
	}
	return b
}

// DefineParentheses registers left/right as a PARENTHESES pair: cohorts
// carrying these wordforms bound an enclosure region for the
// ENCL_INNER/ENCL_OUTER/ENCL_FINAL rule phase (SPEC_FULL.md §4.3.4). The
// wordform tags are interned exactly as an adapter decoding that text
// from a corpus would intern them, so a corpus cohort's Wordform id
// lines up with the pair recorded here.
func (b *GrammarBuilder) DefineParentheses(left, right string) *GrammarBuilder {
	if b.err != nil {
		return b
	}
	lt, err := b.g.Pool.AddTag(left, TagWordform)
	if err != nil {
		b.err = err
		return b
	}
	rt, err := b.g.Pool.AddTag(right, TagWordform)
	if err != nil {
		b.err = err
		return b
	}
	lt.Flags |= TagParLeft
	rt.Flags |= TagParRight
	b.g.Parentheses = append(b.g.Parentheses, ParenPair{Left: lt.ID(), Right: rt.ID()})
	return b
}

// Delimiters sets the grammar's hard-delimiter set by name.
func (b *GrammarBuilder) Delimiters(setName string) *GrammarBuilder {
	if b.err != nil {
		return b
	}
	id, ok := b.setByName[setName]
	if !ok {
		b.err = NewUnresolvedSetError(errors.Newf("unknown set %q", setName), setName)
		return b
	}
	b.g.Delimiters = id
	return b
}

// Build finalizes the grammar: runs the tag→sets and tag→rules
// indexers and returns the assembled Grammar, or the first error
// encountered during building.
func (b *GrammarBuilder) Build() (*Grammar, error) {
	if b.err != nil {
		return nil, NewGrammarLoadError(b.err, 0)
	}
	b.g.IndexAllSets()
	b.g.IndexAllRules()
	return b.g, nil
}

package adapter

import (
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/cours-de-latin/cgrule"
)

var ruleTypeByName = map[string]cgrule.RuleType{
	"SELECT": cgrule.RuleSelect, "REMOVE": cgrule.RuleRemove, "IFF": cgrule.RuleIff,
	"MAP": cgrule.RuleMap, "ADD": cgrule.RuleAdd, "REPLACE": cgrule.RuleReplace,
	"SUBSTITUTE": cgrule.RuleSubstitute, "APPEND": cgrule.RuleAppend, "DELIMIT": cgrule.RuleDelimit,
	"REMCOHORT": cgrule.RuleRemCohort, "MOVE-BEFORE": cgrule.RuleMoveBefore, "MOVE-AFTER": cgrule.RuleMoveAfter,
	"SWITCH": cgrule.RuleSwitch, "SETPARENT": cgrule.RuleSetParent, "SETCHILD": cgrule.RuleSetChild,
	"ADDRELATION": cgrule.RuleAddRelation, "SETRELATION": cgrule.RuleSetRelation, "REMRELATION": cgrule.RuleRemRelation,
	"ADDRELATIONS": cgrule.RuleAddRelations, "SETRELATIONS": cgrule.RuleSetRelations, "REMRELATIONS": cgrule.RuleRemRelations,
	"SETVARIABLE": cgrule.RuleSetVariable, "REMVARIABLE": cgrule.RuleRemVariable,
}

var ruleFlagByName = map[string]cgrule.RuleFlag{
	"NEAREST": cgrule.RuleNearest, "ALLOWLOOP": cgrule.RuleAllowLoop, "ALLOWCROSS": cgrule.RuleAllowCross,
	"DELAYED": cgrule.RuleDelayed, "UNSAFE": cgrule.RuleUnsafe, "SAFE": cgrule.RuleSafe,
	"REMEMBERX": cgrule.RuleRememberX, "RESETX": cgrule.RuleResetX, "KEEPORDER": cgrule.RuleKeepOrder,
	"ENCL_INNER": cgrule.RuleEnclInner, "ENCL_OUTER": cgrule.RuleEnclOuter, "ENCL_FINAL": cgrule.RuleEnclFinal,
	"NOITERATE": cgrule.RuleNoIterate,
}

var setOpByName = map[string]cgrule.SetOp{
	"OR": cgrule.SetOpOr, "PLUS": cgrule.SetOpPlus, "MINUS": cgrule.SetOpMinus,
	"FAILFAST": cgrule.SetOpFailfast, "NOT": cgrule.SetOpNot,
	"ISECT_U": cgrule.SetOpIsectU, "SYMDIFF_U": cgrule.SetOpSymdiffU,
}

// DecodeGrammar reads a compiled-grammar JSON document and assembles a
// *cgrule.Grammar via GrammarBuilder. This is the boundary named in
// SPEC_FULL.md §3A/§6A: the document itself is produced by a separate
// external compiler from CG rule-source syntax, which this repository
// never parses.
func DecodeGrammar(r io.Reader) (*cgrule.Grammar, error) {
	var doc GrammarDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode grammar document")
	}

	b, err := cgrule.NewGrammarBuilder()
	if err != nil {
		return nil, err
	}
	if doc.MappingPrefix != "" {
		b.MappingPrefix(doc.MappingPrefix[0])
	}

	for _, s := range doc.Sets {
		if len(s.Tags) > 0 {
			b.DefineTagSet(s.Name, s.Tags, cgrule.TagTextual)
		}
	}
	for _, s := range doc.Sets {
		if len(s.Sets) > 0 {
			ops := make([]cgrule.SetOp, 0, len(s.Ops))
			for _, opName := range s.Ops {
				ops = append(ops, setOpByName[opName])
			}
			b.DefineCompoundSet(s.Name, s.Sets, ops)
		}
	}

	sectionOf := map[uint32]int{}
	for _, line := range doc.BeforeSections {
		sectionOf[line] = 0
	}
	for i, sec := range doc.Sections {
		for _, line := range sec {
			sectionOf[line] = i + 1
		}
	}
	for _, line := range doc.AfterSections {
		sectionOf[line] = -1
	}

	for _, rd := range doc.Rules {
		rule, err := decodeRule(b, &rd)
		if err != nil {
			return nil, cgrule.NewGrammarLoadError(err, cgrule.RuleID(rd.Line))
		}
		section, ok := sectionOf[rd.Line]
		if !ok {
			section = 1
		}
		b.AddRule(rule, section)
	}

	if doc.Delimiters != "" {
		b.Delimiters(doc.Delimiters)
	}
	for _, pair := range doc.Parentheses {
		b.DefineParentheses(pair[0], pair[1])
	}

	return b.Build()
}

func decodeRule(b *cgrule.GrammarBuilder, rd *RuleDoc) (*cgrule.Rule, error) {
	typ, ok := ruleTypeByName[rd.Type]
	if !ok {
		return nil, errors.Newf("unknown rule type %q", rd.Type)
	}
	target, ok := b.SetID(rd.Target)
	if !ok {
		return nil, errors.Newf("unresolved target set %q", rd.Target)
	}

	r := &cgrule.Rule{Line: cgrule.RuleID(rd.Line), Type: typ, Target: target, Varname: rd.Varname}
	for _, flagName := range rd.Flags {
		r.Flags |= ruleFlagByName[flagName]
	}
	for _, text := range rd.Maplist {
		id, err := b.Tag(text, cgrule.TagTextual)
		if err != nil {
			return nil, err
		}
		r.Maplist = append(r.Maplist, id)
	}
	for _, text := range rd.Sublist {
		id, err := b.Tag(text, cgrule.TagTextual)
		if err != nil {
			return nil, err
		}
		r.Sublist = append(r.Sublist, id)
	}
	for _, td := range rd.Tests {
		test, err := decodeTest(b, &td)
		if err != nil {
			return nil, err
		}
		r.Tests = append(r.Tests, test)
	}
	if rd.DepTarget != nil {
		dep, err := decodeTest(b, rd.DepTarget)
		if err != nil {
			return nil, err
		}
		r.DepTarget = dep
	}
	if rd.ChildSet1 != "" {
		id, ok := b.SetID(rd.ChildSet1)
		if !ok {
			return nil, errors.Newf("unresolved childset1 %q", rd.ChildSet1)
		}
		r.ChildSet1 = id
	}
	if rd.ChildSet2 != "" {
		id, ok := b.SetID(rd.ChildSet2)
		if !ok {
			return nil, errors.Newf("unresolved childset2 %q", rd.ChildSet2)
		}
		r.ChildSet2 = id
	}
	return r, nil
}

func decodeTest(b *cgrule.GrammarBuilder, td *TestDoc) (*cgrule.ContextualTest, error) {
	target, ok := b.SetID(td.Target)
	if !ok {
		return nil, errors.Newf("unresolved test target set %q", td.Target)
	}
	t := &cgrule.ContextualTest{
		Offset:   td.Offset,
		Target:   target,
		ScanAll:  td.ScanAll,
		Careful:  td.Careful,
		Negative: td.Negative,
	}
	if td.Barrier != "" {
		if id, ok := b.SetID(td.Barrier); ok {
			t.Barrier = id
		}
	}
	if td.CBarrier != "" {
		if id, ok := b.SetID(td.CBarrier); ok {
			t.CBarrier = id
		}
	}
	return t, nil
}

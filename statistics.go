package cgrule

import "github.com/prometheus/client_golang/prometheus"

// Statistics wraps the prometheus collectors that back the optional
// "statistics" knob named in SPEC_FULL.md §6/§7A. A nil *Statistics is
// valid everywhere it's accepted and simply records nothing, so the
// runner doesn't need a separate on/off branch at every call site.
type Statistics struct {
	ruleFires     *prometheus.CounterVec
	ruleFails     *prometheus.CounterVec
	sectionPasses *prometheus.HistogramVec
}

// NewStatistics registers a fresh set of collectors on reg. Pass
// prometheus.NewRegistry() for an isolated registry (tests, one server
// instance) or prometheus.DefaultRegisterer to expose on the process
// default /metrics handler.
func NewStatistics(reg prometheus.Registerer) *Statistics {
	s := &Statistics{
		ruleFires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cgrule_rule_fires_total",
			Help: "Number of rule applications (target and tests matched, whether or not state changed), by rule line and type.",
		}, []string{"line", "type"}),
		ruleFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cgrule_rule_fails_total",
			Help: "Number of rule evaluations that failed their target set or contextual tests, by rule line and type.",
		}, []string{"line", "type"}),
		sectionPasses: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cgrule_section_passes",
			Help:    "Passes run to reach fixpoint, per section, per window.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}, []string{"section"}),
	}
	reg.MustRegister(s.ruleFires, s.ruleFails, s.sectionPasses)
	return s
}

func (s *Statistics) observeFire(r *Rule) {
	if s == nil {
		return
	}
	s.ruleFires.WithLabelValues(ruleLineLabel(r), ruleTypeLabel(r.Type)).Inc()
}

func (s *Statistics) observeFail(r *Rule) {
	if s == nil {
		return
	}
	s.ruleFails.WithLabelValues(ruleLineLabel(r), ruleTypeLabel(r.Type)).Inc()
}

func (s *Statistics) observeSectionPasses(section int, passes int) {
	if s == nil {
		return
	}
	s.sectionPasses.WithLabelValues(sectionLabel(section)).Observe(float64(passes))
}

func ruleLineLabel(r *Rule) string {
	return uintToString(uint32(r.Line))
}

func sectionLabel(section int) string {
	if section == 0 {
		return "before"
	}
	if section < 0 {
		return "after"
	}
	return uintToString(uint32(section))
}

var ruleTypeNames = map[RuleType]string{
	RuleSelect: "SELECT", RuleRemove: "REMOVE", RuleIff: "IFF",
	RuleMap: "MAP", RuleAdd: "ADD", RuleReplace: "REPLACE",
	RuleSubstitute: "SUBSTITUTE", RuleAppend: "APPEND", RuleDelimit: "DELIMIT",
	RuleRemCohort: "REMCOHORT", RuleMoveBefore: "MOVE-BEFORE", RuleMoveAfter: "MOVE-AFTER",
	RuleSwitch: "SWITCH", RuleSetParent: "SETPARENT", RuleSetChild: "SETCHILD",
	RuleAddRelation: "ADDRELATION", RuleSetRelation: "SETRELATION", RuleRemRelation: "REMRELATION",
	RuleAddRelations: "ADDRELATIONS", RuleSetRelations: "SETRELATIONS", RuleRemRelations: "REMRELATIONS",
	RuleSetVariable: "SETVARIABLE", RuleRemVariable: "REMVARIABLE",
}

func ruleTypeLabel(t RuleType) string {
	if name, ok := ruleTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// uintToString avoids pulling in strconv for the two label helpers; kept
// tiny and local rather than routed through fmt.Sprintf on a hot path.
func uintToString(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

package cgrule

import "go.uber.org/zap"

// Logging is structured throughout the engine with go.uber.org/zap,
// the way the rest of the example pack's service-shaped repos do
// (teranos-QNTX, codenerd). The engine itself never constructs a
// logger; callers inject one so a library user can route engine
// warnings into their own sink.

// AnomalyReporter receives non-fatal rule-application anomalies and
// adapter line errors as they occur (SPEC_FULL.md §7); RunWindow and
// the adapters take one as an optional parameter and no-op when nil.
type AnomalyReporter interface {
	ReportAnomaly(err error)
}

// ZapAnomalyReporter adapts a *zap.Logger into an AnomalyReporter,
// logging each anomaly at Warn level with structured fields.
type ZapAnomalyReporter struct {
	Log *zap.Logger
}

func (r *ZapAnomalyReporter) ReportAnomaly(err error) {
	if r == nil || r.Log == nil || err == nil {
		return
	}
	switch e := err.(type) {
	case *RuleAnomaly:
		r.Log.Warn("rule anomaly",
			zap.Uint32("rule_line", uint32(e.Rule)),
			zap.Uint32("cohort", e.Cohort),
			zap.String("reason", e.Reason))
	case *AdapterLineError:
		r.Log.Warn("adapter line skipped",
			zap.Int("line", e.Line),
			zap.String("reason", e.Reason))
	default:
		r.Log.Warn("anomaly", zap.Error(err))
	}
}

// NewProductionLogger builds a zap.Logger suited to cmd/cgrule-server
// and batch runs (JSON encoding, Info level).
func NewProductionLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

// NewDevelopmentLogger builds a human-readable, colorized console
// logger for local cmd/cgrule-run use.
func NewDevelopmentLogger() (*zap.Logger, error) {
	return zap.NewDevelopment()
}

package cgrule

import "github.com/cockroachdb/errors"

// Error taxonomy per SPEC_FULL.md §7: grammar-load errors are fatal and
// propagate to the caller; rule-application anomalies are recoverable
// and only ever logged by the caller. Mirrors the teacher's plain
// fmt.Errorf call sites in loader.go, upgraded to cockroachdb/errors
// for stack traces and errors.Is/As compatibility across the larger
// service surface added around the engine.

// GrammarLoadError wraps a fatal error encountered while assembling a
// Grammar: an unresolved set reference, a malformed rule, or a regex
// compile failure.
type GrammarLoadError struct {
	cause error
	Rule  RuleID
	Set   string
}

func (e *GrammarLoadError) Error() string {
	switch {
	case e.Rule != 0:
		return errors.Wrapf(e.cause, "grammar load: rule %d", e.Rule).Error()
	case e.Set != "":
		return errors.Wrapf(e.cause, "grammar load: set %q", e.Set).Error()
	default:
		return errors.Wrap(e.cause, "grammar load").Error()
	}
}

func (e *GrammarLoadError) Unwrap() error { return e.cause }

// NewGrammarLoadError wraps cause as a fatal grammar-load failure
// referencing rule (0 if not rule-specific).
func NewGrammarLoadError(cause error, rule RuleID) error {
	return &GrammarLoadError{cause: cause, Rule: rule}
}

// NewUnresolvedSetError wraps cause as a fatal grammar-load failure
// referencing the unresolved set name.
func NewUnresolvedSetError(cause error, setName string) error {
	return &GrammarLoadError{cause: cause, Set: setName}
}

// AdapterLineError is a non-fatal per-line adapter failure: the caller
// logs it and skips the line, per SPEC_FULL.md §7.
type AdapterLineError struct {
	Line   int
	Reason string
}

func (e *AdapterLineError) Error() string {
	return errors.Newf("adapter: line %d: %s", e.Line, e.Reason).Error()
}

// NewAdapterLineError constructs a skip-and-continue adapter error.
func NewAdapterLineError(line int, reason string) error {
	return &AdapterLineError{Line: line, Reason: reason}
}

// RuleAnomaly is a non-fatal rule-application anomaly: a dangling
// dependency id, a refused cross-window move, a refused attach-loop.
// The runner logs it via the caller-supplied AnomalyReporter and moves
// on to the next rule/cohort.
type RuleAnomaly struct {
	Rule   RuleID
	Cohort uint32
	Reason string
}

func (e *RuleAnomaly) Error() string {
	return errors.Newf("rule %d on cohort %d: %s", e.Rule, e.Cohort, e.Reason).Error()
}

// AssertInvariant panics with an AssertionFailedf-wrapped message when
// cond is false — reserved for internal invariant violations (reading
// with zero hash, set id not present in the grammar) that indicate a
// compiler/engine mismatch rather than bad input, per SPEC_FULL.md §7.
func AssertInvariant(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(errors.AssertionFailedf(format, args...))
	}
}

package cgrule

// SingleWindow is a sentence unit: an ordered cohort sequence plus the
// per-window indexes the runner consults. Mirrors the SingleWindow
// class in SingleWindow.hpp.
type SingleWindow struct {
	Cohorts    []*Cohort // index 0 is the sentinel "begin" cohort
	AllCohorts []*Cohort // includes removed cohorts, for output fidelity

	// RuleToCohorts maps rule id -> candidate cohort set, populated by
	// indexSingleWindow and shrunk incrementally (SPEC_FULL.md §4.4).
	RuleToCohorts map[RuleID]map[uint32]bool

	// ValidRules is the sorted worklist of rule ids that may still
	// fire this section pass.
	ValidRules []RuleID

	// VariablesSet holds window-scoped SETVARIABLE/REMVARIABLE state.
	VariablesSet map[string]bool

	// indexRuleCohortNo is the rule-cohort negative cache: rule ids
	// that have already failed on a given cohort's global number this
	// section (SPEC_FULL.md §4.4).
	indexRuleCohortNo map[ruleCohortKey]bool

	// indexReadingYes/No are the set-match memoization caches, keyed
	// by reading hash (SPEC_FULL.md §4.1.2).
	indexReadingYes map[uint64]map[SetID]bool
	indexReadingNo  map[uint64]map[SetID]bool

	Number     uint32
	FlushAfter bool

	// ParLeftPos/ParRightPos are the local numbers of the currently
	// reinserted enclosure region's boundary paren cohorts, set by the
	// enclosure pass during each of its phases (SPEC_FULL.md §4.3.4);
	// -1 when no enclosure phase is active.
	ParLeftPos  int
	ParRightPos int

	parentWindow *Window
}

type ruleCohortKey struct {
	rule   RuleID
	cohort uint32
}

// NewSingleWindow allocates an empty SingleWindow with a sentinel
// begin-cohort at index 0, owned by w.
func NewSingleWindow(w *Window, pool *Pool, beginTag TagID) *SingleWindow {
	sw := &SingleWindow{
		RuleToCohorts:     make(map[RuleID]map[uint32]bool),
		VariablesSet:      make(map[string]bool),
		indexRuleCohortNo: make(map[ruleCohortKey]bool),
		indexReadingYes:   make(map[uint64]map[SetID]bool),
		indexReadingNo:    make(map[uint64]map[SetID]bool),
		ParLeftPos:        -1,
		ParRightPos:       -1,
		parentWindow:      w,
	}
	begin := NewCohort(sw, beginTag)
	r := NewReading(pool, []TagID{beginTag})
	r.Wordform = beginTag
	r.Baseform = beginTag
	begin.Readings = []*Reading{r}
	sw.Cohorts = append(sw.Cohorts, begin)
	sw.AllCohorts = append(sw.AllCohorts, begin)
	return sw
}

// resetCaches clears the per-window memoization state, used whenever a
// reading mutation invalidates the reading->set cache (SPEC_FULL.md
// §4.4).
func (sw *SingleWindow) resetCaches() {
	sw.indexReadingYes = make(map[uint64]map[SetID]bool)
	sw.indexReadingNo = make(map[uint64]map[SetID]bool)
	sw.indexRuleCohortNo = make(map[ruleCohortKey]bool)
}

// renumber reassigns LocalNumber to match Cohorts' current order,
// following a REMCOHORT/MOVE/SWITCH structural edit.
func (sw *SingleWindow) renumber() {
	for i, c := range sw.Cohorts {
		c.LocalNumber = uint32(i)
	}
}

// Window is a sliding buffer of three regions — previous, current,
// next — plus a global cohort lookup, giving contextual tests
// cross-sentence look-ahead/behind up to NumWindows deep. Mirrors the
// Window class in Window.hpp.
type Window struct {
	Previous []*SingleWindow
	Current  *SingleWindow
	Next     []*SingleWindow

	CohortMap map[uint32]*Cohort

	NumWindows uint32

	nextGlobal     uint32
	nextWindowNum  uint32
}

// NewWindow creates an empty sliding window buffer.
func NewWindow(numWindows uint32) *Window {
	return &Window{
		CohortMap:  make(map[uint32]*Cohort),
		NumWindows: numWindows,
	}
}

func (w *Window) nextGlobalNumber() uint32 {
	w.nextGlobal++
	return w.nextGlobal
}

// PreviousFrom returns the SingleWindow immediately before sw in the
// buffer, or nil if sw is the oldest buffered window. Mirrors
// Window::previousFrom.
func (w *Window) PreviousFrom(sw *SingleWindow) *SingleWindow {
	if sw == w.Current {
		if len(w.Previous) > 0 {
			return w.Previous[len(w.Previous)-1]
		}
		return nil
	}
	for i, p := range w.Previous {
		if p == sw {
			if i > 0 {
				return w.Previous[i-1]
			}
			return nil
		}
	}
	for i, n := range w.Next {
		if n == sw {
			if i > 0 {
				return w.Next[i-1]
			}
			return w.Current
		}
	}
	return nil
}

// NextFrom returns the SingleWindow immediately after sw in the
// buffer, or nil if sw is the newest buffered window. Mirrors
// Window::nextFrom.
func (w *Window) NextFrom(sw *SingleWindow) *SingleWindow {
	if sw == w.Current {
		if len(w.Next) > 0 {
			return w.Next[0]
		}
		return nil
	}
	for i, n := range w.Next {
		if n == sw {
			if i+1 < len(w.Next) {
				return w.Next[i+1]
			}
			return nil
		}
	}
	for i, p := range w.Previous {
		if p == sw && i+1 < len(w.Previous) {
			return w.Previous[i+1]
		}
	}
	if len(w.Previous) > 0 && w.Previous[len(w.Previous)-1] == sw {
		return w.Current
	}
	return nil
}

// PushCurrent appends sw as the new Current window, sliding the old
// Current into Previous and trimming Previous to NumWindows deep.
func (w *Window) PushCurrent(sw *SingleWindow) {
	if w.Current != nil {
		w.Previous = append(w.Previous, w.Current)
		if uint32(len(w.Previous)) > w.NumWindows {
			w.Previous = w.Previous[uint32(len(w.Previous))-w.NumWindows:]
		}
	}
	w.Current = sw
	sw.parentWindow = w
	sw.Number = w.nextWindowNum
	w.nextWindowNum++
}

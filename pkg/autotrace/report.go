package autotrace

import "sort"

// OutcomeKind classifies what happened to one row at one context.
type OutcomeKind int

const (
	// OutcomeInserted means a new record was created.
	OutcomeInserted OutcomeKind = iota
	// OutcomeMatched means an existing record was reused.
	OutcomeMatched
	// OutcomeAmbiguous means a record was inserted but no uniqueness
	// constraint was covered, so an existing duplicate cannot be ruled out.
	OutcomeAmbiguous
	// OutcomeFailed means the row was rejected at this context.
	OutcomeFailed
	// OutcomeSkipped means a context this row depends on already failed.
	OutcomeSkipped
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeInserted:
		return "inserted"
	case OutcomeMatched:
		return "matched"
	case OutcomeAmbiguous:
		return "ambiguous-identity"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome records what happened to one input row at one context: the record
// key it resolved to and the foreign-key values written into the row before
// persistence, or the reason it failed.
type Outcome struct {
	Node        string
	Table       string
	Kind        OutcomeKind
	Key         interface{}
	ForeignKeys map[string]interface{}
	Reason      string
}

// RowResult aggregates the outcomes of one input row across every context,
// keyed by context path.
type RowResult struct {
	Index    int
	Outcomes map[string]Outcome
}

// Failed reports whether the row failed or was skipped at any context.
func (r RowResult) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Kind == OutcomeFailed || o.Kind == OutcomeSkipped {
			return true
		}
	}
	return false
}

// WaveSummary describes one processed wave: which contexts ran and the
// outcome counts across all rows.
type WaveSummary struct {
	Index     int
	Nodes     []string
	Inserted  int
	Matched   int
	Ambiguous int
	Failed    int
	Skipped   int
}

// Status is the overall disposition of a run.
type Status int

const (
	// StatusOK means every wave completed (individual rows may have failed).
	StatusOK Status = iota
	// StatusCancelled means the caller's context was cancelled mid-run and
	// the report is partial.
	StatusCancelled
)

// Report is the result of one autotrace run: ordered wave summaries, per-row
// per-context outcomes, and overall counts. FailedRows gives a caller enough
// to retry only the rows that did not land.
type Report struct {
	Status    Status
	Waves     []WaveSummary
	Rows      []RowResult
	Inserted  int
	Matched   int
	Ambiguous int
	Failed    int
	Skipped   int
}

// FailedRows returns the indexes of input rows that failed or were skipped
// at any context, sorted ascending.
func (r *Report) FailedRows() []int {
	var out []int
	for _, row := range r.Rows {
		if row.Failed() {
			out = append(out, row.Index)
		}
	}
	sort.Ints(out)
	return out
}

func (r *Report) count(o Outcome) {
	switch o.Kind {
	case OutcomeInserted:
		r.Inserted++
	case OutcomeMatched:
		r.Matched++
	case OutcomeAmbiguous:
		r.Ambiguous++
	case OutcomeFailed:
		r.Failed++
	case OutcomeSkipped:
		r.Skipped++
	}
}

// Package autotrace implements the dependency-ordered insertion engine: given
// a resolved column mapping and a stream of input rows, it computes a wave
// plan over the mapped contexts, resolves each row to an existing or newly
// inserted record per context, propagates generated keys into dependent rows
// between waves, and reports a per-row per-context outcome.
package autotrace

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/schemanyd/schemanyd/pkg/errs"
	"github.com/schemanyd/schemanyd/pkg/mapping"
	"github.com/schemanyd/schemanyd/pkg/schema"
	"github.com/schemanyd/schemanyd/pkg/source"
	"github.com/schemanyd/schemanyd/pkg/storage"
)

// Engine drives autotrace runs. Strict turns the ambiguous-identity warning
// into a row failure. The engine holds no state across runs; the storage
// executor owns all persistence.
type Engine struct {
	Storage storage.Executor
	Strict  bool
	Logger  *logrus.Logger
}

// New creates an Engine over a storage executor.
func New(exec storage.Executor, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{Storage: exec, Logger: logger}
}

// rowState tracks one input row across waves: the keys it resolved to per
// context, and the contexts at which it already failed.
type rowState struct {
	keys   map[string]interface{}
	failed map[string]bool
}

// Insert runs the full autotrace: plan, wave-by-wave resolution, key
// propagation, report. Structural failures (cycle, unreadable source) abort
// before any write with a nil report; row-level failures are collected and
// do not block sibling rows. On context cancellation the partial report is
// returned together with a Cancelled error.
func (e *Engine) Insert(ctx context.Context, rm *mapping.Resolved, src source.Tabular) (*Report, error) {
	plan, err := BuildPlan(rm)
	if err != nil {
		return nil, err
	}

	rows, err := source.ReadAll(src)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, err, "reading input rows")
	}

	report := &Report{Rows: make([]RowResult, len(rows))}
	states := make([]*rowState, len(rows))
	for i := range rows {
		report.Rows[i] = RowResult{Index: i, Outcomes: make(map[string]Outcome)}
		states[i] = &rowState{keys: make(map[string]interface{}), failed: make(map[string]bool)}
	}

	for waveIdx, wave := range plan.Waves {
		summary := WaveSummary{Index: waveIdx}
		for _, n := range wave.Nodes {
			summary.Nodes = append(summary.Nodes, n.Path)
		}

		for _, n := range wave.Nodes {
			if ctx.Err() != nil {
				report.Status = StatusCancelled
				report.Waves = append(report.Waves, summary)
				return report, errs.Wrap(errs.KindCancelled, ctx.Err(),
					"run cancelled during wave %d", waveIdx)
			}
			e.Logger.Debugf("autotrace: wave %d, context %s (table %s), %d rows",
				waveIdx, n.Path, n.Table.Name, len(rows))

			// Lookup-or-insert is serialized per distinct identity value:
			// the memo guarantees two rows carrying the same identity tuple
			// resolve to the same record without racing the store.
			memo := make(map[string]interface{})

			for i, row := range rows {
				outcome := e.resolveRow(ctx, n, row, states[i], memo)
				report.Rows[i].Outcomes[n.Path] = outcome
				report.count(outcome)
				summaryCount(&summary, outcome)
				if outcome.Kind == OutcomeFailed || outcome.Kind == OutcomeSkipped {
					states[i].failed[n.Path] = true
				} else {
					// Publish the key so later waves see a real value.
					states[i].keys[n.Path] = outcome.Key
				}
			}
		}
		report.Waves = append(report.Waves, summary)
	}

	e.Logger.Infof("autotrace: %d inserted, %d matched, %d ambiguous, %d failed, %d skipped across %d waves",
		report.Inserted, report.Matched, report.Ambiguous, report.Failed, report.Skipped, len(report.Waves))
	return report, nil
}

// resolveRow processes one input row at one context: project the mapped
// columns, fill foreign keys from already-resolved child contexts, check
// required columns, then match or insert.
func (e *Engine) resolveRow(ctx context.Context, n *mapping.Node, row source.Row, st *rowState, memo map[string]interface{}) Outcome {
	out := Outcome{Node: n.Path, Table: n.Table.Name}

	values := make(map[string]interface{})
	for field, col := range n.Fields {
		if v, ok := row[field]; ok && v != nil {
			values[col.Name] = v
		}
	}

	// Foreign keys resolved in earlier waves.
	fks := make(map[string]interface{})
	for _, child := range n.Children {
		if st.failed[child.Path] {
			out.Kind = OutcomeSkipped
			out.Reason = fmt.Sprintf("dependency %s failed for this row", child.Path)
			return out
		}
		key := st.keys[child.Path]
		fkCol := child.Relation.Child.Name
		values[fkCol] = key
		fks[fkCol] = key
	}
	out.ForeignKeys = fks

	if reason := missingRequired(n.Table, values); reason != "" {
		out.Kind = OutcomeFailed
		out.Reason = reason
		return out
	}

	keyCol := ""
	if pk := n.Table.PrimaryKey(); pk != nil {
		keyCol = pk.Name
	}
	if keyCol == "" && n.Parent != nil {
		out.Kind = OutcomeFailed
		out.Reason = fmt.Sprintf("table %s has no single-column primary key to propagate", n.Table.Name)
		return out
	}

	arg := identityArgument(n.Table, values)
	if arg == nil {
		if e.Strict {
			out.Kind = OutcomeFailed
			out.Reason = errs.New(errs.KindInsufficientIdentity,
				"mapped columns cover no uniqueness constraint of %s", n.Table.Name).Error()
			return out
		}
		key, err := e.Storage.Insert(ctx, n.Table.Name, keyCol, values)
		if err != nil {
			out.Kind = OutcomeFailed
			out.Reason = err.Error()
			return out
		}
		out.Kind = OutcomeAmbiguous
		out.Key = key
		out.Reason = "no uniqueness constraint covered, an existing duplicate cannot be ruled out"
		return out
	}

	identity := make(map[string]interface{}, len(arg.Columns))
	for _, c := range arg.Columns {
		identity[c.Name] = values[c.Name]
	}
	memoKey := identityKey(n.Table.Name, arg, identity)

	if key, seen := memo[memoKey]; seen {
		out.Kind = OutcomeMatched
		out.Key = key
		return out
	}

	key, found, err := e.Storage.Find(ctx, n.Table.Name, keyCol, identity)
	if err != nil {
		out.Kind = OutcomeFailed
		out.Reason = err.Error()
		return out
	}
	if found {
		memo[memoKey] = key
		out.Kind = OutcomeMatched
		out.Key = key
		return out
	}

	key, err = e.Storage.Insert(ctx, n.Table.Name, keyCol, values)
	if err != nil {
		out.Kind = OutcomeFailed
		out.Reason = err.Error()
		return out
	}
	memo[memoKey] = key
	out.Kind = OutcomeInserted
	out.Key = key
	return out
}

// missingRequired returns a failure reason when a NOT NULL column without a
// default is neither mapped nor filled by key propagation. The surrogate
// primary key is exempt, its value is generated by the store.
func missingRequired(t *schema.Table, values map[string]interface{}) string {
	for _, col := range t.Columns() {
		if col.Nullable || col.HasDefault || col.IsPrimaryKey {
			continue
		}
		if _, ok := values[col.Name]; !ok {
			return errs.New(errs.KindMissingRequiredColumn,
				"required column never populated by the mapping").
				WithTable(t.Name).WithColumn(col.Name).Error()
		}
	}
	return ""
}

// identityArgument picks the first Unique or PrimaryKey constraint fully
// covered by the projected columns. Constraints made up exclusively of
// foreign-key columns describe link identity, not record identity, and are
// not usable for deduplication.
func identityArgument(t *schema.Table, values map[string]interface{}) *schema.Argument {
	present := make(map[string]bool, len(values))
	for c := range values {
		present[c] = true
	}
	for _, arg := range t.UniqueArguments() {
		if !arg.Covers(present) {
			continue
		}
		allFK := true
		for _, c := range arg.Columns {
			if !c.IsForeignKey {
				allFK = false
				break
			}
		}
		if allFK {
			continue
		}
		return arg
	}
	return nil
}

// identityKey renders an identity tuple into a stable string for the
// per-context memo.
func identityKey(table string, arg *schema.Argument, identity map[string]interface{}) string {
	cols := make([]string, 0, len(identity))
	for c := range identity {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	parts := make([]string, 0, len(cols)+2)
	parts = append(parts, table, arg.Name)
	for _, c := range cols {
		parts = append(parts, fmt.Sprintf("%s=%v", c, identity[c]))
	}
	return strings.Join(parts, "\x1f")
}

func summaryCount(s *WaveSummary, o Outcome) {
	switch o.Kind {
	case OutcomeInserted:
		s.Inserted++
	case OutcomeMatched:
		s.Matched++
	case OutcomeAmbiguous:
		s.Ambiguous++
	case OutcomeFailed:
		s.Failed++
	case OutcomeSkipped:
		s.Skipped++
	}
}

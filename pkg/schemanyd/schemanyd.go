// Package schemanyd is the library entry point: it ties a schema graph, the
// mapping separators, and a storage executor into one object whose Insert
// method runs the full autotrace (mapping resolution, wave planning, and
// dependency-ordered insertion).
package schemanyd

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/schemanyd/schemanyd/pkg/autotrace"
	"github.com/schemanyd/schemanyd/pkg/mapping"
	"github.com/schemanyd/schemanyd/pkg/models"
	"github.com/schemanyd/schemanyd/pkg/schema"
	"github.com/schemanyd/schemanyd/pkg/source"
	"github.com/schemanyd/schemanyd/pkg/storage"
)

// Schemanyd binds one schema graph to one storage executor. SeparatorRF
// splits a relation chain from its field ("." by default), SeparatorRR splits
// a parent segment from a child relation segment ("/" by default). Strict
// turns the ambiguous-identity warning into a row failure.
type Schemanyd struct {
	Graph       *schema.Graph
	Storage     storage.Executor
	SeparatorRF string
	SeparatorRR string
	Strict      bool
	Logger      *logrus.Logger
}

// New creates a Schemanyd with the default separators.
func New(g *schema.Graph, exec storage.Executor, logger *logrus.Logger) *Schemanyd {
	if logger == nil {
		logger = logrus.New()
	}
	cfg := mapping.DefaultConfig()
	return &Schemanyd{
		Graph:       g,
		Storage:     exec,
		SeparatorRF: cfg.SeparatorRF,
		SeparatorRR: cfg.SeparatorRR,
		Logger:      logger,
	}
}

// BuildGraph builds a schema graph from a generic description. Formats other
// than the generic one go through schema.NewBuilder directly, where their
// converters can be registered.
func BuildGraph(desc *models.Description, logger *logrus.Logger) (*schema.Graph, error) {
	return schema.NewBuilder(logger).Build(schema.GenericKind, desc)
}

// ResolveMapping validates a column mapping against the graph without
// touching storage, for callers that want mapping diagnostics up front.
func (s *Schemanyd) ResolveMapping(columnMapping map[string]string) (*mapping.Resolved, error) {
	r := mapping.NewResolver(s.Graph, mapping.Config{
		SeparatorRF: s.SeparatorRF,
		SeparatorRR: s.SeparatorRR,
	}, s.Logger)
	return r.Resolve(columnMapping)
}

// Insert resolves the column mapping and runs the autotrace over the rows.
// All mutation happens through the storage executor; the Schemanyd object
// itself stays stateless across calls.
func (s *Schemanyd) Insert(ctx context.Context, columnMapping map[string]string, rows source.Tabular) (*autotrace.Report, error) {
	rm, err := s.ResolveMapping(columnMapping)
	if err != nil {
		return nil, err
	}
	engine := autotrace.New(s.Storage, s.Logger)
	engine.Strict = s.Strict
	return engine.Insert(ctx, rm, rows)
}

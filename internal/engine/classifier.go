package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/instrumetriq/tier-inspector/internal/models"
)

// Classifier describes every column of a table. Structure is read from one
// representative sample per column: schemas are homogeneous within a tier, so
// the first non-null value of the expected shape describes the whole column.
type Classifier struct {
	logger     *slog.Logger
	parallel   bool
	maxWorkers int
}

// NewClassifier constructs a Classifier. With parallel set, columns are
// classified concurrently by at most maxWorkers goroutines.
func NewClassifier(logger *slog.Logger, parallel bool, maxWorkers int) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Classifier{logger: logger, parallel: parallel, maxWorkers: maxWorkers}
}

// Classify returns one descriptor per table column, in table order.
func (c *Classifier) Classify(ctx context.Context, table *models.Table, manifest models.Manifest) ([]models.ColumnDescriptor, error) {
	names := table.Columns()
	descriptors := make([]models.ColumnDescriptor, len(names))

	classify := func(ctx context.Context, i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := names[i]
		values, ok := table.Column(name)
		if !ok {
			return fmt.Errorf("column %s vanished during classification", name)
		}
		spec, declared := manifest.Column(name)
		descriptors[i] = ClassifyColumn(name, values, spec, declared)
		return nil
	}

	if !c.parallel || len(names) < 2 {
		for i := range names {
			if err := classify(ctx, i); err != nil {
				return nil, err
			}
		}
		return descriptors, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxWorkers)
	for i := range names {
		g.Go(func() error { return classify(gctx, i) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.logger.Debug("columns classified in parallel", slog.Int("columns", len(names)), slog.Int("workers", c.maxWorkers))
	return descriptors, nil
}

// ClassifyColumn describes one column. Undeclared columns take their kind from
// the representative sample and use the not-null presence rule.
func ClassifyColumn(name string, values []models.Value, spec models.ColumnSpec, declared bool) models.ColumnDescriptor {
	desc := models.ColumnDescriptor{Name: name, Declared: declared}

	kind := spec.Kind
	if !declared {
		kind = inferKind(values)
		spec = models.ColumnSpec{Name: name, Kind: kind}
	}
	desc.Kind = kind
	present := PresenceFor(spec.Presence)

	var sample models.Value
	sampled := false
	for _, v := range values {
		if v.IsNull() {
			desc.NullCount++
		} else if !shapeMatches(kind, v) {
			desc.UnexpectedShape++
		} else if !sampled {
			sample = v
			sampled = true
		}
		if present(v) {
			desc.PresentCount++
		}
	}

	switch kind {
	case models.ColumnStruct:
		desc.Cardinality = sample.Len()
		desc.Descriptor = fmt.Sprintf("struct[%d]", desc.Cardinality)
	case models.ColumnArray:
		desc.Cardinality = sample.Len()
		desc.Descriptor = fmt.Sprintf("array[%d]", desc.Cardinality)
	default:
		switch {
		case spec.ScalarType != "":
			desc.Descriptor = spec.ScalarType
		case sampled:
			desc.Descriptor = sample.Kind().String()
		default:
			desc.Descriptor = string(models.ColumnScalar)
		}
	}
	return desc
}

func inferKind(values []models.Value) models.ColumnKind {
	for _, v := range values {
		switch v.Kind() {
		case models.KindNull:
			continue
		case models.KindStruct:
			return models.ColumnStruct
		case models.KindArray:
			return models.ColumnArray
		default:
			return models.ColumnScalar
		}
	}
	return models.ColumnScalar
}

func shapeMatches(kind models.ColumnKind, v models.Value) bool {
	switch kind {
	case models.ColumnStruct:
		return v.Kind() == models.KindStruct
	case models.ColumnArray:
		return v.Kind() == models.KindArray
	default:
		return v.Kind().IsScalar()
	}
}

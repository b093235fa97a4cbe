package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/instrumetriq/tier-inspector/internal/extractors"
	"github.com/instrumetriq/tier-inspector/internal/metrics"
	"github.com/instrumetriq/tier-inspector/internal/models"
)

// Options carries per-run overrides.
type Options struct {
	// Source names where the table came from; informational only.
	Source string
	// MinCorrelationRows overrides the manifest and engine thresholds when positive.
	MinCorrelationRows int
}

// Pipeline drives one inspection through classification, coverage, extraction,
// correlation and time-series summarisation. It keeps no state between runs.
type Pipeline struct {
	logger      *slog.Logger
	classifier  *Classifier
	coverage    *CoverageAnalyzer
	correlation *CorrelationEngine
}

// NewPipeline constructs a new inspection pipeline.
func NewPipeline(
	logger *slog.Logger,
	classifier *Classifier,
	coverage *CoverageAnalyzer,
	correlation *CorrelationEngine,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = NewClassifier(logger, false, 0)
	}
	if coverage == nil {
		coverage = NewCoverageAnalyzer(false)
	}
	if correlation == nil {
		correlation = NewCorrelationEngine(logger, 0)
	}
	return &Pipeline{
		logger:      logger,
		classifier:  classifier,
		coverage:    coverage,
		correlation: correlation,
	}
}

// Inspect runs every stage the manifest calls for and returns the assembled report.
// A missing required column halts the run before any stage executes.
func (p *Pipeline) Inspect(ctx context.Context, table *models.Table, manifest models.Manifest, opts Options) (models.Report, error) {
	started := time.Now()
	report, err := p.inspect(ctx, table, manifest, opts, started)
	elapsed := time.Since(started)
	if err != nil {
		metrics.ObserveInspection(manifest.Tier, elapsed, metrics.OutcomeError)
		p.logger.Warn("inspection failed", slog.String("tier", manifest.Tier), slog.Any("error", err))
		return models.Report{}, err
	}

	report.Duration = elapsed
	metrics.ObserveInspection(manifest.Tier, elapsed, metrics.OutcomeSuccess)
	metrics.ObserveReport(report)
	p.logger.Info("inspection complete",
		slog.String("run_id", report.RunID),
		slog.String("tier", report.Tier),
		slog.Int("records", report.Basics.Records),
		slog.Duration("duration", elapsed),
		slog.Float64("completeness", report.Coverage.Completeness),
		slog.Int("anomalies", len(report.Anomalies)),
	)
	return report, nil
}

func (p *Pipeline) inspect(ctx context.Context, table *models.Table, manifest models.Manifest, opts Options, started time.Time) (models.Report, error) {
	if table == nil {
		return models.Report{}, fmt.Errorf("inspect %s: nil table", manifest.Tier)
	}
	for _, name := range manifest.RequiredColumns() {
		if !table.HasColumn(name) {
			return models.Report{}, &MissingColumnError{Tier: manifest.Tier, Column: name}
		}
	}

	report := models.Report{
		RunID:           uuid.NewString(),
		Tier:            manifest.Tier,
		ManifestVersion: manifest.Version,
		Source:          opts.Source,
		StartedAt:       started.UTC(),
		Stages:          []models.Stage{models.StageLoaded},
		Basics: models.BasicCounts{
			Records:     table.Len(),
			Columns:     table.NumColumns(),
			MemoryBytes: EstimateBytes(table),
		},
		Nested:    []models.NestedSummary{},
		Anomalies: []models.Anomaly{},
	}
	anomalies := newAnomalyTally()

	descriptors, err := p.classifier.Classify(ctx, table, manifest)
	if err != nil {
		return models.Report{}, fmt.Errorf("classify: %w", err)
	}
	report.Columns = descriptors
	report.Stages = append(report.Stages, models.StageClassified)
	for _, d := range descriptors {
		anomalies.add(d.Name, models.AnomalyUnexpectedShape, d.UnexpectedShape)
	}
	p.logger.Debug("stage complete", slog.String("stage", string(models.StageClassified)), slog.Int("columns", len(descriptors)))

	if err := ctx.Err(); err != nil {
		return models.Report{}, err
	}
	coverage, err := p.coverage.Analyze(table, manifest.SymbolColumn, manifest.TimeColumn, descriptors)
	if err != nil {
		return models.Report{}, fmt.Errorf("coverage: %w", err)
	}
	report.Coverage = coverage
	anomalies.add(manifest.TimeColumn, models.AnomalyUnparsableTimestamp, coverage.UnparsableTimestamps)
	anomalies.add(manifest.SymbolColumn, models.AnomalyNullSymbol, coverage.NullSymbols)

	distributions, err := ProfileDistributions(table, manifest.Distributions)
	if err != nil {
		return models.Report{}, fmt.Errorf("distributions: %w", err)
	}
	report.Distributions = distributions
	addNonFinite(anomalies, manifest.Distributions, distributions)
	report.Stages = append(report.Stages, models.StageCovered)
	p.logger.Debug("stage complete", slog.String("stage", string(models.StageCovered)), slog.Int("symbols", coverage.UniqueSymbols))

	nested := manifest.NestedColumns()
	if len(nested) > 0 || len(manifest.Features) > 0 {
		if err := ctx.Err(); err != nil {
			return models.Report{}, err
		}
		report.Nested = nestedSummaries(table, nested, descriptors)

		var features extractors.FeatureTable
		if len(manifest.Features) > 0 {
			features, err = extractors.ExtractMany(table, manifest.Features)
			if err != nil {
				return models.Report{}, fmt.Errorf("extract features: %w", err)
			}
			for _, ref := range manifest.Features {
				anomalies.add(extractors.PathLabel(ref.Column, ref.Path), models.AnomalyUnexpectedShape, features.Mismatches[ref.Name])
			}
		}
		report.Stages = append(report.Stages, models.StageExtracted)
		p.logger.Debug("stage complete", slog.String("stage", string(models.StageExtracted)), slog.Int("features", len(features.Names)))

		if len(manifest.Features) > 0 {
			minRows := opts.MinCorrelationRows
			if minRows <= 0 {
				minRows = manifest.MinCorrelationRows
			}
			result, issues := p.correlation.Correlate(features, minRows)
			report.Correlation = &result
			for _, ref := range manifest.Features {
				label := extractors.PathLabel(ref.Column, ref.Path)
				anomalies.add(label, models.AnomalyNonNumericFeature, issues.NonNumeric[ref.Name])
				anomalies.addMax(label, models.AnomalyNonFiniteValue, issues.NonFinite[ref.Name])
			}
			report.Stages = append(report.Stages, models.StageCorrelated)
			p.logger.Debug("stage complete",
				slog.String("stage", string(models.StageCorrelated)),
				slog.Int("clean_rows", result.CleanRows),
				slog.Bool("insufficient", result.Insufficient),
			)
		}
	}

	if ts := manifest.TimeSeries; ts != nil {
		if err := ctx.Err(); err != nil {
			return models.Report{}, err
		}
		values, _ := table.Column(ts.Column)
		series := extractors.NewTimeSeriesSummarizer(*ts).Summarize(ts.Column, values)
		report.TimeSeries = &series
		if series.Representative != nil {
			anomalies.add(extractors.PathLabel(ts.Column, []string{ts.PayloadField}), models.AnomalyNonFiniteValue, series.Representative.NonFinitePayloads)
		}
		report.Stages = append(report.Stages, models.StageSummarized)
		p.logger.Debug("stage complete", slog.String("stage", string(models.StageSummarized)), slog.Int("total_samples", series.TotalSamples))
	}

	report.Anomalies = anomalies.list()
	report.Stages = append(report.Stages, models.StageReported)
	return report, nil
}

func nestedSummaries(table *models.Table, nested []models.ColumnSpec, descriptors []models.ColumnDescriptor) []models.NestedSummary {
	present := make(map[string]int, len(descriptors))
	for _, d := range descriptors {
		present[d.Name] = d.PresentCount
	}

	summaries := make([]models.NestedSummary, 0, len(nested))
	for _, spec := range nested {
		values, _ := table.Column(spec.Name)
		summary := models.NestedSummary{
			Column:  spec.Name,
			Kind:    spec.Kind,
			Rule:    presenceRule(spec.Presence),
			Present: present[spec.Name],
			Total:   len(values),
			Fields:  sampleFields(spec.Kind, values),
		}
		if summary.Total > 0 {
			summary.Ratio = float64(summary.Present) / float64(summary.Total)
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// sampleFields lists the field names of the first struct found in the column;
// for arrays it looks at the first element of the first non-empty array.
func sampleFields(kind models.ColumnKind, values []models.Value) []string {
	for _, v := range values {
		switch kind {
		case models.ColumnStruct:
			if s, ok := v.AsStruct(); ok {
				return s.Fields()
			}
		case models.ColumnArray:
			items, ok := v.AsArray()
			if !ok || len(items) == 0 {
				continue
			}
			if s, ok := items[0].AsStruct(); ok {
				return s.Fields()
			}
		}
	}
	return []string{}
}

type anomalyKey struct {
	column string
	kind   models.AnomalyKind
}

type anomalyTally map[anomalyKey]int

func newAnomalyTally() anomalyTally {
	return make(anomalyTally)
}

func (t anomalyTally) add(column string, kind models.AnomalyKind, count int) {
	if count <= 0 {
		return
	}
	t[anomalyKey{column: column, kind: kind}] += count
}

// addMax records count unless a larger tally already exists for the pair. The
// same field can be read by several stages and must not be counted twice.
func (t anomalyTally) addMax(column string, kind models.AnomalyKind, count int) {
	key := anomalyKey{column: column, kind: kind}
	if count > t[key] {
		t[key] = count
	}
}

// addNonFinite tallies the NaN and infinite cells skipped by the field profiles.
func addNonFinite(t anomalyTally, spec models.DistributionSpec, report models.DistributionReport) {
	labels := make(map[string]string)
	for _, group := range [][]models.FieldRef{spec.Quantiles, spec.Ranges} {
		for _, ref := range group {
			labels[ref.Name] = extractors.PathLabel(ref.Column, ref.Path)
		}
	}
	for _, q := range report.Quantiles {
		t.addMax(labels[q.Name], models.AnomalyNonFiniteValue, q.NonFinite)
	}
	for _, r := range report.Ranges {
		t.addMax(labels[r.Name], models.AnomalyNonFiniteValue, r.NonFinite)
	}
}

func (t anomalyTally) list() []models.Anomaly {
	out := make([]models.Anomaly, 0, len(t))
	for k, n := range t {
		out = append(out, models.Anomaly{Column: k.column, Kind: k.kind, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Column != out[j].Column {
			return out[i].Column < out[j].Column
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

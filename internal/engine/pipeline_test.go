package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instrumetriq/tier-inspector/internal/extractors"
	"github.com/instrumetriq/tier-inspector/internal/models"
)

func TestPipelineTier3(t *testing.T) {
	pipeline := NewPipeline(nil, NewClassifier(nil, true, 4), nil, nil)
	report, err := pipeline.Inspect(context.Background(), tier3Table(30), tierManifest("tier3"), Options{Source: "fixture"})
	require.NoError(t, err)

	assert.Equal(t, []models.Stage{
		models.StageLoaded, models.StageClassified, models.StageCovered,
		models.StageExtracted, models.StageCorrelated, models.StageSummarized, models.StageReported,
	}, report.Stages)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "tier3", report.Tier)
	assert.Equal(t, "fixture", report.Source)
	assert.Equal(t, 30, report.Basics.Records)
	assert.Equal(t, 9, report.Basics.Columns)
	assert.Positive(t, report.Basics.MemoryBytes)

	assert.Equal(t, 10, report.Coverage.MinPerSymbol)
	assert.Equal(t, 10, report.Coverage.MaxPerSymbol)
	assert.Len(t, report.Coverage.SharedTimestamps, 10)

	nested := map[string]models.NestedSummary{}
	for _, n := range report.Nested {
		nested[n.Column] = n
	}
	require.Len(t, nested, 7)
	assert.Equal(t, 22, nested["futures_raw"].Present)
	assert.Equal(t, "field_not_null(contract)", nested["futures_raw"].Rule)
	assert.Equal(t, 20, nested["spot_prices"].Present)
	assert.Equal(t, []string{"ts", "mid"}, nested["spot_prices"].Fields)
	assert.Equal(t, []string{"mid", "spread_bps"}, nested["spot_raw"].Fields)

	require.NotNil(t, report.Correlation)
	assert.Equal(t, 22, report.Correlation.CleanRows)
	require.NotNil(t, report.Correlation.Matrix)
	assert.Equal(t, []string{"spot_mid", "spread_bps", "score", "posts", "sentiment", "funding"}, report.Correlation.Matrix.Labels)

	require.NotNil(t, report.TimeSeries)
	assert.Equal(t, 20, report.TimeSeries.RecordsWithSamples)
	assert.Equal(t, 100, report.TimeSeries.TotalSamples)
	assert.Equal(t, 0, report.TimeSeries.MinSamples)
	assert.Equal(t, 5, report.TimeSeries.MaxSamples)
	require.NotNil(t, report.TimeSeries.Representative)
	assert.Equal(t, 1, report.TimeSeries.Representative.Record)
	assert.Equal(t, 40*time.Second, report.TimeSeries.Representative.Span)

	assert.Len(t, report.Distributions.Booleans, 2)
	assert.Equal(t, 24, report.Distributions.Booleans[0].True)
	assert.Empty(t, report.Anomalies)

	_, err = json.Marshal(report)
	assert.NoError(t, err)
}

func TestPipelineTier1StopsAfterCoverage(t *testing.T) {
	report, err := NewPipeline(nil, nil, nil, nil).Inspect(context.Background(), flatTable(), tierManifest("tier1"), Options{})
	require.NoError(t, err)

	assert.Equal(t, []models.Stage{models.StageLoaded, models.StageClassified, models.StageCovered, models.StageReported}, report.Stages)
	assert.Nil(t, report.Correlation)
	assert.Nil(t, report.TimeSeries)
	assert.Empty(t, report.Nested)

	// scenario A
	assert.Equal(t, 30, report.Coverage.MinPerSymbol)
	assert.Equal(t, 40, report.Coverage.MaxPerSymbol)
	assert.Equal(t, 1.0, report.Coverage.Completeness)
	assert.InDelta(t, 0.25, report.Distributions.Booleans[0].TrueRatio, 1e-12)
}

// scenario B
func TestPipelineStructPresence(t *testing.T) {
	b := models.NewTableBuilder("symbol", "snapshot_ts", "scores")
	for i := 0; i < 100; i++ {
		scores := obj("final", models.Float(float64(i)), "raw", models.Float(1))
		if i%10 == 0 {
			scores = models.Null()
		}
		b.Append(
			models.Field{Name: "symbol", Value: models.String(symbols[i%3])},
			models.Field{Name: "snapshot_ts", Value: models.Time(at(i))},
			models.Field{Name: "scores", Value: scores},
		)
	}
	table := b.Build()
	manifest := models.Manifest{
		Tier:         "custom",
		Version:      1,
		SymbolColumn: "symbol",
		TimeColumn:   "snapshot_ts",
		Columns: []models.ColumnSpec{
			{Name: "symbol", Kind: models.ColumnScalar},
			{Name: "snapshot_ts", Kind: models.ColumnScalar},
			{Name: "scores", Kind: models.ColumnStruct},
		},
	}

	report, err := NewPipeline(nil, nil, nil, nil).Inspect(context.Background(), table, manifest, Options{})
	require.NoError(t, err)
	require.Len(t, report.Nested, 1)
	assert.Equal(t, 90, report.Nested[0].Present)
	assert.Equal(t, 100, report.Nested[0].Total)
	assert.InDelta(t, 0.9, report.Nested[0].Ratio, 1e-12)
	assert.Equal(t, []string{"final", "raw"}, report.Nested[0].Fields)
	assert.Contains(t, report.Stages, models.StageExtracted)
	assert.NotContains(t, report.Stages, models.StageCorrelated)

	scores, _ := table.Column("scores")
	finals := extractors.ExtractField(scores, []string{"final"}, models.Null())
	nulls := 0
	for i, v := range finals {
		if i%10 == 0 {
			assert.True(t, v.IsNull())
			nulls++
			continue
		}
		n, ok := v.Number()
		require.True(t, ok)
		assert.Equal(t, float64(i), n)
	}
	assert.Equal(t, 10, nulls)
}

// scenario D
func TestPipelineEmptySeries(t *testing.T) {
	b := models.NewTableBuilder("symbol", "snapshot_ts", "spot_prices")
	for i := 0; i < 6; i++ {
		b.Append(
			models.Field{Name: "symbol", Value: models.String("BTC")},
			models.Field{Name: "snapshot_ts", Value: models.Time(at(i))},
			models.Field{Name: "spot_prices", Value: models.Array()},
		)
	}
	manifest := models.Manifest{
		Tier:         "series",
		Version:      1,
		SymbolColumn: "symbol",
		TimeColumn:   "snapshot_ts",
		Columns: []models.ColumnSpec{
			{Name: "symbol", Kind: models.ColumnScalar},
			{Name: "snapshot_ts", Kind: models.ColumnScalar},
			{Name: "spot_prices", Kind: models.ColumnArray, Presence: models.PresenceSpec{Rule: models.PresenceNonEmpty}},
		},
		TimeSeries: &models.TimeSeriesSpec{Column: "spot_prices", TimestampField: "ts", PayloadField: "mid"},
	}

	report, err := NewPipeline(nil, nil, nil, nil).Inspect(context.Background(), b.Build(), manifest, Options{})
	require.NoError(t, err)
	require.NotNil(t, report.TimeSeries)
	assert.Zero(t, report.TimeSeries.RecordsWithSamples)
	assert.Zero(t, report.TimeSeries.MinSamples)
	assert.Zero(t, report.TimeSeries.MaxSamples)
	assert.Zero(t, report.TimeSeries.TotalSamples)
	assert.Nil(t, report.TimeSeries.Representative)
	assert.Zero(t, report.Nested[0].Present)
	assert.Empty(t, report.Nested[0].Fields)
}

// scenario E
func TestPipelineMissingRequiredColumn(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	manifest := models.Manifest{
		Tier:         "custom",
		Version:      1,
		SymbolColumn: "symbol",
		TimeColumn:   "snapshot_ts",
		Columns: []models.ColumnSpec{
			{Name: "symbol", Kind: models.ColumnScalar},
			{Name: "snapshot_ts", Kind: models.ColumnScalar},
			{Name: "x", Kind: models.ColumnScalar},
		},
	}
	report, err := NewPipeline(logger, nil, nil, nil).Inspect(context.Background(), flatTable(), manifest, Options{})
	require.Error(t, err)
	assert.Equal(t, "missing required column: x", err.Error())

	var missing *MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "x", missing.Column)
	assert.Equal(t, models.Report{}, report)
	assert.Contains(t, logs.String(), "inspection failed")
}

func TestPipelineEmptyTable(t *testing.T) {
	table := models.NewTableBuilder(tier3Table(1).Columns()...).Build()
	report, err := NewPipeline(nil, nil, nil, nil).Inspect(context.Background(), table, tierManifest("tier3"), Options{})
	require.NoError(t, err)

	assert.True(t, report.Coverage.NoData)
	require.NotNil(t, report.Correlation)
	assert.True(t, report.Correlation.Insufficient)
	assert.Zero(t, report.Correlation.CleanRows)
	require.NotNil(t, report.TimeSeries)
	assert.Zero(t, report.TimeSeries.Records)
	assert.Nil(t, report.TimeSeries.Representative)
}

func TestPipelineTalliesAnomalies(t *testing.T) {
	table := tier3Table(12)
	b := models.NewTableBuilder(table.Columns()...)
	for i := 0; i < table.Len(); i++ {
		rec := table.Record(i)
		switch i {
		case 1:
			rec["spot_prices"] = models.String("corrupt")
		case 2:
			rec["snapshot_ts"] = models.String("yesterday")
		case 3:
			rec["symbol"] = models.Null()
		case 5:
			rec["spot_raw"] = obj("mid", models.String("n/a"), "spread_bps", models.Float(1))
		case 6:
			rec["twitter_sentiment_windows"] = obj("last_cycle", models.Int(3))
		}
		b.AppendRecord(rec)
	}

	report, err := NewPipeline(nil, nil, nil, nil).Inspect(context.Background(), b.Build(), tierManifest("tier3"), Options{MinCorrelationRows: 2})
	require.NoError(t, err)

	got := map[string]int{}
	for _, a := range report.Anomalies {
		got[a.Column+"/"+string(a.Kind)] = a.Count
	}
	assert.Equal(t, map[string]int{
		"spot_prices/unexpected_shape":                                      1,
		"snapshot_ts/unparsable_timestamp":                                  1,
		"symbol/null_symbol":                                                1,
		"spot_raw.mid/non_numeric_feature":                                  1,
		"twitter_sentiment_windows.last_cycle.posts_total/unexpected_shape": 1,
		"twitter_sentiment_windows.last_cycle.hybrid_decision_stats.mean_score/unexpected_shape": 1,
	}, got)
	assert.Equal(t, 2, report.Correlation.MinRows)
}

func TestPipelineReportWithNaNCellsEncodes(t *testing.T) {
	b := models.NewTableBuilder("symbol", "snapshot_ts", "sentiment_mean_score", "sentiment_is_silent", "sentiment_score_flip")
	for i, score := range []float64{0.5, math.NaN(), 0.5} {
		b.Append(
			models.Field{Name: "symbol", Value: models.String("BTC")},
			models.Field{Name: "snapshot_ts", Value: models.Time(at(i))},
			models.Field{Name: "sentiment_mean_score", Value: models.Float(score)},
			models.Field{Name: "sentiment_is_silent", Value: models.Bool(false)},
			models.Field{Name: "sentiment_score_flip", Value: models.Bool(false)},
		)
	}

	report, err := NewPipeline(nil, nil, nil, nil).Inspect(context.Background(), b.Build(), tierManifest("tier1"), Options{})
	require.NoError(t, err)

	q := report.Distributions.Quantiles[0]
	assert.Equal(t, 2, q.Count)
	assert.Equal(t, 0.5, q.Min)
	assert.Contains(t, report.Anomalies, models.Anomaly{Column: "sentiment_mean_score", Kind: models.AnomalyNonFiniteValue, Count: 1})

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"non_finite":1`)
}

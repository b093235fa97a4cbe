package models

import (
	"encoding/json"
	"math"
	"time"
)

// Stage names a step of the inspection pipeline.
type Stage string

const (
	StageLoaded     Stage = "loaded"
	StageClassified Stage = "classified"
	StageCovered    Stage = "covered"
	StageExtracted  Stage = "extracted"
	StageCorrelated Stage = "correlated"
	StageSummarized Stage = "summarized"
	StageReported   Stage = "reported"
)

// AnomalyKind enumerates recoverable data conditions.
type AnomalyKind string

const (
	AnomalyUnexpectedShape     AnomalyKind = "unexpected_shape"
	AnomalyUnparsableTimestamp AnomalyKind = "unparsable_timestamp"
	AnomalyNullSymbol          AnomalyKind = "null_symbol"
	AnomalyNonNumericFeature   AnomalyKind = "non_numeric_feature"
	AnomalyNonFiniteValue      AnomalyKind = "non_finite_value"
)

// Report is the immutable result of one inspection run.
type Report struct {
	RunID           string             `json:"run_id"`
	Tier            string             `json:"tier"`
	ManifestVersion int                `json:"manifest_version"`
	Source          string             `json:"source,omitempty"`
	StartedAt       time.Time          `json:"started_at"`
	Duration        time.Duration      `json:"duration_ns"`
	Stages          []Stage            `json:"stages"`
	Basics          BasicCounts        `json:"basics"`
	Columns         []ColumnDescriptor `json:"columns"`
	Coverage        CoverageReport     `json:"coverage"`
	Distributions   DistributionReport `json:"distributions"`
	Nested          []NestedSummary    `json:"nested"`
	Correlation     *CorrelationResult `json:"correlation,omitempty"`
	TimeSeries      *TimeSeriesReport  `json:"time_series,omitempty"`
	Anomalies       []Anomaly          `json:"anomalies"`
}

// BasicCounts captures table dimensions.
type BasicCounts struct {
	Records     int   `json:"records"`
	Columns     int   `json:"columns"`
	MemoryBytes int64 `json:"memory_bytes"`
}

// ColumnDescriptor is the classifier output for one column.
type ColumnDescriptor struct {
	Name            string     `json:"name"`
	Kind            ColumnKind `json:"kind"`
	Declared        bool       `json:"declared"`
	Descriptor      string     `json:"descriptor"`
	Cardinality     int        `json:"cardinality"`
	NullCount       int        `json:"null_count"`
	PresentCount    int        `json:"present_count"`
	UnexpectedShape int        `json:"unexpected_shape"`
}

// NullRatio is the share of null cells in the column; zero for an empty table.
func (d ColumnDescriptor) NullRatio(records int) float64 {
	if records == 0 {
		return 0
	}
	return float64(d.NullCount) / float64(records)
}

// SymbolCount is the record count of one symbol.
type SymbolCount struct {
	Symbol  string `json:"symbol"`
	Records int    `json:"records"`
}

// TimeRange bounds the parsed timestamps of a table.
type TimeRange struct {
	Start time.Time     `json:"start"`
	End   time.Time     `json:"end"`
	Span  time.Duration `json:"span_ns"`
}

// CoverageReport summarises symbol and time alignment plus completeness.
type CoverageReport struct {
	Symbols              []SymbolCount `json:"symbols"`
	UniqueSymbols        int           `json:"unique_symbols"`
	MinPerSymbol         int           `json:"min_per_symbol"`
	MaxPerSymbol         int           `json:"max_per_symbol"`
	TimeRange            *TimeRange    `json:"time_range,omitempty"`
	UniqueTimestamps     int           `json:"unique_timestamps"`
	SharedTimestamps     []time.Time   `json:"shared_timestamps"`
	UnparsableTimestamps int           `json:"unparsable_timestamps"`
	NullTimestamps       int           `json:"null_timestamps"`
	NullSymbols          int           `json:"null_symbols"`
	TotalCells           int           `json:"total_cells"`
	NullCells            int           `json:"null_cells"`
	Completeness         float64       `json:"completeness"`
	NoData               bool          `json:"no_data"`
}

// NestedSummary reports presence of a struct or array column under its predicate.
type NestedSummary struct {
	Column  string     `json:"column"`
	Kind    ColumnKind `json:"kind"`
	Rule    string     `json:"rule"`
	Present int        `json:"present"`
	Total   int        `json:"total"`
	Ratio   float64    `json:"ratio"`
	Fields  []string   `json:"fields"`
}

// QuantileSummary is a five-number summary of a numeric field. NaN and
// infinite cells are left out of the summary and counted in NonFinite.
type QuantileSummary struct {
	Name      string  `json:"name"`
	Count     int     `json:"count"`
	NonFinite int     `json:"non_finite"`
	Min       float64 `json:"min"`
	Q25       float64 `json:"q25"`
	Median    float64 `json:"median"`
	Q75       float64 `json:"q75"`
	Max       float64 `json:"max"`
}

// BooleanSummary counts true and false values of a boolean field. Missing covers
// null, unresolved and non-boolean cells.
type BooleanSummary struct {
	Name      string  `json:"name"`
	True      int     `json:"true"`
	False     int     `json:"false"`
	Missing   int     `json:"missing"`
	TrueRatio float64 `json:"true_ratio"`
}

// RangeSummary is the numeric range of a field plus its zero count.
type RangeSummary struct {
	Name      string  `json:"name"`
	Count     int     `json:"count"`
	NonFinite int     `json:"non_finite"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Zeros     int     `json:"zeros"`
}

// DistributionReport groups field profiles.
type DistributionReport struct {
	Quantiles []QuantileSummary `json:"quantiles"`
	Booleans  []BooleanSummary  `json:"booleans"`
	Ranges    []RangeSummary    `json:"ranges"`
}

// Matrix is a square matrix with labelled, ordered rows and columns. Undefined
// entries are NaN and encode as JSON null.
type Matrix struct {
	Labels []string    `json:"labels"`
	Values [][]float64 `json:"-"`
}

// At returns the coefficient for the labelled pair.
func (m Matrix) At(row, col string) (float64, bool) {
	i, j := -1, -1
	for idx, l := range m.Labels {
		if l == row {
			i = idx
		}
		if l == col {
			j = idx
		}
	}
	if i < 0 || j < 0 {
		return math.NaN(), false
	}
	return m.Values[i][j], true
}

// MarshalJSON encodes NaN coefficients as null.
func (m Matrix) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		values[i] = make([]*float64, len(row))
		for j := range row {
			if math.IsNaN(row[j]) || math.IsInf(row[j], 0) {
				continue
			}
			values[i][j] = &row[j]
		}
	}
	return json.Marshal(struct {
		Labels []string     `json:"labels"`
		Values [][]*float64 `json:"values"`
	}{Labels: m.Labels, Values: values})
}

// CorrelationResult is the correlation engine output. Matrix is nil when the
// clean row count is below MinRows.
type CorrelationResult struct {
	Features     []string `json:"features"`
	TotalRows    int      `json:"total_rows"`
	CleanRows    int      `json:"clean_rows"`
	MinRows      int      `json:"min_rows"`
	Insufficient bool     `json:"insufficient"`
	Matrix       *Matrix  `json:"matrix,omitempty"`
}

// SeriesSample describes the representative record of a time-series column.
type SeriesSample struct {
	Record       int           `json:"record"`
	Samples      int           `json:"samples"`
	Fields       []string      `json:"fields"`
	First        *time.Time    `json:"first,omitempty"`
	Last         *time.Time    `json:"last,omitempty"`
	Span         time.Duration `json:"span_ns"`
	SpanKnown    bool          `json:"span_known"`
	FirstPayload *float64      `json:"first_payload,omitempty"`
	LastPayload  *float64      `json:"last_payload,omitempty"`
	// NonFinitePayloads counts NaN or infinite payloads among the first and last samples.
	NonFinitePayloads int `json:"non_finite_payloads"`
}

// TimeSeriesReport summarises an array-of-struct column.
type TimeSeriesReport struct {
	Column             string        `json:"column"`
	Records            int           `json:"records"`
	RecordsWithSamples int           `json:"records_with_samples"`
	MinSamples         int           `json:"min_samples"`
	MaxSamples         int           `json:"max_samples"`
	TotalSamples       int           `json:"total_samples"`
	Representative     *SeriesSample `json:"representative,omitempty"`
	UnexpectedShape    int           `json:"unexpected_shape"`
}

// Anomaly tallies a recoverable condition on a column.
type Anomaly struct {
	Column string      `json:"column"`
	Kind   AnomalyKind `json:"kind"`
	Count  int         `json:"count"`
}

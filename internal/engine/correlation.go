package engine

import (
	"log/slog"
	"math"

	"github.com/instrumetriq/tier-inspector/internal/extractors"
	"github.com/instrumetriq/tier-inspector/internal/models"
)

// DefaultMinCorrelationRows is the clean row count below which no matrix is computed.
const DefaultMinCorrelationRows = 10

// CorrelationEngine computes pairwise Pearson coefficients over a feature table.
type CorrelationEngine struct {
	logger  *slog.Logger
	minRows int
}

// NewCorrelationEngine constructs a CorrelationEngine. A non-positive minRows
// falls back to DefaultMinCorrelationRows.
func NewCorrelationEngine(logger *slog.Logger, minRows int) *CorrelationEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if minRows <= 0 {
		minRows = DefaultMinCorrelationRows
	}
	return &CorrelationEngine{logger: logger, minRows: minRows}
}

// MinRows returns the engine-wide threshold.
func (e *CorrelationEngine) MinRows() int {
	return e.minRows
}

// FeatureIssues counts, per feature, the present values that forced a row out
// of the clean set.
type FeatureIssues struct {
	NonNumeric map[string]int
	NonFinite  map[string]int
}

// Correlate drops every row holding a null, NaN, infinite or non-numeric
// feature, then builds the matrix in feature declaration order.
func (e *CorrelationEngine) Correlate(ft extractors.FeatureTable, minRows int) (models.CorrelationResult, FeatureIssues) {
	if minRows <= 0 {
		minRows = e.minRows
	}
	result := models.CorrelationResult{
		Features:  append([]string(nil), ft.Names...),
		TotalRows: ft.Rows,
		MinRows:   minRows,
	}
	issues := FeatureIssues{NonNumeric: make(map[string]int), NonFinite: make(map[string]int)}

	clean := make([][]float64, len(ft.Names))
	for i := 0; i < ft.Rows; i++ {
		row := make([]float64, len(ft.Names))
		keep := true
		for c, name := range ft.Names {
			v := ft.Columns[c][i]
			if v.IsNull() {
				keep = false
				continue
			}
			if v.IsNonFinite() {
				issues.NonFinite[name]++
				keep = false
				continue
			}
			n, ok := v.Number()
			if !ok {
				issues.NonNumeric[name]++
				keep = false
				continue
			}
			row[c] = n
		}
		if !keep {
			continue
		}
		for c := range row {
			clean[c] = append(clean[c], row[c])
		}
		result.CleanRows++
	}

	if result.CleanRows < minRows {
		result.Insufficient = true
		e.logger.Debug("insufficient rows for correlation",
			slog.Int("clean_rows", result.CleanRows),
			slog.Int("min_rows", minRows),
		)
		return result, issues
	}

	result.Matrix = correlationMatrix(result.Features, clean)
	return result, issues
}

func correlationMatrix(labels []string, columns [][]float64) *models.Matrix {
	k := len(labels)
	values := make([][]float64, k)
	for i := range values {
		values[i] = make([]float64, k)
	}
	for i := 0; i < k; i++ {
		if stddev(columns[i]) > 0 {
			values[i][i] = 1
		} else {
			values[i][i] = math.NaN()
		}
		for j := i + 1; j < k; j++ {
			r := Pearson(columns[i], columns[j])
			values[i][j] = r
			values[j][i] = r
		}
	}
	return &models.Matrix{Labels: append([]string(nil), labels...), Values: values}
}

// Pearson returns the sample correlation coefficient of x and y (n-1 denominators).
// It is NaN when fewer than two pairs exist or either series is constant.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return math.NaN()
	}
	mx, my := mean(x), mean(y)
	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		dx := x[i] - mx
		dy := y[i] - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	denom := float64(n - 1)
	sx := math.Sqrt(vx / denom)
	sy := math.Sqrt(vy / denom)
	if sx == 0 || sy == 0 {
		return math.NaN()
	}
	return clamp((cov/denom)/(sx*sy), -1, 1)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

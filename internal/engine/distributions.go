package engine

import (
	"sort"

	"github.com/instrumetriq/tier-inspector/internal/extractors"
	"github.com/instrumetriq/tier-inspector/internal/models"
)

// ProfileDistributions resolves every field of spec through the nested accessor
// and summarises it. Fields that never resolve produce zero-count summaries;
// optional fields whose column is absent are left out.
func ProfileDistributions(table *models.Table, spec models.DistributionSpec) (models.DistributionReport, error) {
	report := models.DistributionReport{
		Quantiles: make([]models.QuantileSummary, 0, len(spec.Quantiles)),
		Booleans:  make([]models.BooleanSummary, 0, len(spec.Booleans)),
		Ranges:    make([]models.RangeSummary, 0, len(spec.Ranges)),
	}

	for _, ref := range spec.Quantiles {
		if skipOptional(table, ref) {
			continue
		}
		values, err := resolve(table, ref)
		if err != nil {
			return report, err
		}
		nums, nonFinite := numbers(values)
		summary := quantileSummary(ref.Name, nums)
		summary.NonFinite = nonFinite
		report.Quantiles = append(report.Quantiles, summary)
	}

	for _, ref := range spec.Booleans {
		if skipOptional(table, ref) {
			continue
		}
		values, err := resolve(table, ref)
		if err != nil {
			return report, err
		}
		summary := models.BooleanSummary{Name: ref.Name}
		for _, v := range values {
			b, ok := v.AsBool()
			switch {
			case !ok:
				summary.Missing++
			case b:
				summary.True++
			default:
				summary.False++
			}
		}
		if len(values) > 0 {
			summary.TrueRatio = float64(summary.True) / float64(len(values))
		}
		report.Booleans = append(report.Booleans, summary)
	}

	for _, ref := range spec.Ranges {
		if skipOptional(table, ref) {
			continue
		}
		values, err := resolve(table, ref)
		if err != nil {
			return report, err
		}
		nums, nonFinite := numbers(values)
		summary := models.RangeSummary{Name: ref.Name, Count: len(nums), NonFinite: nonFinite}
		for i, n := range nums {
			if i == 0 || n < summary.Min {
				summary.Min = n
			}
			if i == 0 || n > summary.Max {
				summary.Max = n
			}
			if n == 0 {
				summary.Zeros++
			}
		}
		report.Ranges = append(report.Ranges, summary)
	}

	return report, nil
}

func skipOptional(table *models.Table, ref models.FieldRef) bool {
	return ref.Optional && !table.HasColumn(ref.Column)
}

func resolve(table *models.Table, ref models.FieldRef) ([]models.Value, error) {
	column, ok := table.Column(ref.Column)
	if !ok {
		return nil, &MissingColumnError{Column: ref.Column}
	}
	return extractors.ExtractField(column, ref.Path, models.Null()), nil
}

// numbers keeps finite int and float values and counts the NaN or infinite
// ones it skips. Booleans and everything else are ignored.
func numbers(values []models.Value) ([]float64, int) {
	out := make([]float64, 0, len(values))
	nonFinite := 0
	for _, v := range values {
		if v.Kind() != models.KindInt && v.Kind() != models.KindFloat {
			continue
		}
		if v.IsNonFinite() {
			nonFinite++
			continue
		}
		n, _ := v.Number()
		out = append(out, n)
	}
	return out, nonFinite
}

func quantileSummary(name string, values []float64) models.QuantileSummary {
	summary := models.QuantileSummary{Name: name, Count: len(values)}
	if len(values) == 0 {
		return summary
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	summary.Min = sorted[0]
	summary.Q25 = Quantile(sorted, 0.25)
	summary.Median = Quantile(sorted, 0.5)
	summary.Q75 = Quantile(sorted, 0.75)
	summary.Max = sorted[len(sorted)-1]
	return summary
}

// Quantile interpolates linearly between closest ranks of an ascending slice.
func Quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	p = clamp(p, 0, 1)
	h := float64(len(sorted)-1) * p
	lo := int(h)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

package extractors

import (
	"github.com/instrumetriq/tier-inspector/internal/models"
	"github.com/instrumetriq/tier-inspector/internal/utils"
)

// TimeSeriesSummarizer profiles a column holding variable-length arrays of
// timestamped samples.
type TimeSeriesSummarizer struct {
	timestampField string
	payloadField   string
}

// NewTimeSeriesSummarizer creates a summarizer for the given element fields.
func NewTimeSeriesSummarizer(spec models.TimeSeriesSpec) *TimeSeriesSummarizer {
	ts := spec.TimestampField
	if ts == "" {
		ts = "ts"
	}
	return &TimeSeriesSummarizer{timestampField: ts, payloadField: spec.PayloadField}
}

// Summarize computes per-record sample counts and describes the first non-empty series.
// Null, empty and non-array cells count as zero samples.
func (s *TimeSeriesSummarizer) Summarize(column string, values []models.Value) models.TimeSeriesReport {
	report := models.TimeSeriesReport{Column: column, Records: len(values)}
	if len(values) == 0 {
		return report
	}

	report.MinSamples = -1
	for i, v := range values {
		items, ok := v.AsArray()
		if !ok && !v.IsNull() {
			report.UnexpectedShape++
		}
		n := len(items)
		if n > 0 {
			report.RecordsWithSamples++
			if report.Representative == nil {
				report.Representative = s.describe(i, items)
			}
		}
		report.TotalSamples += n
		if report.MinSamples < 0 || n < report.MinSamples {
			report.MinSamples = n
		}
		if n > report.MaxSamples {
			report.MaxSamples = n
		}
	}
	return report
}

func (s *TimeSeriesSummarizer) describe(record int, items []models.Value) *models.SeriesSample {
	first, last := items[0], items[len(items)-1]
	sample := &models.SeriesSample{Record: record, Samples: len(items)}
	if st, ok := first.AsStruct(); ok {
		sample.Fields = st.Fields()
	}

	path := []string{s.timestampField}
	firstTS, errFirst := utils.TimestampOf(Get(first, path, models.Null()))
	lastTS, errLast := utils.TimestampOf(Get(last, path, models.Null()))
	if errFirst == nil {
		sample.First = &firstTS
	}
	if errLast == nil {
		sample.Last = &lastTS
	}
	if errFirst == nil && errLast == nil {
		sample.Span = lastTS.Sub(firstTS)
		sample.SpanKnown = true
	}

	if s.payloadField != "" {
		payload := []string{s.payloadField}
		sample.FirstPayload = s.payload(Get(first, payload, models.Null()), sample)
		sample.LastPayload = s.payload(Get(last, payload, models.Null()), sample)
	}
	return sample
}

func (s *TimeSeriesSummarizer) payload(v models.Value, sample *models.SeriesSample) *float64 {
	if v.IsNonFinite() {
		sample.NonFinitePayloads++
		return nil
	}
	n, ok := v.Number()
	if !ok {
		return nil
	}
	return &n
}

package engine

import (
	"sort"
	"time"

	"github.com/instrumetriq/tier-inspector/internal/models"
	"github.com/instrumetriq/tier-inspector/internal/utils"
)

// CoverageAnalyzer computes symbol coverage, time alignment and completeness.
type CoverageAnalyzer struct {
	strictTimestamps bool
}

// NewCoverageAnalyzer constructs a CoverageAnalyzer. In strict mode the first
// unparsable timestamp aborts the analysis instead of being tallied.
func NewCoverageAnalyzer(strictTimestamps bool) *CoverageAnalyzer {
	return &CoverageAnalyzer{strictTimestamps: strictTimestamps}
}

// Analyze computes the coverage report. Null counts come from the classifier
// descriptors so completeness and the schema listing agree.
func (a *CoverageAnalyzer) Analyze(table *models.Table, symbolColumn, timeColumn string, descriptors []models.ColumnDescriptor) (models.CoverageReport, error) {
	report := models.CoverageReport{
		Symbols:          []models.SymbolCount{},
		SharedTimestamps: []time.Time{},
	}

	symbols, ok := table.Column(symbolColumn)
	if !ok {
		return report, &MissingColumnError{Column: symbolColumn}
	}
	stamps, ok := table.Column(timeColumn)
	if !ok {
		return report, &MissingColumnError{Column: timeColumn}
	}

	counts := make(map[string]int)
	perSymbol := make(map[string]map[int64]time.Time)
	unique := make(map[int64]struct{})
	var minTS, maxTS time.Time
	parsed := 0

	for i := range symbols {
		symbol := ""
		hasSymbol := !symbols[i].IsNull()
		if hasSymbol {
			symbol = symbols[i].Text()
			counts[symbol]++
		} else {
			report.NullSymbols++
		}

		if stamps[i].IsNull() {
			report.NullTimestamps++
			continue
		}
		ts, err := utils.TimestampOf(stamps[i])
		if err != nil {
			if a.strictTimestamps {
				return report, &TimestampError{Column: timeColumn, Record: i, Value: stamps[i], Err: err}
			}
			report.UnparsableTimestamps++
			continue
		}

		key := ts.UnixNano()
		unique[key] = struct{}{}
		if parsed == 0 || ts.Before(minTS) {
			minTS = ts
		}
		if parsed == 0 || ts.After(maxTS) {
			maxTS = ts
		}
		parsed++

		if hasSymbol {
			set, ok := perSymbol[symbol]
			if !ok {
				set = make(map[int64]time.Time)
				perSymbol[symbol] = set
			}
			set[key] = ts
		}
	}

	for symbol, n := range counts {
		report.Symbols = append(report.Symbols, models.SymbolCount{Symbol: symbol, Records: n})
	}
	sort.Slice(report.Symbols, func(i, j int) bool {
		if report.Symbols[i].Records != report.Symbols[j].Records {
			return report.Symbols[i].Records > report.Symbols[j].Records
		}
		return report.Symbols[i].Symbol < report.Symbols[j].Symbol
	})
	report.UniqueSymbols = len(report.Symbols)
	if report.UniqueSymbols > 0 {
		report.MaxPerSymbol = report.Symbols[0].Records
		report.MinPerSymbol = report.Symbols[len(report.Symbols)-1].Records
	}

	if parsed > 0 {
		report.TimeRange = &models.TimeRange{Start: minTS, End: maxTS, Span: maxTS.Sub(minTS)}
	}
	report.UniqueTimestamps = len(unique)
	report.SharedTimestamps = sharedTimestamps(report.Symbols, perSymbol)

	report.TotalCells = table.Len() * table.NumColumns()
	for _, d := range descriptors {
		report.NullCells += d.NullCount
	}
	if report.TotalCells == 0 {
		report.NoData = true
	} else {
		report.Completeness = float64(report.TotalCells-report.NullCells) / float64(report.TotalCells)
	}
	return report, nil
}

// sharedTimestamps intersects the distinct timestamp sets of every symbol. A
// single symbol shares its whole set; a symbol without parsed timestamps empties it.
func sharedTimestamps(symbols []models.SymbolCount, perSymbol map[string]map[int64]time.Time) []time.Time {
	shared := []time.Time{}
	if len(symbols) == 0 {
		return shared
	}

	base := perSymbol[symbols[len(symbols)-1].Symbol]
	for key, ts := range base {
		inAll := true
		for _, sc := range symbols {
			if _, ok := perSymbol[sc.Symbol][key]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			shared = append(shared, ts)
		}
	}
	sort.Slice(shared, func(i, j int) bool { return shared[i].Before(shared[j]) })
	return shared
}

package extractors

import (
	"fmt"
	"strings"

	"github.com/instrumetriq/tier-inspector/internal/models"
)

// FeatureTable holds features projected from nested columns, positionally
// aligned with the source table: row i of every feature is record i.
type FeatureTable struct {
	Names   []string
	Columns [][]models.Value
	Rows    int
	// Mismatches counts, per feature, records whose path crossed a non-struct
	// value below the top-level cell.
	Mismatches map[string]int
}

// Row returns the feature values of record i in declaration order.
func (ft FeatureTable) Row(i int) []models.Value {
	row := make([]models.Value, len(ft.Columns))
	for c := range ft.Columns {
		row[c] = ft.Columns[c][i]
	}
	return row
}

// ExtractField projects path out of every value of column, substituting def on any missing link.
func ExtractField(column []models.Value, path []string, def models.Value) []models.Value {
	out := make([]models.Value, len(column))
	for i, v := range column {
		out[i] = Get(v, path, def)
	}
	return out
}

// ExtractMany builds a FeatureTable from refs, one column per feature, in ref order.
func ExtractMany(table *models.Table, refs []models.FieldRef) (FeatureTable, error) {
	ft := FeatureTable{
		Names:      make([]string, 0, len(refs)),
		Columns:    make([][]models.Value, 0, len(refs)),
		Rows:       table.Len(),
		Mismatches: make(map[string]int),
	}
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref.Name]; dup {
			return FeatureTable{}, fmt.Errorf("duplicate feature %q", ref.Name)
		}
		seen[ref.Name] = struct{}{}

		source, ok := table.Column(ref.Column)
		if !ok {
			return FeatureTable{}, fmt.Errorf("feature %s: column %s not found", ref.Name, ref.Column)
		}

		values := make([]models.Value, len(source))
		for i, cell := range source {
			v, outcome := Lookup(cell, ref.Path)
			if outcome == Mismatch {
				// top-level shape errors are tallied by the classifier
				if _, nested := cell.AsStruct(); nested {
					ft.Mismatches[ref.Name]++
				}
			}
			values[i] = v
		}
		ft.Names = append(ft.Names, ref.Name)
		ft.Columns = append(ft.Columns, values)
	}
	return ft, nil
}

// PathLabel renders a column and key-path as a dotted label.
func PathLabel(column string, path []string) string {
	if len(path) == 0 {
		return column
	}
	return column + "." + strings.Join(path, ".")
}

package engine

import (
	"unsafe"

	"github.com/instrumetriq/tier-inspector/internal/models"
)

var valueSize = int64(unsafe.Sizeof(models.Value{}))

// EstimateBytes approximates the in-memory size of a table by walking every
// cell. Strings and nested payloads are counted on top of the fixed cell size.
func EstimateBytes(table *models.Table) int64 {
	var total int64
	for _, name := range table.Columns() {
		total += int64(len(name))
		values, _ := table.Column(name)
		for _, v := range values {
			total += valueBytes(v)
		}
	}
	return total
}

func valueBytes(v models.Value) int64 {
	size := valueSize
	switch v.Kind() {
	case models.KindString:
		s, _ := v.AsString()
		size += int64(len(s))
	case models.KindStruct:
		st, _ := v.AsStruct()
		for _, name := range st.Fields() {
			field, _ := st.Get(name)
			size += int64(len(name)) + valueBytes(field)
		}
	case models.KindArray:
		items, _ := v.AsArray()
		for _, item := range items {
			size += valueBytes(item)
		}
	}
	return size
}

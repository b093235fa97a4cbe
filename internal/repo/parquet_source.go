package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/instrumetriq/tier-inspector/internal/models"
	"github.com/instrumetriq/tier-inspector/internal/utils"
)

// ParquetSource materialises parquet snapshots through Arrow.
type ParquetSource struct {
	alloc     memory.Allocator
	batchSize int64
}

// NewParquetSource constructs a ParquetSource using the default allocator.
func NewParquetSource() *ParquetSource {
	return &ParquetSource{alloc: memory.DefaultAllocator, batchSize: 64 * 1024}
}

// Load reads the whole file at path.
func (s *ParquetSource) Load(ctx context.Context, path string) (*models.Table, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, utils.NewPathError("load snapshot", path, "open parquet", err)
	}
	defer rdr.Close()

	table, err := s.read(ctx, rdr)
	if err != nil {
		return nil, utils.NewPathError("load snapshot", path, "decode parquet", err)
	}
	return table, nil
}

// Decode reads a parquet payload already held in memory.
func (s *ParquetSource) Decode(ctx context.Context, r parquet.ReaderAtSeeker) (*models.Table, error) {
	rdr, err := file.NewParquetReader(r)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer rdr.Close()
	return s.read(ctx, rdr)
}

func (s *ParquetSource) read(ctx context.Context, rdr *file.Reader) (*models.Table, error) {
	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: s.batchSize}, s.alloc)
	if err != nil {
		return nil, err
	}
	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, err
	}
	defer tbl.Release()

	b := models.NewTableBuilder()
	for i, field := range tbl.Schema().Fields() {
		col := tbl.Column(i)
		values := make([]models.Value, 0, col.Len())
		for _, chunk := range col.Data().Chunks() {
			for j := 0; j < chunk.Len(); j++ {
				values = append(values, arrowValue(chunk, j))
			}
		}
		if err := b.SetColumn(field.Name, values); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// arrowValue converts element i of arr. Nested structs and lists recurse;
// unrecognised leaf types fall back to their JSON-marshal form.
func arrowValue(arr arrow.Array, i int) models.Value {
	if arr.IsNull(i) {
		return models.Null()
	}
	switch a := arr.(type) {
	case *array.Struct:
		st := a.DataType().(*arrow.StructType)
		fields := make([]models.Field, a.NumField())
		for f := range fields {
			fields[f] = models.Field{Name: st.Field(f).Name, Value: arrowValue(a.Field(f), i)}
		}
		return models.StructValue(models.NewStruct(fields...))
	case array.ListLike:
		start, end := a.ValueOffsets(i)
		items := make([]models.Value, 0, end-start)
		values := a.ListValues()
		for k := start; k < end; k++ {
			items = append(items, arrowValue(values, int(k)))
		}
		return models.Array(items...)
	case *array.Dictionary:
		return arrowValue(a.Dictionary(), a.GetValueIndex(i))
	case *array.Boolean:
		return models.Bool(a.Value(i))
	case *array.Int8:
		return models.Int(int64(a.Value(i)))
	case *array.Int16:
		return models.Int(int64(a.Value(i)))
	case *array.Int32:
		return models.Int(int64(a.Value(i)))
	case *array.Int64:
		return models.Int(a.Value(i))
	case *array.Uint8:
		return models.Int(int64(a.Value(i)))
	case *array.Uint16:
		return models.Int(int64(a.Value(i)))
	case *array.Uint32:
		return models.Int(int64(a.Value(i)))
	case *array.Uint64:
		return models.Float(float64(a.Value(i)))
	case *array.Float32:
		return models.Float(float64(a.Value(i)))
	case *array.Float64:
		return models.Float(a.Value(i))
	case *array.String:
		return models.String(a.Value(i))
	case *array.LargeString:
		return models.String(a.Value(i))
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return models.Time(a.Value(i).ToTime(unit).UTC())
	case *array.Date32:
		return models.Time(a.Value(i).ToTime().UTC())
	case *array.Date64:
		return models.Time(a.Value(i).ToTime().UTC())
	default:
		switch v := arr.GetOneForMarshal(i).(type) {
		case nil:
			return models.Null()
		case string:
			return models.String(v)
		case time.Time:
			return models.Time(v.UTC())
		default:
			return models.String(fmt.Sprint(v))
		}
	}
}

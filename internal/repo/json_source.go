package repo

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/instrumetriq/tier-inspector/internal/models"
	"github.com/instrumetriq/tier-inspector/internal/utils"
)

// JSONSource decodes snapshots stored as a JSON array of objects, JSON Lines,
// or a stream of concatenated objects. Object key order is preserved so struct
// field listings match the file.
type JSONSource struct{}

// NewJSONSource constructs a JSONSource.
func NewJSONSource() *JSONSource {
	return &JSONSource{}
}

// Load reads and decodes the file at path.
func (s *JSONSource) Load(ctx context.Context, path string) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, utils.NewPathError("load snapshot", path, "open file", err)
	}
	defer f.Close()

	table, err := s.Decode(ctx, bufio.NewReader(f))
	if err != nil {
		return nil, utils.NewPathError("load snapshot", path, "decode json", err)
	}
	return table, nil
}

// Decode builds a table from r. Each top-level object is one record; a leading
// array is unwrapped and any objects after it are read as further records.
func (s *JSONSource) Decode(ctx context.Context, r io.Reader) (*models.Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	b := models.NewTableBuilder()
	record := 0

	emit := func(v models.Value) error {
		record++
		st, ok := v.AsStruct()
		if !ok {
			return fmt.Errorf("record %d: expected object, got %s", record, v.Kind())
		}
		fields := make([]models.Field, 0, st.Len())
		for _, name := range st.Fields() {
			fv, _ := st.Get(name)
			fields = append(fields, models.Field{Name: name, Value: fv})
		}
		b.Append(fields...)
		if record%4096 == 0 {
			return ctx.Err()
		}
		return nil
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return b.Build(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("read token after record %d: %w", record, err)
		}

		if tok == json.Delim('[') {
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, fmt.Errorf("record %d: %w", record+1, err)
				}
				if v.IsNull() {
					continue
				}
				if err := emit(v); err != nil {
					return nil, err
				}
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("read array end: %w", err)
			}
			continue
		}

		v, err := valueFrom(dec, tok)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", record+1, err)
		}
		if err := emit(v); err != nil {
			return nil, err
		}
	}
}

func decodeValue(dec *json.Decoder) (models.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return models.Null(), err
	}
	return valueFrom(dec, tok)
}

// valueFrom converts tok, reading further tokens for objects and arrays.
func valueFrom(dec *json.Decoder, tok json.Token) (models.Value, error) {
	switch t := tok.(type) {
	case nil:
		return models.Null(), nil
	case bool:
		return models.Bool(t), nil
	case string:
		return models.String(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return models.Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return models.Null(), fmt.Errorf("number %q: %w", t.String(), err)
		}
		return models.Float(f), nil
	case json.Delim:
		switch t {
		case '{':
			st := models.NewStruct()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return models.Null(), err
				}
				key, ok := keyTok.(string)
				if !ok {
					return models.Null(), fmt.Errorf("object key is %T", keyTok)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return models.Null(), fmt.Errorf("field %s: %w", key, err)
				}
				st.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return models.Null(), err
			}
			return models.StructValue(st), nil
		case '[':
			items := []models.Value{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return models.Null(), err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil {
				return models.Null(), err
			}
			return models.Array(items...), nil
		}
	}
	return models.Null(), fmt.Errorf("unexpected token %v", tok)
}

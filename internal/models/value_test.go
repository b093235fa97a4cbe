package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueAccessors(t *testing.T) {
	assert.True(t, Value{}.IsNull())

	n, ok := Bool(true).Number()
	assert.True(t, ok)
	assert.Equal(t, 1.0, n)

	_, ok = String("1.5").Number()
	assert.False(t, ok)

	items, ok := Array().AsArray()
	require.True(t, ok)
	assert.Empty(t, items)
	assert.False(t, Array().IsNull())

	assert.True(t, StructValue(nil).IsNull())
	assert.Equal(t, "array[2]", Array(Int(1), Int(2)).Text())
	assert.Equal(t, "2026-02-01T00:00:00Z", Time(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)).Text())
}

func TestStructKeepsFieldOrder(t *testing.T) {
	s := NewStruct(
		Field{Name: "mid", Value: Float(1)},
		Field{Name: "spread_bps", Value: Float(2)},
		Field{Name: "mid", Value: Float(3)},
	)
	assert.Equal(t, []string{"mid", "spread_bps"}, s.Fields())
	v, ok := s.Get("mid")
	require.True(t, ok)
	assert.Equal(t, "3", v.Text())

	s.Set("bid", Null())
	assert.Equal(t, []string{"mid", "spread_bps", "bid"}, s.Fields())
	assert.Equal(t, 3, s.Len())
}

func TestMatrixJSONNullsUndefined(t *testing.T) {
	m := Matrix{
		Labels: []string{"a", "b"},
		Values: [][]float64{{1, 0.5}, {0.5, math.NaN()}},
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"labels":["a","b"],"values":[[1,0.5],[0.5,null]]}`, string(data))

	v, ok := m.At("b", "a")
	assert.True(t, ok)
	assert.Equal(t, 0.5, v)
	_, ok = m.At("a", "z")
	assert.False(t, ok)
}

package repo

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instrumetriq/tier-inspector/internal/models"
	"github.com/instrumetriq/tier-inspector/internal/utils"
)

const tier3Lines = `{"symbol":"BTC","snapshot_ts":"2026-02-01T00:00:00Z","spot_raw":{"mid":101.5,"spread_bps":1.2},"futures_raw":{"contract":"PERP","funding_now":0.0001},"spot_prices":[{"ts":"2026-02-01T00:00:00Z","mid":101},{"ts":"2026-02-01T00:00:10Z","mid":102}]}
{"symbol":"ETH","snapshot_ts":"2026-02-01T00:00:00Z","spot_raw":{"spread_bps":2,"mid":3000},"futures_raw":null,"spot_prices":[]}
{"symbol":"SOL","snapshot_ts":"2026-02-01T00:00:00Z","extra":true}
`

func TestJSONSourceDecodeLines(t *testing.T) {
	table, err := NewJSONSource().Decode(context.Background(), strings.NewReader(tier3Lines))
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []string{"symbol", "snapshot_ts", "spot_raw", "futures_raw", "spot_prices", "extra"}, table.Columns())

	raw, ok := table.Column("spot_raw")
	require.True(t, ok)
	first, ok := raw[0].AsStruct()
	require.True(t, ok)
	assert.Equal(t, []string{"mid", "spread_bps"}, first.Fields())
	second, _ := raw[1].AsStruct()
	assert.Equal(t, []string{"spread_bps", "mid"}, second.Fields())
	assert.True(t, raw[2].IsNull())

	mid, _ := second.Get("mid")
	assert.Equal(t, models.KindInt, mid.Kind())
	spread, _ := first.Get("spread_bps")
	assert.Equal(t, models.KindFloat, spread.Kind())

	prices, _ := table.Column("spot_prices")
	assert.Equal(t, 2, prices[0].Len())
	items, ok := prices[1].AsArray()
	require.True(t, ok)
	assert.Empty(t, items)
	assert.True(t, prices[2].IsNull())

	extra, _ := table.Column("extra")
	assert.True(t, extra[0].IsNull())
	b, ok := extra[2].AsBool()
	assert.True(t, ok && b)
}

func TestJSONSourceDecodeArray(t *testing.T) {
	input := `[{"symbol":"BTC","n":1}, null, {"symbol":"ETH","n":2.5}]
{"symbol":"SOL","n":3}`
	table, err := NewJSONSource().Decode(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())

	n, _ := table.Column("n")
	f, ok := n[1].Number()
	require.True(t, ok)
	assert.Equal(t, 2.5, f)
}

func TestJSONSourceRejectsScalars(t *testing.T) {
	_, err := NewJSONSource().Decode(context.Background(), strings.NewReader(`[1, 2]`))
	assert.Error(t, err)

	_, err = NewJSONSource().Decode(context.Background(), strings.NewReader(`{"a":`))
	assert.Error(t, err)
}

func TestJSONSourceEmptyInput(t *testing.T) {
	table, err := NewJSONSource().Decode(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, table.Len())
	assert.Zero(t, table.NumColumns())
}

func TestJSONSourceLoadMissingFile(t *testing.T) {
	_, err := NewJSONSource().Load(context.Background(), filepath.Join(t.TempDir(), "nope.jsonl"))
	require.Error(t, err)
	assert.True(t, utils.IsNotExist(err))
}

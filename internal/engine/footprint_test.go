package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/instrumetriq/tier-inspector/internal/models"
)

func TestEstimateBytesCountsNestedPayloads(t *testing.T) {
	flat := models.NewTableBuilder("symbol")
	flat.Append(models.Field{Name: "symbol", Value: models.String("BTC")})
	flatSize := EstimateBytes(flat.Build())
	assert.Equal(t, int64(len("symbol"))+valueSize+3, flatSize)

	nested := models.NewTableBuilder("symbol")
	nested.Append(models.Field{Name: "symbol", Value: obj("mid", models.Float(1), "tags", models.Array(models.String("ab")))})
	want := int64(len("symbol")) + valueSize +
		int64(len("mid")) + valueSize +
		int64(len("tags")) + valueSize + valueSize + 2
	assert.Equal(t, want, EstimateBytes(nested.Build()))

	assert.Zero(t, EstimateBytes(models.NewTableBuilder().Build()))
}

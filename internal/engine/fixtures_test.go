package engine

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/instrumetriq/tier-inspector/internal/models"
)

var baseTime = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

var symbols = []string{"BTC", "ETH", "SOL"}

func at(minutes int) time.Time {
	return baseTime.Add(time.Duration(minutes) * time.Minute)
}

func obj(kv ...any) models.Value {
	fields := make([]models.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, models.Field{Name: kv[i].(string), Value: kv[i+1].(models.Value)})
	}
	return models.StructValue(models.NewStruct(fields...))
}

// tier3Table builds n Tier 3 records. Symbols rotate so every symbol shares
// every snapshot when n is a multiple of three. futures_raw lacks a contract on
// every fourth record and spot_prices is empty on every third.
func tier3Table(n int) *models.Table {
	f := gofakeit.New(42)
	b := models.NewTableBuilder(
		"symbol", "snapshot_ts", "spot_raw", "futures_raw", "scores", "flags",
		"twitter_sentiment_windows", "twitter_sentiment_meta", "spot_prices",
	)
	for i := 0; i < n; i++ {
		snapshot := at(i / 3)

		futures := obj("contract", models.String("PERP"), "funding_now", models.Float(f.Float64Range(-0.001, 0.001)))
		if i%4 == 0 {
			futures = obj("contract", models.Null(), "funding_now", models.Null())
		}

		var prices []models.Value
		if i%3 != 0 {
			for k := 0; k < 5; k++ {
				prices = append(prices, obj(
					"ts", models.Time(snapshot.Add(time.Duration(k)*10*time.Second)),
					"mid", models.Float(100+float64(k)),
				))
			}
		}

		b.Append(
			models.Field{Name: "symbol", Value: models.String(symbols[i%3])},
			models.Field{Name: "snapshot_ts", Value: models.Time(snapshot)},
			models.Field{Name: "spot_raw", Value: obj(
				"mid", models.Float(f.Float64Range(1, 100)),
				"spread_bps", models.Float(f.Float64Range(0, 5)),
			)},
			models.Field{Name: "futures_raw", Value: futures},
			models.Field{Name: "scores", Value: obj("final", models.Float(f.Float64Range(0, 100)))},
			models.Field{Name: "flags", Value: obj(
				"spot_data_ok", models.Bool(i%5 != 0),
				"twitter_data_ok", models.Bool(true),
			)},
			models.Field{Name: "twitter_sentiment_windows", Value: obj(
				"last_cycle", obj(
					"posts_total", models.Int(int64(f.Number(0, 500))),
					"hybrid_decision_stats", obj("mean_score", models.Float(f.Float64Range(-1, 1))),
				),
				"last_2_cycles", obj("posts_total", models.Int(int64(f.Number(0, 900)))),
			)},
			models.Field{Name: "twitter_sentiment_meta", Value: obj("source", models.String(f.RandomString([]string{"x", "nitter"})))},
			models.Field{Name: "spot_prices", Value: models.Array(prices...)},
		)
	}
	return b.Build()
}

// flatTable builds 100 Tier 1 records: symbols with 40/30/30 records and 25
// silent observations.
func flatTable() *models.Table {
	f := gofakeit.New(7)
	b := models.NewTableBuilder("symbol", "snapshot_ts", "sentiment_mean_score", "sentiment_is_silent", "sentiment_score_flip")
	for i := 0; i < 100; i++ {
		symbol := "BTC"
		switch {
		case i >= 70:
			symbol = "SOL"
		case i >= 40:
			symbol = "ETH"
		}
		b.Append(
			models.Field{Name: "symbol", Value: models.String(symbol)},
			models.Field{Name: "snapshot_ts", Value: models.Time(at(i % 30))},
			models.Field{Name: "sentiment_mean_score", Value: models.Float(f.Float64Range(-1, 1))},
			models.Field{Name: "sentiment_is_silent", Value: models.Bool(i < 25)},
			models.Field{Name: "sentiment_score_flip", Value: models.Bool(false)},
		)
	}
	return b.Build()
}

func tierManifest(tier string) models.Manifest {
	for _, m := range BuiltinManifests() {
		if m.Tier == tier {
			return m
		}
	}
	panic("no builtin manifest " + tier)
}

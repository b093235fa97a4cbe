package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

var symbols = []string{"BTC", "ETH", "SOL", "XRP", "DOGE"}

type spotSample struct {
	TS  time.Time `json:"ts"`
	Mid float64   `json:"mid"`
}

func main() {
	var (
		addr    string
		dir     string
		records int
		seed    int64
	)
	flag.StringVar(&addr, "addr", ":8080", "Listen address")
	flag.StringVar(&dir, "dir", "", "Directory to write snapshots into (default: temp dir)")
	flag.IntVar(&records, "records", 300, "Records per tier snapshot")
	flag.Int64Var(&seed, "seed", 42, "Faker seed")
	flag.Parse()

	logger := log.New(log.Writer(), "mock-snapshots ", log.LstdFlags|log.Lmicroseconds)

	if dir == "" {
		tmp, err := os.MkdirTemp("", "tier-snapshots-")
		if err != nil {
			logger.Fatalf("create temp dir: %v", err)
		}
		dir = tmp
	}

	day := time.Now().UTC().Truncate(24 * time.Hour)
	week := filepath.Join(dir, "week_"+day.Format("2006-01-02"))
	if err := os.MkdirAll(week, 0o755); err != nil {
		logger.Fatalf("create week folder: %v", err)
	}

	faker := gofakeit.New(seed)
	for _, tier := range []string{"tier1", "tier2", "tier3"} {
		name := filepath.Join(week, fmt.Sprintf("%s_%s.jsonl", day.Format("2006-01-02"), tier))
		if err := writeSnapshot(name, tier, records, day, faker); err != nil {
			logger.Fatalf("write %s: %v", name, err)
		}
		logger.Printf("wrote %s", name)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	files := http.FileServer(http.Dir(dir))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		files.ServeHTTP(w, r)
	}))

	srv := &http.Server{
		Addr:    addr,
		Handler: logRequests(logger, mux),
	}

	logger.Printf("serving %s on %s", dir, addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func writeSnapshot(name, tier string, records int, day time.Time, faker *gofakeit.Faker) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i := 0; i < records; i++ {
		snapshot := day.Add(time.Duration(i/len(symbols)) * time.Minute)
		record := map[string]any{
			"symbol":      symbols[i%len(symbols)],
			"snapshot_ts": snapshot.Format(time.RFC3339),
		}
		switch tier {
		case "tier1":
			record["sentiment_mean_score"] = faker.Float64Range(-1, 1)
			record["sentiment_is_silent"] = faker.Bool()
			record["sentiment_score_flip"] = faker.Bool()
		case "tier2":
			record["spot_raw"] = map[string]any{"mid": faker.Float64Range(1, 70000), "spread_bps": faker.Float64Range(0, 5)}
			record["scores"] = map[string]any{"final": faker.Float64Range(0, 100)}
			record["twitter_sentiment_last_cycle"] = map[string]any{
				"posts_total":           faker.Number(0, 500),
				"hybrid_decision_stats": map[string]any{"mean_score": faker.Float64Range(-1, 1)},
			}
		case "tier3":
			record["spot_raw"] = map[string]any{"mid": faker.Float64Range(1, 70000), "spread_bps": faker.Float64Range(0, 5)}
			futures := map[string]any{"contract": nil, "funding_now": nil}
			if faker.Float64() > 0.2 {
				futures = map[string]any{"contract": "PERP", "funding_now": faker.Float64Range(-0.001, 0.001)}
			}
			record["futures_raw"] = futures
			record["scores"] = map[string]any{"final": faker.Float64Range(0, 100)}
			record["flags"] = map[string]any{"spot_data_ok": faker.Float64() > 0.1, "twitter_data_ok": faker.Bool()}
			record["twitter_sentiment_windows"] = map[string]any{
				"last_cycle": map[string]any{
					"posts_total":           faker.Number(0, 500),
					"hybrid_decision_stats": map[string]any{"mean_score": faker.Float64Range(-1, 1)},
				},
				"last_2_cycles": map[string]any{"posts_total": faker.Number(0, 900)},
			}
			record["twitter_sentiment_meta"] = map[string]any{"source": faker.RandomString([]string{"x", "nitter"})}
			samples := make([]spotSample, faker.Number(0, 12))
			for k := range samples {
				samples[k] = spotSample{TS: snapshot.Add(time.Duration(k) * 5 * time.Second), Mid: faker.Float64Range(1, 70000)}
			}
			record["spot_prices"] = samples
		}
		if err := enc.Encode(record); err != nil {
			return err
		}
	}
	return nil
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

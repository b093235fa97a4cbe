package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/instrumetriq/tier-inspector/internal/api"
	"github.com/instrumetriq/tier-inspector/internal/cache"
	"github.com/instrumetriq/tier-inspector/internal/config"
	"github.com/instrumetriq/tier-inspector/internal/engine"
	"github.com/instrumetriq/tier-inspector/internal/metrics"
	"github.com/instrumetriq/tier-inspector/internal/models"
	"github.com/instrumetriq/tier-inspector/internal/repo"
	"github.com/instrumetriq/tier-inspector/internal/services"
	"github.com/instrumetriq/tier-inspector/internal/utils"
)

func main() {
	var (
		configPath string
		tier       string
		path       string
		minRows    int
		serve      bool
		connect    string
		pretty     bool
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&tier, "tier", "", "Tier to inspect (tier1, tier2, tier3); defaults to inspection.defaultTier")
	flag.StringVar(&path, "path", "", "Snapshot file, URL or \"latest\"; empty means latest")
	flag.IntVar(&minRows, "min-correlation-rows", 0, "Override the minimum clean rows required for correlation")
	flag.BoolVar(&serve, "serve", false, "Run the gRPC inspection service instead of a one-shot inspection")
	flag.StringVar(&connect, "connect", "", "Send the one-shot request to a running service at this address")
	flag.BoolVar(&pretty, "pretty", true, "Indent the report JSON")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	req := models.InspectionRequest{Tier: tier, Path: path, MinCorrelationRows: minRows}

	if connect != "" {
		if err := inspectRemote(connect, req, pretty, os.Stdout); err != nil {
			logger.Error("remote inspection failed", slog.String("address", connect), slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	service, err := buildService(cfg, logger)
	if err != nil {
		logger.Error("failed to initialise inspector", slog.Any("error", err))
		os.Exit(1)
	}

	if serve {
		if err := runServer(cfg, logger, service); err != nil {
			logger.Error("server exited", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := service.Inspect(ctx, req)
	if err != nil {
		logger.Error("inspection failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := writeJSON(os.Stdout, report, pretty); err != nil {
		logger.Error("failed to write report", slog.Any("error", err))
		os.Exit(1)
	}
}

func buildService(cfg *config.Config, logger *slog.Logger) (*services.InspectorService, error) {
	registry, err := engine.LoadManifests(cfg.Manifests.Path, logger)
	if err != nil {
		return nil, err
	}

	var remote *repo.HTTPSource
	if cfg.Source.BaseURL != "" {
		remote = repo.NewHTTPSource(cfg.Source.BaseURL, cfg.Source.Timeout, cfg.Source.MaxBytes)
	}
	loader := repo.NewLoader(logger, cfg.Source.DataDir, remote)
	if cfg.Source.CacheTTL > 0 {
		loader.UseCache(cache.NewTableCache(cfg.Source.CacheTTL, cfg.Source.CacheEntries))
	}

	pipeline := engine.NewPipeline(
		logger,
		engine.NewClassifier(logger, cfg.Inspection.ParallelClassify, cfg.Inspection.MaxWorkers),
		engine.NewCoverageAnalyzer(cfg.Inspection.StrictTimestamps),
		engine.NewCorrelationEngine(logger, cfg.Inspection.MinCorrelationRows),
	)

	logger.Debug("inspector ready", slog.Any("tiers", registry.Tiers()), slog.String("data_dir", cfg.Source.DataDir))
	return services.NewInspectorService(logger, registry, loader, pipeline, cfg.Inspection.DefaultTier), nil
}

func runServer(cfg *config.Config, logger *slog.Logger, service *services.InspectorService) error {
	logger.Info("starting tier-inspector", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	server, err := api.NewServer(cfg.Server, api.NewHandler(logger, service))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	latency := service.Latency()
	logger.Info("tier-inspector stopped", slog.Int("inspections", latency.Count), slog.Duration("p95", latency.P95))
	return nil
}

func inspectRemote(address string, req models.InspectionRequest, pretty bool, w io.Writer) error {
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out, err := api.NewInspectorClient(conn).InspectSnapshot(ctx, api.RequestToStruct(req))
	if err != nil {
		return err
	}
	opts := protojson.MarshalOptions{}
	if pretty {
		opts.Indent = "  "
	}
	data, err := opts.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/instrumetriq/tier-inspector/internal/engine"
	"github.com/instrumetriq/tier-inspector/internal/models"
	"github.com/instrumetriq/tier-inspector/internal/utils"
)

// latencyLogEvery is the number of successful inspections between latency summaries.
const latencyLogEvery = 20

// ErrInvalidRequest marks requests rejected before any snapshot is touched.
var ErrInvalidRequest = errors.New("invalid inspection request")

// TableLoader resolves snapshot references and materialises them as tables.
type TableLoader interface {
	Resolve(tier, ref string) (string, error)
	Load(ctx context.Context, path string) (*models.Table, error)
}

// InspectorService resolves a request to a manifest and a snapshot and runs the
// inspection pipeline over it. It is shared by the CLI and the gRPC handlers.
type InspectorService struct {
	logger      *slog.Logger
	registry    *engine.ManifestRegistry
	loader      TableLoader
	pipeline    *engine.Pipeline
	defaultTier string
	latencies   *utils.LatencyTracker
	inspections atomic.Uint64
}

// NewInspectorService constructs the inspection facade.
func NewInspectorService(logger *slog.Logger, registry *engine.ManifestRegistry, loader TableLoader, pipeline *engine.Pipeline, defaultTier string) *InspectorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InspectorService{
		logger:      logger,
		registry:    registry,
		loader:      loader,
		pipeline:    pipeline,
		defaultTier: defaultTier,
		latencies:   utils.NewLatencyTracker(1024),
	}
}

// Inspect loads the requested snapshot and returns its report.
func (s *InspectorService) Inspect(ctx context.Context, req models.InspectionRequest) (models.Report, error) {
	if s.registry == nil || s.loader == nil || s.pipeline == nil {
		return models.Report{}, fmt.Errorf("inspector service not configured")
	}

	tier := req.Tier
	if tier == "" {
		tier = s.defaultTier
	}
	if tier == "" {
		return models.Report{}, fmt.Errorf("%w: tier is required", ErrInvalidRequest)
	}
	if req.MinCorrelationRows < 0 {
		return models.Report{}, fmt.Errorf("%w: min_correlation_rows must not be negative", ErrInvalidRequest)
	}

	manifest, err := s.registry.Get(tier)
	if err != nil {
		return models.Report{}, err
	}

	path, err := s.loader.Resolve(manifest.Tier, req.Path)
	if err != nil {
		return models.Report{}, err
	}
	s.logger.Debug("inspect snapshot", slog.String("tier", manifest.Tier), slog.String("path", path))

	start := time.Now()
	table, err := s.loader.Load(ctx, path)
	if err != nil {
		return models.Report{}, err
	}

	report, err := s.pipeline.Inspect(ctx, table, manifest, engine.Options{
		Source:             path,
		MinCorrelationRows: req.MinCorrelationRows,
	})
	if err != nil {
		return models.Report{}, err
	}

	s.latencies.Observe(time.Since(start))
	if n := s.inspections.Add(1); n%latencyLogEvery == 0 {
		summary := s.latencies.Snapshot()
		s.logger.Info("inspection latency",
			slog.Duration("p50", summary.P50),
			slog.Duration("p95", summary.P95),
			slog.Int("samples", summary.Count),
		)
	}
	return report, nil
}

// Tiers lists the tiers the service can inspect.
func (s *InspectorService) Tiers() []string {
	if s.registry == nil {
		return nil
	}
	return s.registry.Tiers()
}

// Latency returns load-plus-inspect latency over recent successful runs.
func (s *InspectorService) Latency() utils.LatencySummary {
	return s.latencies.Snapshot()
}

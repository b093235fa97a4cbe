package api

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/instrumetriq/tier-inspector/internal/config"
	"github.com/instrumetriq/tier-inspector/internal/engine"
	"github.com/instrumetriq/tier-inspector/internal/models"
	"github.com/instrumetriq/tier-inspector/internal/services"
)

type inspectorStub struct {
	report models.Report
	err    error
	got    models.InspectionRequest
}

func (s *inspectorStub) Inspect(ctx context.Context, req models.InspectionRequest) (models.Report, error) {
	s.got = req
	return s.report, s.err
}

func sampleReport() models.Report {
	return models.Report{
		RunID:  "run-1",
		Tier:   "tier3",
		Stages: []models.Stage{models.StageLoaded, models.StageReported},
		Basics: models.BasicCounts{Records: 20, Columns: 9},
		Correlation: &models.CorrelationResult{
			Features:  []string{"spot_mid", "funding"},
			TotalRows: 20,
			CleanRows: 15,
			MinRows:   10,
			Matrix: &models.Matrix{
				Labels: []string{"spot_mid", "funding"},
				Values: [][]float64{{1, math.NaN()}, {math.NaN(), math.NaN()}},
			},
		},
		Anomalies: []models.Anomaly{{Column: "snapshot_ts", Kind: models.AnomalyUnparsableTimestamp, Count: 2}},
	}
}

func dialBufconn(t *testing.T, handler InspectorServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServerWithListener(lis, config.ServerConfig{GracefulTimeout: time.Second}, handler)
	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestRequestFromStruct(t *testing.T) {
	in, err := structpb.NewStruct(map[string]any{"tier": " tier3 ", "path": "latest", "min_correlation_rows": 12})
	require.NoError(t, err)

	req, err := RequestFromStruct(in)
	require.NoError(t, err)
	assert.Equal(t, models.InspectionRequest{Tier: "tier3", Path: "latest", MinCorrelationRows: 12}, req)

	round, err := RequestFromStruct(RequestToStruct(req))
	require.NoError(t, err)
	assert.Equal(t, req, round)

	for _, bad := range []map[string]any{
		{"tier": 3},
		{"min_correlation_rows": 2.5},
		{"min_correlation_rows": -1},
		{"columns": "x"},
	} {
		s, err := structpb.NewStruct(bad)
		require.NoError(t, err)
		_, err = RequestFromStruct(s)
		assert.Error(t, err, "%v", bad)
	}
}

func TestReportToStructEncodesNaNAsNull(t *testing.T) {
	out, err := ReportToStruct(sampleReport())
	require.NoError(t, err)

	fields := out.GetFields()
	assert.Equal(t, "tier3", fields["tier"].GetStringValue())
	matrix := fields["correlation"].GetStructValue().GetFields()["matrix"].GetStructValue()
	rows := matrix.GetFields()["values"].GetListValue().GetValues()
	require.Len(t, rows, 2)
	first := rows[0].GetListValue().GetValues()
	assert.Equal(t, 1.0, first[0].GetNumberValue())
	_, isNull := first[1].GetKind().(*structpb.Value_NullValue)
	assert.True(t, isNull)
}

func TestStatusFromError(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("%w: tier is required", services.ErrInvalidRequest), codes.InvalidArgument},
		{fmt.Errorf("open: %w", fs.ErrNotExist), codes.NotFound},
		{&engine.MissingColumnError{Tier: "tier3", Column: "spot_prices"}, codes.FailedPrecondition},
		{&engine.UnknownTierError{Tier: "tier9"}, codes.FailedPrecondition},
		{context.Canceled, codes.Canceled},
		{fmt.Errorf("boom"), codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, status.Code(statusFromError(tc.err)), tc.err.Error())
	}
}

func TestInspectSnapshotOverGRPC(t *testing.T) {
	stub := &inspectorStub{report: sampleReport()}
	conn := dialBufconn(t, NewHandler(nil, stub))
	client := NewInspectorClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := client.InspectSnapshot(ctx, RequestToStruct(models.InspectionRequest{Tier: "tier3", Path: "latest"}))
	require.NoError(t, err)
	assert.Equal(t, "run-1", out.GetFields()["run_id"].GetStringValue())
	assert.Equal(t, models.InspectionRequest{Tier: "tier3", Path: "latest"}, stub.got)

	health, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: InspectorServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, health.GetStatus())
}

func TestInspectSnapshotMapsErrors(t *testing.T) {
	stub := &inspectorStub{err: &engine.MissingColumnError{Tier: "tier3", Column: "spot_prices"}}
	client := NewInspectorClient(dialBufconn(t, NewHandler(nil, stub)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.InspectSnapshot(ctx, RequestToStruct(models.InspectionRequest{Tier: "tier3"}))
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.FailedPrecondition, st.Code())
	assert.Equal(t, "missing required column: spot_prices", st.Message())

	bad, err := structpb.NewStruct(map[string]any{"tier": true})
	require.NoError(t, err)
	_, err = client.InspectSnapshot(ctx, bad)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

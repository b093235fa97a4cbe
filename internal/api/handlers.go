package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/instrumetriq/tier-inspector/internal/engine"
	"github.com/instrumetriq/tier-inspector/internal/models"
	"github.com/instrumetriq/tier-inspector/internal/services"
	"github.com/instrumetriq/tier-inspector/internal/utils"
)

// Inspector runs one inspection.
type Inspector interface {
	Inspect(ctx context.Context, req models.InspectionRequest) (models.Report, error)
}

// Handler implements InspectorServer on top of an Inspector.
type Handler struct {
	logger    *slog.Logger
	inspector Inspector
}

// NewHandler constructs the gRPC handler.
func NewHandler(logger *slog.Logger, inspector Inspector) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, inspector: inspector}
}

// InspectSnapshot decodes the request, runs the inspection and encodes the report.
func (h *Handler) InspectSnapshot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	if h.inspector == nil {
		return nil, status.Error(codes.FailedPrecondition, "inspector not configured")
	}

	domainReq, err := RequestFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	h.logger.Debug("InspectSnapshot called", slog.String("tier", domainReq.Tier), slog.String("path", domainReq.Path))

	report, err := h.inspector.Inspect(ctx, domainReq)
	if err != nil {
		return nil, statusFromError(err)
	}

	out, err := ReportToStruct(report)
	if err != nil {
		h.logger.Error("encode report failed", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode report")
	}
	return out, nil
}

// RequestFromStruct maps the Struct request fields tier, path and
// min_correlation_rows into an InspectionRequest. Unknown fields are rejected.
func RequestFromStruct(s *structpb.Struct) (models.InspectionRequest, error) {
	var req models.InspectionRequest
	if s == nil {
		return req, fmt.Errorf("request is nil")
	}
	for key, v := range s.GetFields() {
		switch key {
		case "tier":
			str, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return req, fmt.Errorf("tier must be a string")
			}
			req.Tier = strings.TrimSpace(str.StringValue)
		case "path":
			str, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return req, fmt.Errorf("path must be a string")
			}
			req.Path = strings.TrimSpace(str.StringValue)
		case "min_correlation_rows":
			num, ok := v.GetKind().(*structpb.Value_NumberValue)
			if !ok {
				return req, fmt.Errorf("min_correlation_rows must be a number")
			}
			n := num.NumberValue
			if n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
				return req, fmt.Errorf("min_correlation_rows must be a non-negative integer, got %v", n)
			}
			req.MinCorrelationRows = int(n)
		default:
			return req, fmt.Errorf("unknown request field %q", key)
		}
	}
	return req, nil
}

// RequestToStruct is the inverse of RequestFromStruct, used by clients.
func RequestToStruct(req models.InspectionRequest) *structpb.Struct {
	fields := map[string]*structpb.Value{}
	if req.Tier != "" {
		fields["tier"] = structpb.NewStringValue(req.Tier)
	}
	if req.Path != "" {
		fields["path"] = structpb.NewStringValue(req.Path)
	}
	if req.MinCorrelationRows > 0 {
		fields["min_correlation_rows"] = structpb.NewNumberValue(float64(req.MinCorrelationRows))
	}
	return &structpb.Struct{Fields: fields}
}

// ReportToStruct renders the report through its JSON form, so undefined
// correlation coefficients arrive as null values.
func ReportToStruct(report models.Report) (*structpb.Struct, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("convert report: %w", err)
	}
	return out, nil
}

func statusFromError(err error) error {
	var (
		missing *engine.MissingColumnError
		unknown *engine.UnknownTierError
		stamp   *engine.TimestampError
	)
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case utils.IsNotExist(err):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &missing), errors.As(err, &unknown), errors.As(err, &stamp):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, fmt.Sprintf("inspection failed: %v", err))
	}
}

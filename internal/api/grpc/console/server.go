package console

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	domain "github.com/oshokin/solar-monitor/internal/domain/alarm"
	"github.com/oshokin/solar-monitor/internal/logger"
	"github.com/oshokin/solar-monitor/internal/service/alarm"
	"github.com/oshokin/solar-monitor/internal/service/poller"
	"github.com/oshokin/solar-monitor/internal/settings"
)

// Console abstracts the operations the transport layer depends on.
type Console interface {
	Silence(ctx context.Context, actor *domain.Actor) (Report, error)
	SetMonitoring(ctx context.Context, active bool) (Report, error)
	Refresh(ctx context.Context, force bool) error
	Status(ctx context.Context) (Report, error)
	Settings(ctx context.Context) (settings.Config, error)
	UpdateSettings(ctx context.Context, fields *structpb.Struct) (settings.Config, error)
}

// Server implements ConsoleServer on top of a Console.
type Server struct {
	console Console
}

// NewServer wires the console into a gRPC handler.
func NewServer(console Console) *Server {
	return &Server{
		console: console,
	}
}

// Silence stops the alarm on behalf of the calling actor.
func (s *Server) Silence(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	actor := actorFromContext(ctx)
	if actor == nil {
		return nil, status.Error(codes.InvalidArgument, "actor metadata is required")
	}

	report, err := s.console.Silence(ctx, actor)
	if err != nil {
		return nil, toStatus(ctx, "silence", err)
	}

	return reportStruct(ctx, report)
}

// SetMonitoring starts or stops monitoring.
func (s *Server) SetMonitoring(ctx context.Context, in *wrapperspb.BoolValue) (*structpb.Struct, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	report, err := s.console.SetMonitoring(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(ctx, "set monitoring", err)
	}

	return reportStruct(ctx, report)
}

// Refresh retrieves the plants now; with force the remote side updates first.
func (s *Server) Refresh(ctx context.Context, in *wrapperspb.BoolValue) (*emptypb.Empty, error) {
	if err := s.console.Refresh(ctx, in.GetValue()); err != nil {
		return nil, toStatus(ctx, "refresh", err)
	}

	return &emptypb.Empty{}, nil
}

// GetStatus returns the console report.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	report, err := s.console.Status(ctx)
	if err != nil {
		return nil, toStatus(ctx, "get status", err)
	}

	return reportStruct(ctx, report)
}

// GetSettings returns the tunable settings.
func (s *Server) GetSettings(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	cfg, err := s.console.Settings(ctx)
	if err != nil {
		return nil, toStatus(ctx, "get settings", err)
	}

	return settingsStruct(ctx, cfg)
}

// UpdateSettings applies a partial settings document.
func (s *Server) UpdateSettings(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if in == nil || len(in.GetFields()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "at least one setting is required")
	}

	cfg, err := s.console.UpdateSettings(ctx, in)
	if err != nil {
		return nil, toStatus(ctx, "update settings", err)
	}

	return settingsStruct(ctx, cfg)
}

// actorFromContext reads the caller identity from incoming metadata.
func actorFromContext(ctx context.Context) *domain.Actor {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}

	hostname := first(md.Get(MetadataHostname))
	username := first(md.Get(MetadataUsername))

	if hostname == "" && username == "" {
		return nil
	}

	return &domain.Actor{
		Hostname: hostname,
		Username: username,
	}
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}

	return values[0]
}

// toStatus maps domain errors to gRPC codes.
func toStatus(ctx context.Context, operation string, err error) error {
	var code codes.Code

	switch {
	case errors.Is(err, alarm.ErrSilenceCoolingDown):
		code = codes.FailedPrecondition
	case errors.Is(err, poller.ErrBusy):
		code = codes.Unavailable
	case errors.Is(err, poller.ErrStale), errors.Is(err, poller.ErrSuperseded):
		code = codes.Aborted
	case errors.Is(err, settings.ErrInvalidField), errors.Is(err, settings.ErrOutOfRange):
		code = codes.InvalidArgument
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal

		logger.ErrorKV(ctx, "Control request failed", "operation", operation, "error", err)
	}

	return status.Error(code, operation+": "+err.Error())
}

func reportStruct(ctx context.Context, report Report) (*structpb.Struct, error) {
	document, err := ToStruct(report)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to encode report", "error", err)

		return nil, status.Error(codes.Internal, "unable to encode report")
	}

	return document, nil
}

func settingsStruct(ctx context.Context, cfg settings.Config) (*structpb.Struct, error) {
	document, err := cfg.Struct()
	if err != nil {
		logger.ErrorKV(ctx, "Failed to encode settings", "error", err)

		return nil, status.Error(codes.Internal, "unable to encode settings")
	}

	return document, nil
}

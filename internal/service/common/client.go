//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	api "github.com/oshokin/solar-monitor/internal/api/grpc/console"
	"github.com/oshokin/solar-monitor/internal/config"
	domain "github.com/oshokin/solar-monitor/internal/domain/alarm"
	"github.com/oshokin/solar-monitor/internal/settings"
)

// Client wraps a connection to the console control API.
type Client struct {
	// conn is the underlying gRPC connection to the console.
	conn *grpc.ClientConn
	// actor is sent with every call for the audit trail.
	actor *domain.Actor

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// dialOptions are appended to the defaults by Dial.
	dialOptions []grpc.DialOption
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor sets the identity sent with every call.
func WithActor(actor *domain.Actor) Option {
	return func(c *Client) {
		c.actor = actor.Clone()
	}
}

// WithDialOptions adds gRPC dial options, e.g. a custom dialer in tests.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errActorRequired is returned when an actor is not provided but is required for the operation.
	errActorRequired = errors.New("actor must be provided")
)

// Dial connects to the console control API.
// The API is meant for loopback use and runs without TLS.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	dialOptions := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, client.dialOptions...)

	conn, err := grpc.NewClient(address, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial console: %w", err)
	}

	client.conn = conn

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Silence silences the alarm on behalf of the client's actor.
func (c *Client) Silence(ctx context.Context) (*api.Report, error) {
	if c.actor == nil {
		return nil, errActorRequired
	}

	return c.report(ctx, api.MethodSilence, &emptypb.Empty{}, "silence")
}

// SetMonitoring starts or stops monitoring.
func (c *Client) SetMonitoring(ctx context.Context, active bool) (*api.Report, error) {
	return c.report(ctx, api.MethodSetMonitoring, wrapperspb.Bool(active), "set monitoring")
}

// Refresh asks the console to retrieve plants now; force triggers a remote update first.
func (c *Client) Refresh(ctx context.Context, force bool) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if err := c.conn.Invoke(callCtx, api.MethodRefresh, wrapperspb.Bool(force), &emptypb.Empty{}); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	return nil
}

// Status returns the console report.
func (c *Client) Status(ctx context.Context) (*api.Report, error) {
	return c.report(ctx, api.MethodGetStatus, &emptypb.Empty{}, "get status")
}

// Settings returns the console's tunable settings.
func (c *Client) Settings(ctx context.Context) (map[string]any, error) {
	return c.settings(ctx, api.MethodGetSettings, &emptypb.Empty{}, "get settings")
}

// UpdateSettings sends a partial settings document and returns the result.
func (c *Client) UpdateSettings(ctx context.Context, fields map[string]any) (map[string]any, error) {
	document, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}

	return c.settings(ctx, api.MethodUpdateSettings, document, "update settings")
}

func (c *Client) report(ctx context.Context, method string, in any, operation string) (*api.Report, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var document structpb.Struct
	if err := c.conn.Invoke(callCtx, method, in, &document); err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	var report api.Report
	if err := api.FromStruct(&document, &report); err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	return &report, nil
}

func (c *Client) settings(ctx context.Context, method string, in any, operation string) (map[string]any, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var document structpb.Struct
	if err := c.conn.Invoke(callCtx, method, in, &document); err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	return document.AsMap(), nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
// The actor, if any, is attached as outgoing metadata.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.actor != nil {
		ctx = metadata.AppendToOutgoingContext(ctx,
			api.MetadataHostname, c.actor.Hostname,
			api.MetadataUsername, c.actor.Username,
		)
	}

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

// SettingKeys lists the keys accepted by UpdateSettings, in display order.
func SettingKeys() []string {
	return []string{
		settings.KeyPollInterval,
		settings.KeyAlarmOnZeroPower,
		settings.KeyBeepFrequency,
		settings.KeyBeepDuration,
		settings.KeyBeepInterval,
	}
}

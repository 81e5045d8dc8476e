package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oshokin/solar-monitor/internal/domain/plant"
	"github.com/oshokin/solar-monitor/internal/logger"
	"github.com/oshokin/solar-monitor/internal/version"
)

// Endpoint paths relative to the service URL.
const (
	PathPlants          = "/api/plants"
	PathUpdate          = "/api/update"
	PathMonitoringStart = "/api/monitoring/start"
	PathMonitoringStop  = "/api/monitoring/stop"
	PathStatus          = "/api/status"
)

// maxErrorBody limits how much of a failed response ends up in the error.
const maxErrorBody = 512

// ErrBadHTTPStatus is matched by every StatusError.
var ErrBadHTTPStatus = errors.New("unexpected HTTP status")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	// Path is the requested endpoint.
	Path string
	// StatusCode is the HTTP status of the answer.
	StatusCode int
	// Body is the start of the response body.
	Body string
}

// Error implements error.
func (e *StatusError) Error() string {
	text := fmt.Sprintf("%s: GET %s: %d", ErrBadHTTPStatus, e.Path, e.StatusCode)
	if e.Body != "" {
		text += " " + e.Body
	}

	return text
}

// Is makes errors.Is(err, ErrBadHTTPStatus) hold.
func (e *StatusError) Is(target error) bool {
	return target == ErrBadHTTPStatus
}

// HTTPStatus returns the status code.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// Result is the acknowledgement returned by command endpoints.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Statistics are the fleet counters computed by the service itself.
type Statistics struct {
	TotalPlants   int     `json:"total_plants"`
	OnlinePlants  int     `json:"online_plants"`
	OfflinePlants int     `json:"offline_plants"`
	WarningPlants int     `json:"warning_plants"`
	TotalPower    float64 `json:"total_power"`
}

// ServiceStatus describes the service's own background monitoring.
type ServiceStatus struct {
	Status         string     `json:"status"`
	UpdateInterval int        `json:"update_interval"`
	Statistics     Statistics `json:"statistics"`
}

// Client calls the plant service.
type Client struct {
	base *url.URL
	http *http.Client
}

// New creates a client for serviceURL. Every call is bounded by timeout.
func New(serviceURL string, timeout time.Duration) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(serviceURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse service URL: %w", err)
	}

	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("service URL %q must be absolute", serviceURL)
	}

	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
	}, nil
}

// FetchPlants returns the latest snapshot of every plant.
func (c *Client) FetchPlants(ctx context.Context) (plant.Snapshots, error) {
	var snapshots plant.Snapshots
	if err := c.get(ctx, PathPlants, &snapshots); err != nil {
		return nil, err
	}

	for id, snapshot := range snapshots {
		if snapshot.ID == "" {
			snapshot.ID = id
			snapshots[id] = snapshot
		}
	}

	return snapshots, nil
}

// TriggerUpdate asks the service to refresh every plant now.
func (c *Client) TriggerUpdate(ctx context.Context) error {
	return c.command(ctx, PathUpdate)
}

// StartMonitoring enables the service's background refresh.
func (c *Client) StartMonitoring(ctx context.Context) error {
	return c.command(ctx, PathMonitoringStart)
}

// StopMonitoring disables the service's background refresh.
func (c *Client) StopMonitoring(ctx context.Context) error {
	return c.command(ctx, PathMonitoringStop)
}

// Status returns the service's monitoring status and counters.
func (c *Client) Status(ctx context.Context) (*ServiceStatus, error) {
	var status ServiceStatus
	if err := c.get(ctx, PathStatus, &status); err != nil {
		return nil, err
	}

	return &status, nil
}

// command calls an acknowledgement endpoint. A "status":"error" answer means
// the service was already in the requested state, which is not a failure.
func (c *Client) command(ctx context.Context, path string) error {
	var result Result
	if err := c.get(ctx, path, &result); err != nil {
		return err
	}

	if result.Status != "" && result.Status != "success" {
		logger.DebugKV(ctx, "Plant service declined command", "path", path, "message", result.Message)
	}

	return nil
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	endpoint := c.base.JoinPath(path).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	response, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}

	defer func() {
		if closeErr := response.Body.Close(); closeErr != nil {
			logger.Debugf(ctx, "Failed to close response body: %v", closeErr)
		}
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))

		return &StatusError{
			Path:       path,
			StatusCode: response.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(response.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	return nil
}

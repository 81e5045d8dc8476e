package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/oshokin/solar-monitor/internal/domain/alarm"
	"github.com/oshokin/solar-monitor/internal/domain/plant"
)

var errUnknownLifecycle = errors.New("unknown lifecycle")

// Lifecycle is the monitoring lifecycle state.
type Lifecycle int

const (
	// LifecycleActive means the poll timer runs.
	LifecycleActive Lifecycle = iota
	// LifecycleStopped means monitoring was stopped on request.
	LifecycleStopped
)

// String returns the lifecycle label.
func (l Lifecycle) String() string {
	if l == LifecycleStopped {
		return "stopped"
	}

	return "active"
}

// MarshalText lets Lifecycle appear as a label in JSON documents.
func (l Lifecycle) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText parses a label produced by MarshalText.
func (l *Lifecycle) UnmarshalText(text []byte) error {
	switch string(text) {
	case "active":
		*l = LifecycleActive
	case "stopped":
		*l = LifecycleStopped
	default:
		return fmt.Errorf("%w: %q", errUnknownLifecycle, text)
	}

	return nil
}

// View is what the renderers receive after each retrieval.
type View struct {
	Snapshots      plant.Snapshots                `json:"plants"`
	Classification plant.Classification           `json:"classification"`
	Messages       map[string]plant.ErrorCategory `json:"messages"`
	Alarm          domain.Status                  `json:"alarm"`
	Lifecycle      Lifecycle                      `json:"lifecycle"`
	RetrievedAt    time.Time                      `json:"retrieved_at"`
}

// Renderer is the presentation callback contract.
// Both methods are called on the loop and must not block.
type Renderer interface {
	Render(ctx context.Context, view View)
	RetrievalFailed(ctx context.Context, err error)
}

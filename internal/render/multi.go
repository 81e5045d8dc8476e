package render

import (
	"context"

	"github.com/oshokin/solar-monitor/internal/service/poller"
)

// Multi forwards every call to each renderer in order.
type Multi []poller.Renderer

// Render implements poller.Renderer.
func (m Multi) Render(ctx context.Context, view poller.View) {
	for _, r := range m {
		r.Render(ctx, view)
	}
}

// RetrievalFailed implements poller.Renderer.
func (m Multi) RetrievalFailed(ctx context.Context, err error) {
	for _, r := range m {
		r.RetrievalFailed(ctx, err)
	}
}

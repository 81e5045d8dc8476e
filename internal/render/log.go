package render

import (
	"context"

	"github.com/oshokin/solar-monitor/internal/domain/plant"
	"github.com/oshokin/solar-monitor/internal/logger"
	"github.com/oshokin/solar-monitor/internal/service/poller"
)

// Log writes one structured line per view and one per plant with a problem.
type Log struct{}

// Render implements poller.Renderer.
func (Log) Render(ctx context.Context, view poller.View) {
	aggregate := view.Classification.Aggregate

	logger.InfoKV(ctx, "Fleet status",
		"online", aggregate.OnlineCount,
		"warning", aggregate.WarningCount,
		"offline", aggregate.OfflineCount,
		"total_power", aggregate.TotalPowerText(),
		"alarm", view.Alarm.State,
		"lifecycle", view.Lifecycle,
	)

	for _, id := range sortedIDs(view.Snapshots) {
		status := view.Classification.PerPlant[id]
		if status == plant.StatusOnline {
			continue
		}

		snapshot := view.Snapshots[id]

		logger.WarnKV(ctx, "Plant needs attention",
			"id", id,
			"name", snapshot.Name,
			"status", status,
			"problem", view.Messages[id],
			"last_update", snapshot.LastUpdate,
		)
	}
}

// RetrievalFailed implements poller.Renderer.
func (Log) RetrievalFailed(ctx context.Context, err error) {
	logger.ErrorKV(ctx, "Plant data unavailable, showing last known state",
		"category", plant.ClassifyRetrievalError(err),
		"error", err,
	)
}

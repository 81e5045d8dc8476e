package render

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	domain "github.com/oshokin/solar-monitor/internal/domain/alarm"
	"github.com/oshokin/solar-monitor/internal/domain/plant"
	"github.com/oshokin/solar-monitor/internal/logger"
	"github.com/oshokin/solar-monitor/internal/service/poller"
)

const (
	nameWidth  = 24
	powerWidth = 12
	stateWidth = 9
)

// Terminal prints a compact fleet table to a writer, colored when it is a TTY.
type Terminal struct {
	out io.Writer
	mu  sync.Mutex

	header  lipgloss.Style
	name    lipgloss.Style
	power   lipgloss.Style
	state   lipgloss.Style
	online  lipgloss.Style
	warning lipgloss.Style
	offline lipgloss.Style
	banner  lipgloss.Style
	muted   lipgloss.Style
}

// NewTerminal creates a renderer writing to out.
func NewTerminal(out io.Writer) *Terminal {
	r := lipgloss.NewRenderer(out)

	return &Terminal{
		out:     out,
		header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#575B7E")).Padding(0, 1),
		name:    r.NewStyle().Width(nameWidth).Padding(0, 1),
		power:   r.NewStyle().Width(powerWidth).Align(lipgloss.Right).Padding(0, 1),
		state:   r.NewStyle().Width(stateWidth).Padding(0, 1),
		online:  r.NewStyle().Foreground(lipgloss.Color("42")),
		warning: r.NewStyle().Foreground(lipgloss.Color("226")),
		offline: r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		banner:  r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		muted:   r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Render implements poller.Renderer.
func (t *Terminal) Render(ctx context.Context, view poller.View) {
	aggregate := view.Classification.Aggregate

	lines := []string{
		t.header.Render(fmt.Sprintf("%s  online %d  warning %d  offline %d  total %s  alarm %s  monitoring %s",
			view.RetrievedAt.Format("15:04:05"),
			aggregate.OnlineCount, aggregate.WarningCount, aggregate.OfflineCount,
			aggregate.TotalPowerText(), alarmLabel(view.Alarm.State), view.Lifecycle)),
	}

	for _, id := range sortedIDs(view.Snapshots) {
		snapshot := view.Snapshots[id]
		status := view.Classification.PerPlant[id]

		row := lipgloss.JoinHorizontal(lipgloss.Left,
			t.name.Render(displayName(snapshot)),
			t.power.Render(plant.FormatPower(snapshot.Power)),
			t.statusStyle(status).Render(t.state.Render(status.String())),
			t.muted.Render(rowNote(snapshot, view.Messages[id])),
		)

		lines = append(lines, row)
	}

	t.write(ctx, lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// RetrievalFailed implements poller.Renderer.
func (t *Terminal) RetrievalFailed(ctx context.Context, err error) {
	category := plant.ClassifyRetrievalError(err)

	t.write(ctx, t.banner.Render("Plant data unavailable ("+string(category)+"), showing last known state"))
}

func (t *Terminal) write(ctx context.Context, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := io.WriteString(t.out, text+"\n"); err != nil {
		logger.Debugf(ctx, "Failed to write to terminal: %v", err)
	}
}

func (t *Terminal) statusStyle(status plant.Status) lipgloss.Style {
	switch status {
	case plant.StatusOnline:
		return t.online
	case plant.StatusWarning:
		return t.warning
	default:
		return t.offline
	}
}

func alarmLabel(state domain.State) string {
	return strings.ReplaceAll(state.String(), "_", " ")
}

func displayName(snapshot plant.Snapshot) string {
	if snapshot.Name != "" {
		return snapshot.Name
	}

	return snapshot.ID
}

func rowNote(snapshot plant.Snapshot, category plant.ErrorCategory) string {
	if category != plant.ErrorNone {
		return string(category)
	}

	return snapshot.LastUpdate
}

func sortedIDs(snapshots plant.Snapshots) []string {
	ids := make([]string, 0, len(snapshots))
	for id := range snapshots {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

package alarm

import (
	"context"
	"errors"
	"time"

	domain "github.com/oshokin/solar-monitor/internal/domain/alarm"
	"github.com/oshokin/solar-monitor/internal/logger"
	"github.com/oshokin/solar-monitor/internal/schedule"
)

// SilenceCooldown is how long Silence stays unavailable after use.
const SilenceCooldown = 30 * time.Second

// ErrSilenceCoolingDown is returned by Silence during the cooldown.
var ErrSilenceCoolingDown = errors.New("silence is cooling down")

// Signaler is the tone output driven by the controller.
type Signaler interface {
	StartRepeating(variant domain.Variant)
	Stop()
}

// Scheduler runs one-shot callbacks on the caller's loop.
type Scheduler interface {
	After(delay time.Duration, fn func()) schedule.Token
	Cancel(token schedule.Token) bool
}

// Controller is the alarm state machine. It talks to the signaler only on
// transitions, so repeated identical conditions never restart a tone.
// Its methods must be called from the scheduler's loop.
type Controller struct {
	signaler  Signaler
	scheduler Scheduler
	now       func() time.Time

	status   domain.Status
	cooldown schedule.Token

	// offline holds the plants reported offline by the last evaluation.
	offline map[string]struct{}
	// silencedOffline is the offline set at the last manual silence,
	// nil when the alarm is not manually silenced.
	silencedOffline map[string]struct{}
}

// NewController creates a silent controller.
func NewController(signaler Signaler, scheduler Scheduler) *Controller {
	return &Controller{
		signaler:  signaler,
		scheduler: scheduler,
		now:       time.Now,
		status: domain.Status{
			State: domain.StateSilent,
			Since: time.Now(),
		},
	}
}

// Evaluate feeds the latest condition and the IDs of the offline plants.
// Nothing happens if the condition matches the previous one, except that a
// manually silenced alarm is raised again when a plant goes offline that was
// not offline at silence time. Otherwise the state moves to the
// highest-priority alarm the condition calls for.
// It reports the resulting state and whether it changed.
func (c *Controller) Evaluate(ctx context.Context, condition domain.Condition, offline []string) (domain.State, bool) {
	current := make(map[string]struct{}, len(offline))
	for _, id := range offline {
		current[id] = struct{}{}
	}

	c.offline = current

	if condition == c.status.Condition {
		if !c.newlyOffline() {
			return c.status.State, false
		}

		logger.InfoKV(ctx, "New plant offline while silenced, raising alarm again", "offline", len(current))
	}

	c.status.Condition = condition
	c.silencedOffline = nil
	desired := condition.Desired()

	if variant, sounding := desired.Variant(); sounding {
		c.signaler.StartRepeating(variant)
	} else {
		c.signaler.Stop()
	}

	previous := c.status.State
	c.setState(desired)

	logger.InfoKV(ctx, "Alarm condition changed",
		"offline_present", condition.OfflinePresent,
		"zero_power_present", condition.ZeroPowerPresent,
		"from", previous,
		"to", desired,
	)

	return desired, previous != desired
}

// Silence stops the tone at once on behalf of actor. The condition is kept,
// so the alarm only comes back when the condition changes again.
func (c *Controller) Silence(ctx context.Context, actor *domain.Actor) error {
	if c.cooldown != 0 {
		return ErrSilenceCoolingDown
	}

	c.signaler.Stop()
	c.setState(domain.StateSilent)

	c.status.SilencedBy = actor.Clone()
	c.status.SilencedAt = c.now()
	c.silencedOffline = c.offline

	if c.silencedOffline == nil {
		c.silencedOffline = map[string]struct{}{}
	}

	c.cooldown = c.scheduler.After(SilenceCooldown, func() {
		c.cooldown = 0

		logger.Debug(ctx, "Silence available again")
	})

	logger.InfoKV(ctx, "Alarm silenced", "actor", actor)

	return nil
}

// ForceSilent silences without cooldown and forgets the last condition,
// so a persisting problem raises the alarm again on the next evaluation.
func (c *Controller) ForceSilent(ctx context.Context) {
	c.signaler.Stop()
	c.setState(domain.StateSilent)
	c.status.Condition = domain.Condition{}
	c.offline = nil
	c.silencedOffline = nil

	logger.Debug(ctx, "Alarm forced silent")
}

// Status returns a copy of the alarm record.
func (c *Controller) Status() domain.Status {
	return *c.status.Clone()
}

// SilenceAvailable reports whether Silence would be accepted now.
func (c *Controller) SilenceAvailable() bool {
	return c.cooldown == 0
}

// Close stops the tone and the cooldown timer.
func (c *Controller) Close() {
	c.signaler.Stop()

	if c.cooldown != 0 {
		c.scheduler.Cancel(c.cooldown)
		c.cooldown = 0
	}
}

// newlyOffline reports whether the alarm is manually silenced and a plant
// outside the silenced offline set is now offline.
func (c *Controller) newlyOffline() bool {
	if c.silencedOffline == nil {
		return false
	}

	for id := range c.offline {
		if _, known := c.silencedOffline[id]; !known {
			return true
		}
	}

	return false
}

func (c *Controller) setState(state domain.State) {
	if c.status.State == state {
		return
	}

	c.status.State = state
	c.status.Since = c.now()
}

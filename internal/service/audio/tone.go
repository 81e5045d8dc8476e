package audio

import (
	"time"

	domain "github.com/oshokin/solar-monitor/internal/domain/alarm"
	"github.com/oshokin/solar-monitor/internal/settings"
)

const (
	// DefaultAmplitude is the fixed loudness of every tone, between 0 and 1.
	DefaultAmplitude = 0.3
	// ElevatedFactor raises the pitch of the elevated variant.
	ElevatedFactor = 1.5
)

// Tone is one burst of sound.
type Tone struct {
	// Frequency is the pitch in Hz.
	Frequency float64
	// Duration is how long the burst lasts.
	Duration time.Duration
	// Amplitude is the loudness, between 0 and 1.
	Amplitude float64
}

// Shape is the tunable part of the tone sequence.
type Shape struct {
	Frequency float64
	Duration  time.Duration
	Interval  time.Duration
}

// ShapeFrom extracts the tone shape from the console settings.
func ShapeFrom(cfg settings.Config) Shape {
	return Shape{
		Frequency: cfg.BeepFrequency,
		Duration:  cfg.BeepDuration,
		Interval:  cfg.BeepInterval,
	}
}

// Tone returns the burst for the variant.
func (s Shape) Tone(variant domain.Variant) Tone {
	frequency := s.Frequency
	if variant == domain.VariantElevated {
		frequency *= ElevatedFactor
	}

	return Tone{
		Frequency: frequency,
		Duration:  s.Duration,
		Amplitude: DefaultAmplitude,
	}
}

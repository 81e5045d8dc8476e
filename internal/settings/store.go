package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/solar-monitor/internal/logger"
	"github.com/oshokin/solar-monitor/internal/repository/kv"
)

// ErrPersist is returned when the config cannot be written to the durable store.
var ErrPersist = errors.New("persist settings")

// Store keeps the in-memory config and mirrors it to a key-value store.
// It is not safe for concurrent use; the console confines it to its loop.
type Store struct {
	kv      kv.Store
	key     string
	current Config
}

// NewStore creates a store backed by kvStore under key, primed with defaults.
func NewStore(kvStore kv.Store, key string) *Store {
	return &Store{
		kv:      kvStore,
		key:     key,
		current: Defaults(),
	}
}

// Load reads the persisted blob and merges it over defaults.
// Problems are logged and never returned; the result is always usable.
func (s *Store) Load(ctx context.Context) Config {
	s.current = s.read(ctx)

	return s.current
}

func (s *Store) read(ctx context.Context) Config {
	defaults := Defaults()

	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			logger.DebugKV(ctx, "No persisted settings, using defaults", "key", s.key)
		} else {
			logger.WarnKV(ctx, "Failed to read settings, using defaults", "key", s.key, "error", err)
		}

		return defaults
	}

	document, err := Decode(data)
	if err != nil {
		logger.WarnKV(ctx, "Persisted settings are corrupt, using defaults", "key", s.key, "error", err)

		return defaults
	}

	merged, errs := Merge(defaults, document)
	for _, fieldErr := range errs {
		logger.WarnKV(ctx, "Ignoring persisted setting", "key", s.key, "error", fieldErr)
	}

	return merged
}

// Save writes the full config under the store key.
func (s *Store) Save(ctx context.Context, cfg Config) error {
	data, err := Encode(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	if err := s.kv.Put(ctx, s.key, data); err != nil {
		logger.ErrorKV(ctx, "Failed to persist settings", "key", s.key, "error", err)

		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	return nil
}

// Update validates cfg, makes it current and persists it.
// A validation error leaves the store untouched; a persistence error
// keeps cfg in memory and is returned wrapped in ErrPersist.
func (s *Store) Update(ctx context.Context, cfg Config) (Config, error) {
	if err := cfg.Validate(); err != nil {
		return s.current, err
	}

	s.current = cfg

	if err := s.Save(ctx, cfg); err != nil {
		return s.current, err
	}

	logger.InfoKV(ctx, "Settings updated",
		"poll_interval", cfg.PollInterval,
		"alarm_on_zero_power", cfg.AlarmOnZeroPower,
		"beep_frequency_hz", cfg.BeepFrequency,
		"beep_duration", cfg.BeepDuration,
		"beep_interval", cfg.BeepInterval,
	)

	return s.current, nil
}

// Current returns the in-memory config.
func (s *Store) Current() Config {
	return s.current
}

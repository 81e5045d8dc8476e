package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/solar-monitor/internal/repository/kv"
)

var errDiskFull = errors.New("disk full")

// memoryStore is an in-memory kv.Store with an optional write failure.
type memoryStore struct {
	values   map[string][]byte
	putError error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: make(map[string][]byte)}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := m.values[key]
	if !ok {
		return nil, kv.ErrNotFound
	}

	return value, nil
}

func (m *memoryStore) Put(_ context.Context, key string, value []byte) error {
	if m.putError != nil {
		return m.putError
	}

	m.values[key] = value

	return nil
}

func (m *memoryStore) Close() error { return nil }

const testKey = "solarMonitorConfig"

func loadFrom(t *testing.T, blob string) Config {
	t.Helper()

	backend := newMemoryStore()
	backend.values[testKey] = []byte(blob)

	return NewStore(backend, testKey).Load(context.Background())
}

// TestLoad_MissingKeyYieldsDefaults checks the fresh-install path.
func TestLoad_MissingKeyYieldsDefaults(t *testing.T) {
	t.Parallel()

	store := NewStore(newMemoryStore(), testKey)
	require.Equal(t, Defaults(), store.Load(context.Background()))
	require.Equal(t, Defaults(), store.Current())
}

// TestLoad_FallsBackOnBadBlobs covers corrupt and non-object payloads.
func TestLoad_FallsBackOnBadBlobs(t *testing.T) {
	t.Parallel()

	for name, blob := range map[string]string{
		"corrupt":    `{"pollIntervalMs": 6000`,
		"array":      `[1, 2, 3]`,
		"number":     `42`,
		"empty":      ``,
		"plain text": `not json`,
	} {
		require.Equal(t, Defaults(), loadFrom(t, blob), name)
	}
}

// TestLoad_MergesPerKey verifies that each valid key overrides its default and the rest are kept.
func TestLoad_MergesPerKey(t *testing.T) {
	t.Parallel()

	got := loadFrom(t, `{
		"pollIntervalMs": 60000,
		"alarmOnZeroPower": "yes",
		"beepFrequencyHz": 5000,
		"beepIntervalMs": 2000,
		"theme": "dark"
	}`)

	want := Defaults()
	want.PollInterval = time.Minute
	want.BeepInterval = 2 * time.Second

	require.Equal(t, want, got)
}

// TestLoad_PartialBlob keeps defaults for absent keys.
func TestLoad_PartialBlob(t *testing.T) {
	t.Parallel()

	got := loadFrom(t, `{"alarmOnZeroPower": false}`)

	want := Defaults()
	want.AlarmOnZeroPower = false

	require.Equal(t, want, got)
}

// TestSaveThenLoad round-trips a non-default config through the backend.
func TestSaveThenLoad(t *testing.T) {
	t.Parallel()

	backend := newMemoryStore()
	store := NewStore(backend, testKey)

	cfg := Config{
		PollInterval:     45 * time.Second,
		AlarmOnZeroPower: false,
		BeepFrequency:    1200,
		BeepDuration:     150 * time.Millisecond,
		BeepInterval:     5 * time.Second,
	}

	updated, err := store.Update(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, cfg, updated)

	require.Equal(t, cfg, NewStore(backend, testKey).Load(context.Background()))
}

// TestUpdate_ValidationLeavesStateUnchanged checks that out-of-range values are rejected.
func TestUpdate_ValidationLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	backend := newMemoryStore()
	store := NewStore(backend, testKey)

	bad := Defaults()
	bad.PollInterval = 2 * time.Second
	bad.BeepFrequency = 100

	got, err := store.Update(context.Background(), bad)
	require.ErrorIs(t, err, ErrOutOfRange)
	require.Equal(t, Defaults(), got)
	require.Equal(t, Defaults(), store.Current())
	require.Empty(t, backend.values)
}

// TestUpdate_PersistFailureKeepsMemory verifies the new config survives a failed write.
func TestUpdate_PersistFailureKeepsMemory(t *testing.T) {
	t.Parallel()

	backend := newMemoryStore()
	backend.putError = errDiskFull
	store := NewStore(backend, testKey)

	cfg := Defaults()
	cfg.BeepFrequency = 1000

	got, err := store.Update(context.Background(), cfg)
	require.ErrorIs(t, err, ErrPersist)
	require.ErrorIs(t, err, errDiskFull)
	require.Equal(t, cfg, got)
	require.Equal(t, cfg, store.Current())
}

// TestMergeStrict rejects unknown, mistyped and out-of-range fields as a whole.
func TestMergeStrict(t *testing.T) {
	t.Parallel()

	base := Defaults()

	ok, err := structpb.NewStruct(map[string]any{
		KeyBeepFrequency: 1500.0,
		KeyBeepDuration:  300.0,
	})
	require.NoError(t, err)

	merged, err := MergeStrict(base, ok)
	require.NoError(t, err)
	require.InDelta(t, 1500.0, merged.BeepFrequency, 0)
	require.Equal(t, 300*time.Millisecond, merged.BeepDuration)
	require.Equal(t, base.PollInterval, merged.PollInterval)

	for name, fields := range map[string]map[string]any{
		"unknown":      {"volume": 1.0},
		"wrong type":   {KeyAlarmOnZeroPower: 1.0},
		"out of range": {KeyBeepInterval: 500.0},
	} {
		document, err := structpb.NewStruct(fields)
		require.NoError(t, err, name)

		got, err := MergeStrict(base, document)
		require.ErrorIs(t, err, ErrInvalidField, name)
		require.Equal(t, base, got, name)
	}
}

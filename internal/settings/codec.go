package settings

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrInvalidField is returned for a persisted or submitted field of the wrong type.
var ErrInvalidField = errors.New("invalid settings field")

// errUnknownField is returned by strict merges for keys the config does not have.
var errUnknownField = errors.New("unknown settings field")

// fieldApplier validates one value and stores it in the config.
type fieldApplier func(cfg *Config, value *structpb.Value) error

// appliers maps every persisted key to its decoder.
//
//nolint:gochecknoglobals // Read-only field table.
var appliers = map[string]fieldApplier{
	KeyPollInterval: durationField(KeyPollInterval, MinPollInterval, MaxPollInterval,
		func(c *Config) *time.Duration { return &c.PollInterval }),
	KeyAlarmOnZeroPower: func(cfg *Config, value *structpb.Value) error {
		kind, ok := value.GetKind().(*structpb.Value_BoolValue)
		if !ok {
			return fmt.Errorf("%s: expected boolean: %w", KeyAlarmOnZeroPower, ErrInvalidField)
		}

		cfg.AlarmOnZeroPower = kind.BoolValue

		return nil
	},
	KeyBeepFrequency: func(cfg *Config, value *structpb.Value) error {
		kind, ok := value.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return fmt.Errorf("%s: expected number: %w", KeyBeepFrequency, ErrInvalidField)
		}

		if kind.NumberValue < MinBeepFrequency || kind.NumberValue > MaxBeepFrequency {
			return rangeError(KeyBeepFrequency, kind.NumberValue, MinBeepFrequency, MaxBeepFrequency)
		}

		cfg.BeepFrequency = kind.NumberValue

		return nil
	},
	KeyBeepDuration: durationField(KeyBeepDuration, MinBeepDuration, MaxBeepDuration,
		func(c *Config) *time.Duration { return &c.BeepDuration }),
	KeyBeepInterval: durationField(KeyBeepInterval, MinBeepInterval, MaxBeepInterval,
		func(c *Config) *time.Duration { return &c.BeepInterval }),
}

// durationField decodes a millisecond number into a bounded duration.
func durationField(key string, minimum, maximum time.Duration, target func(*Config) *time.Duration) fieldApplier {
	return func(cfg *Config, value *structpb.Value) error {
		kind, ok := value.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return fmt.Errorf("%s: expected number of milliseconds: %w", key, ErrInvalidField)
		}

		duration := time.Duration(kind.NumberValue * float64(time.Millisecond))
		if duration < minimum || duration > maximum {
			return rangeError(key, duration, minimum, maximum)
		}

		*target(cfg) = duration

		return nil
	}
}

// Decode parses a JSON object. Anything but an object is an error.
func Decode(data []byte) (*structpb.Struct, error) {
	var document structpb.Struct
	if err := protojson.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}

	return &document, nil
}

// Encode serializes the full config as a JSON object.
func Encode(cfg Config) ([]byte, error) {
	document, err := cfg.Struct()
	if err != nil {
		return nil, err
	}

	options := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := options.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}

	return data, nil
}

// Struct converts the config to a protobuf Struct.
func (c Config) Struct() (*structpb.Struct, error) {
	document, err := structpb.NewStruct(c.Fields())
	if err != nil {
		return nil, fmt.Errorf("convert settings: %w", err)
	}

	return document, nil
}

// Merge overlays every well-typed, in-range field of document on base.
// Fields that fail are skipped and returned as errors; unknown keys are ignored.
func Merge(base Config, document *structpb.Struct) (Config, []error) {
	var (
		merged = base
		errs   []error
	)

	for _, key := range sortedKeys(document) {
		apply, known := appliers[key]
		if !known {
			continue
		}

		candidate := merged
		if err := apply(&candidate, document.GetFields()[key]); err != nil {
			errs = append(errs, err)

			continue
		}

		merged = candidate
	}

	return merged, errs
}

// MergeStrict overlays document on base and fails on any unknown, mistyped or out-of-range field.
func MergeStrict(base Config, document *structpb.Struct) (Config, error) {
	var errs []error

	for _, key := range sortedKeys(document) {
		if _, known := appliers[key]; !known {
			errs = append(errs, fmt.Errorf("%s: %w", key, errUnknownField))
		}
	}

	merged, mergeErrs := Merge(base, document)
	errs = append(errs, mergeErrs...)

	if len(errs) > 0 {
		return base, fmt.Errorf("%w: %w", ErrInvalidField, errors.Join(errs...))
	}

	return merged, nil
}

// sortedKeys returns the document keys in a stable order for deterministic errors.
func sortedKeys(document *structpb.Struct) []string {
	keys := make([]string, 0, len(document.GetFields()))
	for key := range document.GetFields() {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}

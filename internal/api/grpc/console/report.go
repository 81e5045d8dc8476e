package console

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/solar-monitor/internal/domain/alarm"
	"github.com/oshokin/solar-monitor/internal/service/poller"
)

// Report is the console status returned by the control API.
type Report struct {
	// Session identifies the running console instance.
	Session string `json:"session"`
	// Alarm is the alarm record.
	Alarm domain.Status `json:"alarm"`
	// SilenceAvailable is false during the silence cooldown.
	SilenceAvailable bool `json:"silence_available"`
	// Lifecycle is the monitoring state.
	Lifecycle poller.Lifecycle `json:"lifecycle"`
	// InFlight is true while a retrieval is outstanding.
	InFlight bool `json:"in_flight"`
	// PollIntervalMs is the current poll period.
	PollIntervalMs int64 `json:"poll_interval_ms"`
	// AudioAvailable is false when no tone can be produced.
	AudioAvailable bool `json:"audio_available"`
	// View is the latest rendered view, absent before the first retrieval.
	View *poller.View `json:"view,omitempty"`
}

// ToStruct converts any JSON-serializable value into a protobuf Struct.
func ToStruct(value any) (*structpb.Struct, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	var document structpb.Struct
	if err := protojson.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("convert document: %w", err)
	}

	return &document, nil
}

// FromStruct decodes a protobuf Struct into target through its JSON form.
func FromStruct(document *structpb.Struct, target any) error {
	data, err := protojson.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}

	return nil
}

package plant

// Snapshot is the latest known status of a single plant as sent by the
// plant service. It is replaced wholesale on every poll.
type Snapshot struct {
	// ID is the stable plant identifier.
	ID string `json:"id" yaml:"id"`
	// Name is the display name.
	Name string `json:"name" yaml:"name"`
	// Type names the upstream connector (e.g. FusionSolar, AuroraVision).
	Type string `json:"type" yaml:"type"`
	// Power is the current output in kW; zero or negative while idle.
	Power float64 `json:"power" yaml:"power"`
	// IsOnline reports whether the upstream connector reached the plant.
	IsOnline bool `json:"is_online" yaml:"is_online"`
	// LastUpdate is the service-side timestamp of the reading, kept verbatim.
	LastUpdate string `json:"last_update" yaml:"last_update"`
	// ErrorMessage carries the raw upstream diagnostic, if any.
	ErrorMessage string `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// Snapshots maps plant IDs to their snapshot. Iteration order is irrelevant.
type Snapshots map[string]Snapshot

// Clone returns a shallow copy of the map; Snapshot values are immutable.
func (s Snapshots) Clone() Snapshots {
	if s == nil {
		return nil
	}

	cloned := make(Snapshots, len(s))
	for id, snapshot := range s {
		cloned[id] = snapshot
	}

	return cloned
}

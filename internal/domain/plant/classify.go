package plant

import (
	"slices"

	"github.com/shopspring/decimal"
)

// powerDecimals is the precision used when displaying power values.
const powerDecimals = 2

// Aggregate holds fleet-wide counters derived from one snapshot set.
type Aggregate struct {
	// OnlineCount is the number of plants classified StatusOnline.
	OnlineCount int `json:"online"`
	// WarningCount is the number of plants classified StatusWarning.
	WarningCount int `json:"warning"`
	// OfflineCount is the number of plants classified StatusOffline.
	OfflineCount int `json:"offline"`
	// TotalPower sums Power over online plants only, in kW.
	TotalPower float64 `json:"total_power"`
}

// TotalPowerText renders TotalPower with two decimals, e.g. "12.50 kW".
func (a Aggregate) TotalPowerText() string {
	return FormatPower(a.TotalPower)
}

// Classification is the result of classifying one snapshot set.
type Classification struct {
	// PerPlant maps plant IDs to their status.
	PerPlant map[string]Status `json:"per_plant"`
	// Aggregate holds the fleet counters.
	Aggregate Aggregate `json:"aggregate"`
	// OfflinePresent is true if any plant is offline.
	OfflinePresent bool `json:"offline_present"`
	// ZeroPowerPresent is true if the zero-power alarm is enabled and any plant is in warning.
	ZeroPowerPresent bool `json:"zero_power_present"`
}

// Classify derives per-plant statuses and fleet counters.
// It has no side effects and does not retain the input map.
func Classify(snapshots Snapshots, alarmOnZeroPower bool) Classification {
	result := Classification{
		PerPlant: make(map[string]Status, len(snapshots)),
	}

	total := decimal.Zero

	for id, snapshot := range snapshots {
		status := StatusOf(snapshot)
		result.PerPlant[id] = status

		switch status {
		case StatusOnline:
			result.Aggregate.OnlineCount++
			total = total.Add(decimal.NewFromFloat(snapshot.Power))
		case StatusWarning:
			result.Aggregate.WarningCount++

			if alarmOnZeroPower {
				result.ZeroPowerPresent = true
			}
		case StatusOffline:
			result.Aggregate.OfflineCount++
			result.OfflinePresent = true
		}
	}

	result.Aggregate.TotalPower = total.InexactFloat64()

	return result
}

// OfflineIDs returns the sorted IDs of the offline plants.
func (c Classification) OfflineIDs() []string {
	var ids []string

	for id, status := range c.PerPlant {
		if status == StatusOffline {
			ids = append(ids, id)
		}
	}

	slices.Sort(ids)

	return ids
}

// FormatPower renders a power value in kW with two decimals.
func FormatPower(kw float64) string {
	return decimal.NewFromFloat(kw).StringFixed(powerDecimals) + " kW"
}

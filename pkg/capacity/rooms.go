package capacity

import (
	"math"

	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

// wholeTolerance absorbs float noise on exact multiples (2.0000000000001
// rooms is two rooms, not three).
const wholeTolerance = 1e-9

// ComputeRoomRequirement sizes rooms per channel from the yearly minutes of
// demand. Any nonzero demand needs at least one room.
func ComputeRoomRequirement(visits float64, occupancy models.OccupancyRate, durationMin float64, totalMinutesPerYear float64) (models.RoomRequirement, error) {
	if visits < 0 || math.IsNaN(visits) || math.IsInf(visits, 0) {
		return models.RoomRequirement{}, models.InputValidationError{Field: "visits", Value: visits, Reason: "must be a non-negative number"}
	}
	if durationMin < 0 || math.IsNaN(durationMin) || math.IsInf(durationMin, 0) {
		return models.RoomRequirement{}, models.InputValidationError{Field: "duration_minutes", Value: durationMin, Reason: "must be a non-negative number"}
	}
	if err := ValidateOccupancy(occupancy); err != nil {
		return models.RoomRequirement{}, err
	}
	if totalMinutesPerYear <= 0 || math.IsNaN(totalMinutesPerYear) {
		return models.RoomRequirement{}, models.ConfigurationError{
			Scope: occupancy.Key, Field: "total_minutes_per_year",
			Reason: "no working minutes per year", Err: models.ErrZeroAvailableMinutes,
		}
	}
	if math.IsInf(totalMinutesPerYear, 0) {
		return models.RoomRequirement{}, models.InputValidationError{Field: "total_minutes_per_year", Value: totalMinutesPerYear, Reason: "must be finite"}
	}
	if visits*durationMin/totalMinutesPerYear >= math.MaxInt64 {
		return models.RoomRequirement{}, models.InputValidationError{Field: "visits", Value: visits, Reason: "demand exceeds the representable room count"}
	}

	split := SplitChannels(visits, occupancy)
	virtualRooms := roomsFor(split.Virtual*durationMin, totalMinutesPerYear)
	inPersonRooms := roomsFor(split.InPerson*durationMin, totalMinutesPerYear)
	return models.RoomRequirement{
		Visits:          visits,
		VirtualVisits:   split.Virtual,
		InPersonVisits:  split.InPerson,
		DurationMinutes: durationMin,
		VirtualRooms:    virtualRooms,
		InPersonRooms:   inPersonRooms,
		TotalRooms:      virtualRooms + inPersonRooms,
	}, nil
}

func roomsFor(demandMinutes, availableMinutes float64) int64 {
	if demandMinutes <= 0 {
		return 0
	}
	ratio := demandMinutes / availableMinutes
	if whole := math.Round(ratio); whole > 0 && math.Abs(ratio-whole) < wholeTolerance {
		return int64(whole)
	}
	return int64(math.Ceil(ratio))
}

// RollUpBySetting sums per-service rooms into one row per care setting, in
// catalogue order of the settings.
func RollUpBySetting(rooms []models.RoomRequirement) []models.CareSettingRooms {
	totals := make(map[models.CareSetting]*models.CareSettingRooms)
	for _, r := range rooms {
		agg, ok := totals[r.CareSetting]
		if !ok {
			agg = &models.CareSettingRooms{CareSetting: r.CareSetting}
			totals[r.CareSetting] = agg
		}
		agg.VirtualRooms += r.VirtualRooms
		agg.InPersonRooms += r.InPersonRooms
		agg.TotalRooms += r.TotalRooms
	}
	out := make([]models.CareSettingRooms, 0, len(totals))
	for _, setting := range models.CareSettings {
		if agg, ok := totals[setting]; ok {
			out = append(out, *agg)
		}
	}
	return out
}

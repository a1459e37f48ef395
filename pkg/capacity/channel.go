package capacity

import (
	"math"

	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

// splitTolerance is how far virtual+inperson may drift from 1 before the
// rates are rescaled.
const splitTolerance = 1e-6

type ChannelSplit struct {
	Virtual  float64 `json:"virtual"`
	InPerson float64 `json:"inperson"`
}

// SplitChannels multiplies total visits by each channel rate independently.
func SplitChannels(visits float64, occupancy models.OccupancyRate) ChannelSplit {
	return ChannelSplit{
		Virtual:  visits * occupancy.VirtualRate,
		InPerson: visits * occupancy.InPersonRate,
	}
}

func ValidateOccupancy(occupancy models.OccupancyRate) error {
	if occupancy.VirtualRate < 0 || occupancy.VirtualRate > 1 || math.IsNaN(occupancy.VirtualRate) {
		return models.InputValidationError{Field: "virtual_rate", Value: occupancy.VirtualRate, Reason: "must be within [0,1]"}
	}
	if occupancy.InPersonRate < 0 || occupancy.InPersonRate > 1 || math.IsNaN(occupancy.InPersonRate) {
		return models.InputValidationError{Field: "inperson_rate", Value: occupancy.InPersonRate, Reason: "must be within [0,1]"}
	}
	return nil
}

// NormalizeOccupancy treats the two rates as a split of the same visits. When
// they do not sum to 1 they are rescaled proportionally and adjusted is true.
// A zero pair sends every visit in person.
func NormalizeOccupancy(occupancy models.OccupancyRate) (models.OccupancyRate, bool) {
	sum := occupancy.VirtualRate + occupancy.InPersonRate
	if math.Abs(sum-1) <= splitTolerance {
		return occupancy, false
	}
	if sum <= 0 {
		return models.OccupancyRate{Key: occupancy.Key, VirtualRate: 0, InPersonRate: 1}, true
	}
	return models.OccupancyRate{
		Key:          occupancy.Key,
		VirtualRate:  occupancy.VirtualRate / sum,
		InPersonRate: occupancy.InPersonRate / sum,
	}, true
}

// OccupancyLookup resolves the occupancy row for a service, preferring a
// service-specific row over its care setting's row.
type OccupancyLookup struct {
	rows map[string]models.OccupancyRate
}

func NewOccupancyLookup(rows []models.OccupancyRate) *OccupancyLookup {
	l := &OccupancyLookup{rows: make(map[string]models.OccupancyRate, len(rows))}
	for _, r := range rows {
		l.rows[r.Key] = r
	}
	return l
}

func (l *OccupancyLookup) For(service models.Service, setting models.CareSetting) (models.OccupancyRate, bool) {
	if row, ok := l.rows[string(service)]; ok {
		return row, true
	}
	row, ok := l.rows[string(setting)]
	return row, ok
}

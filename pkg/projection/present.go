package projection

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

// Whole rounds a computed quantity half away from zero for display. Results
// keep full precision; rounding only happens here.
func Whole(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(0)
}

// ServiceRow is one display line of a projection.
type ServiceRow struct {
	Service           models.Service     `json:"service"`
	CareSetting       models.CareSetting `json:"care_setting"`
	MaleVisits        decimal.Decimal    `json:"male_visits"`
	FemaleVisits      decimal.Decimal    `json:"female_visits"`
	TotalVisits       decimal.Decimal    `json:"total_visits"`
	VirtualVisits     decimal.Decimal    `json:"virtual_visits"`
	InPersonVisits    decimal.Decimal    `json:"inperson_visits"`
	AverageDuration   decimal.Decimal    `json:"average_duration_minutes"`
	TotalSlotsPerYear int64              `json:"total_slots_per_year"`
	SlotsPerDay       int64              `json:"slots_per_day"`
	VirtualRooms      int64              `json:"virtual_rooms"`
	InPersonRooms     int64              `json:"inperson_rooms"`
	TotalRooms        int64              `json:"total_rooms"`
	Flagged           bool               `json:"flagged"`
}

type Summary struct {
	Selection   models.Selection `json:"selection"`
	Population  decimal.Decimal  `json:"population"`
	TotalVisits decimal.Decimal  `json:"total_visits"`
	TotalRooms  int64            `json:"total_rooms"`
	Rows        []ServiceRow     `json:"rows"`
	Warnings    int              `json:"warnings"`
	Errors      int              `json:"errors"`
}

// Summarize joins visits, slots and rooms per service into display rows.
// Services whose sizing was skipped keep their visits and show no capacity.
func Summarize(p models.Projection) Summary {
	slots := make(map[models.Service]models.SlotCalculation, len(p.Slots))
	for _, s := range p.Slots {
		slots[s.Service] = s
	}
	rooms := make(map[models.Service]models.RoomRequirement, len(p.Rooms))
	for _, r := range p.Rooms {
		rooms[r.Service] = r
	}

	summary := Summary{
		Selection:  p.Selection,
		Population: Whole(p.Population),
		Rows:       make([]ServiceRow, 0, len(p.Visits)),
	}
	total := 0.0
	for _, v := range p.Visits {
		total += v.TotalVisits
		slot := slots[v.Service]
		room := rooms[v.Service]
		summary.TotalRooms += room.TotalRooms
		summary.Rows = append(summary.Rows, ServiceRow{
			Service:           v.Service,
			CareSetting:       v.CareSetting,
			MaleVisits:        Whole(v.MaleVisits),
			FemaleVisits:      Whole(v.FemaleVisits),
			TotalVisits:       Whole(v.TotalVisits),
			VirtualVisits:     Whole(room.VirtualVisits),
			InPersonVisits:    Whole(room.InPersonVisits),
			AverageDuration:   decimal.NewFromFloat(slot.AverageVisitDuration).Round(1),
			TotalSlotsPerYear: slot.TotalSlotsPerYear,
			SlotsPerDay:       slot.SlotsPerDay,
			VirtualRooms:      room.VirtualRooms,
			InPersonRooms:     room.InPersonRooms,
			TotalRooms:        room.TotalRooms,
			Flagged:           v.Flagged,
		})
	}
	summary.TotalVisits = Whole(total)
	for _, issue := range p.Issues {
		if issue.Severity == models.SeverityError {
			summary.Errors++
		} else {
			summary.Warnings++
		}
	}
	return summary
}

var csvHeader = []string{
	"service", "care_setting", "male_visits", "female_visits", "total_visits",
	"virtual_visits", "inperson_visits", "average_duration_minutes",
	"total_slots_per_year", "slots_per_day",
	"virtual_rooms", "inperson_rooms", "total_rooms", "flagged",
}

// WriteCSV writes one rounded row per service.
func WriteCSV(w io.Writer, p models.Projection) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, row := range Summarize(p).Rows {
		record := []string{
			string(row.Service),
			string(row.CareSetting),
			row.MaleVisits.String(),
			row.FemaleVisits.String(),
			row.TotalVisits.String(),
			row.VirtualVisits.String(),
			row.InPersonVisits.String(),
			row.AverageDuration.StringFixed(1),
			strconv.FormatInt(row.TotalSlotsPerYear, 10),
			strconv.FormatInt(row.SlotsPerDay, 10),
			strconv.FormatInt(row.VirtualRooms, 10),
			strconv.FormatInt(row.InPersonRooms, 10),
			strconv.FormatInt(row.TotalRooms, 10),
			strconv.FormatBool(row.Flagged),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

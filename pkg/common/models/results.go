package models

import (
	"time"

	"github.com/google/uuid"
)

// ServiceVisitResult is replaced wholesale on every recomputation.
type ServiceVisitResult struct {
	Service      Service     `json:"service"`
	CareSetting  CareSetting `json:"care_setting"`
	Year         int         `json:"year"`
	RegionID     string      `json:"region_id"`
	Scenario     Scenario    `json:"scenario"`
	MaleVisits   float64     `json:"male_visits"`
	FemaleVisits float64     `json:"female_visits"`
	TotalVisits  float64     `json:"total_visits"`
	Flagged      bool        `json:"flagged"`
}

type SlotCalculation struct {
	Service               Service     `json:"service,omitempty"`
	CareSetting           CareSetting `json:"care_setting,omitempty"`
	TotalMinutesPerYear   float64     `json:"total_minutes_per_year"`
	AvailableDaysPerYear  float64     `json:"available_days_per_year"`
	AverageVisitDuration  float64     `json:"average_visit_duration"`
	TotalSlotsPerYear     int64       `json:"total_slots_per_year"`
	NewVisitsPerYear      int64       `json:"new_visits_per_year"`
	FollowUpVisitsPerYear int64       `json:"follow_up_visits_per_year"`
	SlotsPerDay           int64       `json:"slots_per_day"`
}

type RoomRequirement struct {
	Service         Service     `json:"service,omitempty"`
	CareSetting     CareSetting `json:"care_setting,omitempty"`
	Visits          float64     `json:"visits"`
	VirtualVisits   float64     `json:"virtual_visits"`
	InPersonVisits  float64     `json:"inperson_visits"`
	DurationMinutes float64     `json:"duration_minutes"`
	TotalRooms      int64       `json:"total_rooms"`
	VirtualRooms    int64       `json:"virtual_rooms"`
	InPersonRooms   int64       `json:"inperson_rooms"`
}

type CareSettingRooms struct {
	CareSetting   CareSetting `json:"care_setting"`
	TotalRooms    int64       `json:"total_rooms"`
	VirtualRooms  int64       `json:"virtual_rooms"`
	InPersonRooms int64       `json:"inperson_rooms"`
}

// Projection is the complete derived output for one selection.
type Projection struct {
	Selection      Selection            `json:"selection"`
	TableVersion   int64                `json:"table_version"`
	Population     float64              `json:"population"`
	Visits         []ServiceVisitResult `json:"visits"`
	Slots          []SlotCalculation    `json:"slots"`
	Rooms          []RoomRequirement    `json:"rooms"`
	RoomsBySetting []CareSettingRooms   `json:"rooms_by_setting"`
	Issues         []Issue              `json:"issues"`
	ComputedAt     time.Time            `json:"computed_at"`
}

// Plan is an immutable point-in-time export of a projection.
type Plan struct {
	ID           uuid.UUID            `json:"id"`
	Name         string               `json:"name"`
	RegionID     string               `json:"region_id"`
	Year         int                  `json:"year"`
	Scenario     Scenario             `json:"scenario"`
	Population   float64              `json:"population"`
	Date         time.Time            `json:"date"`
	CapacityData []RoomRequirement    `json:"capacity_data"`
	ActivityData []ServiceVisitResult `json:"activity_data"`
	CreatedBy    string               `json:"created_by"`
	ArchiveURL   string               `json:"archive_url,omitempty"`
}

type CreatePlanRequest struct {
	Name     string `json:"name"`
	RegionID string `json:"region_id"`
	Year     int    `json:"year"`
	Scenario string `json:"scenario"`
}

package models

import (
	"fmt"
	"strings"
	"time"
)

type PopulationType string

const (
	Residents          PopulationType = "Residents"
	Staff              PopulationType = "Staff"
	Tourists           PopulationType = "Tourists/Visit"
	SameDayVisitors    PopulationType = "Same day Visitor"
	ConstructionWorker PopulationType = "Construction Worker"
)

var PopulationTypes = []PopulationType{Residents, Staff, Tourists, SameDayVisitors, ConstructionWorker}

// Known reports whether p is one of the canonical population types.
func (p PopulationType) Known() bool {
	for _, t := range PopulationTypes {
		if p == t {
			return true
		}
	}
	return false
}

// WorkingAgeOnly reports whether the type only exists in the working-age bands.
func (p PopulationType) WorkingAgeOnly() bool {
	return p == Staff || p == ConstructionWorker
}

type AgeGroup string

const (
	Age0to4   AgeGroup = "0-4"
	Age5to19  AgeGroup = "5-19"
	Age20to29 AgeGroup = "20-29"
	Age30to44 AgeGroup = "30-44"
	Age45to64 AgeGroup = "45-64"
	Age65Plus AgeGroup = "65+"
)

var AgeGroups = []AgeGroup{Age0to4, Age5to19, Age20to29, Age30to44, Age45to64, Age65Plus}

var WorkingAgeGroups = []AgeGroup{Age20to29, Age30to44, Age45to64}

func (a AgeGroup) Working() bool {
	for _, w := range WorkingAgeGroups {
		if a == w {
			return true
		}
	}
	return false
}

type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"

	// AnyGender selects both genders.
	AnyGender Gender = ""
)

type Scenario string

const (
	ScenarioModel    Scenario = "model"
	ScenarioEnhanced Scenario = "enhanced"
	ScenarioHighRisk Scenario = "high_risk"
)

var Scenarios = []Scenario{ScenarioModel, ScenarioEnhanced, ScenarioHighRisk}

type CareSetting string

const (
	PrimaryCare        CareSetting = "Primary Care"
	SpecialistCare     CareSetting = "Specialist Outpatient Care"
	EmergencyCare      CareSetting = "Emergency Care"
	DaySurgery         CareSetting = "Day Surgery"
	DiagnosticsSetting CareSetting = "Diagnostics & Therapeutics"
)

var CareSettings = []CareSetting{PrimaryCare, SpecialistCare, EmergencyCare, DaySurgery, DiagnosticsSetting}

type Service string

const (
	GeneralPractice      Service = "General Practice"
	Paediatrics          Service = "Paediatrics"
	WomensHealth         Service = "Women's Health"
	MentalHealth         Service = "Mental Health"
	Dental               Service = "Dental"
	Cardiology           Service = "Cardiology"
	Orthopaedics         Service = "Orthopaedics"
	Dermatology          Service = "Dermatology"
	Ophthalmology        Service = "Ophthalmology"
	EmergencyMedicine    Service = "Emergency Medicine"
	DaySurgeryProcedures Service = "Day Surgery Procedures"
	Radiology            Service = "Radiology"
	Laboratory           Service = "Laboratory"
)

// ServiceCatalog lists every known service in display order with its care setting.
var ServiceCatalog = []struct {
	Service     Service
	CareSetting CareSetting
}{
	{GeneralPractice, PrimaryCare},
	{Paediatrics, PrimaryCare},
	{WomensHealth, PrimaryCare},
	{MentalHealth, PrimaryCare},
	{Dental, PrimaryCare},
	{Cardiology, SpecialistCare},
	{Orthopaedics, SpecialistCare},
	{Dermatology, SpecialistCare},
	{Ophthalmology, SpecialistCare},
	{EmergencyMedicine, EmergencyCare},
	{DaySurgeryProcedures, DaySurgery},
	{Radiology, DiagnosticsSetting},
	{Laboratory, DiagnosticsSetting},
}

func Services() []Service {
	out := make([]Service, 0, len(ServiceCatalog))
	for _, entry := range ServiceCatalog {
		out = append(out, entry.Service)
	}
	return out
}

func (s Service) CareSetting() (CareSetting, bool) {
	for _, entry := range ServiceCatalog {
		if entry.Service == s {
			return entry.CareSetting, true
		}
	}
	return "", false
}

// AllRegions selects every region when passed as a region id.
const AllRegions = "all"

func ParsePopulationType(raw string) (PopulationType, error) {
	for _, p := range PopulationTypes {
		if strings.EqualFold(strings.TrimSpace(raw), string(p)) {
			return p, nil
		}
	}
	return "", InputValidationError{Field: "population_type", Value: raw, Reason: "unknown population type"}
}

func ParseAgeGroup(raw string) (AgeGroup, error) {
	for _, a := range AgeGroups {
		if strings.TrimSpace(raw) == string(a) {
			return a, nil
		}
	}
	return "", InputValidationError{Field: "age_group", Value: raw, Reason: "unknown age group"}
}

func ParseGender(raw string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all", "any":
		return AnyGender, nil
	case "male", "m":
		return Male, nil
	case "female", "f":
		return Female, nil
	}
	return "", InputValidationError{Field: "gender", Value: raw, Reason: "unknown gender"}
}

func ParseScenario(raw string) (Scenario, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ScenarioModel, nil
	}
	for _, s := range Scenarios {
		if trimmed == string(s) {
			return s, nil
		}
	}
	return "", InputValidationError{Field: "scenario", Value: raw, Reason: "unknown assumption scenario"}
}

func ParseCareSetting(raw string) (CareSetting, error) {
	for _, c := range CareSettings {
		if strings.EqualFold(strings.TrimSpace(raw), string(c)) {
			return c, nil
		}
	}
	return "", InputValidationError{Field: "care_setting", Value: raw, Reason: "unknown care setting"}
}

func ParseService(raw string) (Service, error) {
	for _, entry := range ServiceCatalog {
		if strings.EqualFold(strings.TrimSpace(raw), string(entry.Service)) {
			return entry.Service, nil
		}
	}
	return "", InputValidationError{Field: "service", Value: raw, Reason: "unknown service"}
}

// Selection is the full parameter tuple of one projection pass.
type Selection struct {
	RegionID string   `json:"region_id"`
	Year     int      `json:"year"`
	Scenario Scenario `json:"scenario"`
}

func (s Selection) Key() string {
	return fmt.Sprintf("%s:%d:%s", s.RegionID, s.Year, s.Scenario)
}

// Event is the envelope published on the planning topic.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // plan_saved, rate_overrides_saved, overrides_reset, tables_updated
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

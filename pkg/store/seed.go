package store

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

// LoadSeed reads baseline tables from a YAML file. An empty path yields the
// built-in defaults.
func LoadSeed(path string) (models.TableSet, error) {
	if path == "" {
		return DefaultTables(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return models.TableSet{}, fmt.Errorf("read seed tables: %w", err)
	}
	var tables models.TableSet
	if err := yaml.Unmarshal(content, &tables); err != nil {
		return models.TableSet{}, fmt.Errorf("parse seed tables: %w", err)
	}
	if len(tables.VisitRates) == 0 && len(tables.Populations) == 0 {
		return models.TableSet{}, fmt.Errorf("seed tables empty")
	}
	return tables, nil
}

// per-1,000 yearly visit rates by service for ages 0-4..65+, male then female.
var defaultRates = map[models.Service][2][6]float64{
	models.GeneralPractice:      {{3200, 1500, 1800, 2200, 3000, 5200}, {3100, 1700, 3100, 3400, 3800, 5600}},
	models.Paediatrics:          {{900, 320, 0, 0, 0, 0}, {860, 300, 0, 0, 0, 0}},
	models.WomensHealth:         {{0, 0, 0, 0, 0, 0}, {0, 120, 620, 540, 260, 110}},
	models.MentalHealth:         {{10, 140, 210, 230, 190, 150}, {10, 180, 300, 310, 240, 170}},
	models.Dental:               {{250, 820, 610, 640, 700, 760}, {240, 850, 680, 700, 760, 790}},
	models.Cardiology:           {{8, 10, 25, 70, 240, 520}, {6, 8, 20, 50, 170, 430}},
	models.Orthopaedics:         {{40, 160, 170, 180, 240, 330}, {35, 130, 130, 160, 260, 380}},
	models.Dermatology:          {{60, 90, 130, 120, 140, 210}, {60, 110, 170, 160, 160, 200}},
	models.Ophthalmology:        {{50, 70, 60, 70, 160, 480}, {45, 75, 65, 80, 180, 520}},
	models.EmergencyMedicine:    {{520, 330, 380, 320, 300, 540}, {460, 280, 340, 290, 270, 560}},
	models.DaySurgeryProcedures: {{12, 25, 40, 60, 110, 210}, {10, 22, 55, 80, 120, 200}},
	models.Radiology:            {{120, 150, 210, 280, 460, 820}, {110, 160, 280, 360, 520, 860}},
	models.Laboratory:           {{300, 280, 520, 760, 1200, 2100}, {290, 320, 780, 980, 1400, 2200}},
}

var scenarioFactors = map[models.Scenario]float64{
	models.ScenarioModel:    1.0,
	models.ScenarioEnhanced: 0.85,
	models.ScenarioHighRisk: 1.2,
}

// DefaultTables is a complete baseline for one sample region covering every
// catalogue service, age group and scenario.
func DefaultTables() models.TableSet {
	tables := models.TableSet{
		Populations: []models.PopulationRecord{
			defaultPopulation("central-residents", models.Residents, 142000, 0.021),
			defaultPopulation("central-staff", models.Staff, 38000, 0.035),
			defaultPopulation("central-tourists", models.Tourists, 21000, 0.05),
			defaultPopulation("central-same-day", models.SameDayVisitors, 9000, 0.04),
			defaultPopulation("central-construction", models.ConstructionWorker, 16000, -0.03),
		},
		AgeDistributions: []models.AgeDistribution{
			{Shares: map[models.AgeGroup]float64{
				models.Age0to4: 0.07, models.Age5to19: 0.19, models.Age20to29: 0.16,
				models.Age30to44: 0.24, models.Age45to64: 0.22, models.Age65Plus: 0.12,
			}},
			{PopulationType: models.Tourists, Shares: map[models.AgeGroup]float64{
				models.Age0to4: 0.04, models.Age5to19: 0.14, models.Age20to29: 0.24,
				models.Age30to44: 0.28, models.Age45to64: 0.21, models.Age65Plus: 0.09,
			}},
		},
		WorkingAgeDistributions: []models.WorkingAgeDistribution{
			{PopulationType: models.Staff, Bands: map[models.AgeGroup]models.AgeShare{
				models.Age20to29: {Share: 0.34, MaleRatio: 0.52},
				models.Age30to44: {Share: 0.44, MaleRatio: 0.55},
				models.Age45to64: {Share: 0.22, MaleRatio: 0.58},
			}},
			{PopulationType: models.ConstructionWorker, Bands: map[models.AgeGroup]models.AgeShare{
				models.Age20to29: {Share: 0.41, MaleRatio: 0.96},
				models.Age30to44: {Share: 0.42, MaleRatio: 0.95},
				models.Age45to64: {Share: 0.17, MaleRatio: 0.93},
			}},
		},
		Occupancy: []models.OccupancyRate{
			{Key: string(models.PrimaryCare), VirtualRate: 0.3, InPersonRate: 0.7},
			{Key: string(models.SpecialistCare), VirtualRate: 0.2, InPersonRate: 0.8},
			{Key: string(models.EmergencyCare), VirtualRate: 0, InPersonRate: 1},
			{Key: string(models.DaySurgery), VirtualRate: 0, InPersonRate: 1},
			{Key: string(models.DiagnosticsSetting), VirtualRate: 0, InPersonRate: 1},
			{Key: string(models.MentalHealth), VirtualRate: 0.45, InPersonRate: 0.55},
			{Key: string(models.Dermatology), VirtualRate: 0.35, InPersonRate: 0.65},
		},
		VisitTimes: []models.VisitTimeAssumption{
			{CareSetting: models.PrimaryCare, NewVisitDuration: 20, FollowUpVisitDuration: 15, PercentNewVisits: 30},
			{CareSetting: models.PrimaryCare, Service: models.MentalHealth, NewVisitDuration: 60, FollowUpVisitDuration: 45, PercentNewVisits: 20},
			{CareSetting: models.PrimaryCare, Service: models.Dental, NewVisitDuration: 45, FollowUpVisitDuration: 30, PercentNewVisits: 25},
			{CareSetting: models.SpecialistCare, NewVisitDuration: 30, FollowUpVisitDuration: 20, PercentNewVisits: 10},
			{CareSetting: models.EmergencyCare, NewVisitDuration: 90, FollowUpVisitDuration: 30, PercentNewVisits: 5},
			{CareSetting: models.DaySurgery, NewVisitDuration: 120, FollowUpVisitDuration: 20, PercentNewVisits: 15},
			{CareSetting: models.DiagnosticsSetting, NewVisitDuration: 25, FollowUpVisitDuration: 15, PercentNewVisits: 20},
		},
		Operational: []models.OperationalSetting{
			{CareSetting: models.PrimaryCare, WorkingDaysPerWeek: 6, WorkingWeeksPerYear: 50, WorkingHoursPerDay: 12},
			{CareSetting: models.SpecialistCare, WorkingDaysPerWeek: 5, WorkingWeeksPerYear: 48, WorkingHoursPerDay: 10},
			{CareSetting: models.EmergencyCare, WorkingDaysPerWeek: 7, WorkingWeeksPerYear: 52, WorkingHoursPerDay: 24},
			{CareSetting: models.DaySurgery, WorkingDaysPerWeek: 5, WorkingWeeksPerYear: 48, WorkingHoursPerDay: 10},
			{CareSetting: models.DiagnosticsSetting, WorkingDaysPerWeek: 6, WorkingWeeksPerYear: 50, WorkingHoursPerDay: 12},
		},
	}

	for year := baseYear; year <= lastYear; year++ {
		for i, age := range models.AgeGroups {
			ratio := 0.505 - 0.002*float64(i)
			if age == models.Age65Plus {
				ratio = 0.46 + 0.001*float64(year-baseYear)
			}
			tables.GenderBaselines = append(tables.GenderBaselines, models.GenderBaseline{
				AgeGroup: age, Year: year, MaleRatio: roundTo(ratio, 4),
			})
		}
	}

	for _, entry := range models.ServiceCatalog {
		rates := defaultRates[entry.Service]
		for _, scenario := range models.Scenarios {
			factor := scenarioFactors[scenario]
			for i, age := range models.AgeGroups {
				tables.VisitRates = append(tables.VisitRates, models.VisitRate{
					Service:    entry.Service,
					AgeGroup:   age,
					Scenario:   scenario,
					MaleRate:   roundTo(rates[0][i]*factor, 2),
					FemaleRate: roundTo(rates[1][i]*factor, 2),
				})
			}
		}
	}
	return tables
}

const (
	baseYear = 2025
	lastYear = 2040
)

func defaultPopulation(id string, t models.PopulationType, start, growth float64) models.PopulationRecord {
	values := make(map[int]float64, lastYear-baseYear+1)
	for year := baseYear; year <= lastYear; year++ {
		values[year] = math.Round(start * math.Pow(1+growth, float64(year-baseYear)))
	}
	return models.PopulationRecord{
		ID:             id,
		RegionID:       "central",
		PopulationType: t,
		DefaultFactor:  1,
		Divisor:        1,
		YearValues:     values,
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

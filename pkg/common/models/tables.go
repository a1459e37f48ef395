package models

import "math"

// PopulationRecord is one planner-entered population row for a region and type.
type PopulationRecord struct {
	ID             string          `json:"id" yaml:"id"`
	RegionID       string          `json:"region_id" yaml:"region_id"`
	PopulationType PopulationType  `json:"population_type" yaml:"population_type"`
	DefaultFactor  float64         `json:"default_factor" yaml:"default_factor"`
	Divisor        float64         `json:"divisor" yaml:"divisor"`
	YearValues     map[int]float64 `json:"year_values" yaml:"year_values"`
}

// CalculatedValue returns raw*factor/divisor for the year. A year without a
// value resolves to 0.
func (r PopulationRecord) CalculatedValue(year int) (float64, error) {
	if r.Divisor <= 0 || math.IsNaN(r.Divisor) {
		return 0, ConfigurationError{
			Scope:  "population_record:" + r.ID,
			Field:  "divisor",
			Reason: "divisor must be greater than zero",
			Err:    ErrZeroDivisor,
		}
	}
	raw, ok := r.YearValues[year]
	if !ok {
		return 0, nil
	}
	return raw * r.DefaultFactor / r.Divisor, nil
}

// AgeDistribution is the generic age-group share table. An empty
// PopulationType marks the default table used by every non-working type
// without its own entry.
type AgeDistribution struct {
	PopulationType PopulationType       `json:"population_type" yaml:"population_type"`
	Shares         map[AgeGroup]float64 `json:"shares" yaml:"shares"`
}

type AgeShare struct {
	Share     float64 `json:"share" yaml:"share"`
	MaleRatio float64 `json:"male_ratio" yaml:"male_ratio"`
}

// WorkingAgeDistribution covers the working-age bands of Staff and
// Construction Worker populations only.
type WorkingAgeDistribution struct {
	PopulationType PopulationType        `json:"population_type" yaml:"population_type"`
	Bands          map[AgeGroup]AgeShare `json:"bands" yaml:"bands"`
}

// GenderBaseline is one point of the year-dependent male ratio curve.
type GenderBaseline struct {
	AgeGroup  AgeGroup `json:"age_group" yaml:"age_group"`
	Year      int      `json:"year" yaml:"year"`
	MaleRatio float64  `json:"male_ratio" yaml:"male_ratio"`
}

// VisitRate holds visits per 1,000 population per year.
type VisitRate struct {
	Service    Service  `json:"service" yaml:"service"`
	AgeGroup   AgeGroup `json:"age_group" yaml:"age_group"`
	Scenario   Scenario `json:"scenario" yaml:"scenario"`
	MaleRate   float64  `json:"male_rate" yaml:"male_rate"`
	FemaleRate float64  `json:"female_rate" yaml:"female_rate"`
}

type RateKey struct {
	Service  Service
	AgeGroup AgeGroup
	Scenario Scenario
}

func (r VisitRate) Key() RateKey {
	return RateKey{Service: r.Service, AgeGroup: r.AgeGroup, Scenario: r.Scenario}
}

// OccupancyRate is keyed by a service name or a care setting name.
type OccupancyRate struct {
	Key          string  `json:"key" yaml:"key"`
	VirtualRate  float64 `json:"virtual_rate" yaml:"virtual_rate"`
	InPersonRate float64 `json:"inperson_rate" yaml:"inperson_rate"`
}

type VisitTimeAssumption struct {
	CareSetting           CareSetting `json:"care_setting" yaml:"care_setting"`
	Service               Service     `json:"service" yaml:"service"`
	NewVisitDuration      float64     `json:"new_visit_duration_min" yaml:"new_visit_duration_min"`
	FollowUpVisitDuration float64     `json:"follow_up_visit_duration_min" yaml:"follow_up_visit_duration_min"`
	PercentNewVisits      float64     `json:"percent_new_visits" yaml:"percent_new_visits"`
}

type OperationalSetting struct {
	CareSetting         CareSetting `json:"care_setting" yaml:"care_setting"`
	WorkingDaysPerWeek  float64     `json:"working_days_per_week" yaml:"working_days_per_week"`
	WorkingWeeksPerYear float64     `json:"working_weeks_per_year" yaml:"working_weeks_per_year"`
	WorkingHoursPerDay  float64     `json:"working_hours_per_day" yaml:"working_hours_per_day"`
}

func (o OperationalSetting) AvailableDaysPerYear() float64 {
	return o.WorkingDaysPerWeek * o.WorkingWeeksPerYear
}

func (o OperationalSetting) TotalMinutesPerYear() float64 {
	return o.AvailableDaysPerYear() * o.WorkingHoursPerDay * 60
}

// TableSet is every input table of one projection pass. A TableSet handed to
// the engine is never mutated; writers build a new one.
type TableSet struct {
	Version                 int64                    `json:"version" yaml:"-"`
	Populations             []PopulationRecord       `json:"populations" yaml:"populations"`
	AgeDistributions        []AgeDistribution        `json:"age_distributions" yaml:"age_distributions"`
	WorkingAgeDistributions []WorkingAgeDistribution `json:"working_age_distributions" yaml:"working_age_distributions"`
	GenderBaselines         []GenderBaseline         `json:"gender_baselines" yaml:"gender_baselines"`
	VisitRates              []VisitRate              `json:"visit_rates" yaml:"visit_rates"`
	Occupancy               []OccupancyRate          `json:"occupancy" yaml:"occupancy"`
	VisitTimes              []VisitTimeAssumption    `json:"visit_times" yaml:"visit_times"`
	Operational             []OperationalSetting     `json:"operational" yaml:"operational"`
}

// Clone returns a deep copy so overrides can be layered without touching the
// source slices.
func (t TableSet) Clone() TableSet {
	out := TableSet{Version: t.Version}
	out.Populations = make([]PopulationRecord, len(t.Populations))
	for i, p := range t.Populations {
		values := make(map[int]float64, len(p.YearValues))
		for y, v := range p.YearValues {
			values[y] = v
		}
		p.YearValues = values
		out.Populations[i] = p
	}
	out.AgeDistributions = make([]AgeDistribution, len(t.AgeDistributions))
	for i, d := range t.AgeDistributions {
		shares := make(map[AgeGroup]float64, len(d.Shares))
		for a, v := range d.Shares {
			shares[a] = v
		}
		d.Shares = shares
		out.AgeDistributions[i] = d
	}
	out.WorkingAgeDistributions = make([]WorkingAgeDistribution, len(t.WorkingAgeDistributions))
	for i, d := range t.WorkingAgeDistributions {
		bands := make(map[AgeGroup]AgeShare, len(d.Bands))
		for a, v := range d.Bands {
			bands[a] = v
		}
		d.Bands = bands
		out.WorkingAgeDistributions[i] = d
	}
	out.GenderBaselines = append([]GenderBaseline(nil), t.GenderBaselines...)
	out.VisitRates = append([]VisitRate(nil), t.VisitRates...)
	out.Occupancy = append([]OccupancyRate(nil), t.Occupancy...)
	out.VisitTimes = append([]VisitTimeAssumption(nil), t.VisitTimes...)
	out.Operational = append([]OperationalSetting(nil), t.Operational...)
	return out
}

// GenderOverride replaces the baseline male ratio for one (age group, year).
type GenderOverride struct {
	AgeGroup  AgeGroup `json:"age_group"`
	Year      int      `json:"year"`
	MaleRatio float64  `json:"male_ratio"`
}

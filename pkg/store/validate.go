package store

import (
	"fmt"
	"math"

	"github.com/synaptica-ai/capacity-planner/pkg/capacity"
	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
	"github.com/synaptica-ai/capacity-planner/pkg/scenario"
)

const shareTolerance = 1e-6

// Validate checks a table set before it becomes a baseline. Values that can
// never be valid are returned as an error; gaps the engine tolerates come
// back as warnings.
func Validate(tables models.TableSet) ([]models.Issue, error) {
	for _, p := range tables.Populations {
		if !p.PopulationType.Known() {
			return nil, models.InputValidationError{Field: "population_type", Value: p.PopulationType, Reason: "population record " + p.ID + " has an unknown population type"}
		}
		if p.DefaultFactor < 0 || math.IsNaN(p.DefaultFactor) {
			return nil, models.InputValidationError{Field: "default_factor", Value: p.DefaultFactor, Reason: "population record " + p.ID + " must not be negative"}
		}
		for year, v := range p.YearValues {
			if v < 0 || math.IsNaN(v) {
				return nil, models.InputValidationError{Field: "year_values", Value: v, Reason: fmt.Sprintf("population record %s year %d must not be negative", p.ID, year)}
			}
		}
	}
	for _, d := range tables.AgeDistributions {
		if err := validateAgeDistribution(d); err != nil {
			return nil, err
		}
	}
	for _, d := range tables.WorkingAgeDistributions {
		if err := validateWorkingAgeDistribution(d); err != nil {
			return nil, err
		}
	}
	for _, r := range tables.VisitRates {
		if err := scenario.ValidateRate(r); err != nil {
			return nil, err
		}
	}
	for _, b := range tables.GenderBaselines {
		if err := scenario.ValidateGenderOverride(models.GenderOverride{AgeGroup: b.AgeGroup, Year: b.Year, MaleRatio: b.MaleRatio}); err != nil {
			return nil, err
		}
	}
	for _, o := range tables.Occupancy {
		if err := capacity.ValidateOccupancy(o); err != nil {
			return nil, err
		}
	}
	for _, a := range tables.VisitTimes {
		if err := capacity.ValidateAssumption(a); err != nil {
			return nil, err
		}
		if a.PercentNewVisits < 0 || a.PercentNewVisits > 100 || math.IsNaN(a.PercentNewVisits) {
			return nil, models.InputValidationError{Field: "percent_new_visits", Value: a.PercentNewVisits, Reason: "must be within [0,100]"}
		}
	}
	for _, op := range tables.Operational {
		if err := capacity.ValidateOperational(op); err != nil {
			return nil, err
		}
	}

	var issues []models.Issue
	for _, p := range tables.Populations {
		if p.Divisor <= 0 {
			issues = append(issues, models.Issue{
				Severity: models.SeverityWarning, Kind: models.KindConfiguration,
				Detail: fmt.Sprintf("population record %s has divisor %v; it will be skipped", p.ID, p.Divisor),
			})
		}
	}
	for _, d := range tables.AgeDistributions {
		sum := 0.0
		for _, s := range d.Shares {
			sum += s
		}
		if math.Abs(sum-1) > shareTolerance {
			issues = append(issues, models.CompletenessWarning("", "",
				fmt.Sprintf("age shares for %q sum to %.4f", distributionName(d.PopulationType), sum)))
		}
	}
	for _, d := range tables.WorkingAgeDistributions {
		sum := 0.0
		for _, b := range d.Bands {
			sum += b.Share
		}
		if math.Abs(sum-1) > shareTolerance {
			issues = append(issues, models.CompletenessWarning("", "",
				fmt.Sprintf("working-age shares for %q sum to %.4f", d.PopulationType, sum)))
		}
	}

	rates := make(map[models.RateKey]bool, len(tables.VisitRates))
	for _, r := range tables.VisitRates {
		rates[r.Key()] = true
	}
	durations := capacity.NewDurationResolver(tables.VisitTimes, 0)
	occupancy := capacity.NewOccupancyLookup(tables.Occupancy)
	for _, entry := range models.ServiceCatalog {
		for _, sc := range models.Scenarios {
			missing := 0
			for _, age := range models.AgeGroups {
				if !rates[models.RateKey{Service: entry.Service, AgeGroup: age, Scenario: sc}] {
					missing++
				}
			}
			if missing > 0 {
				issues = append(issues, models.CompletenessWarning(entry.Service, "",
					fmt.Sprintf("%d of %d age groups have no %s visit rate", missing, len(models.AgeGroups), sc)))
			}
		}
		if _, ok := durations.Assumption(entry.Service, entry.CareSetting); !ok {
			issues = append(issues, models.CompletenessWarning(entry.Service, "", "no visit-time assumption"))
		}
		if row, ok := occupancy.For(entry.Service, entry.CareSetting); !ok {
			issues = append(issues, models.CompletenessWarning(entry.Service, "", "no occupancy rates"))
		} else if _, adjusted := capacity.NormalizeOccupancy(row); adjusted {
			issues = append(issues, models.CompletenessWarning(entry.Service, "",
				fmt.Sprintf("occupancy rates %v/%v do not sum to 1", row.VirtualRate, row.InPersonRate)))
		}
	}
	return issues, nil
}

func validateAgeDistribution(d models.AgeDistribution) error {
	if d.PopulationType != "" && !d.PopulationType.Known() {
		return models.InputValidationError{Field: "population_type", Value: d.PopulationType, Reason: "age distribution has an unknown population type"}
	}
	for age, share := range d.Shares {
		if _, err := models.ParseAgeGroup(string(age)); err != nil {
			return err
		}
		if share < 0 || math.IsNaN(share) || math.IsInf(share, 0) {
			return models.InputValidationError{Field: "share", Value: share, Reason: fmt.Sprintf("age share %s for %q must not be negative", age, distributionName(d.PopulationType))}
		}
	}
	return nil
}

func validateWorkingAgeDistribution(d models.WorkingAgeDistribution) error {
	if !d.PopulationType.Known() {
		return models.InputValidationError{Field: "population_type", Value: d.PopulationType, Reason: "working-age distribution has an unknown population type"}
	}
	for age, band := range d.Bands {
		if _, err := models.ParseAgeGroup(string(age)); err != nil {
			return err
		}
		if band.Share < 0 || math.IsNaN(band.Share) || math.IsInf(band.Share, 0) {
			return models.InputValidationError{Field: "share", Value: band.Share, Reason: fmt.Sprintf("working-age share %s for %q must not be negative", age, d.PopulationType)}
		}
		if band.MaleRatio < 0 || band.MaleRatio > 1 || math.IsNaN(band.MaleRatio) {
			return models.InputValidationError{Field: "male_ratio", Value: band.MaleRatio, Reason: "must be within [0,1]"}
		}
	}
	return nil
}

func distributionName(t models.PopulationType) string {
	if t == "" {
		return "default"
	}
	return string(t)
}

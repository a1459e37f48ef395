package demand

import (
	"fmt"

	"github.com/synaptica-ai/capacity-planner/pkg/common/logger"
	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
	"github.com/synaptica-ai/capacity-planner/pkg/population"
)

// ratePer is the population base of every visit rate.
const ratePer = 1000.0

// Batch is the outcome of one demand pass: a result per catalogue service and
// the issues found while computing them.
type Batch struct {
	Results []models.ServiceVisitResult
	Issues  []models.Issue
}

type Calculator struct {
	resolver *population.Resolver
	rates    map[models.RateKey]models.VisitRate
}

func NewCalculator(tables models.TableSet) *Calculator {
	rates := make(map[models.RateKey]models.VisitRate, len(tables.VisitRates))
	for _, r := range tables.VisitRates {
		rates[r.Key()] = r
	}
	return &Calculator{resolver: population.NewResolver(tables), rates: rates}
}

func (c *Calculator) Resolver() *population.Resolver {
	return c.resolver
}

// ComputeServiceVisits applies the scenario's visit rates to every resolved
// population cell. Only boundary validation fails the call; data gaps and
// bad population records are returned as issues.
func (c *Calculator) ComputeServiceVisits(regionID string, year int, scenario models.Scenario) (Batch, error) {
	if err := ValidateSelection(regionID, year, scenario); err != nil {
		return Batch{}, err
	}

	var batch Batch
	cells, errs := c.resolver.Cells(regionID, year)
	flagAll := len(errs) > 0
	for _, err := range errs {
		batch.Issues = append(batch.Issues, models.IssueFromError("", err))
	}
	for _, t := range c.resolver.MissingDistributions(regionID, year) {
		flagAll = true
		batch.Issues = append(batch.Issues, models.Issue{
			Severity: models.SeverityWarning,
			Kind:     models.KindDataCompleteness,
			Detail:   fmt.Sprintf("no age distribution for population type %q; its population is excluded", t),
		})
	}

	byAge := make(map[models.AgeGroup][]population.Cell, len(models.AgeGroups))
	for _, cell := range cells {
		byAge[cell.AgeGroup] = append(byAge[cell.AgeGroup], cell)
	}

	missing := 0
	batch.Results = make([]models.ServiceVisitResult, 0, len(models.ServiceCatalog))
	for _, entry := range models.ServiceCatalog {
		result := models.ServiceVisitResult{
			Service:     entry.Service,
			CareSetting: entry.CareSetting,
			Year:        year,
			RegionID:    regionID,
			Scenario:    scenario,
			Flagged:     flagAll,
		}
		for _, age := range models.AgeGroups {
			rate, ok := c.rates[models.RateKey{Service: entry.Service, AgeGroup: age, Scenario: scenario}]
			if !ok {
				missing++
				result.Flagged = true
				batch.Issues = append(batch.Issues, models.CompletenessWarning(entry.Service, age,
					fmt.Sprintf("no %s visit rate for age group %s", scenario, age)))
				continue
			}
			for _, cell := range byAge[age] {
				result.MaleVisits += cell.Male * rate.MaleRate / ratePer
				result.FemaleVisits += cell.Female * rate.FemaleRate / ratePer
			}
		}
		result.TotalVisits = result.MaleVisits + result.FemaleVisits
		batch.Results = append(batch.Results, result)
	}

	if missing > 0 {
		logger.Log.WithFields(map[string]interface{}{
			"region":        regionID,
			"year":          year,
			"scenario":      scenario,
			"missing_rates": missing,
		}).Warn("visit rate table incomplete")
	}
	return batch, nil
}

// ValidateSelection rejects a selection before any table is read.
func ValidateSelection(regionID string, year int, scenario models.Scenario) error {
	if regionID == "" {
		return models.InputValidationError{Field: "region_id", Value: regionID, Reason: "region is required"}
	}
	if year <= 0 {
		return models.InputValidationError{Field: "year", Value: year, Reason: "year must be positive"}
	}
	if parsed, err := models.ParseScenario(string(scenario)); err != nil || parsed != scenario {
		return models.InputValidationError{Field: "scenario", Value: scenario, Reason: "unknown assumption scenario"}
	}
	return nil
}

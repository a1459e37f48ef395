package population

import (
	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

// Cell is the resolved headcount of one (population type, age group) pair.
type Cell struct {
	PopulationType models.PopulationType
	AgeGroup       models.AgeGroup
	Male           float64
	Female         float64
}

func (c Cell) Total() float64 {
	return c.Male + c.Female
}

type Resolver struct {
	records  []models.PopulationRecord
	provider *Provider
}

func NewResolver(tables models.TableSet) *Resolver {
	return &Resolver{records: tables.Populations, provider: NewProvider(tables)}
}

func (r *Resolver) Provider() *Provider {
	return r.provider
}

func matches(rec models.PopulationRecord, regionID string, popType models.PopulationType) bool {
	if regionID != models.AllRegions && rec.RegionID != regionID {
		return false
	}
	return popType == "" || rec.PopulationType == popType
}

// TotalPopulation sums the calculated values of every matching record. An
// empty popType selects all types.
func (r *Resolver) TotalPopulation(regionID string, year int, popType models.PopulationType) (float64, error) {
	total := 0.0
	for _, rec := range r.records {
		if !matches(rec, regionID, popType) {
			continue
		}
		value, err := rec.CalculatedValue(year)
		if err != nil {
			return 0, err
		}
		total += value
	}
	return total, nil
}

// ResolvePopulation returns the headcount of one region/year/type/age/gender
// cell. An empty popType sums the cell over every type; AnyGender sums both
// genders.
func (r *Resolver) ResolvePopulation(regionID string, year int, popType models.PopulationType, age models.AgeGroup, gender models.Gender) (float64, error) {
	types := []models.PopulationType{popType}
	if popType == "" {
		types = models.PopulationTypes
	}
	result := 0.0
	for _, t := range types {
		total, err := r.TotalPopulation(regionID, year, t)
		if err != nil {
			return 0, err
		}
		result += r.split(total, t, age, year, gender)
	}
	return result, nil
}

func (r *Resolver) split(total float64, popType models.PopulationType, age models.AgeGroup, year int, gender models.Gender) float64 {
	if total == 0 {
		return 0
	}
	share := r.provider.AgeShare(popType, age)
	if share == 0 {
		return 0
	}
	return total * share * r.provider.GenderShare(popType, age, year, gender)
}

// Cells decomposes every population type of the region into age/gender
// cells. Records with an invalid divisor or an unknown population type are
// skipped and reported; the other records still contribute.
func (r *Resolver) Cells(regionID string, year int) ([]Cell, []error) {
	totals := make(map[models.PopulationType]float64, len(models.PopulationTypes))
	var errs []error
	for _, rec := range r.records {
		if !matches(rec, regionID, "") {
			continue
		}
		if !rec.PopulationType.Known() {
			errs = append(errs, models.InputValidationError{
				Field: "population_type", Value: rec.PopulationType,
				Reason: "population record " + rec.ID + " is excluded",
			})
			continue
		}
		value, err := rec.CalculatedValue(year)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		totals[rec.PopulationType] += value
	}

	cells := make([]Cell, 0, len(models.PopulationTypes)*len(models.AgeGroups))
	for _, t := range models.PopulationTypes {
		for _, age := range models.AgeGroups {
			cells = append(cells, Cell{
				PopulationType: t,
				AgeGroup:       age,
				Male:           r.split(totals[t], t, age, year, models.Male),
				Female:         r.split(totals[t], t, age, year, models.Female),
			})
		}
	}
	return cells, errs
}

// MissingDistributions lists population types that have people in the
// region/year but no age table to spread them with.
func (r *Resolver) MissingDistributions(regionID string, year int) []models.PopulationType {
	var missing []models.PopulationType
	for _, t := range models.PopulationTypes {
		if r.provider.HasDistribution(t) {
			continue
		}
		total := 0.0
		for _, rec := range r.records {
			if !matches(rec, regionID, t) {
				continue
			}
			if v, err := rec.CalculatedValue(year); err == nil {
				total += v
			}
		}
		if total > 0 {
			missing = append(missing, t)
		}
	}
	return missing
}

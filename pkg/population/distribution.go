package population

import "github.com/synaptica-ai/capacity-planner/pkg/common/models"

const defaultMaleRatio = 0.5

// Provider answers age-share and gender-ratio lookups for one TableSet.
type Provider struct {
	generic  map[models.PopulationType]map[models.AgeGroup]float64
	working  map[models.PopulationType]map[models.AgeGroup]models.AgeShare
	baseline map[models.AgeGroup]map[int]float64
}

func NewProvider(tables models.TableSet) *Provider {
	p := &Provider{
		generic:  make(map[models.PopulationType]map[models.AgeGroup]float64),
		working:  make(map[models.PopulationType]map[models.AgeGroup]models.AgeShare),
		baseline: make(map[models.AgeGroup]map[int]float64),
	}
	for _, d := range tables.AgeDistributions {
		p.generic[d.PopulationType] = d.Shares
	}
	for _, d := range tables.WorkingAgeDistributions {
		p.working[d.PopulationType] = d.Bands
	}
	for _, b := range tables.GenderBaselines {
		curve, ok := p.baseline[b.AgeGroup]
		if !ok {
			curve = make(map[int]float64)
			p.baseline[b.AgeGroup] = curve
		}
		curve[b.Year] = b.MaleRatio
	}
	return p
}

// HasDistribution reports whether an age table applies to popType.
func (p *Provider) HasDistribution(popType models.PopulationType) bool {
	if popType.WorkingAgeOnly() {
		_, ok := p.working[popType]
		return ok
	}
	if _, ok := p.generic[popType]; ok {
		return true
	}
	_, ok := p.generic[""]
	return ok
}

// AgeShare is the fraction of popType's population that falls in age.
// Working-age types have no population outside the working bands.
func (p *Provider) AgeShare(popType models.PopulationType, age models.AgeGroup) float64 {
	if popType.WorkingAgeOnly() {
		if !age.Working() {
			return 0
		}
		return p.working[popType][age].Share
	}
	shares, ok := p.generic[popType]
	if !ok {
		shares = p.generic[""]
	}
	return shares[age]
}

// MaleRatio returns the male fraction of the (popType, age) cell in year.
func (p *Provider) MaleRatio(popType models.PopulationType, age models.AgeGroup, year int) float64 {
	if popType.WorkingAgeOnly() {
		band, ok := p.working[popType][age]
		if !ok {
			return defaultMaleRatio
		}
		return band.MaleRatio
	}
	if ratio, ok := p.baseline[age][year]; ok {
		return ratio
	}
	return defaultMaleRatio
}

// GenderShare returns the fraction for one gender, or 1 for both.
func (p *Provider) GenderShare(popType models.PopulationType, age models.AgeGroup, year int, gender models.Gender) float64 {
	switch gender {
	case models.Male:
		return p.MaleRatio(popType, age, year)
	case models.Female:
		return 1 - p.MaleRatio(popType, age, year)
	default:
		return 1
	}
}

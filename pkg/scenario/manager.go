package scenario

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/synaptica-ai/capacity-planner/pkg/common/logger"
	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

type genderKey struct {
	age  models.AgeGroup
	year int
}

// Manager layers planner overrides on top of an immutable baseline TableSet.
// Readers get the effective tables from Snapshot without locking; every write
// builds a new TableSet and swaps it in whole.
type Manager struct {
	mu              sync.Mutex
	baseline        models.TableSet
	rateOverrides   map[models.RateKey]models.VisitRate
	genderOverrides map[genderKey]models.GenderOverride
	version         int64

	effective atomic.Pointer[models.TableSet]
}

func NewManager(baseline models.TableSet) *Manager {
	m := &Manager{
		baseline:        baseline.Clone(),
		rateOverrides:   make(map[models.RateKey]models.VisitRate),
		genderOverrides: make(map[genderKey]models.GenderOverride),
	}
	m.publishLocked()
	return m
}

// Snapshot returns the effective tables. The returned value must be treated
// as read-only.
func (m *Manager) Snapshot() models.TableSet {
	return *m.effective.Load()
}

func (m *Manager) Version() int64 {
	return m.effective.Load().Version
}

// SetRateOverrides validates and merges visit-rate rows into the override
// layer. Nothing is applied when any row is invalid.
func (m *Manager) SetRateOverrides(rates []models.VisitRate) error {
	for _, r := range rates {
		if err := ValidateRate(r); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rates {
		m.rateOverrides[r.Key()] = r
	}
	m.publishLocked()
	logger.Log.WithFields(logrus.Fields{
		"rows":    len(rates),
		"version": m.version,
	}).Info("Visit rate overrides applied")
	return nil
}

func (m *Manager) SetGenderOverrides(overrides []models.GenderOverride) error {
	for _, o := range overrides {
		if err := ValidateGenderOverride(o); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range overrides {
		m.genderOverrides[genderKey{age: o.AgeGroup, year: o.Year}] = o
	}
	m.publishLocked()
	logger.Log.WithFields(logrus.Fields{
		"rows":    len(overrides),
		"version": m.version,
	}).Info("Gender baseline overrides applied")
	return nil
}

// Reset discards every override and restores the baseline tables.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateOverrides = make(map[models.RateKey]models.VisitRate)
	m.genderOverrides = make(map[genderKey]models.GenderOverride)
	m.publishLocked()
	logger.Log.WithField("version", m.version).Info("Overrides reset to baseline")
}

// ReplaceBaseline installs reloaded baseline tables and keeps the override
// layer on top of them.
func (m *Manager) ReplaceBaseline(baseline models.TableSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseline = baseline.Clone()
	m.publishLocked()
	logger.Log.WithField("version", m.version).Info("Baseline tables replaced")
}

// Overrides returns the override layer in a stable order.
func (m *Manager) Overrides() ([]models.VisitRate, []models.GenderOverride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedRates(m.rateOverrides), sortedGender(m.genderOverrides)
}

func (m *Manager) publishLocked() {
	m.version++
	tables := m.baseline.Clone()
	tables.Version = m.version

	if len(m.rateOverrides) > 0 {
		seen := make(map[models.RateKey]bool, len(m.rateOverrides))
		for i, r := range tables.VisitRates {
			if o, ok := m.rateOverrides[r.Key()]; ok {
				tables.VisitRates[i] = o
				seen[r.Key()] = true
			}
		}
		for _, o := range sortedRates(m.rateOverrides) {
			if !seen[o.Key()] {
				tables.VisitRates = append(tables.VisitRates, o)
			}
		}
	}

	if len(m.genderOverrides) > 0 {
		seen := make(map[genderKey]bool, len(m.genderOverrides))
		for i, b := range tables.GenderBaselines {
			k := genderKey{age: b.AgeGroup, year: b.Year}
			if o, ok := m.genderOverrides[k]; ok {
				tables.GenderBaselines[i].MaleRatio = o.MaleRatio
				seen[k] = true
			}
		}
		for _, o := range sortedGender(m.genderOverrides) {
			if !seen[genderKey{age: o.AgeGroup, year: o.Year}] {
				tables.GenderBaselines = append(tables.GenderBaselines, models.GenderBaseline{
					AgeGroup: o.AgeGroup, Year: o.Year, MaleRatio: o.MaleRatio,
				})
			}
		}
	}

	m.effective.Store(&tables)
}

func ValidateRate(r models.VisitRate) error {
	if _, ok := r.Service.CareSetting(); !ok {
		return models.InputValidationError{Field: "service", Value: r.Service, Reason: "unknown service"}
	}
	if _, err := models.ParseAgeGroup(string(r.AgeGroup)); err != nil {
		return err
	}
	if s, err := models.ParseScenario(string(r.Scenario)); err != nil || s != r.Scenario {
		return models.InputValidationError{Field: "scenario", Value: r.Scenario, Reason: "unknown assumption scenario"}
	}
	if r.MaleRate < 0 || math.IsNaN(r.MaleRate) || math.IsInf(r.MaleRate, 0) {
		return models.InputValidationError{Field: "male_rate", Value: r.MaleRate, Reason: "must be a non-negative number"}
	}
	if r.FemaleRate < 0 || math.IsNaN(r.FemaleRate) || math.IsInf(r.FemaleRate, 0) {
		return models.InputValidationError{Field: "female_rate", Value: r.FemaleRate, Reason: "must be a non-negative number"}
	}
	return nil
}

func ValidateGenderOverride(o models.GenderOverride) error {
	if _, err := models.ParseAgeGroup(string(o.AgeGroup)); err != nil {
		return err
	}
	if o.Year <= 0 {
		return models.InputValidationError{Field: "year", Value: o.Year, Reason: "must be positive"}
	}
	if o.MaleRatio < 0 || o.MaleRatio > 1 || math.IsNaN(o.MaleRatio) {
		return models.InputValidationError{Field: "male_ratio", Value: o.MaleRatio, Reason: "must be within [0,1]"}
	}
	return nil
}

func sortedRates(in map[models.RateKey]models.VisitRate) []models.VisitRate {
	out := make([]models.VisitRate, 0, len(in))
	for _, r := range in {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Service != b.Service {
			return a.Service < b.Service
		}
		if a.AgeGroup != b.AgeGroup {
			return a.AgeGroup < b.AgeGroup
		}
		return a.Scenario < b.Scenario
	})
	return out
}

func sortedGender(in map[genderKey]models.GenderOverride) []models.GenderOverride {
	out := make([]models.GenderOverride, 0, len(in))
	for _, o := range in {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AgeGroup != out[j].AgeGroup {
			return out[i].AgeGroup < out[j].AgeGroup
		}
		return out[i].Year < out[j].Year
	})
	return out
}

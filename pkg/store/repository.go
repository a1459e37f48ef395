package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/synaptica-ai/capacity-planner/pkg/common/logger"
	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

// Repository persists the planning input tables and the planner's overrides.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type populationRecordModel struct {
	ID             string         `gorm:"primaryKey;column:id"`
	RegionID       string         `gorm:"column:region_id;index"`
	PopulationType string         `gorm:"column:population_type"`
	DefaultFactor  float64        `gorm:"column:default_factor"`
	Divisor        float64        `gorm:"column:divisor"`
	YearValues     datatypes.JSON `gorm:"column:year_values"`
	UpdatedAt      time.Time      `gorm:"column:updated_at"`
}

func (populationRecordModel) TableName() string { return "population_records" }

type ageDistributionModel struct {
	PopulationType string         `gorm:"primaryKey;column:population_type"`
	Shares         datatypes.JSON `gorm:"column:shares"`
	UpdatedAt      time.Time      `gorm:"column:updated_at"`
}

func (ageDistributionModel) TableName() string { return "age_distributions" }

type workingAgeDistributionModel struct {
	PopulationType string         `gorm:"primaryKey;column:population_type"`
	Bands          datatypes.JSON `gorm:"column:bands"`
	UpdatedAt      time.Time      `gorm:"column:updated_at"`
}

func (workingAgeDistributionModel) TableName() string { return "working_age_distributions" }

type genderBaselineModel struct {
	AgeGroup  string  `gorm:"primaryKey;column:age_group"`
	Year      int     `gorm:"primaryKey;column:year"`
	MaleRatio float64 `gorm:"column:male_ratio"`
}

func (genderBaselineModel) TableName() string { return "gender_baselines" }

type visitRateModel struct {
	Service    string  `gorm:"primaryKey;column:service"`
	AgeGroup   string  `gorm:"primaryKey;column:age_group"`
	Scenario   string  `gorm:"primaryKey;column:scenario"`
	MaleRate   float64 `gorm:"column:male_rate"`
	FemaleRate float64 `gorm:"column:female_rate"`
}

func (visitRateModel) TableName() string { return "visit_rates" }

type occupancyRateModel struct {
	Key          string  `gorm:"primaryKey;column:key"`
	VirtualRate  float64 `gorm:"column:virtual_rate"`
	InPersonRate float64 `gorm:"column:inperson_rate"`
}

func (occupancyRateModel) TableName() string { return "occupancy_rates" }

type visitTimeModel struct {
	CareSetting           string  `gorm:"primaryKey;column:care_setting"`
	Service               string  `gorm:"primaryKey;column:service"`
	NewVisitDuration      float64 `gorm:"column:new_visit_duration_min"`
	FollowUpVisitDuration float64 `gorm:"column:follow_up_visit_duration_min"`
	PercentNewVisits      float64 `gorm:"column:percent_new_visits"`
}

func (visitTimeModel) TableName() string { return "visit_time_assumptions" }

type operationalSettingModel struct {
	CareSetting         string  `gorm:"primaryKey;column:care_setting"`
	WorkingDaysPerWeek  float64 `gorm:"column:working_days_per_week"`
	WorkingWeeksPerYear float64 `gorm:"column:working_weeks_per_year"`
	WorkingHoursPerDay  float64 `gorm:"column:working_hours_per_day"`
}

func (operationalSettingModel) TableName() string { return "operational_settings" }

type rateOverrideModel struct {
	Service    string    `gorm:"primaryKey;column:service"`
	AgeGroup   string    `gorm:"primaryKey;column:age_group"`
	Scenario   string    `gorm:"primaryKey;column:scenario"`
	MaleRate   float64   `gorm:"column:male_rate"`
	FemaleRate float64   `gorm:"column:female_rate"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (rateOverrideModel) TableName() string { return "rate_overrides" }

type genderOverrideModel struct {
	AgeGroup  string    `gorm:"primaryKey;column:age_group"`
	Year      int       `gorm:"primaryKey;column:year"`
	MaleRatio float64   `gorm:"column:male_ratio"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (genderOverrideModel) TableName() string { return "gender_overrides" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&populationRecordModel{},
		&ageDistributionModel{},
		&workingAgeDistributionModel{},
		&genderBaselineModel{},
		&visitRateModel{},
		&occupancyRateModel{},
		&visitTimeModel{},
		&operationalSettingModel{},
		&rateOverrideModel{},
		&genderOverrideModel{},
	)
}

// LoadTables reads every baseline table. Overrides are not applied.
func (r *Repository) LoadTables(ctx context.Context) (models.TableSet, error) {
	db := r.db.WithContext(ctx)
	var tables models.TableSet

	var populations []populationRecordModel
	if err := db.Order("region_id, id").Find(&populations).Error; err != nil {
		return models.TableSet{}, fmt.Errorf("load population records: %w", err)
	}
	for _, row := range populations {
		record, err := fromPopulationModel(row)
		if err != nil {
			return models.TableSet{}, err
		}
		tables.Populations = append(tables.Populations, record)
	}

	var distributions []ageDistributionModel
	if err := db.Order("population_type").Find(&distributions).Error; err != nil {
		return models.TableSet{}, fmt.Errorf("load age distributions: %w", err)
	}
	for _, row := range distributions {
		d := models.AgeDistribution{PopulationType: models.PopulationType(row.PopulationType)}
		if err := json.Unmarshal(row.Shares, &d.Shares); err != nil {
			return models.TableSet{}, fmt.Errorf("decode age shares for %q: %w", row.PopulationType, err)
		}
		tables.AgeDistributions = append(tables.AgeDistributions, d)
	}

	var working []workingAgeDistributionModel
	if err := db.Order("population_type").Find(&working).Error; err != nil {
		return models.TableSet{}, fmt.Errorf("load working-age distributions: %w", err)
	}
	for _, row := range working {
		d := models.WorkingAgeDistribution{PopulationType: models.PopulationType(row.PopulationType)}
		if err := json.Unmarshal(row.Bands, &d.Bands); err != nil {
			return models.TableSet{}, fmt.Errorf("decode working-age bands for %q: %w", row.PopulationType, err)
		}
		tables.WorkingAgeDistributions = append(tables.WorkingAgeDistributions, d)
	}

	var baselines []genderBaselineModel
	if err := db.Order("age_group, year").Find(&baselines).Error; err != nil {
		return models.TableSet{}, fmt.Errorf("load gender baselines: %w", err)
	}
	for _, row := range baselines {
		tables.GenderBaselines = append(tables.GenderBaselines, models.GenderBaseline{
			AgeGroup: models.AgeGroup(row.AgeGroup), Year: row.Year, MaleRatio: row.MaleRatio,
		})
	}

	var rates []visitRateModel
	if err := db.Order("service, age_group, scenario").Find(&rates).Error; err != nil {
		return models.TableSet{}, fmt.Errorf("load visit rates: %w", err)
	}
	for _, row := range rates {
		tables.VisitRates = append(tables.VisitRates, fromRateModel(row))
	}

	var occupancy []occupancyRateModel
	if err := db.Order("key").Find(&occupancy).Error; err != nil {
		return models.TableSet{}, fmt.Errorf("load occupancy rates: %w", err)
	}
	for _, row := range occupancy {
		tables.Occupancy = append(tables.Occupancy, models.OccupancyRate{
			Key: row.Key, VirtualRate: row.VirtualRate, InPersonRate: row.InPersonRate,
		})
	}

	var times []visitTimeModel
	if err := db.Order("care_setting, service").Find(&times).Error; err != nil {
		return models.TableSet{}, fmt.Errorf("load visit-time assumptions: %w", err)
	}
	for _, row := range times {
		tables.VisitTimes = append(tables.VisitTimes, models.VisitTimeAssumption{
			CareSetting:           models.CareSetting(row.CareSetting),
			Service:               models.Service(row.Service),
			NewVisitDuration:      row.NewVisitDuration,
			FollowUpVisitDuration: row.FollowUpVisitDuration,
			PercentNewVisits:      row.PercentNewVisits,
		})
	}

	var settings []operationalSettingModel
	if err := db.Order("care_setting").Find(&settings).Error; err != nil {
		return models.TableSet{}, fmt.Errorf("load operational settings: %w", err)
	}
	for _, row := range settings {
		tables.Operational = append(tables.Operational, models.OperationalSetting{
			CareSetting:         models.CareSetting(row.CareSetting),
			WorkingDaysPerWeek:  row.WorkingDaysPerWeek,
			WorkingWeeksPerYear: row.WorkingWeeksPerYear,
			WorkingHoursPerDay:  row.WorkingHoursPerDay,
		})
	}

	return tables, nil
}

// ReplaceTables swaps every baseline table for the given set in one
// transaction. Overrides are left alone.
func (r *Repository) ReplaceTables(ctx context.Context, tables models.TableSet) error {
	rows, err := toModels(tables)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{
			&populationRecordModel{}, &ageDistributionModel{}, &workingAgeDistributionModel{},
			&genderBaselineModel{}, &visitRateModel{}, &occupancyRateModel{},
			&visitTimeModel{}, &operationalSettingModel{},
		} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return err
			}
		}
		for _, batch := range rows.batches() {
			if batch.len == 0 {
				continue
			}
			if err := tx.CreateInBatches(batch.rows, 200).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SeedIfEmpty writes tables when no visit rates are stored yet and reports
// whether it did.
func (r *Repository) SeedIfEmpty(ctx context.Context, tables models.TableSet) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&visitRateModel{}).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if err := r.ReplaceTables(ctx, tables); err != nil {
		return false, fmt.Errorf("seed tables: %w", err)
	}
	logger.Log.WithFields(map[string]interface{}{
		"population_records": len(tables.Populations),
		"visit_rates":        len(tables.VisitRates),
	}).Info("Seeded planning tables")
	return true, nil
}

func (r *Repository) SaveRateOverrides(ctx context.Context, rates []models.VisitRate) error {
	if len(rates) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]rateOverrideModel, 0, len(rates))
	for _, rate := range rates {
		rows = append(rows, rateOverrideModel{
			Service:    string(rate.Service),
			AgeGroup:   string(rate.AgeGroup),
			Scenario:   string(rate.Scenario),
			MaleRate:   rate.MaleRate,
			FemaleRate: rate.FemaleRate,
			UpdatedAt:  now,
		})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "service"}, {Name: "age_group"}, {Name: "scenario"}},
		DoUpdates: clause.AssignmentColumns([]string{"male_rate", "female_rate", "updated_at"}),
	}).Create(&rows).Error
}

func (r *Repository) SaveGenderOverrides(ctx context.Context, overrides []models.GenderOverride) error {
	if len(overrides) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]genderOverrideModel, 0, len(overrides))
	for _, o := range overrides {
		rows = append(rows, genderOverrideModel{
			AgeGroup:  string(o.AgeGroup),
			Year:      o.Year,
			MaleRatio: o.MaleRatio,
			UpdatedAt: now,
		})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "age_group"}, {Name: "year"}},
		DoUpdates: clause.AssignmentColumns([]string{"male_ratio", "updated_at"}),
	}).Create(&rows).Error
}

func (r *Repository) LoadOverrides(ctx context.Context) ([]models.VisitRate, []models.GenderOverride, error) {
	var rateRows []rateOverrideModel
	if err := r.db.WithContext(ctx).Order("service, age_group, scenario").Find(&rateRows).Error; err != nil {
		return nil, nil, fmt.Errorf("load rate overrides: %w", err)
	}
	var genderRows []genderOverrideModel
	if err := r.db.WithContext(ctx).Order("age_group, year").Find(&genderRows).Error; err != nil {
		return nil, nil, fmt.Errorf("load gender overrides: %w", err)
	}

	rates := make([]models.VisitRate, 0, len(rateRows))
	for _, row := range rateRows {
		rates = append(rates, models.VisitRate{
			Service:    models.Service(row.Service),
			AgeGroup:   models.AgeGroup(row.AgeGroup),
			Scenario:   models.Scenario(row.Scenario),
			MaleRate:   row.MaleRate,
			FemaleRate: row.FemaleRate,
		})
	}
	gender := make([]models.GenderOverride, 0, len(genderRows))
	for _, row := range genderRows {
		gender = append(gender, models.GenderOverride{
			AgeGroup: models.AgeGroup(row.AgeGroup), Year: row.Year, MaleRatio: row.MaleRatio,
		})
	}
	return rates, gender, nil
}

// ClearOverrides deletes every persisted override.
func (r *Repository) ClearOverrides(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := global.Delete(&rateOverrideModel{}).Error; err != nil {
			return err
		}
		return global.Delete(&genderOverrideModel{}).Error
	})
}

func fromPopulationModel(row populationRecordModel) (models.PopulationRecord, error) {
	record := models.PopulationRecord{
		ID:             row.ID,
		RegionID:       row.RegionID,
		PopulationType: models.PopulationType(row.PopulationType),
		DefaultFactor:  row.DefaultFactor,
		Divisor:        row.Divisor,
		YearValues:     make(map[int]float64),
	}
	if len(row.YearValues) == 0 {
		return record, nil
	}
	var raw map[string]float64
	if err := json.Unmarshal(row.YearValues, &raw); err != nil {
		return models.PopulationRecord{}, fmt.Errorf("decode year values for %s: %w", row.ID, err)
	}
	for key, v := range raw {
		year, err := strconv.Atoi(key)
		if err != nil {
			return models.PopulationRecord{}, fmt.Errorf("population record %s: invalid year %q", row.ID, key)
		}
		record.YearValues[year] = v
	}
	return record, nil
}

func fromRateModel(row visitRateModel) models.VisitRate {
	return models.VisitRate{
		Service:    models.Service(row.Service),
		AgeGroup:   models.AgeGroup(row.AgeGroup),
		Scenario:   models.Scenario(row.Scenario),
		MaleRate:   row.MaleRate,
		FemaleRate: row.FemaleRate,
	}
}

type modelBatch struct {
	rows interface{}
	len  int
}

type tableRows struct {
	populations  []populationRecordModel
	distribution []ageDistributionModel
	working      []workingAgeDistributionModel
	baselines    []genderBaselineModel
	rates        []visitRateModel
	occupancy    []occupancyRateModel
	times        []visitTimeModel
	settings     []operationalSettingModel
}

func (t tableRows) batches() []modelBatch {
	return []modelBatch{
		{&t.populations, len(t.populations)},
		{&t.distribution, len(t.distribution)},
		{&t.working, len(t.working)},
		{&t.baselines, len(t.baselines)},
		{&t.rates, len(t.rates)},
		{&t.occupancy, len(t.occupancy)},
		{&t.times, len(t.times)},
		{&t.settings, len(t.settings)},
	}
}

func toModels(tables models.TableSet) (tableRows, error) {
	now := time.Now().UTC()
	var rows tableRows
	for _, p := range tables.Populations {
		values := make(map[string]float64, len(p.YearValues))
		for year, v := range p.YearValues {
			values[strconv.Itoa(year)] = v
		}
		data, err := json.Marshal(values)
		if err != nil {
			return tableRows{}, err
		}
		rows.populations = append(rows.populations, populationRecordModel{
			ID:             p.ID,
			RegionID:       p.RegionID,
			PopulationType: string(p.PopulationType),
			DefaultFactor:  p.DefaultFactor,
			Divisor:        p.Divisor,
			YearValues:     datatypes.JSON(data),
			UpdatedAt:      now,
		})
	}
	for _, d := range tables.AgeDistributions {
		data, err := json.Marshal(d.Shares)
		if err != nil {
			return tableRows{}, err
		}
		rows.distribution = append(rows.distribution, ageDistributionModel{
			PopulationType: string(d.PopulationType), Shares: datatypes.JSON(data), UpdatedAt: now,
		})
	}
	for _, d := range tables.WorkingAgeDistributions {
		data, err := json.Marshal(d.Bands)
		if err != nil {
			return tableRows{}, err
		}
		rows.working = append(rows.working, workingAgeDistributionModel{
			PopulationType: string(d.PopulationType), Bands: datatypes.JSON(data), UpdatedAt: now,
		})
	}
	for _, b := range tables.GenderBaselines {
		rows.baselines = append(rows.baselines, genderBaselineModel{
			AgeGroup: string(b.AgeGroup), Year: b.Year, MaleRatio: b.MaleRatio,
		})
	}
	for _, r := range tables.VisitRates {
		rows.rates = append(rows.rates, visitRateModel{
			Service:    string(r.Service),
			AgeGroup:   string(r.AgeGroup),
			Scenario:   string(r.Scenario),
			MaleRate:   r.MaleRate,
			FemaleRate: r.FemaleRate,
		})
	}
	for _, o := range tables.Occupancy {
		rows.occupancy = append(rows.occupancy, occupancyRateModel{
			Key: o.Key, VirtualRate: o.VirtualRate, InPersonRate: o.InPersonRate,
		})
	}
	for _, a := range tables.VisitTimes {
		rows.times = append(rows.times, visitTimeModel{
			CareSetting:           string(a.CareSetting),
			Service:               string(a.Service),
			NewVisitDuration:      a.NewVisitDuration,
			FollowUpVisitDuration: a.FollowUpVisitDuration,
			PercentNewVisits:      a.PercentNewVisits,
		})
	}
	for _, op := range tables.Operational {
		rows.settings = append(rows.settings, operationalSettingModel{
			CareSetting:         string(op.CareSetting),
			WorkingDaysPerWeek:  op.WorkingDaysPerWeek,
			WorkingWeeksPerYear: op.WorkingWeeksPerYear,
			WorkingHoursPerDay:  op.WorkingHoursPerDay,
		})
	}
	return rows, nil
}

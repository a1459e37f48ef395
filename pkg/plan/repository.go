package plan

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

var ErrNotFound = errors.New("plan not found")

// Repository stores plans. Rows are inserted once and never updated.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type planModel struct {
	ID           uuid.UUID      `gorm:"primaryKey;column:id"`
	Name         string         `gorm:"column:name"`
	RegionID     string         `gorm:"column:region_id;index"`
	Year         int            `gorm:"column:year"`
	Scenario     string         `gorm:"column:scenario"`
	Population   float64        `gorm:"column:population"`
	Date         time.Time      `gorm:"column:date"`
	CapacityData datatypes.JSON `gorm:"column:capacity_data"`
	ActivityData datatypes.JSON `gorm:"column:activity_data"`
	CreatedBy    string         `gorm:"column:created_by"`
	ArchiveURL   string         `gorm:"column:archive_url"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
}

func (planModel) TableName() string { return "capacity_plans" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&planModel{})
}

func (r *Repository) Create(ctx context.Context, p models.Plan) error {
	row, err := toPlanModel(p)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) List(ctx context.Context, limit int) ([]models.Plan, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []planModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Plan, 0, len(rows))
	for _, row := range rows {
		p, err := fromPlanModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (models.Plan, error) {
	var row planModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Plan{}, ErrNotFound
		}
		return models.Plan{}, err
	}
	return fromPlanModel(row)
}

func toPlanModel(p models.Plan) (planModel, error) {
	capacity, err := json.Marshal(p.CapacityData)
	if err != nil {
		return planModel{}, err
	}
	activity, err := json.Marshal(p.ActivityData)
	if err != nil {
		return planModel{}, err
	}
	return planModel{
		ID:           p.ID,
		Name:         p.Name,
		RegionID:     p.RegionID,
		Year:         p.Year,
		Scenario:     string(p.Scenario),
		Population:   p.Population,
		Date:         p.Date,
		CapacityData: datatypes.JSON(capacity),
		ActivityData: datatypes.JSON(activity),
		CreatedBy:    p.CreatedBy,
		ArchiveURL:   p.ArchiveURL,
		CreatedAt:    p.Date,
	}, nil
}

func fromPlanModel(row planModel) (models.Plan, error) {
	p := models.Plan{
		ID:         row.ID,
		Name:       row.Name,
		RegionID:   row.RegionID,
		Year:       row.Year,
		Scenario:   models.Scenario(row.Scenario),
		Population: row.Population,
		Date:       row.Date,
		CreatedBy:  row.CreatedBy,
		ArchiveURL: row.ArchiveURL,
	}
	if len(row.CapacityData) > 0 {
		if err := json.Unmarshal(row.CapacityData, &p.CapacityData); err != nil {
			return models.Plan{}, err
		}
	}
	if len(row.ActivityData) > 0 {
		if err := json.Unmarshal(row.ActivityData, &p.ActivityData); err != nil {
			return models.Plan{}, err
		}
	}
	return p, nil
}

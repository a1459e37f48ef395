package plan

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/synaptica-ai/capacity-planner/pkg/common/kafka"
	"github.com/synaptica-ai/capacity-planner/pkg/common/logger"
	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
	"github.com/synaptica-ai/capacity-planner/pkg/observability/metrics"
)

type Projector interface {
	Project(ctx context.Context, sel models.Selection) (models.Projection, error)
}

type Store interface {
	Create(ctx context.Context, p models.Plan) error
	List(ctx context.Context, limit int) ([]models.Plan, error)
	Get(ctx context.Context, id uuid.UUID) (models.Plan, error)
}

type Archiver interface {
	Archive(ctx context.Context, p models.Plan) (string, error)
	Remove(ctx context.Context, p models.Plan) error
}

type Service struct {
	projector Projector
	store     Store
	archiver  Archiver
	events    kafka.Publisher
	metrics   *metrics.Collector
	now       func() time.Time
}

// NewService wires plan creation. archiver and events may be nil.
func NewService(projector Projector, store Store, archiver Archiver, events kafka.Publisher, collector *metrics.Collector) *Service {
	if events == nil {
		events = kafka.NopPublisher{}
	}
	return &Service{
		projector: projector,
		store:     store,
		archiver:  archiver,
		events:    events,
		metrics:   collector,
		now:       time.Now,
	}
}

// Create snapshots the current projection for the requested selection.
// The stored plan is never modified afterwards.
func (s *Service) Create(ctx context.Context, req models.CreatePlanRequest, actor string) (models.Plan, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.Plan{}, models.InputValidationError{Field: "name", Value: req.Name, Reason: "plan name is required"}
	}
	sc, err := models.ParseScenario(req.Scenario)
	if err != nil {
		return models.Plan{}, err
	}
	projection, err := s.projector.Project(ctx, models.Selection{RegionID: strings.TrimSpace(req.RegionID), Year: req.Year, Scenario: sc})
	if err != nil {
		return models.Plan{}, err
	}
	if actor == "" {
		actor = "system"
	}

	p := models.Plan{
		ID:           uuid.New(),
		Name:         name,
		RegionID:     projection.Selection.RegionID,
		Year:         projection.Selection.Year,
		Scenario:     projection.Selection.Scenario,
		Population:   projection.Population,
		Date:         s.now().UTC(),
		CapacityData: append([]models.RoomRequirement(nil), projection.Rooms...),
		ActivityData: append([]models.ServiceVisitResult(nil), projection.Visits...),
		CreatedBy:    actor,
	}

	if s.archiver != nil {
		url, err := s.archiver.Archive(ctx, p)
		if err != nil {
			logger.Log.WithError(err).WithField("plan_id", p.ID).Warn("plan saved without archive copy")
		} else {
			p.ArchiveURL = url
		}
	}

	if err := s.store.Create(ctx, p); err != nil {
		if p.ArchiveURL != "" {
			if rmErr := s.archiver.Remove(ctx, p); rmErr != nil {
				logger.Log.WithError(rmErr).WithField("plan_id", p.ID).Error("orphaned plan archive left behind")
			}
		}
		return models.Plan{}, err
	}
	s.metrics.PlanSaved()

	if err := s.events.PublishEvent(ctx, kafka.EventPlanSaved, "planner-service", map[string]interface{}{
		"plan_id":   p.ID.String(),
		"region_id": p.RegionID,
		"year":      p.Year,
		"scenario":  string(p.Scenario),
	}); err != nil {
		logger.Log.WithError(err).WithField("plan_id", p.ID).Warn("failed to publish plan event")
	}

	logger.Log.WithFields(map[string]interface{}{
		"plan_id":  p.ID,
		"region":   p.RegionID,
		"year":     p.Year,
		"scenario": p.Scenario,
	}).Info("plan saved")
	return p, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]models.Plan, error) {
	return s.store.List(ctx, limit)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.Plan, error) {
	return s.store.Get(ctx, id)
}

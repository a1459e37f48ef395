package projection

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/synaptica-ai/capacity-planner/pkg/capacity"
	"github.com/synaptica-ai/capacity-planner/pkg/common/logger"
	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
	"github.com/synaptica-ai/capacity-planner/pkg/demand"
	"github.com/synaptica-ai/capacity-planner/pkg/observability/metrics"
	"github.com/synaptica-ai/capacity-planner/pkg/observability/tracing"
)

// TableSource hands out the effective tables for one pass.
type TableSource interface {
	Snapshot() models.TableSet
}

// Cache stores computed projections by key.
type Cache interface {
	Get(ctx context.Context, key string) (models.Projection, bool, error)
	Set(ctx context.Context, key string, projection models.Projection) error
}

// Engine runs projection passes over a single table snapshot each. Passes
// share no mutable state and may run concurrently.
type Engine struct {
	tables          TableSource
	cache           Cache
	metrics         *metrics.Collector
	defaultDuration float64
	maxWorkers      int
	now             func() time.Time
}

type Option func(*Engine)

func WithCache(cache Cache) Option {
	return func(e *Engine) {
		e.cache = cache
	}
}

func WithMetrics(collector *metrics.Collector) Option {
	return func(e *Engine) {
		e.metrics = collector
	}
}

// WithDefaultDuration sets the visit length used for services without a
// visit-time assumption.
func WithDefaultDuration(minutes float64) Option {
	return func(e *Engine) {
		if minutes > 0 {
			e.defaultDuration = minutes
		}
	}
}

func WithMaxWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxWorkers = n
		}
	}
}

func NewEngine(tables TableSource, opts ...Option) *Engine {
	e := &Engine{
		tables:          tables,
		defaultDuration: 20,
		maxWorkers:      3,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Project computes, or returns the cached, projection for sel. Scenario
// defaults to the model scenario.
func (e *Engine) Project(ctx context.Context, sel models.Selection) (models.Projection, error) {
	if sel.Scenario == "" {
		sel.Scenario = models.ScenarioModel
	}
	ctx, span := tracing.Tracer().Start(ctx, "projection.Project")
	defer span.End()
	span.SetAttributes(
		attribute.String("planner.region", sel.RegionID),
		attribute.Int("planner.year", sel.Year),
		attribute.String("planner.scenario", string(sel.Scenario)),
	)

	if err := demand.ValidateSelection(sel.RegionID, sel.Year, sel.Scenario); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return models.Projection{}, err
	}

	tables := e.tables.Snapshot()
	key := CacheKey(sel, tables.Version)
	e.metrics.SetTableVersion(tables.Version)
	span.SetAttributes(attribute.Int64("planner.table_version", tables.Version))

	if e.cache != nil {
		cached, ok, err := e.cache.Get(ctx, key)
		switch {
		case err != nil:
			e.metrics.ObserveCache("error")
			logger.Log.WithError(err).WithField("key", key).Warn("Projection cache read failed")
		case ok:
			e.metrics.ObserveCache("hit")
			e.metrics.ObserveProjection(sel.Scenario, "cached", 0, nil)
			span.SetAttributes(attribute.Bool("planner.cache_hit", true))
			return cached, nil
		default:
			e.metrics.ObserveCache("miss")
		}
	}

	start := time.Now()
	projection, err := e.compute(tables, sel)
	if err != nil {
		e.metrics.ObserveProjection(sel.Scenario, "failed", 0, nil)
		span.SetStatus(codes.Error, err.Error())
		return models.Projection{}, err
	}
	e.metrics.ObserveProjection(sel.Scenario, "computed", time.Since(start), projection.Issues)
	span.SetAttributes(attribute.Int("planner.issues", len(projection.Issues)))

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, projection); err != nil {
			logger.Log.WithError(err).WithField("key", key).Warn("Projection cache write failed")
		}
	}
	return projection, nil
}

// Compare projects the same region and year under each scenario
// concurrently. No scenarios means all of them. Results follow the order
// of scenarios.
func (e *Engine) Compare(ctx context.Context, regionID string, year int, scenarios ...models.Scenario) ([]models.Projection, error) {
	if len(scenarios) == 0 {
		scenarios = models.Scenarios
	}
	ctx, span := tracing.Tracer().Start(ctx, "projection.Compare")
	defer span.End()
	span.SetAttributes(attribute.Int("planner.scenarios", len(scenarios)))

	results := make([]models.Projection, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxWorkers)
	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			p, err := e.Project(gctx, models.Selection{RegionID: regionID, Year: year, Scenario: sc})
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc, err)
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return results, nil
}

func (e *Engine) compute(tables models.TableSet, sel models.Selection) (models.Projection, error) {
	calc := demand.NewCalculator(tables)
	batch, err := calc.ComputeServiceVisits(sel.RegionID, sel.Year, sel.Scenario)
	if err != nil {
		return models.Projection{}, err
	}

	projection := models.Projection{
		Selection:    sel,
		TableVersion: tables.Version,
		Visits:       batch.Results,
		Issues:       batch.Issues,
	}

	cells, _ := calc.Resolver().Cells(sel.RegionID, sel.Year)
	for _, cell := range cells {
		projection.Population += cell.Total()
	}

	durations := capacity.NewDurationResolver(tables.VisitTimes, e.defaultDuration)
	occupancy := capacity.NewOccupancyLookup(tables.Occupancy)
	operational := make(map[models.CareSetting]models.OperationalSetting, len(tables.Operational))
	for _, op := range tables.Operational {
		operational[op.CareSetting] = op
	}

	for _, visit := range batch.Results {
		slot, room, issues, ok := e.sizeService(visit, operational, durations, occupancy)
		projection.Issues = append(projection.Issues, issues...)
		if !ok {
			continue
		}
		projection.Slots = append(projection.Slots, slot)
		projection.Rooms = append(projection.Rooms, room)
	}
	projection.RoomsBySetting = capacity.RollUpBySetting(projection.Rooms)
	projection.ComputedAt = e.now().UTC()

	if len(projection.Issues) > 0 {
		logger.Log.WithFields(map[string]interface{}{
			"selection": sel.Key(),
			"issues":    len(projection.Issues),
		}).Debug("Projection computed with issues")
	}
	return projection, nil
}

// sizeService converts one service's visits into slots and rooms. A
// configuration error skips the service and is returned as an issue.
func (e *Engine) sizeService(
	visit models.ServiceVisitResult,
	operational map[models.CareSetting]models.OperationalSetting,
	durations *capacity.DurationResolver,
	occupancy *capacity.OccupancyLookup,
) (models.SlotCalculation, models.RoomRequirement, []models.Issue, bool) {
	var issues []models.Issue
	service, setting := visit.Service, visit.CareSetting

	op, ok := operational[setting]
	if !ok {
		issues = append(issues, models.IssueFromError(service, models.ConfigurationError{
			Scope: string(setting), Field: "operational_settings", Reason: "no operational settings for care setting",
		}))
		return models.SlotCalculation{}, models.RoomRequirement{}, issues, false
	}

	duration, issue := durations.Resolve(service, setting)
	if issue != nil {
		issues = append(issues, *issue)
	}
	assumption, ok := durations.Assumption(service, setting)
	if !ok {
		assumption = models.VisitTimeAssumption{
			CareSetting: setting, Service: service,
			NewVisitDuration: duration, FollowUpVisitDuration: duration,
		}
	}
	assumption.Service = service

	slot, err := capacity.ComputeSlotCalculation(op, assumption)
	if err != nil {
		issues = append(issues, models.IssueFromError(service, err))
		return models.SlotCalculation{}, models.RoomRequirement{}, issues, false
	}

	occ, ok := occupancy.For(service, setting)
	if !ok {
		issues = append(issues, models.CompletenessWarning(service, "", "no occupancy rates; all visits sized in person"))
		occ = models.OccupancyRate{Key: string(service), InPersonRate: 1}
	}
	if normalized, adjusted := capacity.NormalizeOccupancy(occ); adjusted {
		issues = append(issues, models.CompletenessWarning(service, "",
			fmt.Sprintf("occupancy rates %v/%v rescaled to %.4f/%.4f", occ.VirtualRate, occ.InPersonRate, normalized.VirtualRate, normalized.InPersonRate)))
		occ = normalized
	}

	room, err := capacity.ComputeRoomRequirement(visit.TotalVisits, occ, duration, op.TotalMinutesPerYear())
	if err != nil {
		issues = append(issues, models.IssueFromError(service, err))
		return models.SlotCalculation{}, models.RoomRequirement{}, issues, false
	}
	room.Service = service
	room.CareSetting = setting
	return slot, room, issues, true
}

// CacheKey identifies a projection by its full parameter tuple and the table
// version it was computed from.
func CacheKey(sel models.Selection, tableVersion int64) string {
	return fmt.Sprintf("projection:%s:v%d", sel.Key(), tableVersion)
}

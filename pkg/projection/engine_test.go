package projection

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/synaptica-ai/capacity-planner/pkg/common/logger"
	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
	"github.com/synaptica-ai/capacity-planner/pkg/observability/metrics"
	"github.com/synaptica-ai/capacity-planner/pkg/scenario"
)

// fixture: 100,000 residents aged 30-44 in "north" for 2030, split evenly by
// gender, and General Practice at 1,000 visits per 1,000 under the model
// scenario. Every other rate is zero.
func fixture() models.TableSet {
	tables := models.TableSet{
		Populations: []models.PopulationRecord{{
			ID: "north-residents", RegionID: "north", PopulationType: models.Residents,
			DefaultFactor: 1, Divisor: 1, YearValues: map[int]float64{2030: 100000},
		}},
		AgeDistributions: []models.AgeDistribution{{
			Shares: map[models.AgeGroup]float64{models.Age30to44: 1},
		}},
		GenderBaselines: []models.GenderBaseline{{AgeGroup: models.Age30to44, Year: 2030, MaleRatio: 0.5}},
		VisitTimes: []models.VisitTimeAssumption{
			{CareSetting: models.PrimaryCare, Service: models.GeneralPractice, NewVisitDuration: 30, FollowUpVisitDuration: 20, PercentNewVisits: 10},
		},
		Occupancy: []models.OccupancyRate{{Key: string(models.PrimaryCare), VirtualRate: 0.35, InPersonRate: 0.65}},
	}
	for _, setting := range models.CareSettings {
		tables.Operational = append(tables.Operational, models.OperationalSetting{
			CareSetting: setting, WorkingDaysPerWeek: 6, WorkingWeeksPerYear: 50, WorkingHoursPerDay: 12,
		})
		tables.VisitTimes = append(tables.VisitTimes, models.VisitTimeAssumption{
			CareSetting: setting, NewVisitDuration: 20, FollowUpVisitDuration: 20,
		})
		if setting != models.PrimaryCare {
			tables.Occupancy = append(tables.Occupancy, models.OccupancyRate{Key: string(setting), InPersonRate: 1})
		}
	}
	for _, service := range models.Services() {
		for _, age := range models.AgeGroups {
			for _, sc := range models.Scenarios {
				rate := models.VisitRate{Service: service, AgeGroup: age, Scenario: sc}
				if service == models.GeneralPractice && age == models.Age30to44 {
					switch sc {
					case models.ScenarioModel:
						rate.MaleRate, rate.FemaleRate = 1000, 1000
					case models.ScenarioEnhanced:
						rate.MaleRate, rate.FemaleRate = 500, 500
					case models.ScenarioHighRisk:
						rate.MaleRate, rate.FemaleRate = 2000, 2000
					}
				}
				tables.VisitRates = append(tables.VisitRates, rate)
			}
		}
	}
	return tables
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string]models.Projection
	gets  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string]models.Projection)}
}

func (c *memoryCache) Get(_ context.Context, key string) (models.Projection, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	p, ok := c.items[key]
	return p, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, p models.Projection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = p
	return nil
}

func find[T any](items []T, match func(T) bool) (T, bool) {
	for _, item := range items {
		if match(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func TestProjectReferenceCase(t *testing.T) {
	logger.Silence()
	engine := NewEngine(scenario.NewManager(fixture()))

	p, err := engine.Project(context.Background(), models.Selection{RegionID: "north", Year: 2030})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Selection.Scenario != models.ScenarioModel {
		t.Fatalf("scenario should default to model, got %q", p.Selection.Scenario)
	}
	if p.Population != 100000 {
		t.Fatalf("population = %v, want 100000", p.Population)
	}
	if len(p.Issues) != 0 {
		t.Fatalf("expected no issues, got %+v", p.Issues)
	}
	if len(p.Visits) != len(models.ServiceCatalog) || len(p.Rooms) != len(models.ServiceCatalog) {
		t.Fatalf("expected a row per service, got %d visits %d rooms", len(p.Visits), len(p.Rooms))
	}

	gp := p.Visits[0]
	if gp.Service != models.GeneralPractice || gp.MaleVisits != 50000 || gp.FemaleVisits != 50000 || gp.TotalVisits != 100000 {
		t.Fatalf("unexpected GP visits %+v", gp)
	}

	slot, _ := find(p.Slots, func(s models.SlotCalculation) bool { return s.Service == models.GeneralPractice })
	if slot.TotalSlotsPerYear != 7448 || slot.NewVisitsPerYear != 744 || slot.FollowUpVisitsPerYear != 6704 || slot.SlotsPerDay != 24 {
		t.Fatalf("unexpected GP slots %+v", slot)
	}

	room, _ := find(p.Rooms, func(r models.RoomRequirement) bool { return r.Service == models.GeneralPractice })
	if room.VirtualRooms != 5 || room.InPersonRooms != 9 || room.TotalRooms != 14 {
		t.Fatalf("unexpected GP rooms %+v", room)
	}
	if math.Abs(room.DurationMinutes-29) > 1e-9 {
		t.Fatalf("duration = %v, want 29", room.DurationMinutes)
	}

	primary, ok := find(p.RoomsBySetting, func(r models.CareSettingRooms) bool { return r.CareSetting == models.PrimaryCare })
	if !ok || primary.TotalRooms != 14 {
		t.Fatalf("unexpected primary care roll-up %+v", p.RoomsBySetting)
	}
}

func TestProjectIsIdempotent(t *testing.T) {
	logger.Silence()
	engine := NewEngine(scenario.NewManager(fixture()))
	sel := models.Selection{RegionID: "north", Year: 2030, Scenario: models.ScenarioHighRisk}

	first, err := engine.Project(context.Background(), sel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := engine.Project(context.Background(), sel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range first.Visits {
		if first.Visits[i] != second.Visits[i] {
			t.Fatalf("visits differ at %d: %+v vs %+v", i, first.Visits[i], second.Visits[i])
		}
	}
	for i := range first.Rooms {
		if first.Rooms[i] != second.Rooms[i] {
			t.Fatalf("rooms differ at %d", i)
		}
	}
}

func TestProjectIsolatesConfigurationErrors(t *testing.T) {
	logger.Silence()
	tables := fixture()
	for i := range tables.Operational {
		if tables.Operational[i].CareSetting == models.EmergencyCare {
			tables.Operational[i].WorkingDaysPerWeek = 0
		}
	}
	tables.Operational = tables.Operational[:len(tables.Operational)-1] // no diagnostics settings

	p, err := NewEngine(scenario.NewManager(tables)).Project(context.Background(), models.Selection{RegionID: "north", Year: 2030})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	errored := map[models.Service]bool{}
	for _, issue := range p.Issues {
		if issue.Severity == models.SeverityError {
			if issue.Kind != models.KindConfiguration {
				t.Fatalf("unexpected issue kind %+v", issue)
			}
			errored[issue.Service] = true
		}
	}
	for _, s := range []models.Service{models.EmergencyMedicine, models.Radiology, models.Laboratory} {
		if !errored[s] {
			t.Errorf("expected configuration error for %s", s)
		}
		if _, ok := find(p.Rooms, func(r models.RoomRequirement) bool { return r.Service == s }); ok {
			t.Errorf("%s should have no room requirement", s)
		}
	}
	if _, ok := find(p.Rooms, func(r models.RoomRequirement) bool { return r.Service == models.GeneralPractice }); !ok {
		t.Error("general practice should still be sized")
	}
	if len(p.Visits) != len(models.ServiceCatalog) {
		t.Errorf("visits must be reported for every service, got %d", len(p.Visits))
	}
}

func TestProjectWarnsOnFallbacks(t *testing.T) {
	logger.Silence()
	tables := fixture()
	tables.VisitTimes = tables.VisitTimes[:1] // general practice only
	tables.Occupancy = []models.OccupancyRate{{Key: string(models.PrimaryCare), VirtualRate: 0.2, InPersonRate: 0.6}}

	p, err := NewEngine(scenario.NewManager(tables), WithDefaultDuration(15)).Project(context.Background(), models.Selection{RegionID: "north", Year: 2030})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, issue := range p.Issues {
		if issue.Severity != models.SeverityWarning {
			t.Fatalf("expected warnings only, got %+v", issue)
		}
	}
	cardio, ok := find(p.Rooms, func(r models.RoomRequirement) bool { return r.Service == models.Cardiology })
	if !ok || cardio.DurationMinutes != 15 {
		t.Fatalf("expected default duration for cardiology, got %+v", cardio)
	}
	gp, _ := find(p.Rooms, func(r models.RoomRequirement) bool { return r.Service == models.GeneralPractice })
	if math.Abs(gp.VirtualVisits-25000) > 1e-6 || math.Abs(gp.InPersonVisits-75000) > 1e-6 {
		t.Fatalf("occupancy should be rescaled to 0.25/0.75, got %+v", gp)
	}
}

func TestProjectRejectsInvalidSelection(t *testing.T) {
	engine := NewEngine(scenario.NewManager(fixture()))
	cases := []models.Selection{
		{RegionID: "", Year: 2030},
		{RegionID: "north", Year: 0},
		{RegionID: "north", Year: 2030, Scenario: "pessimistic"},
	}
	for _, sel := range cases {
		if _, err := engine.Project(context.Background(), sel); !models.IsInputValidationError(err) {
			t.Errorf("selection %+v: expected validation error, got %v", sel, err)
		}
	}
}

func TestProjectUsesCacheUntilTablesChange(t *testing.T) {
	logger.Silence()
	manager := scenario.NewManager(fixture())
	cache := newMemoryCache()
	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	engine := NewEngine(manager, WithCache(cache), WithMetrics(collector))
	sel := models.Selection{RegionID: "north", Year: 2030, Scenario: models.ScenarioModel}

	if _, err := engine.Project(context.Background(), sel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := engine.Project(context.Background(), sel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := testutil.ToFloat64(collector.Projections.WithLabelValues("model", "cached")); got != 1 {
		t.Fatalf("cached projections = %v, want 1", got)
	}

	if err := manager.SetRateOverrides([]models.VisitRate{
		{Service: models.GeneralPractice, AgeGroup: models.Age30to44, Scenario: models.ScenarioModel, MaleRate: 2000, FemaleRate: 2000},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err := engine.Project(context.Background(), sel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Visits[0].TotalVisits != 200000 {
		t.Fatalf("override not applied, GP visits = %v", p.Visits[0].TotalVisits)
	}
	if got := testutil.ToFloat64(collector.Projections.WithLabelValues("model", "computed")); got != 2 {
		t.Fatalf("computed projections = %v, want 2", got)
	}
	if len(cache.items) != 2 {
		t.Fatalf("cache entries = %d, want 2", len(cache.items))
	}
}

func TestCompareRunsEveryScenario(t *testing.T) {
	logger.Silence()
	engine := NewEngine(scenario.NewManager(fixture()), WithMaxWorkers(2))

	projections, err := engine.Compare(context.Background(), "north", 2030)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(projections) != len(models.Scenarios) {
		t.Fatalf("projections = %d, want %d", len(projections), len(models.Scenarios))
	}
	want := []float64{100000, 50000, 200000}
	for i, p := range projections {
		if p.Selection.Scenario != models.Scenarios[i] {
			t.Fatalf("result %d has scenario %q", i, p.Selection.Scenario)
		}
		if p.Visits[0].TotalVisits != want[i] {
			t.Errorf("%s GP visits = %v, want %v", p.Selection.Scenario, p.Visits[0].TotalVisits, want[i])
		}
	}

	if _, err := engine.Compare(context.Background(), "", 2030, models.ScenarioModel); !models.IsInputValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCacheKeyIncludesVersion(t *testing.T) {
	sel := models.Selection{RegionID: "north", Year: 2030, Scenario: models.ScenarioModel}
	if CacheKey(sel, 1) == CacheKey(sel, 2) {
		t.Fatal("keys must differ across table versions")
	}
	if got := CacheKey(sel, 3); got != "projection:north:2030:model:v3" {
		t.Fatalf("unexpected key %q", got)
	}
}

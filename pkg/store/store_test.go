package store

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/synaptica-ai/capacity-planner/pkg/common/kafka"
	"github.com/synaptica-ai/capacity-planner/pkg/common/logger"
	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

func TestDefaultTablesAreCompleteAndValid(t *testing.T) {
	tables := DefaultTables()
	issues, err := Validate(tables)
	if err != nil {
		t.Fatalf("default tables rejected: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("default tables should have no gaps, got %+v", issues)
	}
	want := len(models.ServiceCatalog) * len(models.Scenarios) * len(models.AgeGroups)
	if len(tables.VisitRates) != want {
		t.Fatalf("visit rates = %d, want %d", len(tables.VisitRates), want)
	}
}

func TestDefaultTablesScenarioFactors(t *testing.T) {
	rates := make(map[models.RateKey]models.VisitRate)
	for _, r := range DefaultTables().VisitRates {
		rates[r.Key()] = r
	}
	model := rates[models.RateKey{Service: models.GeneralPractice, AgeGroup: models.Age65Plus, Scenario: models.ScenarioModel}]
	high := rates[models.RateKey{Service: models.GeneralPractice, AgeGroup: models.Age65Plus, Scenario: models.ScenarioHighRisk}]
	if model.MaleRate != 5200 || math.Abs(high.MaleRate-6240) > 1e-9 {
		t.Fatalf("unexpected rates model=%v high=%v", model.MaleRate, high.MaleRate)
	}
}

func TestLoadSeedFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.yaml")
	content := `
populations:
  - id: north-residents
    region_id: north
    population_type: Residents
    default_factor: 1
    divisor: 1
    year_values:
      2030: 1000
age_distributions:
  - shares:
      "0-4": 0.5
      "65+": 0.5
visit_rates:
  - service: General Practice
    age_group: "65+"
    scenario: model
    male_rate: 4000
    female_rate: 5000
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	tables, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tables.Populations) != 1 || tables.Populations[0].YearValues[2030] != 1000 {
		t.Fatalf("unexpected populations %+v", tables.Populations)
	}
	if tables.AgeDistributions[0].Shares[models.Age65Plus] != 0.5 {
		t.Fatalf("unexpected shares %+v", tables.AgeDistributions[0].Shares)
	}
	if tables.VisitRates[0].Service != models.GeneralPractice || tables.VisitRates[0].FemaleRate != 5000 {
		t.Fatalf("unexpected rates %+v", tables.VisitRates)
	}
}

func TestLoadSeedErrors(t *testing.T) {
	if _, err := LoadSeed(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("occupancy: []\n"), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := LoadSeed(path); err == nil {
		t.Fatal("expected error for empty tables")
	}
	tables, err := LoadSeed("")
	if err != nil || len(tables.VisitRates) == 0 {
		t.Fatalf("empty path should give defaults, got err=%v", err)
	}
}

func TestValidateRejectsOutOfRangeValues(t *testing.T) {
	cases := map[string]func(*models.TableSet){
		"negative rate": func(ts *models.TableSet) { ts.VisitRates[0].MaleRate = -1 },
		"occupancy > 1": func(ts *models.TableSet) { ts.Occupancy[0].VirtualRate = 1.5 },
		"percent > 100": func(ts *models.TableSet) { ts.VisitTimes[0].PercentNewVisits = 120 },
		"8 day week":    func(ts *models.TableSet) { ts.Operational[0].WorkingDaysPerWeek = 8 },
		"negative pop":  func(ts *models.TableSet) { ts.Populations[0].YearValues[2030] = -5 },
		"ratio > 1":     func(ts *models.TableSet) { ts.GenderBaselines[0].MaleRatio = 1.1 },
		"unknown population type": func(ts *models.TableSet) {
			ts.Populations = append(ts.Populations, models.PopulationRecord{
				ID: "central-tourists", RegionID: "central", PopulationType: "Tourists",
				DefaultFactor: 1, Divisor: 1, YearValues: map[int]float64{2030: 500000},
			})
		},
		"unknown distribution type": func(ts *models.TableSet) { ts.AgeDistributions[0].PopulationType = "Visitors" },
		"negative age share": func(ts *models.TableSet) {
			ts.AgeDistributions[0].Shares[models.Age0to4] = -0.5
			ts.AgeDistributions[0].Shares[models.Age65Plus] += 0.5
		},
		"negative band share": func(ts *models.TableSet) {
			band := ts.WorkingAgeDistributions[0].Bands[models.Age20to29]
			band.Share = -0.1
			ts.WorkingAgeDistributions[0].Bands[models.Age20to29] = band
		},
		"band ratio > 1": func(ts *models.TableSet) {
			band := ts.WorkingAgeDistributions[0].Bands[models.Age20to29]
			band.MaleRatio = 1.4
			ts.WorkingAgeDistributions[0].Bands[models.Age20to29] = band
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			tables := DefaultTables()
			mutate(&tables)
			if _, err := Validate(tables); !models.IsInputValidationError(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestValidateWarnsOnGaps(t *testing.T) {
	tables := DefaultTables()
	tables.VisitRates = tables.VisitRates[1:]
	tables.Occupancy[0].VirtualRate = 0.5
	tables.Populations[0].Divisor = 0

	issues, err := Validate(tables)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var missingRate, occupancy, divisor bool
	for _, issue := range issues {
		if issue.Severity != models.SeverityWarning {
			t.Fatalf("expected warnings only, got %+v", issue)
		}
		switch {
		case issue.Service == models.GeneralPractice && issue.Detail == "1 of 6 age groups have no model visit rate":
			missingRate = true
		case issue.Kind == models.KindConfiguration:
			divisor = true
		case issue.Service == models.Paediatrics:
			occupancy = true
		}
	}
	if !missingRate || !occupancy || !divisor {
		t.Fatalf("missing expected warnings: rate=%v occupancy=%v divisor=%v (%+v)", missingRate, occupancy, divisor, issues)
	}
}

func TestToModelsRoundTripsYearValues(t *testing.T) {
	tables := DefaultTables()
	rows, err := toModels(tables)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	record, err := fromPopulationModel(rows.populations[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.YearValues[2030] != tables.Populations[0].YearValues[2030] {
		t.Fatalf("year values differ: %v vs %v", record.YearValues[2030], tables.Populations[0].YearValues[2030])
	}
	if len(rows.rates) != len(tables.VisitRates) || len(rows.settings) != len(tables.Operational) {
		t.Fatal("row counts differ from tables")
	}
}

type fakeLoader struct {
	tables models.TableSet
	err    error
}

func (f fakeLoader) LoadTables(context.Context) (models.TableSet, error) {
	return f.tables, f.err
}

type recordingReceiver struct {
	got []models.TableSet
}

func (r *recordingReceiver) ReplaceBaseline(tables models.TableSet) {
	r.got = append(r.got, tables)
}

func TestReloadHandler(t *testing.T) {
	logger.Silence()
	receiver := &recordingReceiver{}
	handler := ReloadHandler(fakeLoader{tables: DefaultTables()}, receiver)

	if err := handler(context.Background(), models.Event{Type: kafka.EventPlanSaved}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(receiver.got) != 0 {
		t.Fatal("unrelated events must not reload")
	}
	if err := handler(context.Background(), models.Event{Type: kafka.EventTablesUpdated}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(receiver.got) != 1 {
		t.Fatalf("expected one reload, got %d", len(receiver.got))
	}

	bad := DefaultTables()
	bad.VisitRates[0].FemaleRate = -3
	rejecting := ReloadHandler(fakeLoader{tables: bad}, receiver)
	if err := rejecting(context.Background(), models.Event{Type: kafka.EventTablesUpdated}); err == nil {
		t.Fatal("invalid tables must be rejected")
	}

	failing := ReloadHandler(fakeLoader{err: errors.New("db down")}, receiver)
	if err := failing(context.Background(), models.Event{Type: kafka.EventTablesUpdated}); err == nil {
		t.Fatal("loader error must be returned")
	}
	if len(receiver.got) != 1 {
		t.Fatalf("failed reloads must not install tables, got %d", len(receiver.got))
	}
}

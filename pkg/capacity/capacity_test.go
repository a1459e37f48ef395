package capacity

import (
	"errors"
	"math"
	"testing"

	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

func TestComputeSlotCalculationReferenceCase(t *testing.T) {
	op := models.OperationalSetting{CareSetting: models.PrimaryCare, WorkingDaysPerWeek: 6, WorkingWeeksPerYear: 50, WorkingHoursPerDay: 12}
	a := models.VisitTimeAssumption{CareSetting: models.PrimaryCare, Service: models.GeneralPractice,
		NewVisitDuration: 30, FollowUpVisitDuration: 20, PercentNewVisits: 10}

	got, err := ComputeSlotCalculation(op, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got.AverageVisitDuration-29.0) > 1e-9 {
		t.Errorf("average_visit_duration = %v, want 29", got.AverageVisitDuration)
	}
	if got.AvailableDaysPerYear != 300 {
		t.Errorf("available_days_per_year = %v, want 300", got.AvailableDaysPerYear)
	}
	if got.TotalMinutesPerYear != 216000 {
		t.Errorf("total_minutes_per_year = %v, want 216000", got.TotalMinutesPerYear)
	}
	if got.TotalSlotsPerYear != 7448 {
		t.Errorf("total_slots_per_year = %d, want 7448", got.TotalSlotsPerYear)
	}
	if got.NewVisitsPerYear != 744 {
		t.Errorf("new_visits_per_year = %d, want 744", got.NewVisitsPerYear)
	}
	if got.FollowUpVisitsPerYear != 6704 {
		t.Errorf("follow_up_visits_per_year = %d, want 6704", got.FollowUpVisitsPerYear)
	}
	if got.SlotsPerDay != 24 {
		t.Errorf("slots_per_day = %d, want 24", got.SlotsPerDay)
	}
}

func TestComputeSlotCalculationRejectsZeroDivisions(t *testing.T) {
	valid := models.VisitTimeAssumption{NewVisitDuration: 30, FollowUpVisitDuration: 20, PercentNewVisits: 10}
	cases := []struct {
		name string
		op   models.OperationalSetting
		a    models.VisitTimeAssumption
		want error
	}{
		{"no days", models.OperationalSetting{WorkingDaysPerWeek: 0, WorkingWeeksPerYear: 50, WorkingHoursPerDay: 8}, valid, models.ErrZeroAvailableDays},
		{"no weeks", models.OperationalSetting{WorkingDaysPerWeek: 5, WorkingWeeksPerYear: 0, WorkingHoursPerDay: 8}, valid, models.ErrZeroAvailableDays},
		{"no hours", models.OperationalSetting{WorkingDaysPerWeek: 5, WorkingWeeksPerYear: 50, WorkingHoursPerDay: 0}, valid, models.ErrZeroAvailableMinutes},
		{"no duration", models.OperationalSetting{WorkingDaysPerWeek: 5, WorkingWeeksPerYear: 50, WorkingHoursPerDay: 8}, models.VisitTimeAssumption{PercentNewVisits: 50}, models.ErrZeroDuration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeSlotCalculation(tc.op, tc.a)
			if !models.IsConfigurationError(err) || !errors.Is(err, tc.want) {
				t.Fatalf("expected configuration error %v, got %v", tc.want, err)
			}
		})
	}
}

func TestComputeSlotCalculationRejectsNegativeInputs(t *testing.T) {
	op := models.OperationalSetting{WorkingDaysPerWeek: -1, WorkingWeeksPerYear: 50, WorkingHoursPerDay: 8}
	if _, err := ComputeSlotCalculation(op, models.VisitTimeAssumption{NewVisitDuration: 10}); !models.IsInputValidationError(err) {
		t.Fatalf("expected input validation error, got %v", err)
	}
	op.WorkingDaysPerWeek = 5
	if _, err := ComputeSlotCalculation(op, models.VisitTimeAssumption{NewVisitDuration: -10}); !models.IsInputValidationError(err) {
		t.Fatalf("expected input validation error, got %v", err)
	}
}

func TestAverageDurationClampsPercent(t *testing.T) {
	a := models.VisitTimeAssumption{NewVisitDuration: 40, FollowUpVisitDuration: 10}
	a.PercentNewVisits = 150
	if got := AverageDuration(a); got != 10 {
		t.Errorf("percent above 100: got %v, want 10", got)
	}
	a.PercentNewVisits = -20
	if got := AverageDuration(a); got != 40 {
		t.Errorf("negative percent: got %v, want 40", got)
	}
}

func TestDurationResolverFallsBackToDefault(t *testing.T) {
	r := NewDurationResolver([]models.VisitTimeAssumption{
		{CareSetting: models.SpecialistCare, Service: models.Cardiology, NewVisitDuration: 30, FollowUpVisitDuration: 20, PercentNewVisits: 10},
		{CareSetting: models.PrimaryCare, NewVisitDuration: 15, FollowUpVisitDuration: 15, PercentNewVisits: 50},
	}, 20)

	if d, issue := r.Resolve(models.Cardiology, models.SpecialistCare); issue != nil || math.Abs(d-29) > 1e-9 {
		t.Errorf("service row: got %v issue=%v", d, issue)
	}
	if d, issue := r.Resolve(models.Dental, models.PrimaryCare); issue != nil || d != 15 {
		t.Errorf("care setting row: got %v issue=%v", d, issue)
	}
	d, issue := r.Resolve(models.Radiology, models.DiagnosticsSetting)
	if d != 20 || issue == nil || issue.Severity != models.SeverityWarning {
		t.Errorf("default: got %v issue=%v", d, issue)
	}
}

func TestRoomRequirementAlwaysRoundsUp(t *testing.T) {
	occ := models.OccupancyRate{Key: "Cardiology", VirtualRate: 0.35, InPersonRate: 0.65}
	got, err := ComputeRoomRequirement(100, occ, 25, 216000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got.VirtualVisits*got.DurationMinutes-875) > 1e-9 {
		t.Errorf("virtual minutes = %v, want 875", got.VirtualVisits*got.DurationMinutes)
	}
	if got.VirtualRooms != 1 || got.InPersonRooms != 1 || got.TotalRooms != 2 {
		t.Fatalf("rooms = %d/%d/%d, want 1/1/2", got.VirtualRooms, got.InPersonRooms, got.TotalRooms)
	}

	tiny, _ := ComputeRoomRequirement(0.0001, occ, 1, 216000)
	if tiny.VirtualRooms != 1 || tiny.InPersonRooms != 1 {
		t.Fatalf("nonzero demand must need a room, got %+v", tiny)
	}

	none, _ := ComputeRoomRequirement(0, occ, 25, 216000)
	if none.TotalRooms != 0 {
		t.Fatalf("zero demand needs no rooms, got %d", none.TotalRooms)
	}
}

func TestRoomRequirementExactMultiples(t *testing.T) {
	occ := models.OccupancyRate{VirtualRate: 0, InPersonRate: 1}
	noisy := 0.1 * 3
	got, err := ComputeRoomRequirement(noisy*72000, occ, 20, 216000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.InPersonRooms != 2 {
		t.Fatalf("in-person rooms = %d, want 2", got.InPersonRooms)
	}
}

func TestRoomRequirementRejectsZeroMinutes(t *testing.T) {
	_, err := ComputeRoomRequirement(10, models.OccupancyRate{InPersonRate: 1}, 20, 0)
	if !errors.Is(err, models.ErrZeroAvailableMinutes) {
		t.Fatalf("expected ErrZeroAvailableMinutes, got %v", err)
	}
	_, err = ComputeRoomRequirement(-1, models.OccupancyRate{InPersonRate: 1}, 20, 1000)
	if !models.IsInputValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRoomRequirementRejectsNonFiniteInputs(t *testing.T) {
	occ := models.OccupancyRate{InPersonRate: 1}
	cases := map[string][3]float64{
		"infinite duration": {10, math.Inf(1), 216000},
		"infinite minutes":  {10, 20, math.Inf(1)},
		"overflowing rooms": {1e300, 1e10, 1},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ComputeRoomRequirement(in[0], occ, in[1], in[2]); !models.IsInputValidationError(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestNormalizeOccupancy(t *testing.T) {
	cases := []struct {
		in           models.OccupancyRate
		wantVirtual  float64
		wantInPerson float64
		adjusted     bool
	}{
		{models.OccupancyRate{VirtualRate: 0.35, InPersonRate: 0.65}, 0.35, 0.65, false},
		{models.OccupancyRate{VirtualRate: 0.2, InPersonRate: 0.6}, 0.25, 0.75, true},
		{models.OccupancyRate{}, 0, 1, true},
	}
	for _, tc := range cases {
		got, adjusted := NormalizeOccupancy(tc.in)
		if adjusted != tc.adjusted || math.Abs(got.VirtualRate-tc.wantVirtual) > 1e-9 || math.Abs(got.InPersonRate-tc.wantInPerson) > 1e-9 {
			t.Errorf("NormalizeOccupancy(%+v) = %+v, %v", tc.in, got, adjusted)
		}
	}
}

func TestSplitChannelsMultipliesIndependently(t *testing.T) {
	split := SplitChannels(1000, models.OccupancyRate{VirtualRate: 0.3, InPersonRate: 0.9})
	if math.Abs(split.Virtual-300) > 1e-9 || math.Abs(split.InPerson-900) > 1e-9 {
		t.Fatalf("split = %+v", split)
	}
}

func TestOccupancyLookupPrefersServiceRow(t *testing.T) {
	l := NewOccupancyLookup([]models.OccupancyRate{
		{Key: string(models.SpecialistCare), VirtualRate: 0.2, InPersonRate: 0.8},
		{Key: string(models.Dermatology), VirtualRate: 0.5, InPersonRate: 0.5},
	})
	if row, _ := l.For(models.Dermatology, models.SpecialistCare); row.VirtualRate != 0.5 {
		t.Errorf("expected service row, got %+v", row)
	}
	if row, _ := l.For(models.Cardiology, models.SpecialistCare); row.VirtualRate != 0.2 {
		t.Errorf("expected care setting row, got %+v", row)
	}
	if _, ok := l.For(models.Laboratory, models.DiagnosticsSetting); ok {
		t.Error("expected no row")
	}
}

func TestRollUpBySetting(t *testing.T) {
	rolled := RollUpBySetting([]models.RoomRequirement{
		{CareSetting: models.SpecialistCare, VirtualRooms: 1, InPersonRooms: 2, TotalRooms: 3},
		{CareSetting: models.PrimaryCare, VirtualRooms: 0, InPersonRooms: 4, TotalRooms: 4},
		{CareSetting: models.SpecialistCare, VirtualRooms: 1, InPersonRooms: 1, TotalRooms: 2},
	})
	if len(rolled) != 2 || rolled[0].CareSetting != models.PrimaryCare || rolled[1].TotalRooms != 5 {
		t.Fatalf("unexpected roll-up %+v", rolled)
	}
}

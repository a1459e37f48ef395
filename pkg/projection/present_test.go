package projection

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

func TestWholeRoundsHalfAwayFromZero(t *testing.T) {
	cases := map[float64]string{
		2.5:       "3",
		2.4999:    "2",
		1234.5678: "1235",
		0:         "0",
	}
	for in, want := range cases {
		if got := Whole(in).String(); got != want {
			t.Errorf("Whole(%v) = %s, want %s", in, got, want)
		}
	}
}

func sampleProjection() models.Projection {
	return models.Projection{
		Selection:  models.Selection{RegionID: "north", Year: 2030, Scenario: models.ScenarioModel},
		Population: 1234.6,
		Visits: []models.ServiceVisitResult{
			{Service: models.GeneralPractice, CareSetting: models.PrimaryCare, MaleVisits: 10.4, FemaleVisits: 20.6, TotalVisits: 31},
			{Service: models.Cardiology, CareSetting: models.SpecialistCare, MaleVisits: 1.5, FemaleVisits: 0, TotalVisits: 1.5, Flagged: true},
		},
		Slots: []models.SlotCalculation{
			{Service: models.GeneralPractice, AverageVisitDuration: 29, TotalSlotsPerYear: 7448, SlotsPerDay: 24},
		},
		Rooms: []models.RoomRequirement{
			{Service: models.GeneralPractice, VirtualVisits: 10.85, InPersonVisits: 20.15, VirtualRooms: 1, InPersonRooms: 1, TotalRooms: 2},
		},
		Issues: []models.Issue{
			{Severity: models.SeverityWarning},
			{Severity: models.SeverityError},
			{Severity: models.SeverityWarning},
		},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleProjection())
	if s.Population.String() != "1235" || s.TotalVisits.String() != "33" {
		t.Fatalf("unexpected totals population=%s visits=%s", s.Population, s.TotalVisits)
	}
	if s.TotalRooms != 2 || s.Warnings != 2 || s.Errors != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if len(s.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(s.Rows))
	}
	cardio := s.Rows[1]
	if cardio.TotalRooms != 0 || cardio.TotalSlotsPerYear != 0 || !cardio.Flagged || cardio.TotalVisits.String() != "2" {
		t.Fatalf("unexpected cardiology row %+v", cardio)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleProjection()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want header plus 2 rows", len(records))
	}
	if len(records[0]) != len(csvHeader) || records[0][0] != "service" {
		t.Fatalf("unexpected header %v", records[0])
	}
	gp := records[1]
	want := []string{"General Practice", "Primary Care", "10", "21", "31", "11", "20", "29.0", "7448", "24", "1", "1", "2", "false"}
	for i := range want {
		if gp[i] != want[i] {
			t.Errorf("column %s = %q, want %q", csvHeader[i], gp[i], want[i])
		}
	}
}

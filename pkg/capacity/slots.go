package capacity

import (
	"math"

	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

func ValidateOperational(op models.OperationalSetting) error {
	switch {
	case op.WorkingDaysPerWeek < 0 || op.WorkingDaysPerWeek > 7 || math.IsNaN(op.WorkingDaysPerWeek):
		return models.InputValidationError{Field: "working_days_per_week", Value: op.WorkingDaysPerWeek, Reason: "must be within [0,7]"}
	case op.WorkingWeeksPerYear < 0 || op.WorkingWeeksPerYear > 53 || math.IsNaN(op.WorkingWeeksPerYear):
		return models.InputValidationError{Field: "working_weeks_per_year", Value: op.WorkingWeeksPerYear, Reason: "must be within [0,53]"}
	case op.WorkingHoursPerDay < 0 || op.WorkingHoursPerDay > 24 || math.IsNaN(op.WorkingHoursPerDay):
		return models.InputValidationError{Field: "working_hours_per_day", Value: op.WorkingHoursPerDay, Reason: "must be within [0,24]"}
	}
	return nil
}

func ValidateAssumption(a models.VisitTimeAssumption) error {
	switch {
	case a.NewVisitDuration < 0 || math.IsNaN(a.NewVisitDuration):
		return models.InputValidationError{Field: "new_visit_duration_min", Value: a.NewVisitDuration, Reason: "must not be negative"}
	case a.FollowUpVisitDuration < 0 || math.IsNaN(a.FollowUpVisitDuration):
		return models.InputValidationError{Field: "follow_up_visit_duration_min", Value: a.FollowUpVisitDuration, Reason: "must not be negative"}
	}
	return nil
}

// ComputeSlotCalculation converts a care setting's working pattern into
// yearly and daily visit slots sized by the assumption's average duration.
func ComputeSlotCalculation(op models.OperationalSetting, a models.VisitTimeAssumption) (models.SlotCalculation, error) {
	if err := ValidateOperational(op); err != nil {
		return models.SlotCalculation{}, err
	}
	if err := ValidateAssumption(a); err != nil {
		return models.SlotCalculation{}, err
	}

	availableDays := op.AvailableDaysPerYear()
	if availableDays == 0 {
		return models.SlotCalculation{}, models.ConfigurationError{
			Scope: string(op.CareSetting), Field: "available_days_per_year",
			Reason: "working days per week and weeks per year leave no working days", Err: models.ErrZeroAvailableDays,
		}
	}
	totalMinutes := op.TotalMinutesPerYear()
	if totalMinutes == 0 {
		return models.SlotCalculation{}, models.ConfigurationError{
			Scope: string(op.CareSetting), Field: "working_hours_per_day",
			Reason: "no working minutes per year", Err: models.ErrZeroAvailableMinutes,
		}
	}
	avg := AverageDuration(a)
	if avg <= 0 {
		return models.SlotCalculation{}, models.ConfigurationError{
			Scope: string(a.Service), Field: "average_visit_duration",
			Reason: "average visit duration is zero", Err: models.ErrZeroDuration,
		}
	}

	totalSlots := int64(math.Floor(totalMinutes / avg))
	newVisits := int64(math.Floor(float64(totalSlots) * ClampPercent(a.PercentNewVisits) / 100))
	return models.SlotCalculation{
		Service:               a.Service,
		CareSetting:           op.CareSetting,
		TotalMinutesPerYear:   totalMinutes,
		AvailableDaysPerYear:  availableDays,
		AverageVisitDuration:  avg,
		TotalSlotsPerYear:     totalSlots,
		NewVisitsPerYear:      newVisits,
		FollowUpVisitsPerYear: totalSlots - newVisits,
		SlotsPerDay:           int64(math.Floor(float64(totalSlots) / availableDays)),
	}, nil
}

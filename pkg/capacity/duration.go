package capacity

import (
	"fmt"
	"math"

	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

// ClampPercent bounds a percentage to [0,100].
func ClampPercent(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// AverageDuration is the weighted visit length of an assumption row. The
// percentage weights the follow-up duration and its complement the new-visit
// duration: 30/20 minutes at 10% averages 29 minutes.
func AverageDuration(assumption models.VisitTimeAssumption) float64 {
	p := ClampPercent(assumption.PercentNewVisits) / 100
	return assumption.NewVisitDuration*(1-p) + assumption.FollowUpVisitDuration*p
}

// DurationResolver finds the visit-time assumption of a service and falls
// back to a system-wide default duration when none is stored.
type DurationResolver struct {
	byService       map[models.Service]models.VisitTimeAssumption
	bySetting       map[models.CareSetting]models.VisitTimeAssumption
	defaultDuration float64
}

func NewDurationResolver(assumptions []models.VisitTimeAssumption, defaultDuration float64) *DurationResolver {
	r := &DurationResolver{
		byService:       make(map[models.Service]models.VisitTimeAssumption),
		bySetting:       make(map[models.CareSetting]models.VisitTimeAssumption),
		defaultDuration: defaultDuration,
	}
	for _, a := range assumptions {
		if a.Service != "" {
			r.byService[a.Service] = a
			continue
		}
		r.bySetting[a.CareSetting] = a
	}
	return r
}

// Assumption returns the stored row for the service, if any.
func (r *DurationResolver) Assumption(service models.Service, setting models.CareSetting) (models.VisitTimeAssumption, bool) {
	if a, ok := r.byService[service]; ok {
		return a, true
	}
	a, ok := r.bySetting[setting]
	return a, ok
}

// Resolve returns the average duration for the service. The issue is set
// when the default duration was used.
func (r *DurationResolver) Resolve(service models.Service, setting models.CareSetting) (float64, *models.Issue) {
	if a, ok := r.Assumption(service, setting); ok {
		return AverageDuration(a), nil
	}
	issue := models.CompletenessWarning(service, "",
		fmt.Sprintf("no visit-time assumption; using default %.1f minute visits", r.defaultDuration))
	return r.defaultDuration, &issue
}

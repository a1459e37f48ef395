package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/synaptica-ai/capacity-planner/pkg/capacity"
	"github.com/synaptica-ai/capacity-planner/pkg/common/kafka"
	"github.com/synaptica-ai/capacity-planner/pkg/common/logger"
	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
	"github.com/synaptica-ai/capacity-planner/pkg/scenario"
)

// SessionHeader carries the planner session whose latest selection wins.
const SessionHeader = "X-Planner-Session"

// OverrideStore persists the override layer across restarts.
type OverrideStore interface {
	SaveRateOverrides(ctx context.Context, rates []models.VisitRate) error
	SaveGenderOverrides(ctx context.Context, overrides []models.GenderOverride) error
	ClearOverrides(ctx context.Context) error
}

type Handler struct {
	engine    *Engine
	manager   *scenario.Manager
	sessions  *scenario.Registry
	overrides OverrideStore
	events    kafka.Publisher
}

func NewHandler(engine *Engine, manager *scenario.Manager, overrides OverrideStore, events kafka.Publisher) *Handler {
	if events == nil {
		events = kafka.NopPublisher{}
	}
	return &Handler{
		engine:    engine,
		manager:   manager,
		sessions:  scenario.NewRegistry(0, 0),
		overrides: overrides,
		events:    events,
	}
}

// WithSessions replaces the session registry, typically to apply configured
// idle and size limits.
func (h *Handler) WithSessions(sessions *scenario.Registry) *Handler {
	h.sessions = sessions
	return h
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/projections", h.handleProject).Methods(http.MethodGet)
	r.HandleFunc("/projections/compare", h.handleCompare).Methods(http.MethodGet)
	r.HandleFunc("/projections/export", h.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/current", h.handleSessionCurrent).Methods(http.MethodGet)
	r.HandleFunc("/slots", h.handleSlots).Methods(http.MethodPost)
	r.HandleFunc("/rooms", h.handleRooms).Methods(http.MethodPost)
	r.HandleFunc("/overrides", h.handleListOverrides).Methods(http.MethodGet)
	r.HandleFunc("/overrides/rates", h.handleRateOverrides).Methods(http.MethodPut)
	r.HandleFunc("/overrides/gender", h.handleGenderOverrides).Methods(http.MethodPut)
	r.HandleFunc("/overrides/reset", h.handleResetOverrides).Methods(http.MethodPost)
}

func (h *Handler) handleProject(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var session *scenario.Session
	var ticket scenario.Ticket
	if id := r.Header.Get(SessionHeader); id != "" {
		session = h.sessions.Session(id)
		ticket = session.Begin(sel)
	}

	projection, err := h.engine.Project(r.Context(), sel)
	if err != nil {
		writeError(w, err)
		return
	}
	if session != nil && !session.Deliver(ticket, projection) {
		http.Error(w, "superseded by a newer selection", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"projection": projection,
		"summary":    Summarize(projection),
	})
}

func (h *Handler) handleSessionCurrent(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessions.Lookup(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	projection, ok := session.Current()
	if !ok {
		http.Error(w, "no projection delivered yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"projection": projection})
}

func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := parseYear(q.Get("year"))
	if err != nil {
		writeError(w, err)
		return
	}
	var scenarios []models.Scenario
	if raw := q.Get("scenarios"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			sc, err := models.ParseScenario(part)
			if err != nil {
				writeError(w, err)
				return
			}
			scenarios = append(scenarios, sc)
		}
	}

	projections, err := h.engine.Compare(r.Context(), q.Get("region"), year, scenarios...)
	if err != nil {
		writeError(w, err)
		return
	}
	summaries := make([]Summary, 0, len(projections))
	for _, p := range projections {
		summaries = append(summaries, Summarize(p))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": projections, "summaries": summaries})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r)
	if err != nil {
		writeError(w, err)
		return
	}
	projection, err := h.engine.Project(r.Context(), sel)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=projection-%s-%d-%s.csv", sel.RegionID, sel.Year, sel.Scenario))
	if err := WriteCSV(w, projection); err != nil {
		logger.Log.WithError(err).Error("failed to write projection export")
	}
}

type slotRequest struct {
	Operational models.OperationalSetting  `json:"operational"`
	Assumption  models.VisitTimeAssumption `json:"assumption"`
}

func (h *Handler) handleSlots(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	slot, err := capacity.ComputeSlotCalculation(req.Operational, req.Assumption)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"slots": slot})
}

type roomRequest struct {
	Visits              float64              `json:"visits"`
	Occupancy           models.OccupancyRate `json:"occupancy"`
	DurationMinutes     float64              `json:"duration_minutes"`
	TotalMinutesPerYear float64              `json:"total_minutes_per_year"`
}

func (h *Handler) handleRooms(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	room, err := capacity.ComputeRoomRequirement(req.Visits, req.Occupancy, req.DurationMinutes, req.TotalMinutesPerYear)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": room})
}

func (h *Handler) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	rates, gender := h.manager.Overrides()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rates":         rates,
		"gender":        gender,
		"table_version": h.manager.Version(),
	})
}

func (h *Handler) handleRateOverrides(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Rates []models.VisitRate `json:"rates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	for _, rate := range payload.Rates {
		if err := scenario.ValidateRate(rate); err != nil {
			writeError(w, err)
			return
		}
	}
	if h.overrides != nil {
		if err := h.overrides.SaveRateOverrides(r.Context(), payload.Rates); err != nil {
			logger.Log.WithError(err).Error("failed to persist rate overrides")
			http.Error(w, "failed to save overrides", http.StatusInternalServerError)
			return
		}
	}
	if err := h.manager.SetRateOverrides(payload.Rates); err != nil {
		writeError(w, err)
		return
	}
	h.publish(r.Context(), kafka.EventRateOverridesSaved, map[string]interface{}{"rows": len(payload.Rates)})
	writeJSON(w, http.StatusOK, map[string]interface{}{"table_version": h.manager.Version()})
}

func (h *Handler) handleGenderOverrides(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Overrides []models.GenderOverride `json:"overrides"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	for _, o := range payload.Overrides {
		if err := scenario.ValidateGenderOverride(o); err != nil {
			writeError(w, err)
			return
		}
	}
	if h.overrides != nil {
		if err := h.overrides.SaveGenderOverrides(r.Context(), payload.Overrides); err != nil {
			logger.Log.WithError(err).Error("failed to persist gender overrides")
			http.Error(w, "failed to save overrides", http.StatusInternalServerError)
			return
		}
	}
	if err := h.manager.SetGenderOverrides(payload.Overrides); err != nil {
		writeError(w, err)
		return
	}
	h.publish(r.Context(), kafka.EventGenderOverridesSaved, map[string]interface{}{"rows": len(payload.Overrides)})
	writeJSON(w, http.StatusOK, map[string]interface{}{"table_version": h.manager.Version()})
}

func (h *Handler) handleResetOverrides(w http.ResponseWriter, r *http.Request) {
	if h.overrides != nil {
		if err := h.overrides.ClearOverrides(r.Context()); err != nil {
			logger.Log.WithError(err).Error("failed to clear overrides")
			http.Error(w, "failed to reset overrides", http.StatusInternalServerError)
			return
		}
	}
	h.manager.Reset()
	h.publish(r.Context(), kafka.EventOverridesReset, nil)
	writeJSON(w, http.StatusOK, map[string]interface{}{"table_version": h.manager.Version()})
}

func (h *Handler) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["table_version"] = h.manager.Version()
	if err := h.events.PublishEvent(ctx, eventType, "planner-service", data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("failed to publish planning event")
	}
}

func parseSelection(r *http.Request) (models.Selection, error) {
	q := r.URL.Query()
	year, err := parseYear(q.Get("year"))
	if err != nil {
		return models.Selection{}, err
	}
	sc, err := models.ParseScenario(q.Get("scenario"))
	if err != nil {
		return models.Selection{}, err
	}
	region := strings.TrimSpace(q.Get("region"))
	if region == "" {
		return models.Selection{}, models.InputValidationError{Field: "region", Value: region, Reason: "region is required"}
	}
	return models.Selection{RegionID: region, Year: year, Scenario: sc}, nil
}

func parseYear(raw string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || year <= 0 {
		return 0, models.InputValidationError{Field: "year", Value: raw, Reason: "year must be a positive integer"}
	}
	return year, nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case models.IsInputValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case models.IsConfigurationError(err):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		logger.Log.WithError(err).Error("projection request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}

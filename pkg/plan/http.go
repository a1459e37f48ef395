package plan

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/synaptica-ai/capacity-planner/pkg/common/logger"
	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

// ActorHeader names the planner saving a plan.
const ActorHeader = "X-Planner-User"

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/plans", h.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/plans", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/plans/{id}", h.handleGet).Methods(http.MethodGet)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	p, err := h.service.Create(r.Context(), req, r.Header.Get(ActorHeader))
	if err != nil {
		switch {
		case models.IsInputValidationError(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case models.IsConfigurationError(err):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			logger.Log.WithError(err).Error("failed to create plan")
			http.Error(w, "failed to create plan", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"plan": p})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.List(r.Context(), parseLimit(r, 50))
	if err != nil {
		logger.Log.WithError(err).Error("failed to list plans")
		http.Error(w, "failed to list plans", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": plans})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid plan id", http.StatusBadRequest)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "plan not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to get plan")
		http.Error(w, "failed to get plan", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plan": p})
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}

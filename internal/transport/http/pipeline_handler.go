package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"agent-backoffice/internal/app"
	"agent-backoffice/internal/domain"
	"go.uber.org/zap"
)

// PipelineHandler exposes the sales-pipeline dashboard as JSON.
type PipelineHandler struct {
	service *app.PipelineService
	logger  *zap.Logger

	mu         sync.RWMutex
	windowDays int
	staleDays  int
}

func NewPipelineHandler(service *app.PipelineService, windowDays, staleDays int, logger *zap.Logger) *PipelineHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineHandler{service: service, logger: logger, windowDays: windowDays, staleDays: staleDays}
}

// SetDefaults replaces the window and stale thresholds used when a request
// omits them.
func (h *PipelineHandler) SetDefaults(windowDays, staleDays int) {
	h.mu.Lock()
	h.windowDays, h.staleDays = windowDays, staleDays
	h.mu.Unlock()
}

func (h *PipelineHandler) defaults() (windowDays, staleDays int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.windowDays, h.staleDays
}

// Register mounts the pipeline routes on mux.
func (h *PipelineHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/pipeline", h.Summary)
	mux.HandleFunc("GET /api/pipeline/stages/{stage}", h.StageLeads)
}

// Summary serves GET /api/pipeline?windowDays=&staleDays=.
func (h *PipelineHandler) Summary(w http.ResponseWriter, r *http.Request) {
	defaultWindow, defaultStale := h.defaults()
	windowDays, err := intParam(r, "windowDays", defaultWindow)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	staleDays, err := intParam(r, "staleDays", defaultStale)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.service.Summary(r.Context(), windowDays, staleDays)
	if err != nil {
		h.logger.Error("pipeline summary failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "pipeline unavailable")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// StageLeads serves GET /api/pipeline/stages/{stage}?windowDays=.
func (h *PipelineHandler) StageLeads(w http.ResponseWriter, r *http.Request) {
	defaultWindow, _ := h.defaults()
	windowDays, err := intParam(r, "windowDays", defaultWindow)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stage := domain.LeadStatus(r.PathValue("stage"))
	leads, err := h.service.StageLeads(r.Context(), stage, windowDays)
	if errors.Is(err, domain.ErrUnknownStage) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("stage leads failed", zap.String("stage", string(stage)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "pipeline unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stage":     stage,
		"stageName": stage.Label(),
		"leads":     leads,
	})
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorPayload{Message: message})
}

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crucial707/aquamarine/internal/models"
	"github.com/crucial707/aquamarine/internal/scheduler"
	"github.com/crucial707/aquamarine/internal/service"
)

// ScheduleHandler serves device schedules and the live trigger table.
type ScheduleHandler struct {
	Service *service.ScheduleService
	Logger  *slog.Logger
}

// Create adds a daily schedule to a device. Body: {"schedule": "14:30", "is_on": true}.
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Schedule string `json:"schedule" validate:"required,hhmm"`
		IsOn     *bool  `json:"is_on" validate:"required"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	s, err := h.Service.Create(r.Context(), chi.URLParam(r, "device_id"), input.Schedule, *input.IsOn)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// ListByDevice returns the device's schedules ordered by time of day.
func (h *ScheduleHandler) ListByDevice(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListByDevice(r.Context(), chi.URLParam(r, "device_id"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.Schedule{"schedules": list})
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.Service.Get(r.Context(), chi.URLParam(r, "schedule_id"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), chi.URLParam(r, "schedule_id")); err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Triggers returns the armed triggers with their next run time.
func (h *ScheduleHandler) Triggers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]scheduler.Trigger{"triggers": h.Service.Triggers()})
}

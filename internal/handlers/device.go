package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crucial707/aquamarine/internal/models"
	"github.com/crucial707/aquamarine/internal/service"
)

// DeviceHandler serves the /device endpoints.
type DeviceHandler struct {
	Service *service.DeviceService
	Logger  *slog.Logger
}

type switchResponse struct {
	Message string `json:"message"`
	models.DeviceStatus
}

// Register creates a device. Body: {"device_name": "pump", "gpio_number": 18}.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input struct {
		DeviceName string `json:"device_name" validate:"required,min=1,max=255"`
		GPIONumber *int   `json:"gpio_number" validate:"required,gte=0"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	d, err := h.Service.Register(r.Context(), input.DeviceName, *input.GPIONumber)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// List returns every device with its live pin state.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.DeviceStatus{"devices": list})
}

// Status returns one device with its live pin state.
func (h *DeviceHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.Status(r.Context(), chi.URLParam(r, "device_id"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *DeviceHandler) TurnOn(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.TurnOn(r.Context(), chi.URLParam(r, "device_id"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, switchResponse{Message: "Device turned on successfully", DeviceStatus: *st})
}

func (h *DeviceHandler) TurnOff(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.TurnOff(r.Context(), chi.URLParam(r, "device_id"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, switchResponse{Message: "Device turned off successfully", DeviceStatus: *st})
}

// Update renames a device or moves it to another pin. Body: {"device_name"?: "...", "gpio_number"?: 23}.
func (h *DeviceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input struct {
		DeviceName *string `json:"device_name" validate:"omitempty,min=1,max=255"`
		GPIONumber *int    `json:"gpio_number" validate:"omitempty,gte=0"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	if input.DeviceName == nil && input.GPIONumber == nil {
		JSONValidationError(w, "validation failed",
			map[string]string{"device_name": "required_without=gpio_number", "gpio_number": "required_without=device_name"},
			http.StatusBadRequest)
		return
	}

	d, err := h.Service.Update(r.Context(), chi.URLParam(r, "device_id"), input.DeviceName, input.GPIONumber)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Delete removes a device and its schedules.
func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), chi.URLParam(r, "device_id")); err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

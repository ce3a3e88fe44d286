package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/crucial707/aquamarine/internal/service"
)

// GPIOHandler drives pins by number, bypassing the device registry.
type GPIOHandler struct {
	Service *service.GPIOService
	Logger  *slog.Logger
}

type pinResponse struct {
	Message string `json:"message,omitempty"`
	service.PinState
}

func gpioNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "gpio_number"))
	if err != nil || n < 0 {
		JSONError(w, "invalid gpio number", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func (h *GPIOHandler) TurnOn(w http.ResponseWriter, r *http.Request) {
	pin, ok := gpioNumber(w, r)
	if !ok {
		return
	}
	st, err := h.Service.On(r.Context(), pin)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pinResponse{Message: "GPIO turned on successfully", PinState: *st})
}

func (h *GPIOHandler) TurnOff(w http.ResponseWriter, r *http.Request) {
	pin, ok := gpioNumber(w, r)
	if !ok {
		return
	}
	st, err := h.Service.Off(r.Context(), pin)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pinResponse{Message: "GPIO turned off successfully", PinState: *st})
}

func (h *GPIOHandler) Status(w http.ResponseWriter, r *http.Request) {
	pin, ok := gpioNumber(w, r)
	if !ok {
		return
	}
	st, err := h.Service.Status(r.Context(), pin)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pinResponse{PinState: *st})
}

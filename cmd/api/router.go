package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crucial707/aquamarine/internal/handlers"
	"github.com/crucial707/aquamarine/internal/middleware"
)

func newRouter(a *app) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recoverer(a.logger))
	r.Use(middleware.RequestLog(a.logger))
	r.Use(middleware.SecurityHeaders(a.cfg.TLSCertFile != "" && a.cfg.TLSKeyFile != ""))
	r.Use(middleware.CORS(a.cfg.CORSAllowedOrigins))

	health := &handlers.HealthHandler{DB: a.db, SchedulerRunning: a.exec.Running}
	devices := &handlers.DeviceHandler{Service: a.devices, Logger: a.logger}
	schedules := &handlers.ScheduleHandler{Service: a.schedules, Logger: a.logger}
	pins := &handlers.GPIOHandler{Service: a.gpio, Logger: a.logger}
	audit := &handlers.AuditHandler{Repo: a.audit}

	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Reads
	r.Get("/device/list", devices.List)
	r.Get("/device/{device_id}", devices.Status)
	r.Get("/device/{device_id}/status", devices.Status)
	r.Get("/device/{device_id}/schedule", schedules.ListByDevice)
	r.Get("/schedule/triggers", schedules.Triggers)
	r.Get("/schedule/{schedule_id}", schedules.Get)
	r.Get("/GPIO/{gpio_number}/status", pins.Status)
	r.Get("/audit", audit.ListAudit)

	// Writes: optional bearer auth, per-IP rate limit, small bodies.
	limiter := middleware.PerMinute(a.cfg.RateLimitPerMinute)
	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth([]byte(a.cfg.JWTSecret)))
		r.Use(limiter.Middleware)
		r.Use(middleware.MaxBytes(middleware.DefaultMaxBodyBytes))

		r.Post("/device", devices.Register)
		r.Post("/device/register", devices.Register)
		r.Put("/device/{device_id}", devices.Update)
		r.Delete("/device/{device_id}", devices.Delete)
		r.Post("/device/{device_id}/on", devices.TurnOn)
		r.Post("/device/{device_id}/off", devices.TurnOff)
		r.Post("/device/{device_id}/schedule", schedules.Create)
		r.Delete("/schedule/{schedule_id}", schedules.Delete)
		r.Post("/GPIO/{gpio_number}/on", pins.TurnOn)
		r.Post("/GPIO/{gpio_number}/off", pins.TurnOff)
	})

	return r
}

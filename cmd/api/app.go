package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/crucial707/aquamarine/internal/config"
	"github.com/crucial707/aquamarine/internal/gpio"
	"github.com/crucial707/aquamarine/internal/mqtt"
	"github.com/crucial707/aquamarine/internal/repo"
	"github.com/crucial707/aquamarine/internal/scheduler"
	"github.com/crucial707/aquamarine/internal/service"
)

// app holds the wired components shared by the router and main.
type app struct {
	db     *sql.DB
	cfg    config.Config
	logger *slog.Logger

	audit     *repo.AuditRepo
	exec      *scheduler.Executor
	devices   *service.DeviceService
	schedules *service.ScheduleService
	gpio      *service.GPIOService
}

func newApp(database *sql.DB, cfg config.Config, pins gpio.Controller, events mqtt.Publisher, logger *slog.Logger) (*app, error) {
	loc, err := time.LoadLocation(cfg.ScheduleTimezone)
	if err != nil {
		return nil, fmt.Errorf("schedule timezone %q: %w", cfg.ScheduleTimezone, err)
	}

	deviceRepo := repo.NewDeviceRepo(database)
	scheduleRepo := repo.NewScheduleRepo(database)
	auditRepo := repo.NewAuditRepo(database)

	exec := scheduler.New(deviceRepo, pins, loc,
		scheduler.WithLogger(logger.With("component", "scheduler")),
		scheduler.WithFireHook(service.NewFireRecorder(auditRepo, events, logger)),
	)

	return &app{
		db:     database,
		cfg:    cfg,
		logger: logger,
		audit:  auditRepo,
		exec:   exec,
		devices: &service.DeviceService{
			Devices:   deviceRepo,
			Schedules: scheduleRepo,
			Pins:      pins,
			Scheduler: exec,
			Audit:     auditRepo,
			Events:    events,
			Logger:    logger,
		},
		schedules: &service.ScheduleService{
			Devices:   deviceRepo,
			Schedules: scheduleRepo,
			Scheduler: exec,
			Audit:     auditRepo,
			Logger:    logger,
		},
		gpio: &service.GPIOService{
			Pins:   pins,
			Audit:  auditRepo,
			Logger: logger,
		},
	}, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crucial707/aquamarine/internal/config"
	"github.com/crucial707/aquamarine/internal/db"
	"github.com/crucial707/aquamarine/internal/gpio"
	"github.com/crucial707/aquamarine/internal/logging"
	"github.com/crucial707/aquamarine/internal/mqtt"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close()
	logger.Info("database connected", "type", cfg.DBType)

	if err := db.Migrate(database, cfg); err != nil {
		return err
	}

	pins, err := gpio.New(cfg.GPIODriver, logger)
	if err != nil {
		return err
	}

	var events mqtt.Publisher = mqtt.Nop{}
	if cfg.MQTTBroker != "" {
		client, err := mqtt.Connect(mqtt.Options{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, logger)
		if err != nil {
			logger.Warn("mqtt unavailable, state events disabled", "broker", cfg.MQTTBroker, "error", err)
		} else {
			events = client
		}
	}
	defer events.Close()

	a, err := newApp(database, cfg, pins, events, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := a.schedules.Reconcile(ctx); err != nil {
		return fmt.Errorf("restore schedules: %w", err)
	}
	a.exec.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port, "tls", cfg.TLSCertFile != "")
		var err error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := a.exec.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler shutdown", "error", err)
	}
	return nil
}

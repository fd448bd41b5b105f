package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/International-Combat-Archery-Alliance/guest-registration/api"
	"github.com/International-Combat-Archery-Alliance/guest-registration/config"
	"github.com/International-Combat-Archery-Alliance/guest-registration/metrics"
	"github.com/International-Combat-Archery-Alliance/guest-registration/setup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration:\n%s\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Env)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(env config.Environment) *slog.Logger {
	if env == config.PROD {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, closeStore, err := setup.GuestStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions, closeSessions, err := setup.SessionRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	sender, err := setup.EmailSender(ctx, cfg, logger)
	if err != nil {
		return err
	}

	machine := setup.Machine(cfg, sender, store, m, logger)

	guestAPI := api.NewAPI(machine, sessions, store, logger, cfg.Env, cfg.Server.CORSAllowedOrigins)
	h, err := guestAPI.Handler(reg)
	if err != nil {
		return err
	}

	s := &http.Server{
		Handler:           h,
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			slog.String("addr", s.Addr),
			slog.String("env", cfg.Env.String()),
			slog.String("guest-store", string(cfg.Store.Kind)),
			slog.String("email-transport", string(cfg.Email.Transport)),
		)
		serveErr <- s.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pensionflow/internal/auth"
	"pensionflow/internal/contribution"
	"pensionflow/internal/handler"
	"pensionflow/internal/notification"
	"pensionflow/internal/registration"
	"pensionflow/internal/scheduler"
	"pensionflow/internal/session"
	"pensionflow/internal/verification"
	"pensionflow/pkg/cache"
	"pensionflow/pkg/config"
	"pensionflow/pkg/logger"
	"pensionflow/pkg/mailer"
	"pensionflow/pkg/validator"
)

func main() {
	cfg := config.Load()
	log := logger.New("pensionflow")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting PensionFlow service", map[string]interface{}{
		"port": cfg.Server.Port,
		"env":  cfg.Env,
	})

	sim, err := verification.NewSimulated(verification.SimulatedConfig{
		LatencyMin: cfg.Workflow.GatewayLatencyMin,
		LatencyMax: cfg.Workflow.GatewayLatencyMax,
		Strict:     cfg.OTP.Strict,
		Secret:     cfg.OTP.Secret,
	}, log)
	if err != nil {
		log.Fatal("Failed to create verification gateway", map[string]interface{}{"error": err.Error()})
	}
	gateway := verification.WithTimeout(sim, cfg.Workflow.GatewayTimeout)

	// Rate-limit counters go to Redis when configured.
	var counter cache.Counter
	memCounter := cache.NewMemoryCounter()
	counter = memCounter
	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedisCounter(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("Redis unavailable, using in-memory rate limits", map[string]interface{}{"error": err.Error()})
		} else {
			counter = rc
			log.Info("Redis connected", nil)
		}
	}
	defer counter.Close()

	authService, err := auth.NewService(cfg.Auth, cfg.JWT, cfg.Workflow.LoginOTPTimer, gateway, log)
	if err != nil {
		log.Fatal("Failed to initialise operator auth", map[string]interface{}{"error": err.Error()})
	}

	var mail notification.Mailer
	if cfg.SMTP.Host != "" {
		mail = mailer.New(mailer.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			UseTLS:   cfg.SMTP.UseTLS,
		})
	}

	registry := session.NewRegistry(session.Config{
		Registration:  registration.NewConfig(cfg.Workflow, cfg.Payment),
		Contribution:  contribution.NewConfig(cfg.Workflow, cfg.Payment),
		Gateway:       gateway,
		Notifications: notification.NewService(log, mail),
	}, log)

	sched := scheduler.NewScheduler(time.Second, log)
	sched.Schedule(&scheduler.Job{
		Name:     "session-sweep",
		Interval: cfg.Session.SweepInterval,
		Run:      func() { registry.Sweep(cfg.Session.IdleTimeout) },
	})
	sched.Schedule(&scheduler.Job{
		Name:     "login-challenge-sweep",
		Interval: cfg.Session.SweepInterval,
		Run:      func() { authService.Sweep(cfg.Workflow.LoginOTPTimer * 5) },
	})
	if _, inMemory := counter.(*cache.MemoryCounter); inMemory {
		sched.Schedule(&scheduler.Job{
			Name:     "rate-limit-sweep",
			Interval: cfg.Server.RateWindow,
			Run:      memCounter.Sweep,
		})
	}
	sched.Start()

	router := handler.NewRouter(handler.Deps{
		Config:    cfg,
		Auth:      authService,
		Sessions:  registry,
		Counter:   counter,
		Validator: validator.New(),
		Logger:    log,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down PensionFlow service...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}
	sched.Stop()
	registry.CloseAll()

	log.Info("PensionFlow service stopped", nil)
}

// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/outreach-backend/internal/auth"
	"github.com/unclebandit/outreach-backend/internal/channel"
	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/controller"
	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/handler"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/service"
)

func main() {
	cfg := config.Load()
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	conn, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	leadRepo := &repository.LeadRepository{DB: conn}
	activityRepo := &repository.ActivityRepository{DB: conn}
	cursorRepo := &repository.CursorRepository{DB: conn}

	// Real channel adapters are external collaborators; every channel
	// named in the rate-limit config gets the mock until its adapter is
	// wired in deployment-specific code.
	adapters := channel.NewRegistry()
	for tag := range cfg.ChannelRateLimits {
		adapters.Register(tag, &channel.MockAdapter{})
	}
	invoker := &channel.Invoker{Timeout: cfg.AdapterTimeout}

	stateMachine := &service.CampaignStateMachine{
		CampaignRepo: campaignRepo,
		LeadRepo:     leadRepo,
		CursorRepo:   cursorRepo,
		PollInterval: cfg.PollInterval,
		Logger:       logger.Named("statemachine"),
	}
	reconciler := &service.LeadReconciler{
		LeadRepo: leadRepo,
		Logger:   logger.Named("reconciler"),
	}
	stepScheduler := &service.StepScheduler{
		CampaignRepo: campaignRepo,
		LeadRepo:     leadRepo,
		ActivityRepo: activityRepo,
		Adapters:     adapters,
		Invoker:      invoker,
		StateMachine: stateMachine,
		RateLimits:   cfg.ChannelRateLimits,
		BatchSize:    cfg.DispatchBatchSize,
		Logger:       logger.Named("scheduler"),
	}
	coordinator := &service.DailyRunCoordinator{
		Scheduler: stepScheduler,
		Logger:    logger.Named("dailyrun"),
	}
	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		LeadRepo:     leadRepo,
		ActivityRepo: activityRepo,
		StateMachine: stateMachine,
		Logger:       logger.Named("campaigns"),
	}

	// The polling scheduler is constructed once here and owned by main;
	// nothing else can start or stop it.
	poller := service.NewPollingScheduler(
		campaignRepo, leadRepo, cursorRepo,
		adapters, invoker, reconciler, stateMachine,
		cfg.PollInterval, cfg.PollConcurrency,
		logger,
	)
	poller.Start()
	defer poller.Stop()

	authenticator := auth.NewCallbackAuthenticator(cfg.CallbackSecret, cfg.CallbackJWTSecret, logger)

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		StateMachine:    stateMachine,
	}
	triggerHandler := &handler.TriggerHandler{
		Auth:        authenticator,
		Coordinator: coordinator,
		Logger:      logger.Named("trigger"),
	}

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaignDetails)
	r.Post("/campaigns/{id}/leads", campaignController.EnrollLeads)
	r.Post("/campaigns/{id}/start", campaignController.StartCampaign)
	r.Post("/campaigns/{id}/pause", campaignController.PauseCampaign)
	r.Post("/campaigns/{id}/stop", campaignController.StopCampaign)
	r.Get("/campaigns/{id}/leads", campaignController.ListLeads)
	r.Get("/campaigns/{id}/steps", campaignController.ListSteps)
	r.Get("/campaigns/{id}/activities", campaignController.ListActivities)

	// External scheduler trigger
	r.Post("/runs/daily", triggerHandler.HandleDailyRun)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server running", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

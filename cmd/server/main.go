package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/alerts"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/api"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/assignment"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/auth"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/breach"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/config"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/livecall"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/metrics"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/presence"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/storage"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/websocket"
	"github.com/MEDICALCOR/medicalcor-core-sub006/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Msg("starting work distribution core")

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence (DynamoDB or in-memory, per DYNAMO_MODE)
	store, err := storage.NewStore(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}

	// Agent presence tracker
	tracker := presence.NewTracker()

	// Dashboard WebSocket hub
	hub := websocket.NewHub(log.Logger)
	go hub.Run()

	// Debounced roster broadcasts to dashboards
	broadcaster := presence.NewRosterBroadcaster(tracker, hub, cfg.RosterBroadcastMinGap, log.Logger)
	go broadcaster.Start(ctx)

	sweeper := presence.NewSweeper(tracker, broadcaster, 0, 0, log.Logger)
	go sweeper.Start(ctx)

	// Agent WebSocket hub feeds the presence tracker
	agentHub := websocket.NewAgentHub(tracker, broadcaster.MarkDirty, log.Logger)
	go agentHub.Run()

	// Assignment engine
	engine := assignment.NewEngine(tracker, store, assignment.Options{
		CapacityThreshold: cfg.CapacityThreshold,
		MaxRetryRounds:    cfg.MaxRetryRounds,
		EnableContinuity:  cfg.EnableContinuity,
		EnableWeighted:    cfg.EnableWeighted,
	}, log.Logger)

	// Alerts go to connected dashboards and the server log
	hubNotifier := alerts.NewHubNotifier(hub, log.Logger)
	notifier := &alerts.Fanout{Notifiers: []alerts.Notifier{
		hubNotifier,
		alerts.NewLogNotifier(log.Logger),
	}}

	// Breach lifecycle handler
	breachHandler := breach.NewHandler(store, notifier, breach.Options{
		EnableDuplicateDetection: cfg.EnableDuplicateDetection,
		DuplicateWindow:          cfg.DuplicateWindow,
	}, log.Logger)

	// Live-call coordinator and supervisor sessions
	coordinator := livecall.NewCoordinator(store, hubNotifier, livecall.Options{
		HoldAlertThreshold: cfg.HoldAlertThreshold,
		HoldCheckInterval:  cfg.HoldCheckInterval,
		TranscriptWindow:   cfg.TranscriptWindow,
		Keywords:           cfg.EscalationKeywords,
		SentimentThreshold: cfg.SentimentThreshold,
		HandoffRetention:   cfg.HandoffRetention,
	}, log.Logger)
	defer coordinator.Close()

	sessions := livecall.NewSessionManager(coordinator, cfg.MaxSupervisorSlots, log.Logger)

	// Periodic agent distribution metrics
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.Get().UpdateAgentStats(tracker.Snapshot())
			}
		}
	}()

	// HTTP handlers
	wsHandler := websocket.NewHandler(hub, cfg, log.Logger)
	agentWSHandler := websocket.NewAgentHandler(agentHub, log.Logger)
	assignmentAPI := api.NewAssignmentHandler(engine, agentHub, store, log.Logger)
	breachAPI := api.NewBreachHandler(breachHandler, store, log.Logger)
	callsAPI := api.NewCallsHandler(coordinator, sessions, log.Logger)
	rosterAPI := api.NewRosterHandler(tracker, agentHub, log.Logger)
	adminAPI := api.NewAdminHandler(tracker, store, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(middleware.Metrics(metrics.Get().RecordHTTPRequest))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Internal routes (no auth - telephony connectors and workforce tools)
	r.Route("/internal", func(r chi.Router) {
		r.Get("/ws/agent", agentWSHandler.ServeHTTP)
		r.Get("/ws/agents", agentWSHandler.ServeMultiplexedHTTP)
		r.Post("/roster", rosterAPI.RegisterAgents)
	})

	// Add auth middleware for protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Get("/ws", wsHandler.ServeHTTP)

		r.Route("/api", func(r chi.Router) {
			r.Post("/assignments", assignmentAPI.Assign)
			r.Post("/assignments/batch", assignmentAPI.AssignBatch)

			r.Route("/queues/{queueId}", func(r chi.Router) {
				r.Get("/stats", assignmentAPI.QueueStats)
				r.With(api.RequireSupervisorOrAdmin).Post("/rotation/reset", assignmentAPI.ResetRotation)
				r.With(api.RequireSupervisorOrAdmin).Put("/rotation/order", assignmentAPI.Reorder)
			})

			r.Route("/breaches", func(r chi.Router) {
				r.Post("/actions", breachAPI.HandleAction)
				r.Post("/batch", breachAPI.HandleBatch)
				r.Get("/{eventId}", breachAPI.GetEvent)
			})

			r.Route("/calls", func(r chi.Router) {
				r.Post("/", callsAPI.RegisterCall)
				r.Get("/{callId}", callsAPI.GetCall)
				r.Post("/{callId}/state", callsAPI.UpdateState)
				r.Post("/{callId}/transcript", callsAPI.AppendTranscript)
				r.Post("/{callId}/sentiment", callsAPI.UpdateSentiment)
				r.Post("/{callId}/handoff", callsAPI.RequestHandoff)
				r.Post("/{callId}/handoff/complete", callsAPI.CompleteHandoff)
				r.Delete("/{callId}", callsAPI.EndCall)
			})

			r.Route("/handoffs", func(r chi.Router) {
				r.Get("/", callsAPI.HandoffHistory)
				r.Get("/pending", callsAPI.PendingHandoffs)
			})

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", callsAPI.CreateSession)
				r.Post("/{sessionId}/monitor", callsAPI.StartMonitoring)
				r.Post("/{sessionId}/stop", callsAPI.StopMonitoring)
				r.Delete("/{sessionId}", callsAPI.EndSession)
			})

			r.Get("/roster", rosterAPI.GetRoster)
			r.Get("/roster/connections", rosterAPI.GetConnectionStats)
			r.Get("/agents/{agentId}", rosterAPI.GetAgent)
			r.With(api.RequireSupervisorOrAdmin).Post("/agents/{agentId}/logout", rosterAPI.LogoutAgent)

			r.Route("/admin", func(r chi.Router) {
				r.Use(api.RequireAdmin)
				r.Post("/roster/sweep", adminAPI.SweepRoster)
				r.Post("/storage/wipe", adminAPI.WipeStorage)
			})
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop background services
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"distribution-core"}`)
}

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/stridefit/coach-api/internal/coach"
	"github.com/stridefit/coach-api/internal/coach/policy"
	"github.com/stridefit/coach-api/internal/coach/tools"
	"github.com/stridefit/coach-api/internal/config"
	"github.com/stridefit/coach-api/internal/database"
	"github.com/stridefit/coach-api/internal/handlers"
	"github.com/stridefit/coach-api/internal/logger"
	"github.com/stridefit/coach-api/internal/middleware"
	"github.com/stridefit/coach-api/internal/queue"
	"github.com/stridefit/coach-api/internal/telemetry"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// OpenTelemetry tracing
	var tracerProvider interface{ Shutdown(context.Context) error }
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), "coach-api", cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracerProvider = tp
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	db, err := database.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	// Redis backs both the tool result cache and rate limiting
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("invalid_redis_url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	zapLogger.Info("connected_to_redis")

	// RabbitMQ carries audit events off the request path. Optional:
	// without a broker, audit writes go straight to Postgres.
	auditQueue := connectQueue(cfg, zapLogger)
	if auditQueue != nil {
		defer func() {
			if err := auditQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
	}

	// Repositories
	userRepo := database.NewUserRepository(db)
	checkinRepo := database.NewCheckInRepository(db)
	nutritionRepo := database.NewNutritionRepository(db)
	consentRepo := database.NewConsentRepository(db)
	sessionRepo := database.NewSessionRepository(db)
	auditRepo := database.NewAuditRepository(db)

	var auditSink coach.AuditSink = auditRepo
	var violationSink policy.ViolationSink = auditRepo
	if auditQueue != nil {
		sink := queue.NewSink(auditQueue)
		auditSink = sink
		violationSink = sink
	}

	// Tool registry
	registry := tools.NewRegistry(tools.NewRedisCache(redisClient), consentRepo, zapLogger)
	registry.Register(tools.NewProfileTool(userRepo))
	registry.Register(tools.NewRecentCheckInsTool(checkinRepo))
	registry.Register(tools.NewWeightTrendTool(checkinRepo))
	registry.Register(tools.NewNutritionSummaryTool(nutritionRepo))
	registry.Register(tools.NewAdherenceMetricsTool(checkinRepo, nutritionRepo))
	registry.Register(tools.NewTDEETool(userRepo, checkinRepo))

	// Coach pipeline
	engine := policy.NewEngine(violationSink, zapLogger)
	provider := coach.NewOpenAIProvider(cfg.OpenAIKey, cfg.AIBaseURL, cfg.TurnTimeout, zapLogger, debugMode)
	orchestrator := coach.NewOrchestrator(provider, registry, zapLogger, cfg.MaxToolRounds)
	contexts := coach.NewContextBuilder(userRepo, checkinRepo, nutritionRepo, zapLogger)
	service := coach.NewService(contexts, engine, orchestrator, sessionRepo, auditSink, zapLogger)

	coachHandler := handlers.NewCoachHandler(service, zapLogger)
	var queueChecker handlers.QueueChecker
	if auditQueue != nil {
		queueChecker = auditQueue
	}
	healthChecker := handlers.NewHealthChecker(db, queueChecker)

	rateLimitMW, err := middleware.RateLimit(redisClient, cfg.RateLimitPerMin)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}
	verifier := middleware.NewTokenVerifier(cfg.JWKSURL, cfg.JWTIssuer)

	// Router. gorilla/mux runs middleware in registration order, so the
	// first Use is the outermost wrapper.
	r := mux.NewRouter()
	if cfg.OTELEnabled && tracerProvider != nil {
		r.Use(otelmux.Middleware("coach-api"))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(middleware.Recover(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	// Health checks stay public and unthrottled
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.Auth(verifier, zapLogger))
	apiRouter.Use(rateLimitMW)
	// Streamed turns are the slowest path; the same deadline bounds
	// every coach route.
	apiRouter.Use(middleware.Timeout(cfg.StreamTimeout))
	coachHandler.RegisterRoutes(apiRouter)

	// Preflight requests short-circuit after the CORS middleware
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// SSE responses outlive any fixed write timeout; per-request
		// deadlines come from the timeout middleware instead.
		WriteTimeout:   0,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectQueue dials RabbitMQ with exponential backoff, returning nil
// when no broker is configured.
func connectQueue(cfg *config.Config, zapLogger *zap.Logger) *queue.RabbitMQQueue {
	if cfg.RabbitMQURL == "" {
		zapLogger.Info("rabbitmq_not_configured_using_direct_audit_writes")
		return nil
	}

	const maxRetries = 10
	const initialDelay = 2 * time.Second
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		auditQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return auditQueue
		}

		lastErr = err
		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}

	zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
		zap.Int("max_retries", maxRetries),
		zap.Error(lastErr),
	)
	return nil
}

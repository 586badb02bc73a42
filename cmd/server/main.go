// ==============================================================================
// ONBOARDING ENGINE SERVER - cmd/server/main.go
// ==============================================================================
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"onboard/internal/approval"
	"onboard/internal/docmatch"
	"onboard/internal/domain"
	"onboard/internal/handler"
	"onboard/internal/middleware"
	"onboard/internal/onboarding"
	"onboard/internal/phase"
	"onboard/internal/repository/postgres"
	"onboard/internal/risk"
	"onboard/internal/screening"
	"onboard/pkg/cache"
	"onboard/pkg/config"
	"onboard/pkg/logger"
	"onboard/pkg/validator"

	authsvc "onboard/internal/auth"
)

func main() {
	// .env is optional; real deployments set environment variables directly
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("onboarding-engine")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	log.Info("Database connection established", nil)

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("Redis unavailable, caching disabled", map[string]interface{}{"error": err.Error()})
		redisCache = nil
	}

	onboardingRepo := postgres.NewOnboardingRepository(db)
	userRepo := postgres.NewUserRepository(db)

	screener := buildScreeningProvider(log)
	riskEngine := risk.NewEngine(config.LoadRiskConfig(), log)
	matcher := docmatch.NewMatcher(docmatch.NewHeuristicAnalyzer(), log)
	machine := phase.NewMachine(log)
	gate := approval.NewGate(log)

	onboardingService := onboarding.NewService(
		onboardingRepo,
		screener,
		riskEngine,
		matcher,
		machine,
		gate,
		redisCache,
		log,
	)
	authService := authsvc.NewService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)

	authMW := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	if redisCache != nil {
		blacklist := middleware.NewRedisTokenBlacklist(redisCache.Client())
		authService.WithBlacklist(blacklist)
		authMW.WithBlacklist(blacklist)
	}

	auditRepo := postgres.NewAuditRepository(db)

	val := validator.New()
	onboardingHandler := handler.NewOnboardingHandler(onboardingService, userRepo, val, log)
	authHandler := handler.NewAuthHandler(authService, val, log)
	usersHandler := handler.NewUsersHandler(authService, log)
	auditHandler := handler.NewAuditHandler(auditRepo, log)

	loggingMW := middleware.NewLoggingMiddleware(log)
	auditMW := middleware.NewAuditMiddleware(auditRepo, log)

	router := mux.NewRouter()
	router.Use(middleware.CorrelationID)
	router.Use(middleware.Recovery)
	router.Use(middleware.SecurityHeaders)
	router.Use(middleware.CORS)
	router.Use(loggingMW.Log)
	if redisCache != nil {
		limiter := middleware.NewRateLimiter(redisCache.Client(), 100, time.Minute)
		router.Use(limiter.Limit)
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(authMW.Authenticate)
	protected.Use(auditMW.Audit)

	protected.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)

	protected.HandleFunc("/audit", auditHandler.List).Methods(http.MethodGet)

	protected.HandleFunc("/users", usersHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}", usersHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}/active", usersHandler.SetActive).Methods(http.MethodPost)

	protected.HandleFunc("/onboardings", onboardingHandler.Start).Methods(http.MethodPost)
	protected.HandleFunc("/onboardings", onboardingHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/onboardings/overdue", onboardingHandler.OverdueReport).Methods(http.MethodGet)
	protected.HandleFunc("/onboardings/{id}", onboardingHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/onboardings/{id}/screening", onboardingHandler.RunScreening).Methods(http.MethodPost)
	protected.HandleFunc("/onboardings/{id}/risk", onboardingHandler.GetRiskAssessment).Methods(http.MethodGet)
	protected.HandleFunc("/onboardings/{id}/requirements/regenerate", onboardingHandler.RegenerateRequirements).Methods(http.MethodPost)
	protected.HandleFunc("/onboardings/{id}/checklist", onboardingHandler.GetChecklist).Methods(http.MethodGet)
	protected.HandleFunc("/onboardings/{id}/progress", onboardingHandler.GetProgress).Methods(http.MethodGet)
	var docsHandler http.Handler = http.HandlerFunc(onboardingHandler.IngestDocuments)
	if redisCache != nil {
		idem := middleware.NewIdempotencyMiddleware(redisCache.Client(), 24*time.Hour)
		docsHandler = idem.Require(docsHandler)
	}
	protected.Handle("/onboardings/{id}/documents", docsHandler).Methods(http.MethodPost)
	protected.HandleFunc("/onboardings/{id}/phase/check", onboardingHandler.CheckPhase).Methods(http.MethodPost)
	protected.HandleFunc("/onboardings/{id}/phase/advance", onboardingHandler.AdvancePhase).Methods(http.MethodPost)
	protected.HandleFunc("/documents/{docId}/reassign", onboardingHandler.ReassignDocument).Methods(http.MethodPost)
	protected.HandleFunc("/fees/quote", onboardingHandler.QuoteFees).Methods(http.MethodPost)

	// Compliance-side routes carry an additional role gate on top of
	// the per-operation checks inside the services.
	reviewer := protected.NewRoute().Subrouter()
	reviewer.Use(authMW.RequireRole(domain.StaffRoleCompliance, domain.StaffRoleMLRO, domain.StaffRoleAdmin))
	reviewer.HandleFunc("/documents/{docId}/override", onboardingHandler.OverrideDocument).Methods(http.MethodPost)
	reviewer.HandleFunc("/onboardings/{id}/signoff", onboardingHandler.RecordSignoff).Methods(http.MethodPost)
	reviewer.HandleFunc("/onboardings/{id}/board-decision", onboardingHandler.DecideBoard).Methods(http.MethodPost)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", map[string]interface{}{"addr": addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", map[string]interface{}{"error": err.Error()})
	}
	log.Info("Server stopped", nil)
}

// buildScreeningProvider uses the vendor API when configured and
// falls back to env-supplied watchlists otherwise.
func buildScreeningProvider(log logger.Logger) onboarding.ScreeningProvider {
	if url := os.Getenv("SCREENING_API_URL"); url != "" {
		log.Info("Using vendor screening provider", map[string]interface{}{"url": url})
		return screening.NewVendorClient(url, os.Getenv("SCREENING_API_KEY"), log)
	}
	log.Info("Using local list screening provider", nil)
	return screening.NewListProvider(
		splitList(os.Getenv("SCREENING_PEP_LIST")),
		splitList(os.Getenv("SCREENING_SANCTIONS_LIST")),
		splitList(os.Getenv("SCREENING_ADVERSE_LIST")),
	)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

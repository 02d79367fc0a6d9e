package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/fdg312/nutriplan/internal/auth"
	"github.com/fdg312/nutriplan/internal/config"
	"github.com/fdg312/nutriplan/internal/enrichment"
	"github.com/fdg312/nutriplan/internal/fetch"
	"github.com/fdg312/nutriplan/internal/foodlog"
	"github.com/fdg312/nutriplan/internal/foods"
	"github.com/fdg312/nutriplan/internal/logging"
	"github.com/fdg312/nutriplan/internal/nutrition"
	"github.com/fdg312/nutriplan/internal/plans"
	"github.com/fdg312/nutriplan/internal/storage"
	"github.com/fdg312/nutriplan/internal/storage/memory"
	"github.com/fdg312/nutriplan/internal/telemetry"
)

// Server представляет HTTP сервер
type Server struct {
	config         *config.Config
	mux            *http.ServeMux
	storage        storage.Store
	storageMode    string
	fetchClient    *fetch.Client
	authMiddleware *auth.Middleware
	httpServer     *http.Server
	logger         zerolog.Logger
}

// New создаёт новый HTTP сервер
func New(cfg *config.Config) *Server {
	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
		logger: logging.WithComponent("httpserver"),
	}

	// Инициализируем storage
	s.initStorage()

	s.fetchClient = fetch.New(cfg.Remote, nil)

	// Регистрируем маршруты
	s.routes()
	return s
}

// initStorage открывает хранилище по STORE_MODE; при ошибке падаем на memory
func (s *Server) initStorage() {
	st, mode, err := storage.Open(context.Background(), s.config)
	if err != nil {
		s.logger.Error().Err(err).Msg("storage init failed, fallback to in-memory storage")
		st, mode = memory.New(), config.StoreModeMemory
	}
	s.storage = st
	s.storageMode = mode
}

// routes регистрирует маршруты
func (s *Server) routes() {
	// Health check (no auth required)
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", telemetry.Handler())

	// Auth API (no auth required)
	authService := auth.NewService(s.config)
	authHandler := auth.NewHandlers(authService)
	s.authMiddleware = auth.NewMiddleware(s.config, authService)

	// POST /v1/auth/dev - local dev token
	s.mux.HandleFunc("POST /v1/auth/dev", authHandler.HandleDevAuth)

	// Nutrition API
	foodDB := foods.Default()
	provider := enrichment.NewProvider(s.config, s.fetchClient, foodDB)
	nutritionService := nutrition.NewService(
		plans.NewStore(s.storage),
		foodlog.NewStore(s.storage),
		foodDB,
		provider,
	)
	h := nutrition.NewHandler(nutritionService)

	s.mux.HandleFunc("POST /v1/nutrition/plans", h.HandleGenerate)
	s.mux.HandleFunc("GET /v1/nutrition/plans", h.HandleList)
	s.mux.HandleFunc("GET /v1/nutrition/plans/latest", h.HandleLatest)
	s.mux.HandleFunc("POST /v1/nutrition/plans/reevaluate", h.HandleReevaluate)
	s.mux.HandleFunc("POST /v1/nutrition/plans/{id}/select", h.HandleSelect)
	s.mux.HandleFunc("DELETE /v1/nutrition/plans/{id}", h.HandleDelete)
	s.mux.HandleFunc("GET /v1/nutrition/plans/{id}/targets", h.HandleHistoricalTargets)
	s.mux.HandleFunc("GET /v1/nutrition/plans/{id}/targets.csv", h.HandleTargetsCSV)
	s.mux.HandleFunc("GET /v1/nutrition/plans/{id}/report.pdf", h.HandleReportPDF)

	s.mux.HandleFunc("POST /v1/nutrition/meal-plan", h.HandleMealPlan)
	s.mux.HandleFunc("POST /v1/nutrition/meal-plan/customize", h.HandleCustomizeMeal)
	s.mux.HandleFunc("POST /v1/nutrition/recipe", h.HandleRecipe)
	s.mux.HandleFunc("POST /v1/nutrition/chat", h.HandleChat)

	s.mux.HandleFunc("POST /v1/nutrition/log", h.HandleLogFood)
	s.mux.HandleFunc("GET /v1/nutrition/log", h.HandleFoodLog)

	// Foods API
	s.mux.HandleFunc("GET /v1/foods/servings", h.HandleServings)
}

// handleHealthz возвращает статус сервера
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"storage": s.storageMode,
		"remotes": len(s.fetchClient.Bases()),
	})
}

// Handler собирает цепочку middleware (outermost first): CORS → Rate Limit → Auth → Metrics → Router
func (s *Server) Handler() http.Handler {
	var handler http.Handler = metricsMiddleware(s.mux)
	if s.authMiddleware != nil && s.config.AuthMode != "none" {
		if s.config.AuthRequired {
			handler = s.authMiddleware.RequireAuth(handler)
		} else {
			handler = s.authMiddleware.OptionalAuth(handler)
		}
	}
	handler = RateLimitMiddleware(s.config, handler)
	handler = CORSMiddleware(s.config, handler)
	return handler
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Str("storage", s.storageMode).Msg("server listening")
	s.logger.Info().Msgf("Health check: http://localhost%s/healthz", addr)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown останавливает сервер и закрывает storage
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.Close()
}

// Close закрывает storage и освобождает ресурсы
func (s *Server) Close() error {
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware counts requests by matched route pattern. It must wrap
// the mux directly so r.Pattern is visible after routing.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		telemetry.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status/100)+"xx").Inc()
	})
}

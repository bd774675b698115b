package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/sevyedu/sevyai/internal/chat"
	"github.com/sevyedu/sevyai/internal/completion"
	"github.com/sevyedu/sevyai/internal/config"
	"github.com/sevyedu/sevyai/internal/counters"
	"github.com/sevyedu/sevyai/internal/observability"
)

// Fixed replies the chat endpoint returns without (or instead of) an upstream
// call. The widget renders these verbatim.
const (
	ReplyNoMessage     = "No message received"
	ReplyDeveloperMode = "This is a default response in developer mode."
	ReplyUpstreamError = "Sorry, I encountered an error processing your request."
)

type chatRequest struct {
	Message       string      `json:"message"`
	Messages      []chat.Turn `json:"messages"`
	DeveloperMode bool        `json:"developerMode"`
	Language      string      `json:"language"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type Server struct {
	cfg       config.Config
	generator completion.Generator
	cache     *counters.Cache
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

func New(cfg config.Config, generator completion.Generator, cache *counters.Cache, metrics *observability.Metrics, logger zerolog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		generator: generator,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/chat", s.handleChat)
	r.Post("/get_all_numbers", s.handleAllNumbers)
	r.Post("/get_sevy_educators_number", s.handleSingleNumber(counters.SevyEducatorsNumber))
	r.Post("/get_sevy_ai_answers", s.handleSingleNumber(counters.SevyAIAnswers))
	r.Post("/get_students_taught", s.handleSingleNumber(counters.StudentsTaught))

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	if req.DeveloperMode {
		// Developer mode bypasses the core entirely: no completion call, no
		// counter increment.
		s.metrics.ChatRequests.WithLabelValues(observability.OutcomeDeveloperMode).Inc()
		respondJSON(w, http.StatusOK, chatResponse{Reply: ReplyDeveloperMode})
		return
	}

	window, err := chat.Normalize(req.Message, req.Messages, s.cfg.HistoryMaxTurns)
	if err != nil {
		s.metrics.ChatRequests.WithLabelValues(observability.OutcomeEmptyInput).Inc()
		respondJSON(w, http.StatusOK, chatResponse{Reply: ReplyNoMessage})
		return
	}

	if req.Language != "" {
		s.logger.Debug().Str("language", req.Language).Msg("caller language hint")
	}

	reply, err := s.generator.Generate(r.Context(), window)
	if err != nil {
		s.metrics.ChatRequests.WithLabelValues(observability.OutcomeUpstreamError).Inc()
		s.logger.Error().Err(err).Msg("completion failed")
		respondJSON(w, http.StatusOK, chatResponse{Reply: ReplyUpstreamError})
		return
	}

	s.metrics.ChatRequests.WithLabelValues(observability.OutcomeOK).Inc()
	respondJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

func (s *Server) handleAllNumbers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.cache.Snapshot(r.Context()))
}

// handleSingleNumber serves the legacy per-counter endpoints from the same
// cached snapshot as the combined one.
func (s *Server) handleSingleNumber(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.cache.Snapshot(r.Context())
		respondJSON(w, http.StatusOK, map[string]counters.Value{name: snap[name]})
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

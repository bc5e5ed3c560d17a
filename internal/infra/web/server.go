package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"media-insight/internal/usecase"
)

type Server struct {
	ingestUC usecase.IngestUseCase
	chatUC   usecase.ChatUseCase
	configUC usecase.ConfigUseCase
	auth     *AuthManager
	apiKey   string
	log      *zerolog.Logger
}

func NewServer(
	ingestUC usecase.IngestUseCase,
	chatUC usecase.ChatUseCase,
	configUC usecase.ConfigUseCase,
	auth *AuthManager,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		ingestUC: ingestUC,
		chatUC:   chatUC,
		configUC: configUC,
		auth:     auth,
		apiKey:   apiKey,
		log:      logger,
	}
}

// Router builds the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/jobs", s.handleSubmitJob)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)

		r.Get("/transcripts", s.handleListTranscripts)
		r.Get("/transcripts/{id}", s.handleGetTranscript)
		r.Delete("/transcripts/{id}", s.handleDeleteTranscript)

		r.Get("/summaries/transcript/{id}", s.handleGetSummary)

		r.Post("/chat", s.handleChat)
		r.Post("/search", s.handleSearch)
		r.Get("/chat/history/{sessionID}", s.handleGetHistory)
		r.Delete("/chat/history/{sessionID}", s.handleClearHistory)

		r.Post("/admin/login", s.handleAdminLogin)
		r.Post("/admin/logout", s.handleAdminLogout)

		r.Route("/config", func(r chi.Router) {
			r.Use(s.adminMiddleware)
			r.Get("/", s.handleGetConfig)
			r.Put("/{key}", s.handleSetConfig)
		})
	})

	return r
}

// adminMiddleware accepts either the static admin API key or a minted admin
// session token.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" && s.auth == nil {
			s.log.Error().Msg("admin auth is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if s.apiKey != "" {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] == s.apiKey {
				next.ServeHTTP(w, r)
				return
			}
		}
		if s.auth != nil {
			if _, err := s.auth.ParseFromRequest(r); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

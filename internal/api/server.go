package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/snarg/meeting-engine/internal/broker"
	"github.com/snarg/meeting-engine/internal/chat"
	"github.com/snarg/meeting-engine/internal/config"
	"github.com/snarg/meeting-engine/internal/database"
	"github.com/snarg/meeting-engine/internal/hub"
	"github.com/snarg/meeting-engine/internal/metrics"
	"github.com/snarg/meeting-engine/internal/store"
	"github.com/snarg/meeting-engine/internal/summary"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// Deps carries everything the route tree needs.
type Deps struct {
	DB        *database.DB
	Broker    *broker.Client
	Hub       *hub.Hub
	Store     *store.JobStore
	Summaries *summary.Service
	Chat      *chat.Engine
}

func NewServer(cfg *config.Config, d Deps, startTime time.Time, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORS)
	r.Use(metrics.InstrumentHandler)

	health := NewHealthHandler(d.DB, d.Broker, startTime)
	r.Get("/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	meetings := NewMeetingHandler(d.DB, d.Broker, d.Store, log)
	analysis := NewAnalysisHandler(d.DB, d.Store, d.Summaries, d.Chat, log)
	stream := NewStreamHandler(d.DB, d.Hub, log)

	r.Route("/api/v1/meeting", func(r chi.Router) {
		meetings.Routes(r)
		analysis.Routes(r)
		stream.Routes(r)
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}

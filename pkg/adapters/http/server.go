package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/tollgate"
	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is the conversation API served over HTTP.
// *tollgate.Engine satisfies it.
type Engine interface {
	Start(ctx context.Context) (string, error)
	StartWithID(ctx context.Context, id string) error
	SendMessage(ctx context.Context, id, message string) (*tollgate.Snapshot, error)
	Reject(ctx context.Context, id, message string) (*tollgate.Snapshot, error)
	Approve(ctx context.Context, id string) (*tollgate.Snapshot, error)
	Resume(ctx context.Context, id string) (*tollgate.Snapshot, error)
	State(ctx context.Context, id string) (*tollgate.Snapshot, error)
	Checkpoint(ctx context.Context, id string) (*domain.Checkpoint, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
	Tools() []domain.ToolSpec
}

// Server holds the handlers of the HTTP surface.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures the handler.
type Option func(*Server)

// WithStreams shares a StreamManager with the engine's commit observer.
// Without it, the events endpoint only ever sends the initial ping.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) { s.Streams = sm }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics exposes g at GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine: engine,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/graph", s.GetGraph)
	r.Get("/tools", s.ListTools)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", s.ListConversations)
		r.Post("/", s.CreateConversation)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetConversation)
			r.Delete("/", s.DeleteConversation)
			r.Get("/graph", s.GetConversationGraph)
			r.Get("/events", s.SubscribeEvents)
			r.Post("/messages", s.SendMessage)
			r.Post("/approve", s.Approve)
			r.Post("/reject", s.Reject)
			r.Post("/resume", s.Resume)
		})
	})

	// Routes kept for clients of the first API revision.
	r.Post("/start_conversation", s.CreateConversation)
	r.Post("/send_message/{id}", s.SendMessage)
	r.Post("/approve/{id}", s.Approve)
	r.Get("/conversation_state/{id}", s.GetConversation)

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

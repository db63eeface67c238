package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/Chative-Cancellation-Feedback/agent/agents/collector"
	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
	"github.com/tanpawarit/Chative-Cancellation-Feedback/agent/feedback"
	metricsx "github.com/tanpawarit/Chative-Cancellation-Feedback/pkg/metrics"
	qstashx "github.com/tanpawarit/Chative-Cancellation-Feedback/pkg/qstash"
)

const (
	conversationHeader = "X-Conversation-ID"
	requestIDHeader    = "X-Request-ID"
	maxBodyBytes       = 1 << 20
)

// FeedbackService is the collector surface the handlers need.
type FeedbackService interface {
	Open(ctx context.Context, conversationID string, reason string) (collector.FormView, error)
	Submit(ctx context.Context, conversationID string, reason string, fieldID string, value string) (collector.SubmitResult, error)
	Advance(ctx context.Context, conversationID string, reason string, sig feedback.Signal) (collector.FormView, error)
}

type Option func(*Server)

func WithMetrics(m *metricsx.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithQStashReceiver enables the signed callback endpoint that QStash
// delivers published feedback messages to.
func WithQStashReceiver(verifier *qstashx.Verifier, destinationURL string) Option {
	return func(s *Server) {
		s.verifier = verifier
		s.qstashDestination = destinationURL
	}
}

type Server struct {
	exchanger contractx.Exchanger
	feedback  FeedbackService

	verifier          *qstashx.Verifier
	qstashDestination string

	metrics *metricsx.Metrics
	logger  zerolog.Logger
	newID   func() string
}

func NewServer(exchanger contractx.Exchanger, feedback FeedbackService, opts ...Option) (*Server, error) {
	if exchanger == nil {
		return nil, errors.New("exchanger is required")
	}
	if feedback == nil {
		return nil, errors.New("feedback service is required")
	}
	s := &Server{
		exchanger: exchanger,
		feedback:  feedback,
		logger:    log.Logger,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Handler builds the router wrapped in request logging.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.accessLog())

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/message", s.handleMessage).Methods(http.MethodPost)
	apiRouter.HandleFunc("/conversations", s.handleNewConversation).Methods(http.MethodPost)
	apiRouter.HandleFunc("/feedback/reasons", s.handleReasons).Methods(http.MethodGet)
	apiRouter.HandleFunc("/feedback/{conversationID}/{reason}", s.handleOpenForm).Methods(http.MethodGet)
	apiRouter.HandleFunc("/feedback/{conversationID}/{reason}/answers", s.handleSubmitAnswer).Methods(http.MethodPost)
	apiRouter.HandleFunc("/feedback/{conversationID}/{reason}/advance", s.handleAdvance).Methods(http.MethodPost)
	if s.verifier.Enabled() {
		apiRouter.HandleFunc("/qstash/message", s.handleQStashMessage).Methods(http.MethodPost)
	}

	var h http.Handler = router
	h = hlog.RequestIDHandler("req_id", requestIDHeader)(h)
	h = hlog.NewHandler(s.logger)(h)
	return h
}

func (s *Server) accessLog() mux.MiddlewareFunc {
	return hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.ObserveHTTP(route, r.Method, status, duration)

		event := hlog.FromRequest(r).Info()
		if status >= http.StatusInternalServerError {
			event = hlog.FromRequest(r).Error()
		}
		event.
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("http request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

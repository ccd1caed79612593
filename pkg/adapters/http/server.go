package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paisatax/taxgraph"
	"github.com/paisatax/taxgraph/internal/logging"
	"github.com/paisatax/taxgraph/pkg/catalog"
	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/paisatax/taxgraph/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is the introspection surface the server needs on top of the
// session manager. *taxgraph.Engine implements it.
type Engine interface {
	Catalog() *catalog.Catalog
	Inspect(state *domain.State, nodeID string) (*taxgraph.NodeInfo, error)
}

// Server exposes sessions over REST and streams pass results over SSE.
type Server struct {
	Engine   Engine
	Sessions *session.Manager
	Streams  *StreamManager

	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics mounts a Prometheus scrape endpoint at /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewServer creates a Server.
func NewServer(engine Engine, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		Engine:   engine,
		Sessions: sessions,
		Streams:  NewStreamManager(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, sessions *session.Manager, opts ...Option) http.Handler {
	return NewServer(engine, sessions, opts...).Routes()
}

// Routes builds the chi router wrapped with CORS headers.
func (s *Server) Routes() http.Handler {
	return enableCORS(s.router())
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.json", s.GetOpenAPI)
	r.Get("/graph", s.GetGraph)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.CreateSession)
		r.Route("/{key}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/events", s.ProcessEvent)
			r.Post("/validate", s.ValidateEvent)
			r.Get("/stream", s.SubscribeEvents)
			r.Get("/nodes/{node}", s.GetNode)
			r.Delete("/overrides/{node}", s.ClearOverride)
		})
	})

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionResponse is returned by the session endpoints.
type SessionResponse struct {
	Key       string               `json:"key"`
	Revision  int                  `json:"revision"`
	Params    domain.SessionParams `json:"params"`
	State     *domain.State        `json:"state"`
	Summary   domain.Summary       `json:"summary"`
	Frame     *domain.TraceFrame   `json:"frame,omitempty"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error      string                   `json:"error"`
	Validation *domain.ValidationResult `json:"validation,omitempty"`
}

// GraphNode describes one catalog entry in GET /graph.
type GraphNode struct {
	ID           string          `json:"id"`
	Kind         domain.NodeKind `json:"kind"`
	Description  string          `json:"description,omitempty"`
	Dependencies []string        `json:"dependencies,omitempty"`
	Family       string          `json:"family,omitempty"`
}

// GraphResponse lists the catalog in topological order.
type GraphResponse struct {
	Version uint64      `json:"version"`
	Nodes   []GraphNode `json:"nodes"`
}

func newSessionResponse(sess *domain.Session, frame *domain.TraceFrame) SessionResponse {
	return SessionResponse{
		Key:       sess.Params.SessionKey,
		Revision:  sess.Revision,
		Params:    sess.Params,
		State:     sess.State,
		Summary:   sess.State.Summary(),
		Frame:     frame,
		UpdatedAt: sess.UpdatedAt,
	}
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var params domain.SessionParams
	if !s.decode(w, r, &params) {
		return
	}

	sess, res, err := s.Sessions.Create(r.Context(), params)
	if err != nil {
		s.fail(w, "CreateSession", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newSessionResponse(sess, res.Frame))
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	keys, err := s.Sessions.List(r.Context())
	if err != nil {
		s.fail(w, "ListSessions", err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": keys})
}

// GetSession handles GET /sessions/{key}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Load(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.fail(w, "GetSession", err)
		return
	}
	s.writeJSON(w, http.StatusOK, newSessionResponse(sess, nil))
}

// DeleteSession handles DELETE /sessions/{key}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
		s.fail(w, "DeleteSession", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProcessEvent handles POST /sessions/{key}/events.
func (s *Server) ProcessEvent(w http.ResponseWriter, r *http.Request) {
	var event domain.InputEvent
	if !s.decode(w, r, &event) {
		return
	}
	key := chi.URLParam(r, "key")
	sess, res, err := s.Sessions.Apply(r.Context(), key, event)
	if err != nil {
		s.fail(w, "ProcessEvent", err)
		return
	}
	s.broadcast(key, sess.Revision, res.Frame)
	s.writeJSON(w, http.StatusOK, newSessionResponse(sess, res.Frame))
}

// ValidateEvent handles POST /sessions/{key}/validate.
func (s *Server) ValidateEvent(w http.ResponseWriter, r *http.Request) {
	var event domain.InputEvent
	if !s.decode(w, r, &event) {
		return
	}
	res, err := s.Sessions.Validate(r.Context(), chi.URLParam(r, "key"), event)
	if err != nil {
		s.fail(w, "ValidateEvent", err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// ClearOverride handles DELETE /sessions/{key}/overrides/{node}.
func (s *Server) ClearOverride(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	sess, res, err := s.Sessions.ClearOverride(r.Context(), key, chi.URLParam(r, "node"))
	if err != nil {
		s.fail(w, "ClearOverride", err)
		return
	}
	s.broadcast(key, sess.Revision, res.Frame)
	s.writeJSON(w, http.StatusOK, newSessionResponse(sess, res.Frame))
}

// GetNode handles GET /sessions/{key}/nodes/{node}.
func (s *Server) GetNode(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Load(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.fail(w, "GetNode", err)
		return
	}
	info, err := s.Engine.Inspect(sess.State, chi.URLParam(r, "node"))
	if err != nil {
		s.fail(w, "GetNode", err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// GetGraph handles the GET /graph request.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	g := s.Engine.Catalog().Graph()
	resp := GraphResponse{Version: g.Version(), Nodes: make([]GraphNode, 0, g.Len())}
	for _, id := range g.Order() {
		def, _ := g.Node(id)
		resp.Nodes = append(resp.Nodes, GraphNode{
			ID:           def.ID,
			Kind:         def.Kind,
			Description:  def.Description,
			Dependencies: def.Dependencies,
			Family:       def.Scope.Family,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":     "taxgraph-http",
		"version": strings.TrimSpace(taxgraph.Version),
		"nodes":   s.Engine.Catalog().Graph().Len(),
	})
}

// SubscribeEvents handles GET /sessions/{key}/stream (SSE). Every accepted
// event on the session is pushed as the changes of its pass.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	key := chi.URLParam(r, "key")
	var watch map[string]bool
	if raw := r.URL.Query().Get("watch"); raw != "" {
		watch = make(map[string]bool)
		for _, id := range strings.Split(raw, ",") {
			watch[strings.TrimSpace(id)] = true
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(key)
	defer cancel()

	s.logger.Info("SSE: Subscribing to session updates", "session_key", key)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected", "session_key", key)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 && !msg.touches(watch) {
				continue
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Error("SSE: encode failed", "session_key", key, "err", err)
				continue
			}
			fmt.Fprintf(w, "event: pass\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *Server) broadcast(key string, revision int, frame *domain.TraceFrame) {
	if frame == nil {
		return
	}
	s.Streams.Broadcast(key, PassMessage{
		Revision:   revision,
		Trigger:    frame.Trigger,
		VisitOrder: frame.VisitOrder,
		Changes:    frame.Changes,
	})
}

// decode reads a JSON body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.logger.Warn("Invalid request body", "path", r.URL.Path, "err", err)
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// fail maps domain errors onto HTTP status codes.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	var evErr *domain.EventError
	switch {
	case errors.As(err, &evErr):
		s.writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Validation: &evErr.Result})
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrNodeNotFound):
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, session.ErrSessionExists):
		s.writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidParams):
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		s.logger.Error(op+" failed", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/jpalmerr/resourceboard/dashboard"
	"github.com/jpalmerr/resourceboard/internal/jsonvalue"
	"github.com/jpalmerr/resourceboard/internal/poller"
	"github.com/jpalmerr/resourceboard/internal/render"
	"github.com/jpalmerr/resourceboard/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// requestTimeout bounds every non-streaming API request.
	requestTimeout = 30 * time.Second

	// testResourceLimit is the per-client rate of ad-hoc fetches per minute.
	testResourceLimit = 30

	// maxRequestBody caps JSON and form bodies accepted by the API.
	maxRequestBody = 64 << 10

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "ResourceBoard"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Board is the part of the resource board the HTTP surface drives.
type Board interface {
	// Views returns every resource rendered for display, in display order.
	Views() []render.ResourceView

	// View returns one rendered resource.
	View(id string) (render.ResourceView, bool)

	// Render turns a store entry, for example from an event, into a view.
	Render(entry store.Entry) render.ResourceView

	// Add registers and starts polling a resource.
	Add(ctx context.Context, name, url string) (render.ResourceView, error)

	// Remove stops polling and deletes a resource. Unknown ids are a no-op.
	Remove(ctx context.Context, id string) error

	// Refresh requests an immediate fetch. It reports false for unknown ids.
	Refresh(id string) bool

	// Probe fetches url once without registering it.
	Probe(ctx context.Context, url string) poller.Result

	Subscribe() <-chan store.Event
	Unsubscribe(ch <-chan store.Event)
}

// Event is the JSON document sent for each Server-Sent Event.
type Event struct {
	Type     string              `json:"type"`
	ID       string              `json:"id"`
	Resource render.ResourceView `json:"resource"`
}

// eventSnapshot marks the events replayed when a client connects.
const eventSnapshot = "snapshot"

// Server handles HTTP requests for the ResourceBoard dashboard and API.
//
// Routes:
//   - GET /: Serves the embedded dashboard HTML
//   - POST /api/test-resource: Fetches a URL once and returns its payload
//   - GET, POST /api/resources: Lists or registers resources
//   - GET, DELETE /api/resources/{id}: Reads or removes one resource
//   - POST /api/resources/{id}/refresh: Requests an immediate fetch
//   - GET /api/sse: Server-Sent Events stream for real-time updates
//   - GET /metrics: Prometheus metrics
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	board      Board
	port       int
	httpServer *http.Server
	assets     fs.FS
	title      string
	metrics    http.Handler
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - board: The resource board backing the API
//   - port: TCP port to listen on
//   - assets: Embedded filesystem containing dashboard assets (may be nil)
//   - title: Dashboard title (defaults to "ResourceBoard" if empty)
//   - metrics: Handler for /metrics (may be nil)
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(board Board, port int, assets fs.FS, title string, metrics http.Handler, logger *slog.Logger) *Server {
	return &Server{
		board:   board,
		port:    port,
		assets:  assets,
		title:   title,
		metrics: metrics,
		logger:  logger,
	}
}

// Handler builds the chi router serving every route.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, errors.New("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})

	// streaming, so outside the request timeout
	r.Get("/api/sse", s.handleSSE)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.With(httprate.LimitByIP(testResourceLimit, time.Minute)).
			Post("/api/test-resource", s.handleTestResource)

		r.Route("/api/resources", func(r chi.Router) {
			r.Get("/", s.handleListResources)
			r.Post("/", s.handleCreateResource)
			r.Get("/{id}", s.handleGetResource)
			r.Delete("/{id}", s.handleDeleteResource)
			r.Post("/{id}/refresh", s.handleRefreshResource)
		})
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	// serve dashboard assets
	if s.assets != nil {
		r.Get("/", s.handleDashboard)
	}

	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// read index.html from embedded assets
	content, err := fs.ReadFile(s.assets, dashboard.IndexPath)
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	safeTitle := html.EscapeString(title)
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, safeTitle)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// resourceRequest is the body accepted by the resource endpoints, either as
// JSON or as form fields.
type resourceRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func decodeResourceRequest(w http.ResponseWriter, r *http.Request) (resourceRequest, error) {
	var req resourceRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid JSON body: %w", err)
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("invalid form body: %w", err)
	}
	req.Name = r.FormValue("name")
	req.URL = r.FormValue("url")
	return req, nil
}

// testResourceResponse is the success body of POST /api/test-resource.
type testResourceResponse struct {
	Success bool            `json:"success"`
	Data    jsonvalue.Value `json:"data"`
}

// handleTestResource fetches a URL once. Upstream non-2xx statuses are
// mirrored; other fetch failures are reported as 500.
func (s *Server) handleTestResource(w http.ResponseWriter, r *http.Request) {
	req, err := decodeResourceRequest(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		respondError(w, http.StatusBadRequest, errors.New("URL is required"))
		return
	}

	result := s.board.Probe(r.Context(), req.URL)
	if result.OK() {
		respondJSON(w, http.StatusOK, testResourceResponse{Success: true, Data: result.Payload})
		return
	}

	status := http.StatusInternalServerError
	switch result.Err.Kind {
	case poller.ErrHTTPStatus:
		status = result.Err.StatusCode
	case poller.ErrConfiguration:
		status = http.StatusBadRequest
	}
	s.logger.Debug("test resource failed", "url", req.URL, "kind", result.Err.Kind, "error", result.Err)
	respondError(w, status, result.Err)
}

func (s *Server) handleListResources(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	respondJSON(w, http.StatusOK, s.board.Views())
}

func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	req, err := decodeResourceRequest(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	view, err := s.board.Add(r.Context(), req.Name, req.URL)
	if errors.Is(err, store.ErrInvalidResource) {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		s.logger.Error("failed to add resource", "url", req.URL, "error", err)
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Location", "/api/resources/"+view.ID)
	respondJSON(w, http.StatusCreated, view)
}

func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	view, ok := s.board.View(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, errors.New("resource not found"))
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.board.Remove(r.Context(), id); err != nil {
		s.logger.Error("failed to remove resource", "resource_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefreshResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.board.Refresh(id) {
		respondError(w, http.StatusNotFound, errors.New("resource not found"))
		return
	}
	view, _ := s.board.View(id)
	respondJSON(w, http.StatusAccepted, view)
}

// handleSSE streams resource updates via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	// check if flushing is supported
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// ResponseController provides deadline-aware write and flush operations.
	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	// writeAndFlush writes SSE data with a deadline to prevent blocking forever.
	writeAndFlush := func(ev Event) error {
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("failed to encode sse event", "resource_id", ev.ID, "error", err)
			return nil
		}

		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				// deadline not supported by underlying connection, continue without
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}

		// ResponseController.Flush respects the write deadline
		return rc.Flush()
	}

	// set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// subscribe before the snapshot so no change is missed in between
	ch := s.board.Subscribe()
	defer s.board.Unsubscribe(ch)

	for _, view := range s.board.Views() {
		if err := writeAndFlush(Event{Type: eventSnapshot, ID: view.ID, Resource: view}); err != nil {
			return
		}
	}

	// stream updates
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			out := Event{
				Type:     string(ev.Type),
				ID:       ev.Entry.Resource.ID,
				Resource: s.board.Render(ev.Entry),
			}
			if err := writeAndFlush(out); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}

// Package mockapi serves a small headless-CMS style API for trying out
// ResourceBoard locally.
//
// Routes:
//
//	GET /api/things        collection in a {"data": [...]} envelope, records
//	                       wrapped as {"id", "attributes"}; drafts come and go
//	GET /api/upload/files  bare array of uploaded images
//	GET /api/flaky         cycles between 200, 500 and a non-JSON body
//	GET /uploads/{name}    generated PNG thumbnails
package mockapi

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

// thing is one published or draft record.
type thing struct {
	id          int
	title       string
	views       int
	createdAt   time.Time
	publishedAt *time.Time
}

// API is the mock server state. Content changes on its own every 20-60
// seconds so the dashboard has something to show.
type API struct {
	mu           sync.Mutex
	things       []thing
	flakyIdx     int
	nextChangeAt time.Time
	logger       *slog.Logger
}

// New returns an API seeded with a few records.
func New(logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now().UTC()
	published := now.Add(-48 * time.Hour)
	return &API{
		things: []thing{
			{id: 1, title: "Hello world", views: 42, createdAt: now.Add(-72 * time.Hour), publishedAt: &published},
			{id: 2, title: "Release notes", views: 7, createdAt: now.Add(-24 * time.Hour)},
			{id: 3, title: "Roadmap", views: 0, createdAt: now},
		},
		nextChangeAt: now.Add(nextDelay()),
		logger:       logger,
	}
}

func nextDelay() time.Duration {
	return time.Duration(20+rand.Intn(41)) * time.Second
}

// Handler returns the HTTP routes of the mock API.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/things", a.handleThings)
	mux.HandleFunc("GET /api/upload/files", a.handleFiles)
	mux.HandleFunc("GET /api/flaky", a.handleFlaky)
	mux.HandleFunc("GET /uploads/{name}", a.handleUpload)
	return mux
}

// ListenAndServe runs the mock API on addr until the listener fails.
func (a *API) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, a.Handler())
}

// mutate publishes a draft or adds a new one once the change time is reached.
func (a *API) mutate() {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now().UTC()
	if now.Before(a.nextChangeAt) {
		return
	}
	a.nextChangeAt = now.Add(nextDelay())

	for i := range a.things {
		if a.things[i].publishedAt == nil {
			a.things[i].publishedAt = &now
			a.logger.Info("thing published", "id", a.things[i].id, "title", a.things[i].title)
			return
		}
	}
	id := len(a.things) + 1
	a.things = append(a.things, thing{id: id, title: fmt.Sprintf("Draft %d", id), createdAt: now})
	a.logger.Info("thing created", "id", id)
}

func (a *API) handleThings(w http.ResponseWriter, r *http.Request) {
	// simulate small latency variance
	time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)
	a.mutate()

	a.mu.Lock()
	data := make([]map[string]any, 0, len(a.things))
	for _, t := range a.things {
		attrs := map[string]any{
			"title":       t.title,
			"views":       t.views + rand.Intn(5),
			"featured":    t.id%2 == 1,
			"createdAt":   t.createdAt.Format(time.RFC3339),
			"updatedAt":   t.createdAt.Format(time.RFC3339),
			"publishedAt": nil,
		}
		if t.publishedAt != nil {
			attrs["publishedAt"] = t.publishedAt.Format(time.RFC3339)
		}
		data = append(data, map[string]any{"id": t.id, "attributes": attrs})
	}
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"data": data,
		"meta": map[string]any{"pagination": map[string]int{"page": 1, "total": len(data)}},
	})
}

func (a *API) handleFiles(w http.ResponseWriter, r *http.Request) {
	files := []map[string]any{
		{
			"id": 1, "name": "logo.png", "ext": ".png", "mime": "image/png",
			"width": 640, "height": 480, "size": 12.34, "url": "/uploads/logo.png",
			"formats": map[string]any{"thumbnail": map[string]any{"url": "/uploads/thumbnail_logo.png"}},
		},
		{
			"id": 2, "name": "banner.png", "ext": ".png", "mime": "image/png",
			"width": 1200, "height": 300, "size": 48.9, "url": "/uploads/banner.png",
		},
		{
			"id": 3, "alternativeText": "Team photo", "mime": "image/jpeg",
			"size": 210.5, "url": "/uploads/missing.jpg",
		},
	}
	writeJSON(w, http.StatusOK, files)
}

func (a *API) handleFlaky(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	idx := a.flakyIdx
	a.flakyIdx = (a.flakyIdx + 1) % 3
	a.mu.Unlock()

	switch idx {
	case 0:
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "status": "ok"}})
	case 1:
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	default:
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}
}

// handleUpload draws a flat colour tile. Names starting with "missing" 404.
func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if strings.HasPrefix(name, "missing") {
		http.NotFound(w, r)
		return
	}

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	shade := uint8(len(name) * 17)
	fill := color.RGBA{R: shade, G: 120, B: 255 - shade, A: 255}
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, fill)
		}
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		a.logger.Error("failed to encode thumbnail", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

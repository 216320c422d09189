// Package dashboard embeds the single-page ResourceBoard UI.
//
// index.html carries a {{.Title}} placeholder that the server substitutes
// (HTML-escaped) on every request. The page talks to the board only through
// the JSON API and the /api/sse stream, so it works unchanged behind any
// reverse proxy that forwards those paths.
package dashboard

import "embed"

// Assets holds assets/index.html.
//
//go:embed assets/*
var Assets embed.FS

// IndexPath is the path of the page inside [Assets].
const IndexPath = "assets/index.html"

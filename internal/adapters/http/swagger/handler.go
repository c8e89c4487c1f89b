// Package swagger serves the OpenAPI document of the curation API, a JSON
// rendition of it, and a ReDoc page that renders it.
package swagger

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.yaml.in/yaml/v3"
)

// DefaultRedocURL is where the docs page loads ReDoc from unless overridden.
const DefaultRedocURL = "https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"

// OpenAPI is the embedded OpenAPI document for the curation API.
//
//go:embed openapi.yaml
var OpenAPI []byte

// ErrInvalidDocument is returned when the OpenAPI document does not parse
// or lacks its info block.
var ErrInvalidDocument = errors.New("invalid openapi document")

// Option configures a Handler.
type Option func(*Handler)

// WithRedocURL points the docs page at another ReDoc bundle.
func WithRedocURL(url string) Option {
	return func(h *Handler) {
		if url != "" {
			h.redocURL = url
		}
	}
}

// WithDocument replaces the embedded document.
func WithDocument(doc []byte) Option {
	return func(h *Handler) { h.yamlDoc = doc }
}

// Handler serves one parsed OpenAPI document.
type Handler struct {
	yamlDoc  []byte
	jsonDoc  []byte
	redocURL string
	title    string
	version  string
}

// New parses the document once so a broken file fails at startup.
func New(opts ...Option) (*Handler, error) {
	h := &Handler{yamlDoc: OpenAPI, redocURL: DefaultRedocURL}
	for _, opt := range opts {
		opt(h)
	}

	var doc struct {
		OpenAPI string `yaml:"openapi"`
		Info    struct {
			Title   string `yaml:"title"`
			Version string `yaml:"version"`
		} `yaml:"info"`
	}
	if err := yaml.Unmarshal(h.yamlDoc, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if doc.OpenAPI == "" || doc.Info.Title == "" {
		return nil, fmt.Errorf("%w: missing openapi version or info.title", ErrInvalidDocument)
	}
	h.title, h.version = doc.Info.Title, doc.Info.Version

	var tree any
	if err := yaml.Unmarshal(h.yamlDoc, &tree); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	js, err := json.Marshal(stringKeys(tree))
	if err != nil {
		return nil, fmt.Errorf("%w: json rendition: %w", ErrInvalidDocument, err)
	}
	h.jsonDoc = js
	return h, nil
}

// stringKeys rewrites maps with non-string keys, such as unquoted status
// codes, so the tree can be encoded as JSON.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = stringKeys(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = stringKeys(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = stringKeys(e)
		}
		return t
	default:
		return v
	}
}

// Title returns info.title of the served document.
func (h *Handler) Title() string { return h.title }

// Version returns info.version of the served document.
func (h *Handler) Version() string { return h.version }

// Register attaches the docs routes to mux.
//
//	GET /api-docs      ReDoc page
//	GET /openapi.yaml  document as written
//	GET /openapi.json  same document as JSON
func (h *Handler) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	page := []byte(fmt.Sprintf(indexHTML, h.title, h.redocURL))
	mux.HandleFunc("GET /api-docs", serve("text/html; charset=utf-8", page))
	mux.HandleFunc("GET /openapi.yaml", serve("application/yaml; charset=utf-8", h.yamlDoc))
	mux.HandleFunc("GET /openapi.json", serve("application/json; charset=utf-8", h.jsonDoc))
}

func serve(contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	}
}

const indexHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>%s API</title>
    <style>body{margin:0;padding:0}</style>
  </head>
  <body>
    <redoc id="redoc-container"></redoc>
    <script src="%s"></script>
    <script>Redoc.init('/openapi.yaml', { suppressWarnings: true }, document.getElementById('redoc-container'));</script>
  </body>
</html>`

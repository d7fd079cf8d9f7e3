package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	ometrics "github.com/deepscout/orchestrator/internal/metrics"
)

// Document is one passage returned by a search backend. URL and Title may
// be empty for sources without stable locators.
type Document struct {
	Content string `json:"content"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
}

// Invoker is the tool capability shared read-only across research workers.
// Retrieve queries the local vector index; WebSearch queries the live web
// backend; Note records a reflection for traceability and is a no-op
// from the caller's perspective.
type Invoker interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
	WebSearch(ctx context.Context, query string) ([]Document, error)
	Note(ctx context.Context, text string) error
}

// Config holds backend endpoints for the HTTP invoker.
type Config struct {
	RetrievalURL string
	WebSearchURL string
	TraceURL     string // optional; Note logs locally when empty
	Timeout      time.Duration
}

// HTTPInvoker talks JSON to the retrieval and web-search services.
type HTTPInvoker struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewHTTPInvoker builds an invoker for the configured backends.
func NewHTTPInvoker(cfg Config, logger *zap.Logger) *HTTPInvoker {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPInvoker{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type searchResponse struct {
	Results []Document `json:"results"`
}

// Retrieve queries the local, offline vector index. It never reaches the
// web; results are semantic matches from the curated corpus.
func (i *HTTPInvoker) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = 3
	}
	docs, err := i.post(ctx, i.cfg.RetrievalURL, searchRequest{Query: query, TopK: topK})
	i.observe("retrieval", err)
	return docs, err
}

// WebSearch queries the live web-search backend.
func (i *HTTPInvoker) WebSearch(ctx context.Context, query string) ([]Document, error) {
	docs, err := i.post(ctx, i.cfg.WebSearchURL, searchRequest{Query: query})
	i.observe("web_search", err)
	return docs, err
}

// Note records reflection text for traceability. Failures are logged and
// swallowed; a lost trace entry must never disturb a research loop.
func (i *HTTPInvoker) Note(ctx context.Context, text string) error {
	ometrics.ToolCalls.WithLabelValues("note", "ok").Inc()
	if i.cfg.TraceURL == "" {
		i.logger.Debug("research note", zap.String("text", text))
		return nil
	}
	body, _ := json.Marshal(map[string]string{"text": text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.cfg.TraceURL, bytes.NewReader(body))
	if err != nil {
		i.logger.Warn("note request build failed", zap.Error(err))
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := i.http.Do(req)
	if err != nil {
		i.logger.Warn("note delivery failed", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()
	return nil
}

func (i *HTTPInvoker) post(ctx context.Context, url string, reqBody searchRequest) ([]Document, error) {
	if url == "" {
		return nil, fmt.Errorf("tools: backend not configured")
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("tools: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tools: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := i.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tools: backend call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("tools: backend returned status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("tools: decode response: %w", err)
	}
	return out.Results, nil
}

func (i *HTTPInvoker) observe(kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ometrics.ToolCalls.WithLabelValues(kind, status).Inc()
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deepscout/orchestrator/internal/research"
)

// HTTPGenerator calls the LLM service's structured-output endpoints. Each
// template has a dedicated route; the service returns a JSON envelope
// whose response field contains the model text, from which the first
// JSON object is extracted and decoded.
type HTTPGenerator struct {
	base   string
	http   *http.Client
	logger *zap.Logger
}

// NewHTTPGenerator builds a generator against the given service base URL.
func NewHTTPGenerator(base string, timeout time.Duration, logger *zap.Logger) *HTTPGenerator {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPGenerator{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// envelope is the LLM service's response wrapper.
type envelope struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
}

// call posts the payload to the template route and decodes the first JSON
// object found in the model response into out.
func (g *HTTPGenerator) call(ctx context.Context, template string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("llm: marshal %s request: %w", template, err)
	}

	url := fmt.Sprintf("%s/agent/%s", g.base, template)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("llm: build %s request: %w", template, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("llm: %s call failed: %w", template, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("llm: %s returned status %d", template, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &DecodeError{Template: template, Reason: "envelope not JSON", Err: err}
	}

	jsonStr, err := extractJSON(env.Response)
	if err != nil {
		return &DecodeError{Template: template, Reason: "no JSON object in response", Err: err}
	}
	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		return &DecodeError{Template: template, Reason: "structured shape mismatch", Err: err}
	}
	return nil
}

// extractJSON returns the outermost {...} block of a model response.
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found")
	}
	return s[start : end+1], nil
}

func (g *HTTPGenerator) Clarify(ctx context.Context, messages []string) (*ClarificationDecision, error) {
	var out ClarificationDecision
	payload := map[string]interface{}{"messages": messages}
	if err := g.call(ctx, "clarify", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGenerator) Plan(ctx context.Context, recentMessages string, searchTopics []string) (*PlanDraft, error) {
	var out PlanDraft
	payload := map[string]interface{}{
		"messages":      recentMessages,
		"search_topics": searchTopics,
	}
	if err := g.call(ctx, "plan", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGenerator) Decompose(ctx context.Context, request string) (*Decomposition, error) {
	var out Decomposition
	payload := map[string]interface{}{"request": request}
	if err := g.call(ctx, "decompose", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGenerator) Reflect(ctx context.Context, in ReflectionInput) (*Reflection, error) {
	var out Reflection
	if err := g.call(ctx, "reflect", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGenerator) Compose(ctx context.Context, in ComposeInput) (*Composition, error) {
	var out Composition
	if err := g.call(ctx, "compose", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGenerator) Assess(ctx context.Context, in AssessInput) (*Assessment, error) {
	var out Assessment
	if err := g.call(ctx, "assess", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGenerator) Synthesize(ctx context.Context, request string, in research.AnswersCollection) (*research.AnswerWithCitations, error) {
	var out research.AnswerWithCitations
	payload := map[string]interface{}{
		"request": request,
		"answers": in.Answers,
	}
	if err := g.call(ctx, "synthesize", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

var _ Generator = (*HTTPGenerator)(nil)

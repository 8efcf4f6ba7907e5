package review

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

const llmRequestTimeout = 60 * time.Second

var errNoLLMConfigured = errors.New("review: no LLM client configured (GEMINI_API_KEY unset)")

// Client wraps the genai text-generation call behind a circuit breaker,
// the same shape the teacher uses for its analyzer service's genai calls.
type Client struct {
	genai   *genai.Client
	breaker *gobreaker.CircuitBreaker[*genai.GenerateContentResponse]
}

func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return &Client{}, nil
	}

	httpLogger := slog.Default().With("component", "genai_http")
	cfg := genai.ClientConfig{
		APIKey:     apiKey,
		HTTPClient: newLoggingHTTPClient(httpLogger),
	}
	c, err := genai.NewClient(ctx, &cfg)
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker[*genai.GenerateContentResponse](gobreaker.Settings{
		Name:    "genai-reviewer",
		Timeout: 60,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Debug("circuit breaker state change", "name", name, "from", from, "to", to)
		},
	})

	return &Client{genai: c, breaker: breaker}, nil
}

func (c *Client) available() bool {
	return c != nil && c.genai != nil
}

// Generate calls the model with temperature 0 (spec.md §4.3 "Reviewer
// determinism") and a fixed transport timeout (spec.md §5 "Cancellation /
// timeout"), and returns the raw text response.
func (c *Client) Generate(ctx context.Context, pair *PromptPair) (string, error) {
	if !c.available() {
		return "", errNoLLMConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, llmRequestTimeout)
	defer cancel()

	temperature := pair.Config.Temperature
	genaiCfg := &genai.GenerateContentConfig{Temperature: &temperature}
	if pair.System != "" {
		genaiCfg.SystemInstruction = genai.NewContentFromText(pair.System, genai.RoleUser)
	}

	model := pair.Config.Model
	resp, err := c.breaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return c.genai.Models.GenerateContent(ctx, model, genai.Text(pair.User), genaiCfg)
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(resp.Text()), nil
}

func newLoggingHTTPClient(logger *slog.Logger) *http.Client {
	return &http.Client{Transport: &loggingRoundTripper{base: http.DefaultTransport, logger: logger}}
}

type loggingRoundTripper struct {
	base   http.RoundTripper
	logger *slog.Logger
}

func (l *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := l.base.RoundTrip(req)
	latency := time.Since(start)
	if err != nil {
		l.logger.Warn("genai http request failed", "method", req.Method, "host", req.URL.Host, "latency", latency, "error", err)
		return resp, err
	}
	l.logger.Debug("genai http request", "method", req.Method, "host", req.URL.Host, "status", resp.StatusCode, "latency", latency)
	return resp, nil
}

// backoffWithJitter implements spec.md §4.3 "wait = base * 2^attempt +
// rand(0,1)" for transport-level rate-limit retries.
func backoffWithJitter(base float64, attempt int) time.Duration {
	wait := base*pow2(attempt) + rand.Float64()
	return time.Duration(wait * float64(time.Second))
}

func pow2(n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 2
	}
	return result
}

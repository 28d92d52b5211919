// Package conversion provides the unit converter adapters: an HTTP client for
// a Spoonacular-style conversion API and a caching decorator
package conversion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/alchemorsel/pantry/internal/domain/pantry"
	"github.com/alchemorsel/pantry/internal/infrastructure/config"
	"github.com/alchemorsel/pantry/internal/ports/outbound"
	"github.com/alchemorsel/pantry/pkg/healthcheck"
)

const convertPath = "/recipes/convert"

var (
	translatesTo = regexp.MustCompile(`(?i)translates to\s+(\S+)`)
	answerAmount = regexp.MustCompile(`^-?(?:\d{1,3}(?:,\d{3})+|\d*)(?:\.\d+)?$`)
)

// Client implements outbound.UnitConverter over HTTP
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	breaker *healthcheck.CircuitBreaker
	logger  *zap.Logger
}

var _ outbound.UnitConverter = (*Client)(nil)

// NewClient creates a conversion API client.
// Requests are rate limited, traced and guarded by breaker.
func NewClient(cfg config.ConverterConfig, breaker *healthcheck.CircuitBreaker, logger *zap.Logger) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if breaker == nil {
		breaker = healthcheck.NewCircuitBreaker("converter", healthcheck.CircuitBreakerConfig{
			FailureThreshold: cfg.CircuitMaxFailures,
			Timeout:          cfg.CircuitResetTimeout,
		})
	}

	logger.Info("Conversion client initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.Duration("timeout", cfg.Timeout),
		zap.Float64("requests_per_second", cfg.RequestsPerSecond),
	)

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(limit, burst),
		breaker: breaker,
		logger:  logger.Named("conversion-client"),
	}
}

// Breaker exposes the circuit breaker for health reporting
func (c *Client) Breaker() *healthcheck.CircuitBreaker {
	return c.breaker
}

type convertResponse struct {
	SourceAmount float64  `json:"sourceAmount"`
	SourceUnit   string   `json:"sourceUnit"`
	TargetAmount *float64 `json:"targetAmount"`
	TargetUnit   string   `json:"targetUnit"`
	Answer       string   `json:"answer"`
}

// statusError is a non-2xx answer from the conversion API
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("conversion API returned status %d: %s", e.code, e.body)
}

// notServiceFault keeps client-side problems from opening the circuit:
// the caller giving up, or the API rejecting this particular request.
func notServiceFault(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 400 && se.code < 500 && se.code != http.StatusTooManyRequests
	}
	return false
}

// Convert asks the conversion API for amount of ingredient expressed in toUnit.
// Every failure wraps pantry.ErrConversionFailed.
func (c *Client) Convert(ctx context.Context, ingredient, fromUnit, toUnit string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("%w: rate limiter: %v", pantry.ErrConversionFailed, err)
	}

	var converted decimal.Decimal
	err := c.breaker.Execute(func() error {
		var err error
		converted, err = c.convert(ctx, ingredient, fromUnit, toUnit, amount)
		return err
	}, notServiceFault)
	if err != nil {
		c.logger.Debug("Conversion failed",
			zap.String("ingredient", ingredient),
			zap.String("from", fromUnit),
			zap.String("to", toUnit),
			zap.Error(err),
		)
		return decimal.Zero, fmt.Errorf("%w: %v", pantry.ErrConversionFailed, err)
	}

	return converted, nil
}

func (c *Client) convert(ctx context.Context, ingredient, fromUnit, toUnit string, amount decimal.Decimal) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("ingredientName", ingredient)
	query.Set("sourceAmount", amount.String())
	query.Set("sourceUnit", fromUnit)
	query.Set("targetUnit", toUnit)
	if c.apiKey != "" {
		query.Set("apiKey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+convertPath+"?"+query.Encode(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Zero, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var parsed convertResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode response: %w", err)
	}

	return parsed.amount()
}

// amount prefers the structured targetAmount and falls back to the prose answer
func (r convertResponse) amount() (decimal.Decimal, error) {
	if r.TargetAmount != nil {
		return decimal.NewFromFloat(*r.TargetAmount), nil
	}
	return parseAnswer(r.Answer)
}

// parseAnswer extracts the amount following "translates to". Anything that
// is not a whole number token there, such as "1,25" or "about", is rejected.
func parseAnswer(answer string) (decimal.Decimal, error) {
	m := translatesTo.FindStringSubmatch(answer)
	if m == nil {
		return decimal.Zero, fmt.Errorf("no amount in answer %q", answer)
	}

	token := strings.TrimRight(m[1], ".,;:!")
	if !answerAmount.MatchString(token) || !strings.ContainsAny(token, "0123456789") {
		return decimal.Zero, fmt.Errorf("unparseable amount %q in answer %q", m[1], answer)
	}
	return decimal.NewFromString(strings.ReplaceAll(token, ",", ""))
}

// Package ai implements the vision and deep-research collaborator on
// top of the Anthropic messages API.
package ai

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/truescore/truescore/internal/config"
	"github.com/truescore/truescore/internal/domain"
)

const (
	apiVersion        = "2023-06-01"
	identifyMaxTokens = 2048
	researchMaxTokens = 8000
)

// Client implements domain.AIClient against the Anthropic API.
type Client struct {
	cfg config.Config
	hc  *http.Client
}

// New constructs a Client. The HTTP timeout covers a single attempt;
// retries are bounded separately by the backoff configuration.
func New(cfg config.Config) *Client {
	return &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.AITimeout},
	}
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Source *apiImageSource `json:"source,omitempty"`
}

type apiImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// IdentifyProduct sends the image to the vision model and parses the
// structured identification out of its reply.
func (c *Client) IdentifyProduct(ctx domain.Context, image []byte, mediaType string) (domain.ProductIdentification, error) {
	if c.cfg.AnthropicAPIKey == "" {
		return domain.ProductIdentification{}, fmt.Errorf("%w: ANTHROPIC_API_KEY missing", domain.ErrInvalidArgument)
	}
	req := apiRequest{
		Model:     c.cfg.VisionModel,
		MaxTokens: identifyMaxTokens,
		Messages: []apiMessage{{
			Role: "user",
			Content: []apiContent{
				{
					Type: "image",
					Source: &apiImageSource{
						Type:      "base64",
						MediaType: mediaType,
						Data:      base64.StdEncoding.EncodeToString(image),
					},
				},
				{Type: "text", Text: identifyPrompt},
			},
		}},
	}
	text, err := c.call(ctx, req, "identify")
	if err != nil {
		return domain.ProductIdentification{}, err
	}
	return parseIdentification(text)
}

// DeepResearch asks the model for the full seven-section report text.
func (c *Client) DeepResearch(ctx domain.Context, r domain.ResearchRequest) (string, error) {
	if c.cfg.AnthropicAPIKey == "" {
		return "", fmt.Errorf("%w: ANTHROPIC_API_KEY missing", domain.ErrInvalidArgument)
	}
	brand := r.Brand
	if brand == "" {
		brand = "Unknown"
	}
	prompt := fmt.Sprintf(researchPromptTemplate, r.ProductName, brand, r.Category, strings.Join(r.Ingredients, ", "))
	req := apiRequest{
		Model:     c.cfg.VisionModel,
		MaxTokens: researchMaxTokens,
		Messages: []apiMessage{{
			Role:    "user",
			Content: []apiContent{{Type: "text", Text: prompt}},
		}},
	}
	return c.call(ctx, req, "research")
}

// call posts one messages request with exponential-backoff retries on
// transient failures. 4xx responses are permanent and never retried.
func (c *Client) call(ctx domain.Context, req apiRequest, op string) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("op=ai.%s encode: %w", op, err)
	}

	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime = c.cfg.AIBackoffMaxElapsedTime
	expo.InitialInterval = c.cfg.AIBackoffInitialInterval
	expo.MaxInterval = c.cfg.AIBackoffMaxInterval

	var text string
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AnthropicBaseURL+"/v1/messages", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.cfg.AnthropicAPIKey)
		httpReq.Header.Set("anthropic-version", apiVersion)

		start := time.Now()
		resp, err := c.hc.Do(httpReq)
		if err != nil {
			slog.Warn("ai request failed", slog.String("operation", op), slog.Any("error", err))
			return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
		}
		defer func() { _ = resp.Body.Close() }()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return fmt.Errorf("%w: read body: %v", domain.ErrUpstreamFailure, err)
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			slog.Warn("ai upstream unavailable",
				slog.String("operation", op),
				slog.Int("status", resp.StatusCode),
				slog.Duration("elapsed", time.Since(start)))
			return fmt.Errorf("%w: status %d", domain.ErrUpstreamFailure, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("%w: status %d: %s", domain.ErrUpstreamFailure, resp.StatusCode, truncate(string(raw), 200)))
		}

		var parsed apiResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: decode: %v", domain.ErrSchemaInvalid, err))
		}
		if len(parsed.Content) == 0 || parsed.Content[0].Text == "" {
			return backoff.Permanent(fmt.Errorf("%w: empty content", domain.ErrSchemaInvalid))
		}
		text = parsed.Content[0].Text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(expo, ctx)); err != nil {
		return "", fmt.Errorf("op=ai.%s: %w", op, err)
	}
	return text, nil
}

// parseIdentification extracts the JSON object between the first "{"
// and last "}" of the reply, tolerating prose around it.
func parseIdentification(text string) (domain.ProductIdentification, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return domain.ProductIdentification{}, fmt.Errorf("op=ai.parse_identification no json: %w", domain.ErrSchemaInvalid)
	}
	var id domain.ProductIdentification
	if err := json.Unmarshal([]byte(text[start:end+1]), &id); err != nil {
		return domain.ProductIdentification{}, fmt.Errorf("op=ai.parse_identification: %w", domain.ErrSchemaInvalid)
	}
	if id.ProductName == "" {
		id.ProductName = "Unknown Product"
	}
	if id.Brand == "" {
		id.Brand = "Unknown Brand"
	}
	if id.Category == "" {
		id.Category = "other"
	}
	if id.Confidence == "" {
		id.Confidence = "medium"
	}
	return id, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

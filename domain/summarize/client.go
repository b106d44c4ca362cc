// Package summarize is the LLM layer: single-request meeting and item
// summaries plus batched item submission, with size-based model routing.
package summarize

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/fx"
	"google.golang.org/genai"

	"github.com/engagic/engagic/internal/config"
	"github.com/engagic/engagic/pkg/logger"
)

var Module = fx.Module("summarize",
	fx.Provide(func(cfg *config.Config, log *slog.Logger) (*Client, error) {
		return NewClient(context.Background(), cfg, log)
	}),
)

// Client talks to the LLM provider through two logical model tiers
type Client struct {
	client     *genai.Client
	smallModel string
	largeModel string

	temperature     float32
	maxOutputTokens int32
	batchEnabled    bool
	batchTimeout    batchTimeoutConfig

	prompts *prompts
	log     *slog.Logger
}

// NewClient creates the summarizer. Construction fails fast on a missing
// API key or malformed prompt file; neither is retryable.
func NewClient(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Client, error) {
	if !cfg.LLM.IsEnabled() {
		return nil, fmt.Errorf("LLM_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.LLM.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	p, err := loadPrompts()
	if err != nil {
		return nil, err
	}

	return &Client{
		client:          client,
		smallModel:      cfg.LLM.SmallModel,
		largeModel:      cfg.LLM.LargeModel,
		temperature:     float32(cfg.LLM.Temperature),
		maxOutputTokens: int32(cfg.LLM.MaxOutputTokens),
		batchEnabled:    cfg.LLM.BatchEnabled,
		batchTimeout:    batchTimeoutConfig{total: cfg.LLM.BatchTimeout},
		prompts:         p,
		log:             log.With(logger.Scope("summarize")),
	}, nil
}

// SummarizeMeeting produces a markdown summary of a whole agenda or packet.
// Short documents use the short_agenda prompt, long ones comprehensive.
func (c *Client) SummarizeMeeting(ctx context.Context, text string, pages int) (string, error) {
	size := Size(text, pages)
	model := c.pickModel(size)
	key := meetingPromptKey(size)
	tmpl, ok := c.prompts.meeting[key]
	if !ok {
		return "", fmt.Errorf("no meeting prompt %q", key)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     ptrFloat32(c.temperature),
		MaxOutputTokens: c.maxOutputTokens,
		ThinkingConfig:  c.thinkingConfig(model, size),
	}

	c.log.Debug("summarizing meeting",
		slog.String("model", model),
		slog.String("prompt", key),
		slog.Int("chars", size.Chars),
		slog.Int("pages", size.Pages))

	resp, err := c.client.Models.GenerateContent(ctx, model,
		genai.Text(tmpl.render(map[string]string{"text": text})), cfg)
	if err != nil {
		return "", fmt.Errorf("generate meeting summary: %w", err)
	}

	out := resp.Text()
	if out == "" {
		return "", fmt.Errorf("empty meeting summary response")
	}
	return out, nil
}

// SummarizeItem produces a markdown summary plus raw topic labels for one
// agenda item, requesting structured JSON and falling back to sentinel
// parsing when the provider returns invalid JSON.
func (c *Client) SummarizeItem(ctx context.Context, title, text string) (string, []string, error) {
	size := Size(text, 0)
	model := c.pickModel(size)
	tmpl := c.prompts.item["standard"]

	resp, err := c.client.Models.GenerateContent(ctx, model,
		genai.Text(tmpl.render(map[string]string{"title": title, "text": text})),
		c.itemConfig(model, size))
	if err != nil {
		return "", nil, fmt.Errorf("generate item summary: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return "", nil, fmt.Errorf("empty item summary response")
	}
	summary, topics := parseItemResponse(raw)
	return summary, topics, nil
}

func (c *Client) itemConfig(model string, size DocSize) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:      ptrFloat32(c.temperature),
		MaxOutputTokens:  c.maxOutputTokens,
		ResponseMIMEType: "application/json",
		ResponseSchema:   c.prompts.itemSchema,
		ThinkingConfig:   c.thinkingConfig(model, size),
	}
}

// BatchEnabled reports whether item batching is switched on
func (c *Client) BatchEnabled() bool {
	return c.batchEnabled
}

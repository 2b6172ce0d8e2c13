package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/danielcwq/stall-finder/internal/domain/providers"
	"github.com/danielcwq/stall-finder/pkg/config"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Client implements the completion and embedding capabilities against an
// OpenAI-compatible API.
type Client struct {
	client         *openai.Client
	model          string
	embeddingModel openai.EmbeddingModel
	dimensions     int
}

var (
	_ providers.CompletionProvider = (*Client)(nil)
	_ providers.EmbeddingProvider  = (*Client)(nil)
)

// NewClient creates a new OpenAI client.
func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &Client{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          model,
		embeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		dimensions:     cfg.EmbeddingDimensions,
	}, nil
}

// Complete sends a system + user message pair and returns the first choice text.
func (c *Client) Complete(ctx context.Context, req providers.CompletionRequest) (string, error) {
	temperature := req.Temperature
	if temperature == 0 {
		// go-openai drops a zero temperature from the payload.
		temperature = math.SmallestNonzeroFloat32
	}

	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserMessage},
		},
		Temperature: temperature,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		recordOpenAIMetric(ctx, "chat", c.model, time.Since(start), err)
		return "", parseAPIError("completion", err)
	}

	if len(resp.Choices) == 0 {
		err := errors.New("openai response has no choices")
		recordOpenAIMetric(ctx, "chat", c.model, time.Since(start), err)
		return "", err
	}

	recordOpenAIMetric(ctx, "chat", c.model, time.Since(start), nil)
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          c.embeddingModel,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if c.dimensions > 0 {
		req.Dimensions = c.dimensions
	}

	start := time.Now()
	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		recordOpenAIMetric(ctx, "embedding", string(c.embeddingModel), time.Since(start), err)
		return nil, parseAPIError("embedding", err)
	}

	if len(resp.Data) == 0 {
		err := errors.New("openai embedding response is empty")
		recordOpenAIMetric(ctx, "embedding", string(c.embeddingModel), time.Since(start), err)
		return nil, err
	}

	recordOpenAIMetric(ctx, "embedding", string(c.embeddingModel), time.Since(start), nil)
	return resp.Data[0].Embedding, nil
}

func parseAPIError(operation string, err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("openai %s request failed with status %d: %w", operation, reqErr.HTTPStatusCode, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai %s request failed with status %d: %s", operation, apiErr.HTTPStatusCode, apiErr.Message)
	}

	return fmt.Errorf("openai %s request failed: %w", operation, err)
}

type openAIMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
}

var (
	openaiMetricsOnce sync.Once
	openaiMetrics     *openAIMetrics
)

func ensureOpenAIMetrics() *openAIMetrics {
	openaiMetricsOnce.Do(func() {
		meter := otel.Meter("github.com/danielcwq/stall-finder/openai")

		requestCount, err := meter.Int64Counter(
			"ai.openai.request.count",
			metric.WithDescription("Number of OpenAI requests"),
		)
		if err != nil {
			return
		}
		requestDuration, err := meter.Float64Histogram(
			"ai.openai.request.duration",
			metric.WithDescription("OpenAI request duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}
		requestErrors, err := meter.Int64Counter(
			"ai.openai.request.errors",
			metric.WithDescription("Number of OpenAI request errors"),
		)
		if err != nil {
			return
		}

		openaiMetrics = &openAIMetrics{
			requestCount:    requestCount,
			requestDuration: requestDuration,
			requestErrors:   requestErrors,
		}
	})
	return openaiMetrics
}

func recordOpenAIMetric(ctx context.Context, operation, model string, duration time.Duration, err error) {
	m := ensureOpenAIMetrics()
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.operation", operation),
		attribute.String("ai.model", model),
	)

	m.requestCount.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.requestErrors.Add(ctx, 1, attrs)
	}
}

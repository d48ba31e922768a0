package agent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultMaxTokens caps a single model response.
const DefaultMaxTokens = 4000

// AnthropicConfig configures an AnthropicAgent.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// BaseURL overrides the API endpoint (tests, proxies).
	BaseURL      string
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// AnthropicAgent is a Capability backed by the Anthropic Messages API.
type AnthropicAgent struct {
	client       anthropic.Client
	model        anthropic.Model
	systemPrompt string
	temperature  float64
	maxTokens    int64
}

// NewAnthropicAgent creates an agent that sends one message per task.
func NewAnthropicAgent(cfg AnthropicConfig) (*AnthropicAgent, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
	}

	// Retries belong to the task runner
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &AnthropicAgent{
		client:       anthropic.NewClient(opts...),
		model:        model,
		systemPrompt: cfg.SystemPrompt,
		temperature:  cfg.Temperature,
		maxTokens:    int64(maxTokens),
	}, nil
}

// Execute builds the task prompt and performs a single Messages call.
func (a *AnthropicAgent) Execute(ctx context.Context, req Request) (Result, error) {
	prompt := BuildPrompt(req)
	start := time.Now()

	params := anthropic.MessageNewParams{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(a.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if a.systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: a.systemPrompt},
		}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return Result{
			Status:   StatusFailed,
			Prompt:   prompt,
			Error:    err.Error(),
			Duration: time.Since(start),
		}, fmt.Errorf("anthropic request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}
	response := text.String()

	return Result{
		Status:     StatusSuccess,
		Output:     ParseOutput(response),
		Response:   response,
		Prompt:     prompt,
		TokensUsed: int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		Duration:   time.Since(start),
		Metadata: map[string]any{
			"model":       string(resp.Model),
			"temperature": a.temperature,
			"stop_reason": string(resp.StopReason),
			"task_title":  req.Title,
		},
	}, nil
}

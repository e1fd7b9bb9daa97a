package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cexll/agentsdk-go/pkg/model"

	"github.com/stellarlinkco/huarazbot/internal/config"
)

// ProviderClient adapts an agentsdk model provider to Client.
type ProviderClient struct {
	provider    model.Provider
	modelName   string
	maxTokens   int
	temperature *float64
}

// NewProvider builds the agentsdk provider selected by cfg.Provider.Type.
func NewProvider(cfg *config.Config) (model.Provider, error) {
	if strings.TrimSpace(cfg.Provider.APIKey) == "" {
		return nil, fmt.Errorf("no API key configured; set HUARAZBOT_API_KEY or ANTHROPIC_API_KEY")
	}
	temp := cfg.Agent.Temperature
	switch strings.ToLower(cfg.Provider.Type) {
	case "openai":
		return &model.OpenAIProvider{
			APIKey:      cfg.Provider.APIKey,
			BaseURL:     cfg.Provider.BaseURL,
			ModelName:   cfg.Agent.Model,
			MaxTokens:   cfg.Agent.MaxTokens,
			Temperature: &temp,
		}, nil
	case "", "anthropic":
		return &model.AnthropicProvider{
			APIKey:      cfg.Provider.APIKey,
			BaseURL:     cfg.Provider.BaseURL,
			ModelName:   cfg.Agent.Model,
			MaxTokens:   cfg.Agent.MaxTokens,
			Temperature: &temp,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Provider.Type)
	}
}

// NewClient returns a Client for the configured provider.
func NewClient(cfg *config.Config) (*ProviderClient, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	temp := cfg.Agent.Temperature
	return NewProviderClient(provider, cfg.Agent.Model, cfg.Agent.MaxTokens, &temp), nil
}

func NewProviderClient(provider model.Provider, modelName string, maxTokens int, temperature *float64) *ProviderClient {
	return &ProviderClient{
		provider:    provider,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (c *ProviderClient) Complete(ctx context.Context, req Request) (Reply, error) {
	mdl, err := c.provider.Model(ctx)
	if err != nil {
		return Reply{}, fmt.Errorf("resolve model: %w", err)
	}

	resp, err := mdl.Complete(ctx, c.buildRequest(req))
	if err != nil {
		return Reply{}, fmt.Errorf("complete: %w", err)
	}
	if resp == nil {
		return Reply{}, ErrEmptyReply
	}
	return normalizeReply(resp.Message)
}

func (c *ProviderClient) buildRequest(req Request) model.Request {
	out := model.Request{
		System:      req.System,
		Model:       c.modelName,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages:    make([]model.Message, 0, len(req.Messages)),
	}
	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, toModelMessage(msg))
	}
	for _, spec := range req.Tools {
		out.Tools = append(out.Tools, model.ToolDefinition{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  spec.Parameters,
		})
	}
	return out
}

func toModelMessage(msg Message) model.Message {
	switch msg.Role {
	case RoleAssistant:
		out := model.Message{Role: "assistant", Content: msg.Content}
		for _, call := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				ID:        call.ID,
				Name:      call.Name,
				Arguments: call.Arguments,
			})
		}
		return out
	case RoleTool:
		out := model.Message{Role: "tool", Content: msg.Content}
		for _, res := range msg.Results {
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				ID:     res.CallID,
				Name:   res.Name,
				Result: res.Content,
			})
		}
		return out
	default:
		return model.Message{Role: "user", Content: msg.Content}
	}
}

// normalizeReply reduces any provider message shape to plain text plus
// tool calls. Text content blocks are joined when Content is empty.
func normalizeReply(msg model.Message) (Reply, error) {
	reply := Reply{Text: strings.TrimSpace(msg.Content)}
	if reply.Text == "" {
		var parts []string
		for _, block := range msg.ContentBlocks {
			if block.Type == model.ContentBlockText && strings.TrimSpace(block.Text) != "" {
				parts = append(parts, strings.TrimSpace(block.Text))
			}
		}
		reply.Text = strings.Join(parts, "\n")
	}
	for _, call := range msg.ToolCalls {
		args := call.Arguments
		if args == nil {
			args = map[string]any{}
		}
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{ID: call.ID, Name: call.Name, Arguments: args})
	}
	if reply.Text == "" && len(reply.ToolCalls) == 0 {
		return Reply{}, ErrEmptyReply
	}
	return reply, nil
}

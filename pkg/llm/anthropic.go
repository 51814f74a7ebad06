package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements Client over the Anthropic API.
type AnthropicClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicClient creates an Anthropic-backed client.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// Chat implements the Client interface.
func (c *AnthropicClient) Chat(ctx context.Context, in Request) (Result, error) {
	systemPrompt, conversation := splitSystem(in.Messages)
	if len(conversation) == 0 {
		return Result{}, NewError(ErrorTypeBadPrompt, "no non-system messages in request")
	}

	messages := make([]anthropic.MessageParam, 0, len(conversation))
	for i := range conversation {
		msg := &conversation[i]
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(msg.Role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
		})
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   int64(in.MaxTokens),
		Temperature: anthropic.Float(float64(in.Temperature)),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt, Type: "text"}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return Result{}, NewError(classifyMessage(err.Error()), err.Error())
	}
	if resp == nil || len(resp.Content) == 0 {
		return Result{}, NewError(ErrorTypeEmptyResponse, "received empty response from Anthropic API")
	}

	var content string
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			content += block.AsText().Text
		}
	}

	if resp.StopReason == "refusal" {
		return Result{Blocked: true, BlockReason: fmt.Sprintf("model refused (stop reason %s)", resp.StopReason)}, nil
	}
	return Result{Content: content}, nil
}

// ModelName returns the configured model identifier.
func (c *AnthropicClient) ModelName() string {
	return string(c.model)
}

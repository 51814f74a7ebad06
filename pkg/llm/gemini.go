package llm

import (
	"context"

	"google.golang.org/genai"
)

// GeminiClient implements Client over the Google GenAI API.
type GeminiClient struct {
	client *genai.Client
	apiKey string
	model  string
}

// NewGeminiClient creates a Gemini-backed client. The underlying client is
// created lazily because genai.NewClient requires a context.
func NewGeminiClient(apiKey, model string) *GeminiClient {
	return &GeminiClient{apiKey: apiKey, model: model}
}

// Chat implements the Client interface.
func (g *GeminiClient) Chat(ctx context.Context, in Request) (Result, error) {
	if g.client == nil {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return Result{}, NewError(classifyMessage(err.Error()), err.Error())
		}
		g.client = client
	}

	systemPrompt, conversation := splitSystem(in.Messages)
	if len(conversation) == 0 {
		return Result{}, NewError(ErrorTypeBadPrompt, "no non-system messages in request")
	}

	contents := make([]*genai.Content, 0, len(conversation))
	for i := range conversation {
		msg := &conversation[i]
		role := genai.RoleUser
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	//nolint:gosec // MaxTokens is bounded by configuration.
	maxTokens := int32(in.MaxTokens)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &in.Temperature,
		MaxOutputTokens: maxTokens,
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return Result{}, NewError(classifyMessage(err.Error()), err.Error())
	}
	if result == nil || len(result.Candidates) == 0 {
		return Result{}, NewError(ErrorTypeEmptyResponse, "received empty response from Gemini API")
	}

	if result.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return Result{Blocked: true, BlockReason: "safety filtered"}, nil
	}
	return Result{Content: result.Text()}, nil
}

// ModelName returns the configured model identifier.
func (g *GeminiClient) ModelName() string {
	return g.model
}

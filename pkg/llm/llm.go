// Package llm provides a provider-agnostic language-model pipeline with
// Anthropic, OpenAI, Gemini, and Ollama implementations.
package llm

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	// RoleSystem provides instructions or context.
	RoleSystem Role = "system"
	// RoleUser is the requesting side of the conversation.
	RoleUser Role = "user"
	// RoleAssistant is the model side of the conversation.
	RoleAssistant Role = "assistant"
)

// Complexity hints how much reasoning a request needs; it sets the default
// token budget.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Default temperature for planning and judgment tasks.
const TemperatureDefault = 0.3

// Message is one chat message.
type Message struct {
	Role    Role
	Content string
}

// Request is a chat completion request.
type Request struct {
	Messages    []Message
	Complexity  Complexity
	Priority    int
	MaxTokens   int
	Temperature float32
}

// Result is the pipeline's response. A blocked or empty result is valid
// data; callers treat it as "no actionable output", never as a failure.
type Result struct {
	Content     string
	Blocked     bool
	BlockReason string
}

// Client is the language-model interface the agent consumes.
type Client interface {
	// Chat generates a completion for the request.
	Chat(ctx context.Context, in Request) (Result, error)

	// ModelName returns the model identifier used by this client.
	ModelName() string
}

// NewRequest creates a request with defaults applied for the complexity.
func NewRequest(messages []Message, complexity Complexity) Request {
	return Request{
		Messages:    messages,
		Complexity:  complexity,
		MaxTokens:   defaultMaxTokens(complexity),
		Temperature: TemperatureDefault,
	}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func defaultMaxTokens(complexity Complexity) int {
	switch complexity {
	case ComplexityLow:
		return 1024
	case ComplexityHigh:
		return 8192
	default:
		return 4096
	}
}

// splitSystem separates system messages from the conversation; several
// providers take the system prompt as a top-level parameter.
func splitSystem(messages []Message) (systemPrompt string, rest []Message) {
	for i := range messages {
		msg := &messages[i]
		if msg.Role == RoleSystem {
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += msg.Content
			continue
		}
		rest = append(rest, *msg)
	}
	return systemPrompt, rest
}

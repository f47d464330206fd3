// Package providers defines the completion client contract and the
// chat-completions wire format shared by the concrete clients.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const DefaultSystemPrompt = "You are an AI assistant that helps people find information."

// Completer sends one user query to a completion service and returns the
// raw response text.
type Completer interface {
	Complete(ctx context.Context, query string) (string, error)
}

// Params are the fixed sampling parameters sent with every request.
type Params struct {
	SystemPrompt     string
	MaxTokens        int
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

func DefaultParams() Params {
	return Params{
		SystemPrompt: DefaultSystemPrompt,
		MaxTokens:    800,
		Temperature:  0.7,
		TopP:         0.95,
	}
}

// StatusError is returned when the service answers with a non-200 status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion status %d", e.StatusCode)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model            string    `json:"model,omitempty"`
	Messages         []Message `json:"messages"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	TopP             float64   `json:"top_p"`
	FrequencyPenalty float64   `json:"frequency_penalty"`
	PresencePenalty  float64   `json:"presence_penalty"`
}

func NewChatCompletionRequest(model string, p Params, query string) ChatCompletionRequest {
	messages := make([]Message, 0, 2)
	if strings.TrimSpace(p.SystemPrompt) != "" {
		messages = append(messages, Message{Role: "system", Content: p.SystemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: query})
	return ChatCompletionRequest{
		Model:            model,
		Messages:         messages,
		MaxTokens:        p.MaxTokens,
		Temperature:      p.Temperature,
		TopP:             p.TopP,
		FrequencyPenalty: p.FrequencyPenalty,
		PresencePenalty:  p.PresencePenalty,
	}
}

// ParseChatCompletion extracts choices[0].message.content. An empty content
// string is a valid answer.
func ParseChatCompletion(body []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message *struct {
				Content any `json:"content"`
			} `json:"message"`
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in chat completion response")
	}
	choice := resp.Choices[0]
	if choice.Message != nil {
		if content := anyToText(choice.Message.Content); content != "" || choice.Text == "" {
			return content, nil
		}
	}
	if choice.Text != "" {
		return choice.Text, nil
	}
	return "", fmt.Errorf("missing message in chat completion response")
}

func anyToText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				if txt, ok := m["text"].(string); ok {
					parts = append(parts, txt)
				}
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

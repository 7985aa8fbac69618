package agents

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// CompletionRequest is a single chat completion call.
type CompletionRequest struct {
	Model       string
	Temperature float64
	System      string
	Prompt      string
}

// LLMClient is the language model dependency of LLMAgent.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// OpenAIClient implements LLMClient using OpenAI API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a new OpenAI LLM client. An empty baseURL uses the
// public API; any OpenAI-compatible endpoint works otherwise.
func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete sends the prompt, with an optional system message, and returns
// the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the default model.
func (c *OpenAIClient) Model() string {
	return c.model
}

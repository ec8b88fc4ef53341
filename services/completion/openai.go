package completion

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/aulaprof/aula/core/chat"
)

// DeepSeekBaseURL is the OpenAI-compatible endpoint used by the deepseek provider when none is configured.
const DeepSeekBaseURL = "https://api.deepseek.com/v1"

var errEmptyReply = errors.New("empty completion")

type (
	// OpenAI calls an OpenAI-compatible chat completions endpoint (DeepSeek, OpenAI, ...).
	OpenAI struct {
		client       *openai.Client
		hasKey       bool
		model        string
		systemPrompt string
	}

	OpenAIConfig struct {
		APIKey       string
		BaseURL      string // empty for the OpenAI API
		Model        string
		SystemPrompt string
		Timeout      time.Duration
	}
)

var _ chat.Completer = (*OpenAI)(nil)

func NewOpenAI(conf OpenAIConfig) *OpenAI {
	if conf.Timeout <= 0 {
		conf.Timeout = 60 * time.Second
	}
	cc := openai.DefaultConfig(conf.APIKey)
	if conf.BaseURL != "" {
		cc.BaseURL = strings.TrimRight(conf.BaseURL, "/")
	}
	cc.HTTPClient = &http.Client{Timeout: conf.Timeout}

	return &OpenAI{
		client:       openai.NewClientWithConfig(cc),
		hasKey:       conf.APIKey != "",
		model:        conf.Model,
		systemPrompt: conf.SystemPrompt,
	}
}

func (c *OpenAI) Complete(ctx context.Context, text string) (string, error) {
	if !c.hasKey {
		return "", errors.New("API key not configured")
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if c.systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   2048,
		Temperature: 0.7,
	})
	if err != nil {
		return "", errors.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}

package completion

import (
	"context"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/aulaprof/aula/core"
	"github.com/aulaprof/aula/core/chat"
)

// New builds the completion service selected by conf.Provider.
func New(ctx context.Context, conf core.ChatConfig, logger core.Logger) (chat.Completer, error) {
	switch conf.Provider {
	case "deepseek", "openai":
		baseURL, model := conf.BaseURL, conf.Model
		if conf.Provider == "deepseek" {
			if baseURL == "" {
				baseURL = DeepSeekBaseURL
			}
			if model == "" {
				model = "deepseek-chat"
			}
		}
		if model == "" {
			model = openai.GPT4oMini
		}
		return NewOpenAI(OpenAIConfig{
			APIKey:       conf.APIKey,
			BaseURL:      baseURL,
			Model:        model,
			SystemPrompt: conf.SystemPrompt,
			Timeout:      conf.Timeout,
		}), nil
	case "gemini":
		return NewGemini(ctx, GeminiConfig{
			APIKey:       conf.APIKey,
			BaseURL:      conf.BaseURL,
			Model:        conf.Model,
			SystemPrompt: conf.SystemPrompt,
		})
	case "console", "":
		return NewConsole(logger), nil
	default:
		return nil, errors.Errorf("unknown chat provider %q", conf.Provider)
	}
}

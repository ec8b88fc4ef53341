package completion

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/aulaprof/aula/core/chat"
)

// Gemini calls the Gemini API through the genai SDK.
type Gemini struct {
	client       *genai.Client
	model        string
	systemPrompt string
}

var _ chat.Completer = (*Gemini)(nil)

type GeminiConfig struct {
	APIKey       string
	BaseURL      string // overrides the API endpoint, empty for the default
	Model        string
	SystemPrompt string
}

func NewGemini(ctx context.Context, conf GeminiConfig) (*Gemini, error) {
	if conf.Model == "" {
		conf.Model = "gemini-2.0-flash"
	}
	cc := &genai.ClientConfig{
		APIKey:  conf.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if conf.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: conf.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, errors.Wrap(err, "creating genai client")
	}
	return &Gemini{client: client, model: conf.Model, systemPrompt: conf.SystemPrompt}, nil
}

func (g *Gemini) Complete(ctx context.Context, text string) (string, error) {
	var config *genai.GenerateContentConfig
	if g.systemPrompt != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(g.systemPrompt, genai.RoleUser),
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(text), config)
	if err != nil {
		return "", errors.Wrap(err, "generating content")
	}
	reply := resp.Text()
	if strings.TrimSpace(reply) == "" {
		return "", errEmptyReply
	}
	return reply, nil
}

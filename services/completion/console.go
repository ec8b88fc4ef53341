package completion

import (
	"context"
	"fmt"

	"github.com/aulaprof/aula/core"
	"github.com/aulaprof/aula/core/chat"
)

// Console answers locally without any upstream call. Used in development.
type Console struct {
	logger core.Logger
}

var _ chat.Completer = (*Console)(nil)

func NewConsole(logger core.Logger) *Console {
	return &Console{logger: logger}
}

func (c *Console) Complete(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.logger.Debug(fmt.Sprintf("chat completion requested (%d chars)", len(text)))
	return "You said: " + text, nil
}

package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aulaprof/aula/core"
	"github.com/aulaprof/aula/core/user"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// errors
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a message is already being processed")

	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aula_chat_messages_total",
		Help: "Chat sends by outcome (replied, fallback, empty, busy).",
	}, []string{"outcome"})
)

type (
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	// Completer is a single request/single response chat completion service.
	Completer interface {
		Complete(ctx context.Context, text string) (string, error)
	}

	// Panel holds one transcript and allows a single outstanding request.
	Panel struct {
		completer Completer
		fallback  string
		logger    core.Logger
		ident     user.Identity

		mu         sync.Mutex
		processing bool
		transcript []Message
	}
)

func NewPanel(completer Completer, fallback string, logger core.Logger, ident user.Identity) *Panel {
	if logger == nil {
		logger = core.DiscardLogger{}
	}
	return &Panel{completer: completer, fallback: fallback, logger: logger, ident: ident}
}

// Send appends text to the transcript, asks the completion service and appends its reply,
// or the fallback reply when the service fails. Upstream failures are logged, never returned.
// Blank text (ErrEmptyMessage) and sends while a request is in flight (ErrBusy) change nothing.
func (p *Panel) Send(ctx context.Context, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		messagesTotal.WithLabelValues("empty").Inc()
		return Message{}, ErrEmptyMessage
	}

	p.mu.Lock()
	if p.processing {
		p.mu.Unlock()
		messagesTotal.WithLabelValues("busy").Inc()
		return Message{}, ErrBusy
	}
	p.processing = true
	p.transcript = append(p.transcript, Message{Role: RoleUser, Content: text})
	p.mu.Unlock()

	reply, err := p.completer.Complete(ctx, text)
	if err != nil {
		err = core.NewUpstreamServiceError("chat", "complete", err)
		p.logger.Error(fmt.Sprintf("chat completion: %v", err), err, p.ident)
		messagesTotal.WithLabelValues("fallback").Inc()
		reply = p.fallback
	} else {
		messagesTotal.WithLabelValues("replied").Inc()
	}

	msg := Message{Role: RoleAssistant, Content: reply}
	p.mu.Lock()
	p.transcript = append(p.transcript, msg)
	p.processing = false
	p.mu.Unlock()
	return msg, nil
}

// Transcript returns a copy of the messages so far.
func (p *Panel) Transcript() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]Message, len(p.transcript))
	copy(cp, p.transcript)
	return cp
}

func (p *Panel) Processing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processing
}

// Reset clears the transcript. An in-flight reply is still appended when it arrives.
func (p *Panel) Reset() {
	p.mu.Lock()
	p.transcript = nil
	p.mu.Unlock()
}

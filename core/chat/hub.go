package chat

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/aulaprof/aula/core"
	"github.com/aulaprof/aula/core/user"
)

// Hub keeps one Panel per identity. Idle panels expire after ttl.
type Hub struct {
	completer Completer
	fallback  string
	logger    core.Logger

	mu     sync.Mutex // serializes get-or-create
	panels *expirable.LRU[string, *Panel]
}

func NewHub(completer Completer, fallback string, logger core.Logger, size int, ttl time.Duration) *Hub {
	return &Hub{
		completer: completer,
		fallback:  fallback,
		logger:    logger,
		panels:    expirable.NewLRU[string, *Panel](size, nil, ttl),
	}
}

// Panel returns the identity's panel, creating it on first use.
func (h *Hub) Panel(ident user.Identity) *Panel {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.panels.Get(ident.ID); ok {
		h.panels.Add(ident.ID, p) // refresh ttl
		return p
	}
	p := NewPanel(h.completer, h.fallback, h.logger, ident)
	h.panels.Add(ident.ID, p)
	return p
}

// Drop forgets the identity's panel (sign-out).
func (h *Hub) Drop(ident user.Identity) {
	h.panels.Remove(ident.ID)
}

func (h *Hub) Len() int { return h.panels.Len() }

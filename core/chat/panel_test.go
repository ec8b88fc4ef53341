package chat

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulaprof/aula/core/user"
)

const fallback = "Sorry, an error occurred while processing your message."

type completerMock struct {
	calls   int32
	reply   string
	err     error
	release chan struct{} // when set, Complete blocks until it is closed
	started chan struct{}
}

func (c *completerMock) Complete(ctx context.Context, text string) (string, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.started != nil {
		close(c.started)
	}
	if c.release != nil {
		<-c.release
	}
	if c.err != nil {
		return "", c.err
	}
	return c.reply + text, nil
}

var ident = user.Identity{ID: "u1", Email: "ada@uni.edu", DisplayName: "ada"}

func TestPanel_Send(t *testing.T) {
	t.Run("reply appended", func(t *testing.T) {
		cm := &completerMock{reply: "echo: "}
		p := NewPanel(cm, fallback, nil, ident)

		msg, err := p.Send(context.Background(), "  hello ")
		require.NoError(t, err)
		assert.Equal(t, Message{Role: RoleAssistant, Content: "echo: hello"}, msg)
		assert.Equal(t, []Message{
			{Role: RoleUser, Content: "hello"},
			{Role: RoleAssistant, Content: "echo: hello"},
		}, p.Transcript())
		assert.False(t, p.Processing())
	})

	t.Run("blank message is a no-op", func(t *testing.T) {
		cm := &completerMock{}
		p := NewPanel(cm, fallback, nil, ident)

		for _, text := range []string{"", "   ", "\n\t"} {
			_, err := p.Send(context.Background(), text)
			assert.Equal(t, ErrEmptyMessage, err)
		}
		assert.Empty(t, p.Transcript())
		assert.EqualValues(t, 0, atomic.LoadInt32(&cm.calls))
	})

	t.Run("upstream failure appends fallback", func(t *testing.T) {
		cm := &completerMock{err: errors.New("boom")}
		p := NewPanel(cm, fallback, nil, ident)

		msg, err := p.Send(context.Background(), "hi")
		require.NoError(t, err)
		assert.Equal(t, fallback, msg.Content)
		assert.Len(t, p.Transcript(), 2)
		assert.False(t, p.Processing())
	})

	t.Run("send while processing is a no-op", func(t *testing.T) {
		cm := &completerMock{reply: "r:", release: make(chan struct{}), started: make(chan struct{})}
		p := NewPanel(cm, fallback, nil, ident)

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = p.Send(context.Background(), "first")
		}()
		<-cm.started

		assert.True(t, p.Processing())
		_, err := p.Send(context.Background(), "second")
		assert.Equal(t, ErrBusy, err)
		assert.Equal(t, []Message{{Role: RoleUser, Content: "first"}}, p.Transcript())

		close(cm.release)
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("first send did not complete")
		}
		assert.EqualValues(t, 1, atomic.LoadInt32(&cm.calls))
		assert.Len(t, p.Transcript(), 2)
	})
}

func TestPanel_TranscriptIsACopy(t *testing.T) {
	p := NewPanel(&completerMock{}, fallback, nil, ident)
	_, _ = p.Send(context.Background(), "hi")

	tr := p.Transcript()
	tr[0].Content = "changed"
	assert.Equal(t, "hi", p.Transcript()[0].Content)

	p.Reset()
	assert.Empty(t, p.Transcript())
}

func TestHub(t *testing.T) {
	h := NewHub(&completerMock{}, fallback, nil, 10, time.Hour)
	other := user.Identity{ID: "u2"}

	p1 := h.Panel(ident)
	assert.Same(t, p1, h.Panel(ident))
	assert.NotSame(t, p1, h.Panel(other))
	assert.Equal(t, 2, h.Len())

	h.Drop(ident)
	assert.Equal(t, 1, h.Len())
	assert.NotSame(t, p1, h.Panel(ident))
}

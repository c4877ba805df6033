package client

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/viant/agentrpc"
	"github.com/viant/agentrpc/event"
)

// Reply is the aggregated assistant response of one SendAndWait turn.
type Reply struct {
	Content   string
	MessageId string
}

// replyCollector accumulates assistant output until the send has returned and
// the session went idle; both may happen in either order.
type replyCollector struct {
	mu            sync.Mutex
	buffer        strings.Builder
	messageId     string
	sendCompleted bool
	idleReceived  bool
	settled       bool
	done          chan *Reply
	failed        chan error
}

func newReplyCollector() *replyCollector {
	return &replyCollector{
		done:   make(chan *Reply, 1),
		failed: make(chan error, 1),
	}
}

func (r *replyCollector) onEvent(evt event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch actual := evt.(type) {
	case *event.AssistantMessage:
		r.buffer.WriteString(actual.Content)
	case *event.AssistantMessageDelta:
		r.buffer.WriteString(actual.DeltaContent)
	case *event.SessionIdle:
		r.idleReceived = true
		r.settle()
	case *event.SessionError:
		r.fail(agentrpc.NewStateError("%v", actual.Message))
	}
}

func (r *replyCollector) sendReturned(messageId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messageId = messageId
	r.sendCompleted = true
	r.settle()
}

// settle completes the wait once both conditions hold; an empty buffer means
// the turn produced no assistant output and yields a nil reply.
func (r *replyCollector) settle() {
	if r.settled || !r.sendCompleted || !r.idleReceived {
		return
	}
	r.settled = true
	if r.buffer.Len() == 0 {
		r.done <- nil
		return
	}
	r.done <- &Reply{Content: r.buffer.String(), MessageId: r.messageId}
}

func (r *replyCollector) fail(err error) {
	if r.settled {
		return
	}
	r.settled = true
	r.failed <- err
}

// SendAndWait submits a prompt and blocks until the agent finishes reacting
// to it: complete messages and streamed deltas are concatenated in arrival
// order, and the aggregate is returned once the session reports idle. A turn
// with no assistant output returns a nil reply, as does hitting the timeout;
// a session error event fails the wait with its message.
func (s *Session) SendAndWait(ctx context.Context, prompt string, timeout time.Duration, options ...SendOption) (*Reply, error) {
	collector := newReplyCollector()
	// subscribe before sending so events racing the send result are kept
	unsubscribe := s.OnEvent(collector.onEvent)
	defer unsubscribe()

	messageId, err := s.Send(ctx, prompt, options...)
	if err != nil {
		return nil, err
	}
	collector.sendReturned(messageId)

	select {
	case reply := <-collector.done:
		return reply, nil
	case err = <-collector.failed:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, nil
	}
}

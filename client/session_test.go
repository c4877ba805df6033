package client

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/agentrpc/event"
	"github.com/viant/agentrpc/schema"
)

func newTestSession(t *testing.T) (*Session, *fakeAgent, *Client) {
	client, agent := newTestClient(t, 2)
	require.NoError(t, client.Start(context.Background()))
	session, err := client.CreateSession(context.Background(), &schema.SessionConfig{Model: "m-base"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Stop(context.Background())
	})
	return session, agent, client
}

func TestSession_EventFanOut(t *testing.T) {
	session, agent, _ := newTestSession(t)

	var counts [3]int32
	var unsubscribe [3]func()
	for i := 0; i < 3; i++ {
		i := i
		unsubscribe[i] = session.OnEvent(func(evt event.Event) {
			atomic.AddInt32(&counts[i], 1)
		})
	}
	agent.emit(session.Id(), map[string]interface{}{"type": "session.info", "message": "one"})
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&counts[0]) == 1 &&
			atomic.LoadInt32(&counts[1]) == 1 &&
			atomic.LoadInt32(&counts[2]) == 1
	}, 2*time.Second, 10*time.Millisecond)

	unsubscribe[1]()
	agent.emit(session.Id(), map[string]interface{}{"type": "session.info", "message": "two"})
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&counts[0]) == 2 && atomic.LoadInt32(&counts[2]) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&counts[1]))
}

func TestSession_OnEventType(t *testing.T) {
	session, agent, _ := newTestSession(t)

	var idle, all int32
	session.OnEventType(event.TypeSessionIdle, func(evt event.Event) {
		atomic.AddInt32(&idle, 1)
	})
	session.OnEvent(func(evt event.Event) {
		atomic.AddInt32(&all, 1)
	})
	agent.emit(session.Id(), map[string]interface{}{"type": "session.info", "message": "noise"})
	agent.emit(session.Id(), map[string]interface{}{"type": "session.idle"})

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&all) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&idle))
}

func TestSession_OnceEvent(t *testing.T) {
	session, agent, _ := newTestSession(t)

	var fired int32
	session.OnceEvent(func(evt event.Event) {
		atomic.AddInt32(&fired, 1)
	})
	agent.emit(session.Id(), map[string]interface{}{"type": "session.info", "message": "first"})
	agent.emit(session.Id(), map[string]interface{}{"type": "session.info", "message": "second"})

	var seen int32
	session.OnEvent(func(evt event.Event) { atomic.AddInt32(&seen, 1) })
	agent.emit(session.Id(), map[string]interface{}{"type": "session.info", "message": "third"})
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&seen) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
}

func TestSession_EventsChannel(t *testing.T) {
	session, agent, _ := newTestSession(t)

	stream := session.Events()
	agent.emit(session.Id(), map[string]interface{}{"type": "session.title_changed", "title": "Refactor"})

	select {
	case evt := <-stream:
		titled, ok := evt.(*event.SessionTitleChanged)
		require.True(t, ok)
		assert.Equal(t, "Refactor", titled.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("expected event on broadcast channel")
	}

	require.NoError(t, session.Destroy(context.Background()))
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-stream:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSession_AbandonedEventsStreamDoesNotStallDispatch(t *testing.T) {
	session, agent, _ := newTestSession(t)

	// subscribe and never drain; its buffers saturate well below 200 events
	_ = session.Events()
	for i := 0; i < 200; i++ {
		agent.emit(session.Id(), map[string]interface{}{"type": "session.info", "message": "flood"})
	}

	var delivered int32
	session.OnEvent(func(evt event.Event) {
		if info, ok := evt.(*event.SessionInfo); ok && info.Message == "after" {
			atomic.AddInt32(&delivered, 1)
		}
	})
	agent.emit(session.Id(), map[string]interface{}{"type": "session.info", "message": "after"})
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&delivered) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSession_DestroyIdempotent(t *testing.T) {
	session, agent, client := newTestSession(t)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = session.Destroy(context.Background())
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&agent.destroyCalls))
	assert.True(t, session.IsDestroyed())
	assert.Nil(t, client.Session(session.Id()))

	// operations on a destroyed session fail fast
	_, err := session.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destroyed session")
}

func TestSession_SendAndWait(t *testing.T) {
	session, agent, _ := newTestSession(t)
	agent.onSend = func(sessionId string) {
		agent.emit(sessionId, map[string]interface{}{"type": "assistant.message_delta", "deltaContent": "Hello "})
		agent.emit(sessionId, map[string]interface{}{"type": "assistant.message_delta", "deltaContent": "World!"})
		agent.emit(sessionId, map[string]interface{}{"type": "session.idle"})
	}

	reply, err := session.SendAndWait(context.Background(), "greet me", 2*time.Second)
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, "Hello World!", reply.Content)
	assert.Equal(t, "m-7", reply.MessageId)
}

func TestSession_SendAndWaitNoOutput(t *testing.T) {
	session, agent, _ := newTestSession(t)
	agent.onSend = func(sessionId string) {
		agent.emit(sessionId, map[string]interface{}{"type": "session.idle"})
	}

	reply, err := session.SendAndWait(context.Background(), "do nothing", 2*time.Second)
	require.NoError(t, err)
	assert.Nil(t, reply)
}

func TestSession_SendAndWaitSessionError(t *testing.T) {
	session, agent, _ := newTestSession(t)
	agent.onSend = func(sessionId string) {
		agent.emit(sessionId, map[string]interface{}{"type": "session.error", "message": "rate-limit"})
	}

	_, err := session.SendAndWait(context.Background(), "overload", 2*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate-limit")
}

func TestSession_SendAndWaitTimeout(t *testing.T) {
	session, _, _ := newTestSession(t)
	// no events at all; the wait runs out

	started := time.Now()
	reply, err := session.SendAndWait(context.Background(), "silence", 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, reply)
	assert.Less(t, time.Since(started), 2*time.Second)
}

func TestSession_SendWithOptions(t *testing.T) {
	session, agent, _ := newTestSession(t)
	sent := make(chan schema.SendParams, 1)
	agent.conn.RegisterHandler("session.send", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		request := schema.SendParams{}
		if err := json.Unmarshal(params, &request); err != nil {
			return nil, err
		}
		sent <- request
		return schema.SendResult{MessageId: "m-9"}, nil
	})

	messageId, err := session.Send(context.Background(), "review this",
		WithMode("plan"),
		WithAttachments(schema.Attachment{Type: "file", Name: "main.go", Content: "cGFja2FnZQ=="}))
	require.NoError(t, err)
	assert.Equal(t, "m-9", messageId)

	request := <-sent
	assert.Equal(t, session.Id(), request.SessionId)
	assert.Equal(t, "review this", request.Prompt)
	assert.Equal(t, "plan", request.Mode)
	require.Len(t, request.Attachments, 1)
	assert.Equal(t, "main.go", request.Attachments[0].Name)
}

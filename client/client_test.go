package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/agentrpc/connection"
	"github.com/viant/agentrpc/event"
	"github.com/viant/agentrpc/schema"
	"github.com/viant/agentrpc/transport"
)

// fakeAgent is an in-process agent on the far end of a transport pipe. It
// answers the metadata and session methods and can push notifications and
// callback requests at the client.
type fakeAgent struct {
	t               *testing.T
	conn            *connection.Connection
	trans           *transport.PipeTransport
	protocolVersion int
	sessionSeq      int32
	destroyCalls    int32
	modelsCalls     int32
	onSend          func(sessionId string)
}

func newFakeAgent(t *testing.T, protocolVersion int) (*fakeAgent, *transport.PipeTransport) {
	serverEnd, clientEnd := transport.Pipe()
	agent := &fakeAgent{t: t, trans: serverEnd, protocolVersion: protocolVersion}
	conn := connection.New(serverEnd)
	conn.RegisterHandler("ping", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		if agent.protocolVersion == 0 {
			return map[string]interface{}{"version": "9.9.9"}, nil
		}
		return map[string]interface{}{"protocolVersion": agent.protocolVersion, "version": "9.9.9"}, nil
	})
	conn.RegisterHandler("session.create", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		id := fmt.Sprintf("sess-%d", atomic.AddInt32(&agent.sessionSeq, 1))
		return schema.SessionHandle{SessionId: id, WorkspacePath: "/ws/" + id}, nil
	})
	conn.RegisterHandler("session.destroy", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		atomic.AddInt32(&agent.destroyCalls, 1)
		return map[string]interface{}{}, nil
	})
	conn.RegisterHandler("session.send", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		request := &schema.SendParams{}
		if err := json.Unmarshal(params, request); err != nil {
			return nil, err
		}
		if agent.onSend != nil {
			go agent.onSend(request.SessionId)
		}
		return schema.SendResult{MessageId: "m-7"}, nil
	})
	conn.RegisterHandler("models.list", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		atomic.AddInt32(&agent.modelsCalls, 1)
		time.Sleep(10 * time.Millisecond)
		return schema.ModelList{Models: []schema.ModelInfo{{Id: "m-base", Default: true}, {Id: "m-fast"}}}, nil
	})
	agent.conn = conn
	return agent, clientEnd
}

func (a *fakeAgent) emit(sessionId string, evt map[string]interface{}) {
	err := a.conn.Notify(context.Background(), "session.event", map[string]interface{}{
		"sessionId": sessionId,
		"event":     evt,
	})
	assert.NoError(a.t, err)
}

func newTestClient(t *testing.T, protocolVersion int, options ...Option) (*Client, *fakeAgent) {
	agent, clientEnd := newFakeAgent(t, protocolVersion)
	options = append([]Option{WithTransport(clientEnd), WithRequestTimeout(2 * time.Second)}, options...)
	return New(options...), agent
}

func TestClient_StartHandshake(t *testing.T) {
	var mu sync.Mutex
	var states []State
	client, _ := newTestClient(t, 2, WithStateListener(func(state State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, state)
	}))
	require.NoError(t, client.Start(context.Background()))
	assert.True(t, client.IsConnected())
	mu.Lock()
	assert.Equal(t, []State{StateConnecting, StateConnected}, states)
	mu.Unlock()
	// starting again is a no-op
	require.NoError(t, client.Start(context.Background()))
	require.NoError(t, client.Stop(context.Background()))
}

func TestClient_HandshakeVersionMismatch(t *testing.T) {
	client, _ := newTestClient(t, 999)
	err := client.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Protocol version mismatch: expected 2, got 999")
	assert.Equal(t, StateError, client.State())
}

func TestClient_HandshakeMissingProtocolVersion(t *testing.T) {
	client, _ := newTestClient(t, 0)
	err := client.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Protocol version mismatch")
	assert.Equal(t, StateError, client.State())
}

func TestClient_CreateSessionRegistersSession(t *testing.T) {
	client, _ := newTestClient(t, 2)
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop(context.Background())

	session, err := client.CreateSession(context.Background(), &schema.SessionConfig{Model: "m-base"})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", session.Id())
	assert.Equal(t, "/ws/sess-1", session.WorkspacePath())
	assert.Same(t, session, client.Session("sess-1"))
	assert.Len(t, client.Sessions(), 1)
}

func TestClient_ToolCallback(t *testing.T) {
	client, agent := newTestClient(t, 2)
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop(context.Background())

	greet := func(ctx context.Context, call *schema.ToolCall) (*schema.ToolResult, error) {
		args := struct {
			Name string `json:"name"`
		}{}
		require.NoError(t, json.Unmarshal(call.Arguments, &args))
		return schema.NewSuccessResult("Hello, " + args.Name + "!"), nil
	}
	session, err := client.CreateSession(context.Background(), nil,
		WithSessionTool(schema.ToolDefinition{Name: "greet"}, greet))
	require.NoError(t, err)

	raw, err := agent.conn.Send(context.Background(), "tool.call", schema.ToolCall{
		SessionId:  session.Id(),
		ToolName:   "greet",
		ToolCallId: "t-1",
		Arguments:  json.RawMessage(`{"name":"World"}`),
	})
	require.NoError(t, err)
	reply := struct {
		Result schema.ToolResult `json:"result"`
	}{}
	require.NoError(t, json.Unmarshal(raw, &reply))
	assert.Equal(t, "Hello, World!", reply.Result.TextResultForLlm)
	assert.Equal(t, "success", reply.Result.ResultType)
}

func TestClient_UnknownToolFailureResult(t *testing.T) {
	client, agent := newTestClient(t, 2)
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop(context.Background())

	session, err := client.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	raw, err := agent.conn.Send(context.Background(), "tool.call", schema.ToolCall{
		SessionId:  session.Id(),
		ToolName:   "no_such_tool",
		ToolCallId: "t-2",
	})
	require.NoError(t, err)
	reply := struct {
		Result schema.ToolResult `json:"result"`
	}{}
	require.NoError(t, json.Unmarshal(raw, &reply))
	assert.True(t, reply.Result.IsFailure())
	assert.Equal(t, "Unknown tool: no_such_tool", reply.Result.Err)
}

func TestClient_ToolLookupTiers(t *testing.T) {
	result := func(text string) ToolHandler {
		return func(ctx context.Context, call *schema.ToolCall) (*schema.ToolResult, error) {
			return schema.NewSuccessResult(text), nil
		}
	}
	client, agent := newTestClient(t, 2, WithTool(schema.ToolDefinition{Name: "shared"}, result("client tier")))
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop(context.Background())

	session, err := client.CreateSession(context.Background(),
		&schema.SessionConfig{Tools: []schema.ToolDefinition{{Name: "convert"}}},
		WithSessionTool(schema.ToolDefinition{Name: "shared"}, result("session tier")),
		WithConfigToolHandler("convert", result("config tier")))
	require.NoError(t, err)

	invoke := func(name string) string {
		raw, err := agent.conn.Send(context.Background(), "tool.call", schema.ToolCall{
			SessionId: session.Id(),
			ToolName:  name,
		})
		require.NoError(t, err)
		reply := struct {
			Result schema.ToolResult `json:"result"`
		}{}
		require.NoError(t, json.Unmarshal(raw, &reply))
		return reply.Result.TextResultForLlm
	}
	// the session local handler shadows the client level one
	assert.Equal(t, "session tier", invoke("shared"))
	assert.Equal(t, "config tier", invoke("convert"))

	other, err := client.CreateSession(context.Background(), nil)
	require.NoError(t, err)
	raw, err := agent.conn.Send(context.Background(), "tool.call", schema.ToolCall{
		SessionId: other.Id(),
		ToolName:  "shared",
	})
	require.NoError(t, err)
	reply := struct {
		Result schema.ToolResult `json:"result"`
	}{}
	require.NoError(t, json.Unmarshal(raw, &reply))
	assert.Equal(t, "client tier", reply.Result.TextResultForLlm)
}

func TestClient_ToolCallUnknownSession(t *testing.T) {
	client, agent := newTestClient(t, 2)
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop(context.Background())

	_, err := agent.conn.Send(context.Background(), "tool.call", schema.ToolCall{
		SessionId: "ghost",
		ToolName:  "greet",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown session: ghost")
	assert.Contains(t, err.Error(), "-32600")
}

func TestClient_PermissionApproved(t *testing.T) {
	client, agent := newTestClient(t, 2)
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop(context.Background())

	session, err := client.CreateSession(context.Background(), nil,
		WithPermissionHandler(func(ctx context.Context, request *schema.PermissionRequest) (*schema.PermissionResult, error) {
			return &schema.PermissionResult{Kind: "approved"}, nil
		}))
	require.NoError(t, err)

	raw, err := agent.conn.Send(context.Background(), "permission.request", schema.PermissionRequest{
		SessionId: session.Id(),
		ToolName:  "shell",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":{"kind":"approved"}}`, string(raw))
}

func TestClient_PermissionDeniedWithoutHandler(t *testing.T) {
	client, agent := newTestClient(t, 2)
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop(context.Background())

	session, err := client.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	raw, err := agent.conn.Send(context.Background(), "permission.request", schema.PermissionRequest{
		SessionId: session.Id(),
	})
	require.NoError(t, err)
	reply := struct {
		Result schema.PermissionResult `json:"result"`
	}{}
	require.NoError(t, json.Unmarshal(raw, &reply))
	assert.Equal(t, "denied", reply.Result.Kind)
}

func TestClient_HooksWithoutHandler(t *testing.T) {
	client, agent := newTestClient(t, 2)
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop(context.Background())

	session, err := client.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	raw, err := agent.conn.Send(context.Background(), "hooks.invoke", schema.HookInvocation{
		SessionId: session.Id(),
		Hook:      "pre-commit",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
}

func TestClient_EventRouting(t *testing.T) {
	var routeErrs int32
	client, agent := newTestClient(t, 2, WithErrorListener(func(err error) {
		atomic.AddInt32(&routeErrs, 1)
	}))
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop(context.Background())

	first, err := client.CreateSession(context.Background(), nil)
	require.NoError(t, err)
	second, err := client.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	var firstCount, secondCount int32
	first.OnEvent(func(evt event.Event) { atomic.AddInt32(&firstCount, 1) })
	second.OnEvent(func(evt event.Event) { atomic.AddInt32(&secondCount, 1) })

	// the envelope session id wins over one embedded in the payload
	agent.emit(first.Id(), map[string]interface{}{"type": "session.info", "message": "hello", "sessionId": second.Id()})
	agent.emit(second.Id(), map[string]interface{}{"type": "session.info", "message": "hello"})
	agent.emit(second.Id(), map[string]interface{}{"type": "session.info", "message": "again"})
	// unknown target surfaces through the error listener
	agent.emit("ghost", map[string]interface{}{"type": "session.info"})

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&firstCount) == 1 &&
			atomic.LoadInt32(&secondCount) == 2 &&
			atomic.LoadInt32(&routeErrs) >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_ConnectionDropDestroysSessions(t *testing.T) {
	client, agent := newTestClient(t, 2)
	require.NoError(t, client.Start(context.Background()))

	session, err := client.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	require.NoError(t, agent.trans.Close())
	assert.Eventually(t, func() bool {
		return client.State() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, session.IsDestroyed, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, client.Sessions())
	// no destroy RPC can travel over a dead connection
	assert.Equal(t, int32(0), atomic.LoadInt32(&agent.destroyCalls))
}

func TestClient_ModelsCache(t *testing.T) {
	client, agent := newTestClient(t, 2)
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			models, err := client.Models(context.Background())
			assert.NoError(t, err)
			assert.Len(t, models, 2)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&agent.modelsCalls))

	_, err := client.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&agent.modelsCalls))

	refreshed, err := client.RefreshModels(context.Background())
	require.NoError(t, err)
	assert.Len(t, refreshed, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&agent.modelsCalls))
}

func TestClient_StopDestroysSessions(t *testing.T) {
	client, agent := newTestClient(t, 2)
	require.NoError(t, client.Start(context.Background()))

	_, err := client.CreateSession(context.Background(), nil)
	require.NoError(t, err)
	_, err = client.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	require.NoError(t, client.Stop(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&agent.destroyCalls))
	assert.Equal(t, StateDisconnected, client.State())
	assert.Empty(t, client.Sessions())
}

func TestClient_Lifecycle(t *testing.T) {
	client, agent := newTestClient(t, 2)
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop(context.Background())

	stream, cancel := client.Lifecycle()
	defer cancel()
	require.NoError(t, agent.conn.Notify(context.Background(), "session.lifecycle",
		map[string]interface{}{"sessionId": "sess-x", "phase": "started"}))

	select {
	case announcement := <-stream:
		assert.Equal(t, "sess-x", announcement.SessionId)
		assert.Equal(t, "started", announcement.Phase)
	case <-time.After(2 * time.Second):
		t.Fatal("expected lifecycle announcement")
	}
}

func TestClient_CallsRequireConnection(t *testing.T) {
	client := New()
	_, err := client.Status(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
	_, err = client.CreateSession(context.Background(), nil)
	require.Error(t, err)
}

func TestMergeTools(t *testing.T) {
	// client level tools come first and keep a contested name
	merged := mergeTools(
		[]schema.ToolDefinition{{Name: "greet", Description: "client"}, {Name: "fallback"}},
		[]schema.ToolDefinition{{Name: "greet", Description: "config"}, {Name: "lookup"}},
		[]schema.ToolDefinition{{Name: "lookup", Description: "session"}, {Name: "local"}},
	)
	require.Len(t, merged, 4)
	assert.Equal(t, "greet", merged[0].Name)
	assert.Equal(t, "client", merged[0].Description)
	assert.Equal(t, "fallback", merged[1].Name)
	assert.Equal(t, "lookup", merged[2].Name)
	assert.Equal(t, "", merged[2].Description)
	assert.Equal(t, "local", merged[3].Name)
}

func TestClient_AdvertisedToolOrder(t *testing.T) {
	client, agent := newTestClient(t, 2,
		WithTool(schema.ToolDefinition{Name: "shared", Description: "client"}, nil))
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop(context.Background())

	advertised := make(chan []schema.ToolDefinition, 1)
	agent.conn.RegisterHandler("session.create", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		config := schema.SessionConfig{}
		if err := json.Unmarshal(params, &config); err != nil {
			return nil, err
		}
		advertised <- config.Tools
		return schema.SessionHandle{SessionId: "sess-adv"}, nil
	})

	_, err := client.CreateSession(context.Background(), nil,
		WithSessionTool(schema.ToolDefinition{Name: "shared", Description: "session"}, nil),
		WithSessionTool(schema.ToolDefinition{Name: "local"}, nil))
	require.NoError(t, err)

	tools := <-advertised
	require.Len(t, tools, 2)
	assert.Equal(t, "shared", tools[0].Name)
	assert.Equal(t, "client", tools[0].Description)
	assert.Equal(t, "local", tools[1].Name)
}

func TestClient_ForceStopDestroysSessions(t *testing.T) {
	client, agent := newTestClient(t, 2)
	require.NoError(t, client.Start(context.Background()))

	first, err := client.CreateSession(context.Background(), nil)
	require.NoError(t, err)
	second, err := client.CreateSession(context.Background(), nil)
	require.NoError(t, err)
	stream := first.Events()

	require.NoError(t, client.ForceStop(context.Background()))
	assert.True(t, first.IsDestroyed())
	assert.True(t, second.IsDestroyed())
	assert.Empty(t, client.Sessions())
	assert.Equal(t, StateDisconnected, client.State())
	// no destroy RPC is attempted
	assert.Equal(t, int32(0), atomic.LoadInt32(&agent.destroyCalls))

	select {
	case _, ok := <-stream:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events stream still open after force stop")
	}
}

func TestClient_RefreshModelsIgnoresInflightFetch(t *testing.T) {
	client, agent := newTestClient(t, 2)
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop(context.Background())

	release := make(chan struct{})
	agent.conn.RegisterHandler("models.list", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		if atomic.AddInt32(&agent.modelsCalls, 1) == 1 {
			<-release
		}
		return schema.ModelList{Models: []schema.ModelInfo{{Id: "m-base"}}}, nil
	})
	defer close(release)

	go func() {
		_, _ = client.Models(context.Background())
	}()
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&agent.modelsCalls) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// a refresh must not be satisfied by the fetch already in flight
	models, err := client.RefreshModels(context.Background())
	require.NoError(t, err)
	assert.Len(t, models, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&agent.modelsCalls))
}

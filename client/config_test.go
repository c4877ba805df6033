package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	content := `
command: agent-cli
args:
  - --workspace
  - /tmp/w
env:
  AGENT_LOG: debug
requestTimeoutMs: 1500
autoRestart: true
autoStart: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "agent-cli", config.Command)
	assert.Equal(t, []string{"--workspace", "/tmp/w"}, config.Args)
	assert.Equal(t, "debug", config.Env["AGENT_LOG"])

	client := New(WithConfig(config))
	assert.Equal(t, 1500*time.Millisecond, client.requestTimeout)
	assert.True(t, client.autoRestart)
	assert.True(t, client.autoStart)
	assert.True(t, client.ownsTransport)
	assert.NotNil(t, client.buildTransport)
}

func TestLoadConfig_Endpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint: ws://localhost:8080/agent\n"), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/agent", config.Endpoint)
	client := New(WithConfig(config))
	assert.NotNil(t, client.buildTransport)
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.Error(t, (&Config{Command: "agent-cli", Endpoint: "ws://x"}).Validate())
	assert.NoError(t, (&Config{Command: "agent-cli"}).Validate())
	assert.NoError(t, (&Config{Endpoint: "ws://x"}).Validate())
}

package stdio

import (
	"github.com/viant/agentrpc"
	"github.com/viant/agentrpc/framing"
	"github.com/viant/scy/cred/secret"
	cssh "golang.org/x/crypto/ssh"
)

// Option customizes the stdio transport.
type Option func(t *Transport)

// WithArguments sets extra command line arguments; they precede the default
// headless arguments.
func WithArguments(args ...string) Option {
	return func(t *Transport) {
		t.args = args
	}
}

// WithEnvironment sets one environment variable for the child process.
func WithEnvironment(key, value string) Option {
	return func(t *Transport) {
		if t.env == nil {
			t.env = make(map[string]string)
		}
		t.env[key] = value
	}
}

// WithHost runs the CLI on a remote host over SSH.
func WithHost(host string) Option {
	return func(t *Transport) {
		t.host = host
	}
}

// WithSecret injects the secret resource used to resolve SSH credentials.
func WithSecret(resource secret.Resource) Option {
	return func(t *Transport) {
		t.secret = resource
	}
}

// WithSSHConfig injects an explicit SSH client config.
func WithSSHConfig(config *cssh.ClientConfig) Option {
	return func(t *Transport) {
		t.sshConfig = config
	}
}

// WithExitListener installs the callback receiving the child's exit code and
// buffered output.
func WithExitListener(listener ExitListener) Option {
	return func(t *Transport) {
		t.onExit = listener
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger agentrpc.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithFramingOptions forwards bounds to the framing decoder.
func WithFramingOptions(options ...framing.Option) Option {
	return func(t *Transport) {
		t.framingOptions = options
	}
}

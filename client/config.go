package client

import (
	"fmt"
	"os"
	"time"

	"github.com/viant/agentrpc/transport/stdio"
	"github.com/viant/scy/cred/secret"
	"gopkg.in/yaml.v3"
)

// Config is the YAML-loadable client configuration. Exactly one of Command or
// Endpoint selects the transport.
type Config struct {
	Command          string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args             []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env              map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Host             string            `yaml:"host,omitempty" json:"host,omitempty"`
	Secret           string            `yaml:"secret,omitempty" json:"secret,omitempty"`
	Endpoint         string            `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	RequestTimeoutMs int               `yaml:"requestTimeoutMs,omitempty" json:"requestTimeoutMs,omitempty"`
	AutoRestart      bool              `yaml:"autoRestart,omitempty" json:"autoRestart,omitempty"`
	AutoStart        bool              `yaml:"autoStart,omitempty" json:"autoStart,omitempty"`
}

// Validate checks the transport selection is unambiguous.
func (c *Config) Validate() error {
	if c.Command == "" && c.Endpoint == "" {
		return fmt.Errorf("config requires command or endpoint")
	}
	if c.Command != "" && c.Endpoint != "" {
		return fmt.Errorf("config allows command or endpoint, not both")
	}
	return nil
}

func (c *Config) options() []Option {
	var result []Option
	if c.Command != "" {
		var stdioOptions []stdio.Option
		if len(c.Args) > 0 {
			stdioOptions = append(stdioOptions, stdio.WithArguments(c.Args...))
		}
		for key, value := range c.Env {
			stdioOptions = append(stdioOptions, stdio.WithEnvironment(key, value))
		}
		if c.Host != "" {
			stdioOptions = append(stdioOptions, stdio.WithHost(c.Host))
		}
		if c.Secret != "" {
			stdioOptions = append(stdioOptions, stdio.WithSecret(secret.Resource(c.Secret)))
		}
		result = append(result, WithCommand(c.Command, stdioOptions...))
	} else if c.Endpoint != "" {
		result = append(result, WithEndpoint(c.Endpoint))
	}
	if c.RequestTimeoutMs > 0 {
		result = append(result, WithRequestTimeout(time.Duration(c.RequestTimeoutMs)*time.Millisecond))
	}
	result = append(result, WithAutoRestart(c.AutoRestart), WithAutoStart(c.AutoStart))
	return result
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %v: %w", path, err)
	}
	config := &Config{}
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %v: %w", path, err)
	}
	if err = config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// WithConfig applies a loaded configuration; later options override it.
func WithConfig(config *Config) Option {
	return func(c *Client) {
		for _, opt := range config.options() {
			opt(c)
		}
	}
}

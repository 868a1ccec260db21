// Package config loads and validates the reconciliation configuration file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/artifact-sre/rtsync/pkg/artifactory"
	"github.com/artifact-sre/rtsync/pkg/command"
)

// Server is one named server entry. Credential fields may be literal values
// or ${ENV_VAR} references resolved at load time.
type Server struct {
	URL      string `yaml:"url"`
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is the root of the configuration file.
type Config struct {
	SourceServer    string            `yaml:"source_server"`
	TargetServer    string            `yaml:"target_server"`
	Servers         map[string]Server `yaml:"servers"`
	ParallelWorkers int               `yaml:"parallel_workers"`
	RequestTimeout  int               `yaml:"request_timeout"`
	RetryAttempts   int               `yaml:"retry_attempts"`
	PageSize        int               `yaml:"page_size"`
	LogLevel        string            `yaml:"log_level"`
	Dialect         string            `yaml:"dialect"`
	RepoType        string            `yaml:"repo_type"`
	VerifyAfterPush bool              `yaml:"verify_after_push"`
	TempDir         string            `yaml:"temp_dir"`
}

var validRepoTypes = map[string]bool{
	"":          true,
	"local":     true,
	"remote":    true,
	"virtual":   true,
	"federated": true,
}

// Load reads, defaults, and validates the file at path. A failure here is
// fatal and happens before any network work.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ParallelWorkers == 0 {
		c.ParallelWorkers = 20
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.PageSize == 0 {
		c.PageSize = 100000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Dialect == "" {
		c.Dialect = string(command.DialectCurl)
	}
	if c.TempDir == "" {
		c.TempDir = "tmp"
	}
}

func (c *Config) validate() error {
	if c.SourceServer == "" || c.TargetServer == "" {
		return fmt.Errorf("config: source_server and target_server are required")
	}
	for _, name := range []string{c.SourceServer, c.TargetServer} {
		server, ok := c.Servers[name]
		if !ok {
			return fmt.Errorf("config: server %q is not defined in servers", name)
		}
		parsed, err := url.Parse(server.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("config: server %q has invalid url %q", name, server.URL)
		}
	}
	if c.ParallelWorkers < 1 {
		return fmt.Errorf("config: parallel_workers must be positive")
	}
	if c.RequestTimeout < 1 {
		return fmt.Errorf("config: request_timeout must be positive")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("config: retry_attempts must be positive")
	}
	if c.PageSize < 1 {
		return fmt.Errorf("config: page_size must be positive")
	}
	if _, err := command.ParseDialect(c.Dialect); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if !validRepoTypes[c.RepoType] {
		return fmt.Errorf("config: unknown repo_type %q", c.RepoType)
	}
	return nil
}

// Profile resolves the named server into a ServerProfile, expanding
// credential environment references. Token takes precedence when both a
// token and username/password are set.
func (c *Config) Profile(name string) (artifactory.ServerProfile, error) {
	server, ok := c.Servers[name]
	if !ok {
		return artifactory.ServerProfile{}, fmt.Errorf("config: server %q is not defined in servers", name)
	}
	return artifactory.ServerProfile{
		Name:     name,
		URL:      server.URL,
		Token:    expandEnv(server.Token),
		Username: expandEnv(server.Username),
		Password: expandEnv(server.Password),
	}, nil
}

// Timeout returns the per-request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// RetryPolicy returns the retry policy derived from retry_attempts.
func (c *Config) RetryPolicy() artifactory.RetryPolicy {
	policy := artifactory.DefaultRetryPolicy()
	policy.MaxAttempts = c.RetryAttempts
	return policy
}

func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		return os.Getenv(strings.TrimSuffix(strings.TrimPrefix(value, "${"), "}"))
	}
	return value
}

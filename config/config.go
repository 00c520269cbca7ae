// Package config defines the runtime configuration of the fake SSH
// server and the rules that keep it consistent.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	ncerr "github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/errors"
)

// Config holds every tuneable of one server process.  It is built once
// at startup and treated as read-only afterwards.
type Config struct {
	// ── Listener ─────────────────────────────────────────────────────
	ListenAddr    string `yaml:"listen_addr" envconfig:"LISTEN_ADDR"`
	HostKeyPath   string `yaml:"host_key" envconfig:"HOST_KEY"` // empty: ephemeral key
	ServerVersion string `yaml:"server_version" envconfig:"SERVER_VERSION"`
	MaxAuthTries  int    `yaml:"max_auth_tries" envconfig:"MAX_AUTH_TRIES"`

	// ── Completion backend ───────────────────────────────────────────
	BackendURL      string        `yaml:"backend_url" envconfig:"BACKEND_URL"`
	Model           string        `yaml:"model" envconfig:"MODEL"`
	SystemPrompt    string        `yaml:"system_prompt" envconfig:"SYSTEM_PROMPT"`
	BackendTimeout  time.Duration `yaml:"backend_timeout" envconfig:"BACKEND_TIMEOUT"`
	BackendRetries  int           `yaml:"backend_retries" envconfig:"BACKEND_RETRIES"`
	BreakerFailures int           `yaml:"breaker_failures" envconfig:"BREAKER_FAILURES"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" envconfig:"BREAKER_COOLDOWN"`

	// ── Session timeouts ─────────────────────────────────────────────
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" envconfig:"HANDSHAKE_TIMEOUT"`
	ChannelTimeout   time.Duration `yaml:"channel_timeout" envconfig:"CHANNEL_TIMEOUT"`
	RequestTimeout   time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	ReadTimeout      time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`

	// ── Presentation ─────────────────────────────────────────────────
	Banner      string        `yaml:"banner" envconfig:"BANNER"`
	BannerDelay time.Duration `yaml:"banner_delay" envconfig:"BANNER_DELAY"`
	PromptUser  string        `yaml:"prompt_user" envconfig:"PROMPT_USER"`
	PromptHost  string        `yaml:"prompt_host" envconfig:"PROMPT_HOST"`
	PromptCwd   string        `yaml:"prompt_cwd" envconfig:"PROMPT_CWD"`

	// ── Output ───────────────────────────────────────────────────────
	LogDir       string `yaml:"log_dir" envconfig:"LOG_DIR"`
	LogFile      string `yaml:"log_file" envconfig:"LOG_FILE"`
	LogRetention int    `yaml:"log_retention" envconfig:"LOG_RETENTION"`
	StatusAddr   string `yaml:"status_addr" envconfig:"STATUS_ADDR"` // empty: disabled
	Verbose      int    `yaml:"verbose" envconfig:"VERBOSE"`
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		ListenAddr:       DefaultListenAddr,
		ServerVersion:    DefaultServerVersion,
		MaxAuthTries:     DefaultMaxAuthTries,
		BackendURL:       DefaultBackendURL,
		Model:            DefaultModel,
		SystemPrompt:     DefaultSystemPrompt,
		BackendTimeout:   DefaultBackendTimeout,
		BreakerFailures:  DefaultBreakerFailures,
		BreakerCooldown:  DefaultBreakerCooldown,
		HandshakeTimeout: DefaultHandshakeTimeout,
		ChannelTimeout:   DefaultChannelTimeout,
		RequestTimeout:   DefaultRequestTimeout,
		ReadTimeout:      DefaultReadTimeout,
		Banner:           DefaultBanner,
		BannerDelay:      DefaultBannerDelay,
		PromptUser:       DefaultPromptUser,
		PromptHost:       DefaultPromptHost,
		PromptCwd:        DefaultPromptCwd,
		LogDir:           DefaultLogDir,
		LogFile:          DefaultLogFile,
		LogRetention:     DefaultLogRetention,
		Verbose:          1,
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return &ncerr.ConfigError{
			Field: "listen", Value: c.ListenAddr,
			Message: "invalid listen address",
			Hint:    "use host:port, e.g. 0.0.0.0:2222",
		}
	}
	if c.StatusAddr != "" {
		if _, _, err := net.SplitHostPort(c.StatusAddr); err != nil {
			return &ncerr.ConfigError{
				Field: "status-addr", Value: c.StatusAddr,
				Message: "invalid status address",
				Hint:    "use host:port, e.g. 127.0.0.1:9100",
			}
		}
	}
	if !strings.HasPrefix(c.ServerVersion, "SSH-2.0-") {
		return &ncerr.ConfigError{
			Field: "server-version", Value: c.ServerVersion,
			Message: "must start with SSH-2.0-",
		}
	}
	if c.MaxAuthTries < 0 {
		return &ncerr.ConfigError{Field: "max-auth-tries", Value: c.MaxAuthTries, Message: "must not be negative"}
	}

	u, err := url.Parse(c.BackendURL)
	if c.BackendURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ncerr.ConfigError{
			Field: "backend-url", Value: c.BackendURL,
			Message: "must be an absolute http(s) URL",
			Hint:    "e.g. " + DefaultBackendURL,
		}
	}
	if c.Model == "" {
		return &ncerr.ConfigError{Field: "model", Message: "required"}
	}
	if c.BackendRetries < 0 {
		return &ncerr.ConfigError{Field: "backend-retries", Value: c.BackendRetries, Message: "must not be negative"}
	}
	if c.BreakerFailures < 0 {
		return &ncerr.ConfigError{
			Field: "breaker-failures", Value: c.BreakerFailures,
			Message: "must not be negative", Hint: "use 0 to disable the breaker",
		}
	}
	if c.BreakerFailures > 0 && c.BreakerCooldown <= 0 {
		return &ncerr.ConfigError{Field: "breaker-cooldown", Value: c.BreakerCooldown, Message: "must be positive"}
	}

	timeouts := []struct {
		field string
		d     time.Duration
	}{
		{"backend-timeout", c.BackendTimeout},
		{"handshake-timeout", c.HandshakeTimeout},
		{"channel-timeout", c.ChannelTimeout},
		{"request-timeout", c.RequestTimeout},
		{"read-timeout", c.ReadTimeout},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			return &ncerr.ConfigError{
				Field: t.field, Value: t.d,
				Message: "must be positive",
				Hint:    "use a duration such as 30s",
			}
		}
	}
	if c.BannerDelay < 0 {
		return &ncerr.ConfigError{Field: "banner-delay", Value: c.BannerDelay, Message: "must not be negative"}
	}

	if c.PromptUser == "" || c.PromptHost == "" {
		return &ncerr.ConfigError{Field: "prompt-user", Message: "prompt user and host are required"}
	}
	if c.LogFile == "" || strings.ContainsRune(c.LogFile, '/') {
		return &ncerr.ConfigError{
			Field: "log-file", Value: c.LogFile,
			Message: "must be a bare file name",
			Hint:    "set the directory with --log-dir",
		}
	}
	if c.LogRetention < 0 {
		return &ncerr.ConfigError{Field: "log-retention", Value: c.LogRetention, Message: "must not be negative"}
	}
	return nil
}

// PromptString renders the shell prompt, e.g. "root@debian:~# ".
func (c *Config) PromptString() string {
	return fmt.Sprintf("%s@%s:%s# ", c.PromptUser, c.PromptHost, c.PromptCwd)
}

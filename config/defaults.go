package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, the config file, and environment variable loading.

const (
	// DefaultListenAddr is where the fake SSH service binds.
	DefaultListenAddr = "0.0.0.0:2222"

	// DefaultServerVersion is the identification string sent before key
	// exchange.  It matches the kernel in DefaultBanner.
	DefaultServerVersion = "SSH-2.0-OpenSSH_7.4p1 Debian-10+deb9u7"

	// DefaultMaxAuthTries bounds password attempts per connection.  Every
	// attempt succeeds, so this only matters for clients that retry on
	// their own.
	DefaultMaxAuthTries = 6

	DefaultBackendURL     = "http://127.0.0.1:11434/api/generate"
	DefaultModel          = "llama3.1:8b"
	DefaultBackendTimeout = 120 * time.Second

	// DefaultBreakerFailures is zero: every command makes one backend
	// call.  With N > 0, N consecutive failures open the circuit for
	// DefaultBreakerCooldown.
	DefaultBreakerFailures = 0
	DefaultBreakerCooldown = 30 * time.Second

	DefaultHandshakeTimeout = 30 * time.Second
	DefaultChannelTimeout   = 20 * time.Second
	DefaultRequestTimeout   = 10 * time.Second

	// DefaultReadTimeout closes an interactive shell that sends nothing
	// for this long.
	DefaultReadTimeout = 30 * time.Second

	DefaultBannerDelay = 10 * time.Millisecond

	DefaultPromptUser = "root"
	DefaultPromptHost = "debian"
	DefaultPromptCwd  = "~"

	DefaultLogDir       = "logs"
	DefaultLogFile      = "fake_ssh.log"
	DefaultLogRetention = 14
)

// DefaultBanner is printed when an interactive shell starts.
const DefaultBanner = `Linux debian 4.9.0-0-amd64 #1 SMP Debian 4.9.65-3+deb9u1 (2017-12-23)

The programs included with the Debian GNU/Linux system are free software;
the exact distribution terms for each program are described in the
individual files in /usr/share/doc/*/copyright.

Debian GNU/Linux comes with ABSOLUTELY NO WARRANTY, to the extent
permitted by applicable law.
`

// DefaultSystemPrompt is the persona instruction sent with every
// completion request.
const DefaultSystemPrompt = `You are simulating a real Debian Linux server.
You are not an AI and never explain yourself.
Output only what would appear in a Linux terminal.
Do not use Markdown.
Keep the output concise and realistic.
`

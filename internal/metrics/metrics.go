// Package metrics provides lock-free counters describing what the
// honeypot has seen since start-up.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks process-wide session and backend statistics.
type Collector struct {
	sessionsActive  atomic.Int64
	sessionsTotal   atomic.Int64
	authAttempts    atomic.Int64
	shellSessions   atomic.Int64
	execSessions    atomic.Int64
	commands        atomic.Int64
	backendCalls    atomic.Int64
	backendFailures atomic.Int64
	backendNanos    atomic.Int64
	errorsTotal     atomic.Int64

	mu           sync.RWMutex
	sources      map[string]struct{}
	maxSources   int
	sourcesFull  bool
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// MaxSources bounds the set of distinct source hosts a collector keeps.
const MaxSources = 1 << 16

// New creates a collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now(), maxSources: MaxSources}
}

// ── Sessions ─────────────────────────────────────────────────────────

// SessionOpened increments both the active and total counters.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionClosed decrements the active session counter.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
}

// Source records the address a connection came from.  Once MaxSources
// hosts are known, new ones are no longer added and the unique count
// becomes a lower bound.
func (c *Collector) Source(host string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sources == nil {
		c.sources = make(map[string]struct{})
	}
	if _, ok := c.sources[host]; ok {
		return
	}
	if c.maxSources > 0 && len(c.sources) >= c.maxSources {
		c.sourcesFull = true
		return
	}
	c.sources[host] = struct{}{}
}

// ActiveSessions returns the number of connections being served.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// TotalSessions returns the lifetime connection count.
func (c *Collector) TotalSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsTotal.Load()
}

// AuthAttempt records one captured credential pair.
func (c *Collector) AuthAttempt() {
	if c == nil {
		return
	}
	c.authAttempts.Add(1)
}

// ShellStarted records an interactive shell session.
func (c *Collector) ShellStarted() {
	if c == nil {
		return
	}
	c.shellSessions.Add(1)
}

// ExecStarted records a one-shot exec session.
func (c *Collector) ExecStarted() {
	if c == nil {
		return
	}
	c.execSessions.Add(1)
}

// Command records one command line sent to the backend.
func (c *Collector) Command() {
	if c == nil {
		return
	}
	c.commands.Add(1)
}

// ── Backend ──────────────────────────────────────────────────────────

// BackendCall records the latency and outcome of one completion call.
func (c *Collector) BackendCall(latency time.Duration, err error) {
	if c == nil {
		return
	}
	c.backendCalls.Add(1)
	c.backendNanos.Add(int64(latency))
	if err != nil {
		c.backendFailures.Add(1)
	}
}

// BackendFailures returns the number of failed completion calls.
func (c *Collector) BackendFailures() int64 {
	if c == nil {
		return 0
	}
	return c.backendFailures.Load()
}

// ── Errors ───────────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string  `json:"uptime"`
	SessionsActive   int64   `json:"sessions_active"`
	SessionsTotal    int64   `json:"sessions_total"`
	UniqueSources    int     `json:"unique_sources"`
	SourcesCapped    bool    `json:"sources_capped,omitempty"`
	AuthAttempts     int64   `json:"auth_attempts"`
	ShellSessions    int64   `json:"shell_sessions"`
	ExecSessions     int64   `json:"exec_sessions"`
	Commands         int64   `json:"commands"`
	BackendCalls     int64   `json:"backend_calls"`
	BackendFailures  int64   `json:"backend_failures"`
	BackendAvgMillis float64 `json:"backend_avg_ms"`
	ErrorsTotal      int64   `json:"errors_total"`
	LastError        string  `json:"last_error,omitempty"`
	LastErrorMessage string  `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:          time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsActive:  c.sessionsActive.Load(),
		SessionsTotal:   c.sessionsTotal.Load(),
		UniqueSources:   len(c.sources),
		SourcesCapped:   c.sourcesFull,
		AuthAttempts:    c.authAttempts.Load(),
		ShellSessions:   c.shellSessions.Load(),
		ExecSessions:    c.execSessions.Load(),
		Commands:        c.commands.Load(),
		BackendCalls:    c.backendCalls.Load(),
		BackendFailures: c.backendFailures.Load(),
		ErrorsTotal:     c.errorsTotal.Load(),
	}
	if s.BackendCalls > 0 {
		avg := time.Duration(c.backendNanos.Load() / s.BackendCalls)
		s.BackendAvgMillis = float64(avg.Microseconds()) / 1000
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as indented JSON.
func (c *Collector) JSON() []byte {
	data, _ := json.MarshalIndent(c.Snapshot(), "", "  ")
	return data
}

// Summary renders the snapshot as a single log line.
func (c *Collector) Summary() string {
	s := c.Snapshot()
	capped := ""
	if s.SourcesCapped {
		capped = "+"
	}
	return fmt.Sprintf("STATS uptime=%s sessions=%d/%d sources=%d%s auth=%d shell=%d exec=%d cmds=%d llm=%d failed=%d avg=%.0fms errors=%d",
		s.Uptime, s.SessionsActive, s.SessionsTotal, s.UniqueSources, capped, s.AuthAttempts, s.ShellSessions, s.ExecSessions,
		s.Commands, s.BackendCalls, s.BackendFailures, s.BackendAvgMillis, s.ErrorsTotal)
}

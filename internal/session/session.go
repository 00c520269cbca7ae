// Package session holds the state of one attacker connection: who they
// claimed to be, what kind of channel they asked for, and the commands
// they have typed so far.
//
// A Session is created when the TCP connection is accepted and thrown
// away at teardown.  Nothing in it outlives the connection except what
// was written to the log.
package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"

	ncerr "github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/errors"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/metrics"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/util"
)

// Mode is what the client asked the session channel to do.
type Mode int

const (
	ModeNone Mode = iota // no shell or exec request yet
	ModeShell
	ModeExec
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeShell:
		return "shell"
	case ModeExec:
		return "exec"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Identity is the user, host and working directory shown in the
// prompt.  It is presentation only.
type Identity struct {
	User string
	Host string
	Cwd  string
}

// Prompt renders the identity as a root shell prompt.
func (i Identity) Prompt() string {
	return fmt.Sprintf("%s@%s:%s# ", i.User, i.Host, i.Cwd)
}

// Session is the per-connection state.  Fields set at creation are
// read-only afterwards; the rest is guarded because the SSH adapter's
// request goroutine writes it while the engine goroutine reads it.
type Session struct {
	ID         string
	ClientAddr string
	Identity   Identity
	History    *History
	Logger     *util.Logger
	Metrics    *metrics.Collector

	// Channel is the accepted session channel, nil until one is opened.
	Channel ssh.Channel

	mu       sync.Mutex
	username string
	password string
	mode     Mode
	execCmd  string
	term     string
	cols     uint32
	rows     uint32
}

// NewID returns a short random identifier for log correlation.
func NewID() string {
	return uuid.NewString()[:8]
}

// New creates a session for a freshly accepted connection.  The logger
// is tagged with the new session's ID.
func New(clientAddr string, id Identity, logger *util.Logger, m *metrics.Collector) *Session {
	sid := NewID()
	return &Session{
		ID:         sid,
		ClientAddr: clientAddr,
		Identity:   id,
		History:    &History{},
		Logger:     logger.Session(sid),
		Metrics:    m,
	}
}

// SetCredentials records the username and password of an auth attempt.
// Later attempts overwrite earlier ones.
func (s *Session) SetCredentials(user, password string) {
	s.mu.Lock()
	s.username, s.password = user, password
	s.mu.Unlock()
}

// Credentials returns the last captured username and password.
func (s *Session) Credentials() (user, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username, s.password
}

// SetMode fixes the channel mode.  It succeeds once; every later call
// returns ErrModeAlreadySet and leaves the session unchanged.
func (s *Session) SetMode(m Mode, execCmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeNone {
		return fmt.Errorf("%w: %s", ncerr.ErrModeAlreadySet, s.mode)
	}
	s.mode = m
	if m == ModeExec {
		s.execCmd = execCmd
	}
	return nil
}

// Mode returns the channel mode, ModeNone if undecided.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// ExecCommand returns the command of an exec request.
func (s *Session) ExecCommand() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execCmd
}

// SetTerminal records the terminal type and size from a pty-req.
func (s *Session) SetTerminal(term string, cols, rows uint32) {
	s.mu.Lock()
	s.term, s.cols, s.rows = term, cols, rows
	s.mu.Unlock()
}

// Terminal returns what SetTerminal stored.
func (s *Session) Terminal() (term string, cols, rows uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.term, s.cols, s.rows
}

package core

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/capability"
	ncerr "github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/errors"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/metrics"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/session"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/sshd"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/util"
)

// State is a step of the per-connection state machine.
type State int

const (
	StateConnected State = iota
	StateAuthenticating
	StateChannelNegotiation
	StateExecDispatch
	StateShellLoop
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticating:
		return "authenticating"
	case StateChannelNegotiation:
		return "channel-negotiation"
	case StateExecDispatch:
		return "exec-dispatch"
	case StateShellLoop:
		return "shell-loop"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Engine runs one connection from TCP accept to teardown.  It holds
// only immutable settings, so a single Engine serves every connection
// concurrently.
type Engine struct {
	SSH      sshd.ServerOptions
	Identity session.Identity
	Shell    capability.Capability
	Exec     capability.Capability

	HandshakeTimeout time.Duration
	ChannelTimeout   time.Duration
	RequestTimeout   time.Duration

	Logger  *util.Logger
	Metrics *metrics.Collector
}

// conn tracks what has been opened so teardown can close it in order.
type conn struct {
	raw   net.Conn
	ssh   *ssh.ServerConn
	sess  *session.Session
	state State
}

// Serve drives raw through the session state machine.  It never
// returns an error: every failure is logged and ends in the same
// guarded teardown.  Cancelling ctx closes raw, which unblocks every
// stage.
func (e *Engine) Serve(ctx context.Context, raw net.Conn) {
	c := &conn{raw: raw, state: StateConnected}
	c.sess = session.New(raw.RemoteAddr().String(), e.Identity, e.Logger, e.Metrics)
	log := c.sess.Logger

	e.Metrics.SessionOpened()
	defer e.Metrics.SessionClosed()
	host, _ := util.SplitAddr(c.sess.ClientAddr)
	e.Metrics.Source(host)

	stop := context.AfterFunc(ctx, func() { raw.Close() })
	defer stop()

	defer e.teardown(c)
	defer func() {
		if r := recover(); r != nil {
			log.Error("SESSION ERROR: %v\n%s", r, debug.Stack())
			e.Metrics.RecordError(fmt.Sprintf("panic: %v", r))
			log.Info("DISCONNECT (session error)")
		}
	}()

	log.Info("CONNECT from %s", c.sess.ClientAddr)
	reason := e.run(ctx, c)
	log.Info("DISCONNECT (%s)", reason)
}

// run returns the disconnect reason.
func (e *Engine) run(ctx context.Context, c *conn) string {
	log := c.sess.Logger

	e.transition(c, StateAuthenticating)
	pending := session.NewPending()
	policy := session.NewPolicy(c.sess, pending)

	if e.HandshakeTimeout > 0 {
		c.raw.SetDeadline(time.Now().Add(e.HandshakeTimeout)) //nolint:errcheck
	}
	sconn, chans, reqs, err := ssh.NewServerConn(c.raw, sshd.NewServerConfig(e.SSH, policy))
	if err != nil {
		log.Warn("%v", ncerr.WrapSSH("handshake", c.sess.ClientAddr, err))
		return "handshake failed"
	}
	c.raw.SetDeadline(time.Time{}) //nolint:errcheck
	c.ssh = sconn
	go ssh.DiscardRequests(reqs)

	e.transition(c, StateChannelNegotiation)
	ch, chReqs, err := sshd.AcceptSession(chans, policy, e.ChannelTimeout)
	switch {
	case ncerr.Is(err, ncerr.ErrChannelTimeout):
		log.Warn("No channel opened (timeout)")
		return "no channel"
	case err != nil:
		if ctx.Err() != nil {
			return "server shutdown"
		}
		log.Verbose("%v", ncerr.WrapSSH("channel", c.sess.ClientAddr, err))
		return "closed before channel"
	}
	c.sess.Channel = ch
	go sshd.ServeRequests(chReqs, policy)

	switch err := pending.Wait(ctx, e.RequestTimeout); {
	case ncerr.Is(err, ncerr.ErrRequestTimeout):
		log.Warn("No shell or exec request (timeout)")
		return "idle"
	case ncerr.Is(err, ncerr.ErrPeerClosed):
		return "closed before shell or exec"
	case err != nil:
		return "server shutdown"
	}

	switch c.sess.Mode() {
	case session.ModeExec:
		e.transition(c, StateExecDispatch)
		if err := e.Exec.Handle(ctx, c.sess); err != nil {
			log.Verbose("exec: %v", err)
		}
		return "exec finished"
	default:
		e.transition(c, StateShellLoop)
		if err := e.Shell.Handle(ctx, c.sess); err != nil && ctx.Err() == nil {
			log.Verbose("shell: %v", err)
		}
		return "shell ended"
	}
}

func (e *Engine) transition(c *conn, to State) {
	c.sess.Logger.Debug("state %s -> %s", c.state, to)
	c.state = to
}

// teardown closes the channel, the SSH connection and the socket, in
// that order.  Each step runs even if an earlier one fails or panics.
func (e *Engine) teardown(c *conn) {
	e.transition(c, StateClosed)
	log := c.sess.Logger
	if ch := c.sess.Channel; ch != nil {
		guard(log, "channel", ch.Close)
	}
	if c.ssh != nil {
		guard(log, "transport", c.ssh.Close)
	}
	guard(log, "connection", c.raw.Close)
}

func guard(log *util.Logger, what string, closeFn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("closing %s: panic: %v", what, r)
		}
	}()
	if err := closeFn(); err != nil && !util.IsClosed(err) {
		log.Debug("closing %s: %v", what, err)
	}
}

// Package sshd adapts golang.org/x/crypto/ssh to the honeypot.  It
// owns the protocol mechanics (host keys, server config, channel and
// request dispatch) and leaves every decision to a [Policy].
package sshd

import (
	"errors"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/errors"
)

// SessionChannel is the only channel type a shell or exec can run on.
const SessionChannel = "session"

// Policy decides how a connection is treated.  Its methods are called
// from the handshake and from the adapter's helper goroutines, so they
// must be safe for concurrent use.
type Policy interface {
	// AuthPassword is called for every password attempt.
	AuthPassword(user string, password []byte) bool
	// OpenChannel reports whether a channel of this type may be opened.
	OpenChannel(kind string) bool
	// PTYRequest is called for each decodable pty-req.
	PTYRequest(req PTYRequest) bool
	// ShellRequest is called for a shell request.
	ShellRequest() bool
	// ExecRequest is called with the command of an exec request.
	ExecRequest(command string) bool
	// RequestsClosed is called once the channel's request stream ends.
	RequestsClosed()
}

// ServerOptions are the per-process parts of the server config.
type ServerOptions struct {
	HostKey       ssh.Signer
	ServerVersion string
	MaxAuthTries  int
}

var errAuthDenied = errors.New("permission denied")

// NewServerConfig returns a config that offers password
// authentication only and routes each attempt through p.  Build one per
// connection so the callbacks are bound to that connection's policy.
func NewServerConfig(opts ServerOptions, p Policy) *ssh.ServerConfig {
	cfg := &ssh.ServerConfig{
		ServerVersion: opts.ServerVersion,
		MaxAuthTries:  opts.MaxAuthTries,
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if p.AuthPassword(meta.User(), password) {
				return &ssh.Permissions{}, nil
			}
			return nil, errAuthDenied
		},
	}
	cfg.AddHostKey(opts.HostKey)
	return cfg
}

// AcceptSession waits up to timeout for the first channel p allows and
// accepts it.  Disallowed types are rejected as unknown.  Once a channel
// is accepted, or the wait times out, a background goroutine keeps
// rejecting further channel opens until chans is closed, so a client
// never gets a second channel on the same connection.
func AcceptSession(chans <-chan ssh.NewChannel, p Policy, timeout time.Duration) (ssh.Channel, <-chan *ssh.Request, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	for {
		select {
		case nc, ok := <-chans:
			if !ok {
				return nil, nil, ncerr.ErrPeerClosed
			}
			if !p.OpenChannel(nc.ChannelType()) {
				nc.Reject(ssh.UnknownChannelType, "unknown channel type") //nolint:errcheck
				continue
			}
			ch, reqs, err := nc.Accept()
			if err != nil {
				go rejectAll(chans, p)
				return nil, nil, err
			}
			go rejectAll(chans, p)
			return ch, reqs, nil
		case <-t.C:
			go rejectAll(chans, p)
			return nil, nil, ncerr.ErrChannelTimeout
		}
	}
}

func rejectAll(chans <-chan ssh.NewChannel, p Policy) {
	for nc := range chans {
		if p.OpenChannel(nc.ChannelType()) {
			nc.Reject(ssh.Prohibited, "only one session per connection") //nolint:errcheck
		} else {
			nc.Reject(ssh.UnknownChannelType, "unknown channel type") //nolint:errcheck
		}
	}
}

// ServeRequests answers the requests of an accepted channel until the
// stream closes, then calls p.RequestsClosed.  pty-req, shell and exec
// go to p; anything else, and any payload that does not decode, is
// refused.
func ServeRequests(reqs <-chan *ssh.Request, p Policy) {
	defer p.RequestsClosed()

	for req := range reqs {
		ok := false
		switch req.Type {
		case "pty-req":
			if pty, err := ParsePTYRequest(req.Payload); err == nil {
				ok = p.PTYRequest(pty)
			}
		case "shell":
			ok = p.ShellRequest()
		case "exec":
			if cmd, err := ParseExec(req.Payload); err == nil {
				ok = p.ExecRequest(cmd)
			}
		}
		if req.WantReply {
			req.Reply(ok, nil) //nolint:errcheck
		}
	}
}

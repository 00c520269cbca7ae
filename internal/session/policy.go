package session

import (
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/sshd"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/util"
)

// Policy is the honeypot's answer to every SSH decision: let everyone
// in, record what they send, and accept exactly one shell or exec.
type Policy struct {
	sess    *Session
	pending *Pending
}

var _ sshd.Policy = (*Policy)(nil)

// NewPolicy binds a policy to sess.  p is signalled on the first
// accepted shell or exec request.
func NewPolicy(sess *Session, p *Pending) *Policy {
	return &Policy{sess: sess, pending: p}
}

// AuthPassword records the credentials and always grants access.
func (p *Policy) AuthPassword(user string, password []byte) bool {
	p.sess.SetCredentials(user, string(password))
	p.sess.Metrics.AuthAttempt()
	p.sess.Logger.Info("AUTH attempt from %s user='%s' pass='%s' -> SUCCESS",
		p.sess.ClientAddr, util.Sanitize(user), util.Sanitize(string(password)))
	return true
}

// OpenChannel allows session channels only.
func (p *Policy) OpenChannel(kind string) bool {
	if kind != sshd.SessionChannel {
		p.sess.Logger.Verbose("channel type %q rejected", kind)
		return false
	}
	return true
}

// PTYRequest logs the terminal and accepts it.
func (p *Policy) PTYRequest(req sshd.PTYRequest) bool {
	p.sess.SetTerminal(req.Term, req.Columns, req.Rows)
	p.sess.Logger.Info("PTY requested term='%s' size=%dx%d from %s",
		util.Sanitize(req.Term), req.Columns, req.Rows, p.sess.ClientAddr)
	return true
}

// ShellRequest accepts the first shell-or-exec request.
func (p *Policy) ShellRequest() bool {
	if err := p.sess.SetMode(ModeShell, ""); err != nil {
		p.sess.Logger.Verbose("shell request refused: %v", err)
		return false
	}
	p.sess.Logger.Info("SHELL requested")
	p.pending.Signal()
	return true
}

// ExecRequest accepts the first shell-or-exec request.
func (p *Policy) ExecRequest(command string) bool {
	if err := p.sess.SetMode(ModeExec, command); err != nil {
		p.sess.Logger.Verbose("exec request refused: %v", err)
		return false
	}
	p.sess.Logger.Info("EXEC requested cmd='%s'", util.Sanitize(command))
	p.pending.Signal()
	return true
}

// RequestsClosed stops the engine from waiting for a request that can
// no longer arrive.
func (p *Policy) RequestsClosed() {
	if p.pending.Abort() {
		p.sess.Logger.Verbose("request stream closed before shell or exec")
	}
}

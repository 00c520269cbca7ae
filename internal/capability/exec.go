package capability

import (
	"context"
	"strings"

	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/session"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/sshd"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/util"
)

// Exec answers a one-shot "ssh host command" with synthesized output
// and an exit status.  Nothing is executed.
type Exec struct {
	Backend Completer
}

// Handle completes the session's exec command with an empty history,
// writes the output and sends exit-status: 0 on success, 1 when the
// fallback line had to be used.
func (e *Exec) Handle(ctx context.Context, sess *session.Session) error {
	ch := sess.Channel
	cmd := strings.TrimSpace(sess.ExecCommand())
	sess.Metrics.ExecStarted()

	if cmd == "" {
		return sshd.SendExitStatus(ch, 0)
	}

	out, cost, ok := complete(ctx, e.Backend, sess, nil, cmd)
	sess.Logger.Info("CMD(exec) '%s' cost=%.3fs", util.Sanitize(cmd), cost.Seconds())
	if ok && out != "" {
		sess.Logger.Info("OUT(exec) %q", out)
	}
	if out != "" {
		if err := writeOutput(ch, out); err != nil {
			return err
		}
	}

	var status uint32
	if !ok {
		status = 1
	}
	return sshd.SendExitStatus(ch, status)
}

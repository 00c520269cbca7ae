package capability

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/session"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/sshd"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/terminal"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/util"
)

// Shell is the interactive fake shell: banner, prompt, line editing,
// and a synthesized answer for every command.
type Shell struct {
	Backend     Completer
	Banner      string
	BannerDelay time.Duration
	// ReadTimeout ends the shell when the client sends nothing for this
	// long.  Zero disables it.
	ReadTimeout time.Duration
}

// Handle runs the read-complete-print loop until the client disconnects,
// idles out, or types exit/logout.  Backend failures are shown as a
// bash error line and the loop carries on.
func (s *Shell) Handle(ctx context.Context, sess *session.Session) error {
	ch := sess.Channel
	log := sess.Logger
	sess.Metrics.ShellStarted()

	if s.Banner != "" {
		if err := terminal.SlowSend(ch, s.Banner, s.BannerDelay); err != nil {
			return err
		}
	}
	log.Info("INTERACTIVE shell started")

	idle := terminal.NewIdleReader(ch, s.ReadTimeout, func() { ch.Close() })
	editor := terminal.NewLineEditor(idle, ch, true)
	prompt := sess.Identity.Prompt()

	for ctx.Err() == nil {
		if _, err := io.WriteString(ch, prompt); err != nil {
			log.Info("Client closed connection")
			return nil
		}

		raw, err := editor.ReadLine()
		switch {
		case errors.Is(err, terminal.ErrIdleTimeout):
			log.Info("Client idle for %v, closing", s.ReadTimeout)
			return nil
		case err != nil:
			log.Info("Client closed connection")
			return nil
		}

		cmd := strings.TrimSpace(raw)
		if cmd == "" {
			continue
		}
		if cmd == "exit" || cmd == "logout" {
			log.Info("LOGOUT by client command")
			return sshd.SendExitStatus(ch, 0)
		}

		log.Info("CMD '%s' (raw=%q)", util.Sanitize(cmd), raw)
		out, cost, ok := complete(ctx, s.Backend, sess, sess.History.Entries(), cmd)
		log.Info("LLM cost=%.3fs", cost.Seconds())
		if ok {
			if out != "" {
				log.Info("OUT %q", out)
			}
			sess.History.Append(cmd, out)
		}
		if err := writeOutput(ch, out); err != nil {
			log.Info("Client closed connection")
			return nil
		}
	}
	return ctx.Err()
}

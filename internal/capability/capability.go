// Package capability defines what happens on an accepted session
// channel.  Each Capability is one behaviour (an interactive shell or a
// one-shot exec) and operates on a Session rather than on the raw SSH
// channel plumbing, which keeps it testable with an in-memory channel.
package capability

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/session"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/terminal"
)

// Capability handles a session channel according to one behaviour.
type Capability interface {
	// Handle runs until the behaviour is finished, the client goes
	// away, or ctx is cancelled.  It never closes the channel; the
	// caller owns teardown.
	Handle(ctx context.Context, sess *session.Session) error
}

// Completer produces the terminal output for a command.
type Completer interface {
	Complete(ctx context.Context, history []session.Exchange, command string) (string, error)
}

// FallbackOutput is shown when the backend cannot answer.
func FallbackOutput(command string) string {
	return fmt.Sprintf("bash: %s: command failed", command)
}

// complete asks backend for the output of command, recording the call
// in the session's metrics.  On failure it logs once and returns the
// fallback line; ok reports which happened.
func complete(ctx context.Context, backend Completer, sess *session.Session, history []session.Exchange, command string) (out string, cost time.Duration, ok bool) {
	start := time.Now()
	out, err := backend.Complete(ctx, history, command)
	cost = time.Since(start)
	sess.Metrics.Command()
	sess.Metrics.BackendCall(cost, err)
	if err != nil {
		sess.Logger.Error("LLM ERROR: %v", err)
		sess.Metrics.RecordError(err.Error())
		return FallbackOutput(command), cost, false
	}
	return out, cost, true
}

// writeOutput sends a response as terminal lines.  An empty response is
// a bare newline.
func writeOutput(w io.Writer, out string) error {
	_, err := io.WriteString(w, terminal.ToCRLF(out)+"\r\n")
	return err
}

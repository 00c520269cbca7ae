package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/capability"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/metrics"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/session"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/sshd"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/util"
)

// lockedBuffer is a bytes.Buffer safe for a writer goroutine and a
// polling reader.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Count(s string) int { return strings.Count(b.String(), s) }

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// stubCompleter answers from a fixed table and fails on anything else.
type stubCompleter struct {
	outputs map[string]string

	mu      sync.Mutex
	history [][]session.Exchange
}

func (s *stubCompleter) Complete(_ context.Context, history []session.Exchange, command string) (string, error) {
	s.mu.Lock()
	s.history = append(s.history, history)
	s.mu.Unlock()
	if out, ok := s.outputs[command]; ok {
		return out, nil
	}
	return "", fmt.Errorf("no answer for %q", command)
}

func (s *stubCompleter) seen(i int) []session.Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.history) {
		return nil
	}
	return s.history[i]
}

func testLogger() (*util.Logger, *lockedBuffer) {
	buf := &lockedBuffer{}
	l := util.NewLogger(3)
	l.SetOutput(buf)
	return l, buf
}

func testEngine(t *testing.T, backend capability.Completer) (*Engine, *lockedBuffer) {
	t.Helper()
	signer, err := sshd.GenerateHostKey()
	if err != nil {
		t.Fatal(err)
	}
	logger, buf := testLogger()
	return &Engine{
		SSH: sshd.ServerOptions{
			HostKey:       signer,
			ServerVersion: "SSH-2.0-OpenSSH_7.4p1 Debian-10+deb9u7",
			MaxAuthTries:  6,
		},
		Identity:         session.Identity{User: "root", Host: "debian", Cwd: "~"},
		Shell:            &capability.Shell{Backend: backend, Banner: "Welcome\n", ReadTimeout: 5 * time.Second},
		Exec:             &capability.Exec{Backend: backend},
		HandshakeTimeout: 2 * time.Second,
		ChannelTimeout:   2 * time.Second,
		RequestTimeout:   2 * time.Second,
		Logger:           logger,
		Metrics:          metrics.New(),
	}, buf
}

// serveOne runs e on the first connection to a loopback listener.  The
// returned channel is closed when Serve returns.
func serveOne(t *testing.T, e *Engine) (string, <-chan struct{}) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		e.Serve(ctx, conn)
	}()
	return ln.Addr().String(), done
}

func dialSSH(t *testing.T, addr, user, password string) *ssh.Client {
	t.Helper()
	client, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}
}

// interactive opens a pty shell and mirrors its output into a buffer.
func interactive(t *testing.T, client *ssh.Client) (*ssh.Session, io.Writer, *lockedBuffer) {
	t.Helper()
	sess, err := client.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.RequestPty("xterm", 24, 80, ssh.TerminalModes{}); err != nil {
		t.Fatalf("pty: %v", err)
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		t.Fatal(err)
	}
	out := &lockedBuffer{}
	go io.Copy(out, stdout) //nolint:errcheck
	if err := sess.Shell(); err != nil {
		t.Fatalf("shell: %v", err)
	}
	return sess, stdin, out
}

package core

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/completion"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/session"
)

const prompt = "root@debian:~# "

func TestEngine_ShellTranscript(t *testing.T) {
	backend := &stubCompleter{outputs: map[string]string{
		"ls":  "file1 file2",
		"pwd": "/root",
	}}
	e, logs := testEngine(t, backend)
	addr, done := serveOne(t, e)
	client := dialSSH(t, addr, "root", "toor")
	sess, stdin, out := interactive(t, client)

	waitFor(t, "banner and prompt", func() bool { return strings.Contains(out.String(), "Welcome\r\n"+prompt) })

	stdin.Write([]byte("ls\r")) //nolint:errcheck
	waitFor(t, "ls output", func() bool { return out.Count(prompt) == 2 })
	if !strings.Contains(out.String(), prompt+"ls\r\nfile1 file2\r\n"+prompt) {
		t.Errorf("transcript = %q", out.String())
	}

	stdin.Write([]byte("pwd\r")) //nolint:errcheck
	waitFor(t, "pwd output", func() bool { return out.Count(prompt) == 3 })
	hist := backend.seen(1)
	if len(hist) != 1 || hist[0] != (session.Exchange{Command: "ls", Response: "file1 file2"}) {
		t.Errorf("history for second command = %+v", hist)
	}

	stdin.Write([]byte("exit\r")) //nolint:errcheck
	if err := sess.Wait(); err != nil {
		t.Errorf("wait after exit: %v", err)
	}
	waitDone(t, done)

	log := logs.String()
	for _, want := range []string{
		"AUTH attempt from 127.0.0.1:",
		"user='root' pass='toor' -> SUCCESS",
		"PTY requested term='xterm' size=80x24",
		"SHELL requested",
		"INTERACTIVE shell started",
		"CMD 'ls'",
		"LOGOUT by client command",
		"DISCONNECT (shell ended)",
	} {
		if !strings.Contains(log, want) {
			t.Errorf("log missing %q", want)
		}
	}
	if n := strings.Count(log, "AUTH attempt"); n != 1 {
		t.Errorf("AUTH attempt logged %d times, want 1", n)
	}
	order := []string{"CONNECT from", "AUTH attempt", "SHELL requested", "CMD 'ls'", "CMD 'pwd'", "DISCONNECT (shell ended)"}
	for i := 1; i < len(order); i++ {
		if a, b := strings.Index(log, order[i-1]), strings.Index(log, order[i]); a < 0 || b < 0 || a > b {
			t.Errorf("%q (at %d) should come before %q (at %d)", order[i-1], a, order[i], b)
		}
	}
	if got := e.Metrics.ActiveSessions(); got != 0 {
		t.Errorf("active sessions = %d after disconnect", got)
	}
}

func TestEngine_ShellBackendFailure(t *testing.T) {
	e, logs := testEngine(t, &stubCompleter{outputs: map[string]string{}})
	addr, done := serveOne(t, e)
	client := dialSSH(t, addr, "root", "x")
	_, stdin, out := interactive(t, client)

	waitFor(t, "prompt", func() bool { return out.Count(prompt) == 1 })
	stdin.Write([]byte("whoami\r")) //nolint:errcheck
	waitFor(t, "fallback", func() bool { return out.Count(prompt) == 2 })
	if !strings.Contains(out.String(), "bash: whoami: command failed\r\n") {
		t.Errorf("transcript = %q", out.String())
	}
	if n := logs.Count("LLM ERROR"); n != 1 {
		t.Errorf("LLM ERROR logged %d times", n)
	}

	client.Close()
	waitDone(t, done)
}

func TestEngine_Exec(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		want     string
		wantCode int
	}{
		{"answered", "uname -a", "Linux debian 4.9.0-8-amd64\r\n", 0},
		{"fallback", "whoami", "bash: whoami: command failed\r\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, logs := testEngine(t, &stubCompleter{outputs: map[string]string{
				"uname -a": "Linux debian 4.9.0-8-amd64",
			}})
			addr, done := serveOne(t, e)
			client := dialSSH(t, addr, "root", "x")

			sess, err := client.NewSession()
			if err != nil {
				t.Fatal(err)
			}
			out, err := sess.Output(tt.command)
			code := 0
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitStatus()
			} else if err != nil {
				t.Fatalf("exec: %v", err)
			}
			if string(out) != tt.want || code != tt.wantCode {
				t.Errorf("got (%q, %d), want (%q, %d)", out, code, tt.want, tt.wantCode)
			}
			waitDone(t, done)
			if !strings.Contains(logs.String(), "EXEC requested cmd='"+tt.command+"'") {
				t.Error("exec request not logged")
			}
			if !strings.Contains(logs.String(), "DISCONNECT (exec finished)") {
				t.Error("disconnect not logged")
			}
		})
	}
}

func TestEngine_RequestTimeout(t *testing.T) {
	e, logs := testEngine(t, &stubCompleter{})
	e.RequestTimeout = 100 * time.Millisecond
	addr, done := serveOne(t, e)
	client := dialSSH(t, addr, "root", "x")

	ch, reqs, err := client.OpenChannel("session", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()
	go ssh.DiscardRequests(reqs)

	waitDone(t, done)
	log := logs.String()
	if !strings.Contains(log, "No shell or exec request (timeout)") {
		t.Errorf("timeout not logged:\n%s", log)
	}
	if strings.Contains(log, "CMD") {
		t.Errorf("unexpected command logged:\n%s", log)
	}
}

func TestEngine_ChannelTimeout(t *testing.T) {
	e, logs := testEngine(t, &stubCompleter{})
	e.ChannelTimeout = 100 * time.Millisecond
	addr, done := serveOne(t, e)
	dialSSH(t, addr, "root", "x")

	waitDone(t, done)
	if !strings.Contains(logs.String(), "No channel opened (timeout)") {
		t.Errorf("log:\n%s", logs.String())
	}
}

func TestEngine_RejectsNonSessionChannel(t *testing.T) {
	e, _ := testEngine(t, &stubCompleter{})
	addr, _ := serveOne(t, e)
	client := dialSSH(t, addr, "root", "x")

	_, _, err := client.OpenChannel("direct-tcpip", nil)
	var openErr *ssh.OpenChannelError
	if !errors.As(err, &openErr) {
		t.Fatalf("err = %v, want OpenChannelError", err)
	}
	if openErr.Reason != ssh.UnknownChannelType {
		t.Errorf("reason = %v", openErr.Reason)
	}
}

func TestEngine_HandshakeFailure(t *testing.T) {
	e, logs := testEngine(t, &stubCompleter{})
	addr, done := serveOne(t, e)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	conn.Write([]byte("GET / HTTP/1.0\r\n\r\n")) //nolint:errcheck
	conn.Close()

	waitDone(t, done)
	log := logs.String()
	if !strings.Contains(log, "ssh handshake") || !strings.Contains(log, "DISCONNECT (handshake failed)") {
		t.Errorf("log:\n%s", log)
	}
}

type panicCapability struct{}

func (panicCapability) Handle(context.Context, *session.Session) error { panic("boom") }

func TestEngine_PanicIsContained(t *testing.T) {
	e, logs := testEngine(t, &stubCompleter{})
	e.Shell = panicCapability{}
	addr, done := serveOne(t, e)
	client := dialSSH(t, addr, "root", "x")

	sess, err := client.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Shell(); err != nil {
		t.Fatal(err)
	}
	waitDone(t, done)
	sess.Wait() //nolint:errcheck

	if !strings.Contains(logs.String(), "SESSION ERROR: boom") {
		t.Errorf("log:\n%s", logs.String())
	}
	if e.Metrics.ErrorCount() != 1 {
		t.Errorf("error count = %d", e.Metrics.ErrorCount())
	}
}

func TestEngine_CancelClosesConnection(t *testing.T) {
	e, _ := testEngine(t, &stubCompleter{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err == nil {
			e.Serve(ctx, conn)
		}
	}()

	client := dialSSH(t, ln.Addr().String(), "root", "x")
	_, _, out := interactive(t, client)
	waitFor(t, "prompt", func() bool { return strings.Contains(out.String(), prompt) })

	cancel()
	waitDone(t, done)
}

// TestEngine_WithCompletionBackend runs a shell against the real HTTP
// client and a fake generate endpoint.
func TestEngine_WithCompletionBackend(t *testing.T) {
	var mu sync.Mutex
	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		prompts = append(prompts, req.Prompt)
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"response": "file1 file2\n"}) //nolint:errcheck
	}))
	defer srv.Close()

	backend := completion.New(completion.Options{URL: srv.URL, Model: "test", Timeout: 2 * time.Second})
	e, _ := testEngine(t, backend)
	addr, done := serveOne(t, e)
	client := dialSSH(t, addr, "root", "x")
	sess, stdin, out := interactive(t, client)

	waitFor(t, "prompt", func() bool { return out.Count(prompt) == 1 })
	stdin.Write([]byte("ls\r")) //nolint:errcheck
	waitFor(t, "output", func() bool { return out.Count(prompt) == 2 })
	stdin.Write([]byte("ls -la\r")) //nolint:errcheck
	waitFor(t, "output", func() bool { return out.Count(prompt) == 3 })
	stdin.Write([]byte("logout\r")) //nolint:errcheck

	sess.Wait() //nolint:errcheck
	waitDone(t, done)

	mu.Lock()
	defer mu.Unlock()
	if len(prompts) != 2 {
		t.Fatalf("backend called %d times", len(prompts))
	}
	if prompts[0] != "\n$ ls\n" {
		t.Errorf("first prompt = %q", prompts[0])
	}
	if prompts[1] != "\n$ ls\nfile1 file2\n\n$ ls -la\n" {
		t.Errorf("second prompt = %q", prompts[1])
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateConnected, "connected"},
		{StateShellLoop, "shell-loop"},
		{StateClosed, "closed"},
		{State(42), "State(42)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("%d: got %q, want %q", int(tt.s), got, tt.want)
		}
	}
}

// Package completion asks a text-completion backend what a terminal
// would print for a command.  It speaks the Ollama /api/generate
// request/response format with streaming disabled.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ncerr "github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/errors"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/retry"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/session"
)

// maxResponseBytes bounds how much of a backend reply is read.
const maxResponseBytes = 1 << 20

// Options configures a Client.
type Options struct {
	URL     string
	Model   string
	System  string        // persona instruction sent with every request
	Timeout time.Duration // per attempt

	// Retries is the number of extra attempts for transport failures and
	// 5xx replies.  Zero means a single attempt.
	Retries int
	// BreakerFailures consecutive failures open the circuit for
	// BreakerCooldown.  Zero disables the breaker.
	BreakerFailures int
	BreakerCooldown time.Duration
	// OnBreakerChange is told about circuit transitions.
	OnBreakerChange func(from, to retry.State)

	// HTTPClient overrides the transport; its Timeout is ignored in
	// favour of Timeout.
	HTTPClient *http.Client
}

// Client is a completion backend client.  It is safe for concurrent use
// by many sessions.
type Client struct {
	url     string
	model   string
	system  string
	timeout time.Duration
	http    *http.Client
	backoff *retry.Backoff
	breaker *retry.CircuitBreaker // nil when disabled
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	System string `json:"system"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// New returns a Client for opts.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	c := &Client{
		url:     opts.URL,
		model:   opts.Model,
		system:  opts.System,
		timeout: opts.Timeout,
		http:    hc,
		backoff: retry.NewBackoff(opts.Retries, ncerr.IsRetryable),
	}
	if opts.BreakerFailures > 0 {
		c.breaker = retry.NewCircuitBreaker(&retry.BreakerConfig{
			MaxFailures:   opts.BreakerFailures,
			Cooldown:      opts.BreakerCooldown,
			OnStateChange: opts.OnBreakerChange,
		})
	}
	return c
}

// BuildPrompt renders the conversation so far followed by the new
// command, in the shape of a terminal transcript:
//
//	\n$ <command>\n<response>\n   for every earlier exchange
//	\n$ <new command>\n
func BuildPrompt(history []session.Exchange, command string) string {
	var b strings.Builder
	for _, ex := range history {
		b.WriteString("\n$ ")
		b.WriteString(ex.Command)
		b.WriteString("\n")
		b.WriteString(ex.Response)
		b.WriteString("\n")
	}
	b.WriteString("\n$ ")
	b.WriteString(command)
	b.WriteString("\n")
	return b.String()
}

// Complete returns the backend's continuation for command given the
// session history, with trailing newlines removed.  Every failure is a
// *errors.BackendError.
func (c *Client) Complete(ctx context.Context, history []session.Exchange, command string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: BuildPrompt(history, command),
		Stream: false,
		System: c.system,
	})
	if err != nil {
		return "", ncerr.WrapBackend(c.url, 0, err)
	}

	var out string
	call := func() error {
		return c.backoff.Do(ctx, func(ctx context.Context, _ int) error {
			var err error
			out, err = c.post(ctx, body)
			return err
		})
	}
	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		var be *ncerr.BackendError
		if ncerr.As(err, &be) {
			return "", be
		}
		return "", ncerr.WrapBackend(c.url, 0, err)
	}
	return strings.TrimRight(out, "\n"), nil
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", ncerr.WrapBackend(c.url, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("%w after %v: %v", ncerr.ErrTimeout, c.timeout, err)
		}
		return "", ncerr.WrapBackend(c.url, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", ncerr.WrapBackend(c.url, 0, fmt.Errorf("read body: %w", err))
	}

	var gr generateResponse
	decodeErr := json.Unmarshal(data, &gr)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && gr.Error != "" {
			msg = gr.Error
		}
		return "", ncerr.WrapBackend(c.url, resp.StatusCode, fmt.Errorf("%s", msg))
	}
	if decodeErr != nil {
		// The server answered; asking again will not fix the body.
		be := ncerr.WrapBackend(c.url, resp.StatusCode, fmt.Errorf("decode response: %w", decodeErr))
		be.Retryable = false
		return "", be
	}
	return gr.Response, nil
}

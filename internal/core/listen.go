package core

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	ncerr "github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/errors"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/metrics"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/util"
)

const (
	acceptBackoffMin = 5 * time.Millisecond
	acceptBackoffMax = time.Second
)

// Server accepts attacker connections and hands each one to the
// Engine on its own goroutine.  One failing connection never stops
// the loop.
type Server struct {
	Address    string // "host:port" for the SSH listener
	StatusAddr string // optional "host:port" for /healthz and /metrics
	Engine     *Engine
	Logger     *util.Logger
	Metrics    *metrics.Collector

	// Housekeeping is started with the listener and stopped after the
	// last session has drained.  May be nil.
	Housekeeping *Housekeeping
}

// Run listens on Address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Address)
	if err != nil {
		return ncerr.Wrap("listen", s.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled, then waits for every
// running session to finish.  ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	var status *http.Server
	if s.StatusAddr != "" {
		var err error
		if status, err = s.startStatus(); err != nil {
			return err
		}
	}
	if s.Housekeeping != nil {
		s.Housekeeping.Start()
		defer s.Housekeeping.Stop()
	}

	s.Logger.Info("Fake SSH listening on %s", ln.Addr())

	// Shut the listener down when the context expires.
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	backoff := time.Duration(0)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || util.IsClosed(err) {
				break
			}
			nerr := ncerr.Wrap("accept", s.Address, err)
			s.Logger.Warn("%v", nerr)
			s.Metrics.RecordError(nerr.Error())
			backoff = nextBackoff(backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			continue
		}
		backoff = 0

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Engine.Serve(ctx, conn)
		}()
	}

	wg.Wait()
	if status != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		status.Shutdown(shutdownCtx) //nolint:errcheck
	}
	s.Logger.Info("Listener on %s stopped", ln.Addr())
	return nil
}

func (s *Server) startStatus() (*http.Server, error) {
	ln, err := net.Listen("tcp", s.StatusAddr)
	if err != nil {
		return nil, ncerr.Wrap("listen", s.StatusAddr, err)
	}
	srv := &http.Server{
		Handler:           metrics.Handler(s.Metrics),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.Logger.Error("status server: %v", err)
		}
	}()
	s.Logger.Info("Status endpoint on http://%s", ln.Addr())
	return srv, nil
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return acceptBackoffMin
	}
	d *= 2
	if d > acceptBackoffMax {
		d = acceptBackoffMax
	}
	return d
}

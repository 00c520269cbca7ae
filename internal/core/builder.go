package core

import (
	"fmt"

	"golang.org/x/crypto/ssh"

	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/config"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/capability"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/completion"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/metrics"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/retry"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/session"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/sshd"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/util"
)

var _ Mode = (*Server)(nil)

// Build constructs the server from a validated configuration.  logFile
// is the daily log already attached to logger, or nil when logging to
// the console only; it is handed to housekeeping for rotation.
func Build(cfg *config.Config, logger *util.Logger, logFile *util.DailyFile) (Mode, error) {
	hostKey, err := buildHostKey(cfg, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	backend := buildBackend(cfg, logger)

	hk, err := NewHousekeeping(logFile, cfg.LogRetention, m, logger)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		SSH: sshd.ServerOptions{
			HostKey:       hostKey,
			ServerVersion: cfg.ServerVersion,
			MaxAuthTries:  cfg.MaxAuthTries,
		},
		Identity: session.Identity{
			User: cfg.PromptUser,
			Host: cfg.PromptHost,
			Cwd:  cfg.PromptCwd,
		},
		Shell: &capability.Shell{
			Backend:     backend,
			Banner:      cfg.Banner,
			BannerDelay: cfg.BannerDelay,
			ReadTimeout: cfg.ReadTimeout,
		},
		Exec:             &capability.Exec{Backend: backend},
		HandshakeTimeout: cfg.HandshakeTimeout,
		ChannelTimeout:   cfg.ChannelTimeout,
		RequestTimeout:   cfg.RequestTimeout,
		Logger:           logger,
		Metrics:          m,
	}

	return &Server{
		Address:      cfg.ListenAddr,
		StatusAddr:   cfg.StatusAddr,
		Engine:       engine,
		Logger:       logger,
		Metrics:      m,
		Housekeeping: hk,
	}, nil
}

// ── helpers ──────────────────────────────────────────────────────────

func buildHostKey(cfg *config.Config, logger *util.Logger) (ssh.Signer, error) {
	if cfg.HostKeyPath == "" {
		signer, err := sshd.GenerateHostKey()
		if err != nil {
			return nil, fmt.Errorf("generate host key: %w", err)
		}
		logger.Verbose("Using ephemeral host key %s", ssh.FingerprintSHA256(signer.PublicKey()))
		return signer, nil
	}

	signer, created, err := sshd.LoadOrGenerateHostKey(cfg.HostKeyPath)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info("Generated host key %s", cfg.HostKeyPath)
	}
	logger.Verbose("Host key fingerprint %s", ssh.FingerprintSHA256(signer.PublicKey()))
	return signer, nil
}

func buildBackend(cfg *config.Config, logger *util.Logger) *completion.Client {
	return completion.New(completion.Options{
		URL:             cfg.BackendURL,
		Model:           cfg.Model,
		System:          cfg.SystemPrompt,
		Timeout:         cfg.BackendTimeout,
		Retries:         cfg.BackendRetries,
		BreakerFailures: cfg.BreakerFailures,
		BreakerCooldown: cfg.BreakerCooldown,
		OnBreakerChange: func(from, to retry.State) {
			if to == retry.StateOpen {
				logger.Warn("Backend circuit %s -> %s", from, to)
				return
			}
			logger.Info("Backend circuit %s -> %s", from, to)
		},
	})
}

// Package cmd wires up the CLI flags and starts the fake SSH server.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/config"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/core"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X github.com/TTStick/Prompt-SSH-AIFakeSSHServer/cmd.version=1.1.0"
var version = "1.0.0" //nolint:gochecknoglobals

const name = "fake-ssh"

// invocation is the outcome of parsing the command line.
type invocation struct {
	cfg         *config.Config
	fs          *flag.FlagSet
	dryRun      bool
	showVersion bool
	showHelp    bool
}

// Execute loads the configuration (defaults, then --config file, then
// FAKESSH_* environment, then flags) and runs the server until ctx is
// cancelled.
func Execute(ctx context.Context, args []string) error {
	inv, err := parseArgs(args)
	if err != nil {
		return err
	}
	if inv.showHelp {
		printUsage(os.Stdout, inv.fs)
		return nil
	}
	if inv.showVersion {
		fmt.Printf("%s %s\n", name, version)
		return nil
	}

	cfg := inv.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}
	if inv.dryRun {
		out, err := config.Dump(cfg)
		if err != nil {
			return err
		}
		os.Stdout.Write(out) //nolint:errcheck
		return nil
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)

	var logFile *util.DailyFile
	if cfg.LogDir != "" {
		logFile, err = util.OpenDailyFile(cfg.LogDir, cfg.LogFile)
		if err != nil {
			return err
		}
		defer logFile.Close()
		logger.AddSink(logFile)
	}

	mode, err := core.Build(cfg, logger, logFile)
	if err != nil {
		return err
	}

	logger.Info("Completion backend %s model=%s", cfg.BackendURL, cfg.Model)
	logger.Verbose("Prompt %q", cfg.PromptString())
	if logFile != nil {
		logger.Verbose("Logging to %s", logFile.Path())
	}
	return mode.Run(ctx)
}

// parseArgs layers file, environment and flags over the defaults.  The
// result is not validated.
func parseArgs(args []string) (*invocation, error) {
	// ── pass 1: locate the config file ───────────────────────────
	configPath, err := findConfigPath(args)
	if err != nil {
		return nil, err
	}

	cfg := config.Default()
	if configPath != "" {
		if err := config.LoadFile(cfg, configPath); err != nil {
			return nil, err
		}
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	// ── pass 2: flags, defaulting to what file and env produced ──
	inv := &invocation{cfg: cfg}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	inv.fs = fs
	fs.String("config", configPath, "YAML configuration file")

	// listener
	fs.StringVarP(&cfg.ListenAddr, "listen", "l", cfg.ListenAddr, "Address to accept SSH connections on")
	fs.StringVar(&cfg.HostKeyPath, "host-key", cfg.HostKeyPath, "RSA host key file, created if missing (ephemeral if empty)")
	fs.StringVar(&cfg.ServerVersion, "server-version", cfg.ServerVersion, "SSH identification string")
	fs.IntVar(&cfg.MaxAuthTries, "max-auth-tries", cfg.MaxAuthTries, "Password attempts per connection")

	// backend
	fs.StringVar(&cfg.BackendURL, "backend-url", cfg.BackendURL, "Completion endpoint (Ollama /api/generate)")
	fs.StringVarP(&cfg.Model, "model", "m", cfg.Model, "Model name sent to the backend")
	fs.DurationVar(&cfg.BackendTimeout, "backend-timeout", cfg.BackendTimeout, "Timeout per backend attempt")
	fs.IntVar(&cfg.BackendRetries, "backend-retries", cfg.BackendRetries, "Extra attempts on transport errors and 5xx")
	fs.IntVar(&cfg.BreakerFailures, "breaker-failures", cfg.BreakerFailures, "Consecutive failures that open the circuit (0 disables)")
	fs.DurationVar(&cfg.BreakerCooldown, "breaker-cooldown", cfg.BreakerCooldown, "How long an open circuit rejects calls")

	// session timeouts
	fs.DurationVar(&cfg.HandshakeTimeout, "handshake-timeout", cfg.HandshakeTimeout, "SSH handshake deadline")
	fs.DurationVar(&cfg.ChannelTimeout, "channel-timeout", cfg.ChannelTimeout, "Wait for a session channel")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Wait for a shell or exec request")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "Idle time before an interactive shell is closed")

	// presentation
	fs.DurationVar(&cfg.BannerDelay, "banner-delay", cfg.BannerDelay, "Pause after each banner line")
	fs.StringVar(&cfg.PromptUser, "prompt-user", cfg.PromptUser, "User shown in the prompt")
	fs.StringVar(&cfg.PromptHost, "prompt-host", cfg.PromptHost, "Host name shown in the prompt")
	fs.StringVar(&cfg.PromptCwd, "prompt-cwd", cfg.PromptCwd, "Working directory shown in the prompt")

	// output
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory of the daily log file (empty: console only)")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file name inside --log-dir")
	fs.IntVar(&cfg.LogRetention, "log-retention", cfg.LogRetention, "Rotated log files to keep (0 keeps all)")
	fs.StringVar(&cfg.StatusAddr, "status-addr", cfg.StatusAddr, "Serve /healthz and /metrics here (empty disables)")

	var verbose int
	var quiet bool
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&quiet, "quiet", "q", false, "Console shows errors only; the log file keeps normal lines")
	fs.BoolVar(&inv.dryRun, "dry-run", false, "Validate and print the effective configuration, then exit")
	fs.BoolVar(&inv.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&inv.showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(os.Stderr, fs) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q (use --help for usage)", fs.Arg(0))
	}

	cfg.Verbose += verbose
	if quiet {
		cfg.Verbose = 0
	}
	return inv, nil
}

// ── helpers ──────────────────────────────────────────────────────────

// findConfigPath scans args for --config without validating anything
// else.
func findConfigPath(args []string) (string, error) {
	pre := flag.NewFlagSet(name, flag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.SetOutput(io.Discard)
	pre.Usage = func() {}

	var path string
	pre.StringVar(&path, "config", "", "")
	pre.BoolP("help", "h", false, "")
	if err := pre.Parse(args); err != nil {
		return "", err
	}
	return path, nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `%s v%s

An SSH honeypot that accepts any password and answers every command
with output synthesized by a language model.  Nothing is executed.

Usage:
  %s [options]

Options:
`, name, version, name)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Every option can also be set in the --config YAML file or as a
%s_* environment variable (e.g. %s_BACKEND_URL).  Flags win over the
environment, which wins over the file.  The banner and the system
prompt can only be set in the file or the environment.

Examples:
  %s                                    Listen on %s
  %s -l 0.0.0.0:22 --host-key host_rsa  Real port, stable host key
  %s --config honeypot.yaml --dry-run   Check a configuration
`, config.EnvPrefix, config.EnvPrefix, name, config.DefaultListenAddr, name, name)
}

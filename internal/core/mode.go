// Package core is the orchestration layer.  It composes the SSH
// adapter, the session policy and the shell/exec capabilities into the
// per-connection Engine, runs the accept loop around it, and provides
// the builder that wires everything from a Config.
//
// Architecture layers (bottom → top):
//
//	terminal, completion  →  sshd, session  →  capability  →  core  →  cmd (CLI)
package core

import "context"

// Mode is a complete operational mode of the process.  It owns its
// full lifecycle from start-up to shutdown.
type Mode interface {
	Run(ctx context.Context) error
}

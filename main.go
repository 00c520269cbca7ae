// fake-ssh is a low-interaction SSH honeypot whose shell output is
// synthesized by a language model.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fake-ssh: %v\n", err)
		os.Exit(1)
	}
}

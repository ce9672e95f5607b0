// Package main provides the autohold player.
//
// Usage:
//
//	autohold [flags] <command> [args]
//
// Commands:
//
//	play     - play a song sheet or MIDI file on the configured actuator
//	events   - print the press/release timeline computed for a song
//	ports    - list serial devices and MIDI outputs
//	config   - show or initialise the configuration file
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chase3718/autohold/cmd/autohold/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

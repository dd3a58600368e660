// Package main provides the flanker CLI entrypoint.
//
// All commands except `run` are read-only.
//
// Usage:
//
//	flanker <command> [subcommand] [options]
//
// Exit codes for `run`:
//   - 0: session completed
//   - 1: aborted by the participant or interrupted
//   - 2: presentation or input device failure
//   - 3: invalid configuration or participant
//   - 4: results could not be persisted
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/flanker/cli/cmd"
	"github.com/justapithecus/flanker/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

// Swapped in tests.
var (
	osExit           = os.Exit
	stderr io.Writer = os.Stderr
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "flanker",
		Usage:          "Flanker reaction-time experiment",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.SummaryCommand(),
			cmd.CatalogCommand(),
			cmd.DebugCommand(),
			cmd.VersionCommand(commit),
		},
	}
}

// exitErrHandler preserves exit codes from cli.Exit(), so session outcomes
// reach the shell.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N"; skip those.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(stderr, msg)
		}
		osExit(code)
		return
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	osExit(1)
}

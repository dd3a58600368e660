package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/flanker/cli/render"
	"github.com/justapithecus/flanker/iox"
	"github.com/justapithecus/flanker/response"
	"github.com/justapithecus/flanker/trace"
)

// DebugCommand returns the debug command with subcommands.
// Debug commands are opt-in diagnostic tools. They are read-only.
func DebugCommand() *cli.Command {
	return &cli.Command{
		Name:  "debug",
		Usage: "Diagnostic tools (trace)",
		Subcommands: []*cli.Command{
			debugTraceCommand(),
		},
	}
}

// TraceRow is one decoded trace event in flat form.
type TraceRow struct {
	Seq        int64     `json:"seq"`
	Kind       string    `json:"kind"`
	State      string    `json:"state"`
	Phase      string    `json:"phase"`
	Index      int       `json:"index"`
	StimulusID string    `json:"stimulus_id"`
	Tick       int       `json:"tick"`
	Key        string    `json:"key"`
	ElapsedMs  int64     `json:"elapsed_ms"`
	At         time.Time `json:"at"`
}

func debugTraceCommand() *cli.Command {
	return &cli.Command{
		Name:      "trace",
		Usage:     "Decode a response window trace file",
		ArgsUsage: "<trace-file>",
		Flags: append(ReadOnlyFlags(),
			&cli.BoolFlag{
				Name:  "header",
				Usage: "Show the stream header only",
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Only show events of this kind (trial_start, armed, tick, key, blank, resolved)",
			},
		),
		Action: debugTraceAction,
	}
}

func debugTraceAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("trace file required", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for debug commands
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for debug commands", 1)
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open trace: %v", err), 1)
	}
	defer iox.DiscardClose(f)

	stream, err := trace.ReadAll(f)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to decode trace: %v", err), 1)
	}

	if c.Bool("header") {
		return r.Render(stream.Header)
	}
	return r.Render(traceRows(stream.Records, response.EventKind(c.String("kind"))))
}

// traceRows flattens records, keeping only kind when it is set.
func traceRows(records []trace.Record, kind response.EventKind) []TraceRow {
	rows := make([]TraceRow, 0, len(records))
	for _, rec := range records {
		if kind != "" && rec.Kind != kind {
			continue
		}
		rows = append(rows, TraceRow{
			Seq:        rec.Seq,
			Kind:       string(rec.Kind),
			State:      rec.State,
			Phase:      rec.Phase,
			Index:      rec.Index,
			StimulusID: rec.StimulusID,
			Tick:       rec.Tick,
			Key:        rec.Key,
			ElapsedMs:  rec.ElapsedMs,
			At:         rec.At,
		})
	}
	return rows
}

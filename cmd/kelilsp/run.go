package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"kelilsp/internal/overlay"
	"kelilsp/internal/protocol"
	"kelilsp/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <file.keli>",
	Short: "Run a Keli file and print its output next to the source lines",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().Int("width", 0, "truncate lines to this many columns (0 uses the terminal width)")
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]
	width, err := cmd.Flags().GetInt("width")
	if err != nil {
		return fmt.Errorf("failed to get width flag: %w", err)
	}
	if width <= 0 {
		width = terminalWidth(os.Stdout)
	}

	sess, err := newSession(cmd, filepath.Dir(path), "run")
	if err != nil {
		return err
	}
	defer sess.log.Sync() //nolint:errcheck

	doc, err := documentFor(path)
	if err != nil {
		return err
	}

	work := func(report reporter) ([]protocol.ExecutionFrame, error) {
		report(ui.Event{File: path, Status: ui.StatusWorking, Label: "run"})
		frames, err := sess.svc.Run(cmd.Context(), doc)
		if err != nil {
			report(ui.Event{File: path, Status: ui.StatusError})
			return nil, err
		}
		report(ui.Event{File: path, Status: ui.StatusDone})
		return frames, nil
	}
	tui, err := useTUI(cmd, "")
	if err != nil {
		return err
	}
	var frames []protocol.ExecutionFrame
	if tui {
		frames, err = runWithUI("run", []string{path}, work)
	} else {
		frames, err = work(discardProgress)
	}
	if err != nil {
		return err
	}

	sink := overlay.NewTerminalSink(cmd.OutOrStdout(), doc.Text, width, !sess.useColor)
	renderer := overlay.NewRenderer(sink, sess.log.Named("overlay").Zap())
	return renderer.Render(doc.URI, frames)
}

package main

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"kelilsp/internal/ui"
)

// reporter receives per-file progress. The plain variant drops events.
type reporter func(ui.Event)

func discardProgress(ui.Event) {}

type outcome[T any] struct {
	result T
	err    error
}

// runWithUI runs work in the background while a progress model renders its
// events. The model exits once work returns.
func runWithUI[T any](title string, files []string, work func(report reporter) (T, error)) (T, error) {
	events := make(chan ui.Event, 256)
	outcomeCh := make(chan outcome[T], 1)

	go func() {
		sink := ui.ChannelSink{Ch: events}
		res, err := work(sink.Report)
		outcomeCh <- outcome[T]{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	result := <-outcomeCh
	if uiErr != nil {
		return result.result, uiErr
	}
	return result.result, result.err
}

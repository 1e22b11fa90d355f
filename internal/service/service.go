// Package service pairs each compiler command with its result translator.
package service

import (
	"context"
	"strconv"

	"kelilsp/internal/compiler"
	"kelilsp/internal/protocol"
	"kelilsp/internal/translate"
)

// Invoker runs one compiler request and returns its raw stdout.
type Invoker interface {
	Invoke(ctx context.Context, req compiler.Request) ([]byte, error)
}

// Service exposes the three compiler commands as typed operations.
type Service struct {
	invoker Invoker
}

// New constructs a Service over an invoker, normally a *compiler.Bridge.
func New(invoker Invoker) *Service {
	return &Service{invoker: invoker}
}

// Analyze returns the diagnostics for doc. An error means the diagnostics
// are unknown; it never degrades into an empty list.
func (s *Service) Analyze(ctx context.Context, doc compiler.Document) ([]protocol.Diagnostic, error) {
	raw, err := s.invoker.Invoke(ctx, compiler.Request{Doc: doc, Command: compiler.Analyze})
	if err != nil {
		return nil, err
	}
	diags, err := translate.Diagnostics(raw)
	if err != nil {
		return nil, compiler.ParseError(compiler.Analyze, err)
	}
	return diags, nil
}

// Suggest asks the compiler for completions at pos, passed through verbatim.
func (s *Service) Suggest(ctx context.Context, doc compiler.Document, pos protocol.Position) ([]protocol.CompletionItem, error) {
	raw, err := s.invoker.Invoke(ctx, compiler.Request{
		Doc:     doc,
		Command: compiler.Suggest,
		Args:    []string{strconv.Itoa(pos.Line), strconv.Itoa(pos.Character)},
	})
	if err != nil {
		return nil, err
	}
	items, err := translate.Completions(raw)
	if err != nil {
		return nil, compiler.ParseError(compiler.Suggest, err)
	}
	return items, nil
}

// Run executes doc and returns its per-line output frames.
func (s *Service) Run(ctx context.Context, doc compiler.Document) ([]protocol.ExecutionFrame, error) {
	raw, err := s.invoker.Invoke(ctx, compiler.Request{
		Doc:     doc,
		Command: compiler.Run,
		Args:    []string{compiler.ShowLineNumberFlag},
	})
	if err != nil {
		return nil, err
	}
	frames, err := translate.Frames(raw)
	if err != nil {
		return nil, compiler.ParseError(compiler.Run, err)
	}
	return frames, nil
}

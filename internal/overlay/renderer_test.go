package overlay

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"kelilsp/internal/protocol"
)

type recordingSink struct {
	calls [][]protocol.Annotation
	err   error
}

func (s *recordingSink) SetAnnotations(_ string, annotations []protocol.Annotation) error {
	s.calls = append(s.calls, annotations)
	return s.err
}

func (s *recordingSink) last(t *testing.T) []protocol.Annotation {
	t.Helper()
	if len(s.calls) == 0 {
		t.Fatal("sink was never called")
	}
	return s.calls[len(s.calls)-1]
}

const uri = "file:///tmp/main.keli"

func TestRenderAnchorsAtPreviousLine(t *testing.T) {
	sink := &recordingSink{}
	r := NewRenderer(sink, nil)
	if err := r.Render(uri, []protocol.ExecutionFrame{{LineNumber: 3, OutputText: "hello"}}); err != nil {
		t.Fatalf("render: %v", err)
	}
	got := sink.last(t)
	want := protocol.Annotation{
		Range: protocol.Range{
			Start: protocol.Position{Line: 2},
			End:   protocol.Position{Line: 2},
		},
		ContentText:  "hello",
		HoverMessage: "hello",
	}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("annotations = %+v", got)
	}
}

func TestRenderTwiceIsIdempotent(t *testing.T) {
	sink := &recordingSink{}
	r := NewRenderer(sink, nil)
	frames := []protocol.ExecutionFrame{{LineNumber: 1, OutputText: "a"}, {LineNumber: 4, OutputText: "b"}}
	_ = r.Render(uri, frames)
	first := sink.last(t)
	_ = r.Render(uri, frames)
	if !reflect.DeepEqual(first, sink.last(t)) || len(sink.last(t)) != 2 {
		t.Fatalf("annotation set changed between renders: %+v vs %+v", first, sink.last(t))
	}
}

func TestDimKeepsLayout(t *testing.T) {
	sink := &recordingSink{}
	r := NewRenderer(sink, nil)
	_ = r.Render(uri, []protocol.ExecutionFrame{{LineNumber: 2, OutputText: "héllo 世界"}})
	if err := r.Dim(uri); err != nil {
		t.Fatalf("dim: %v", err)
	}
	got := sink.last(t)
	if len(got) != 1 {
		t.Fatalf("dim must keep the annotation set, got %+v", got)
	}
	if got[0].ContentText != strings.Repeat(".", 10) || !got[0].Stale {
		t.Fatalf("unexpected stale annotation %+v", got[0])
	}
	if got[0].Range.Start.Line != 1 {
		t.Fatalf("stale annotation moved to line %d", got[0].Range.Start.Line)
	}
	if got[0].HoverMessage != "héllo 世界" {
		t.Fatalf("hover must keep the previous output, got %q", got[0].HoverMessage)
	}
}

func TestDimWithoutFramesDoesNothing(t *testing.T) {
	sink := &recordingSink{}
	r := NewRenderer(sink, nil)
	if err := r.Dim(uri); err != nil {
		t.Fatalf("dim: %v", err)
	}
	_ = r.Render(uri, nil)
	calls := len(sink.calls)
	_ = r.Dim(uri)
	if len(sink.calls) != calls {
		t.Fatal("dimming an empty set must not redraw")
	}
}

func TestRendererKeepsOnlyTwoSets(t *testing.T) {
	r := NewRenderer(&recordingSink{}, nil)
	_ = r.Render(uri, []protocol.ExecutionFrame{{LineNumber: 1, OutputText: "one"}})
	_ = r.Render(uri, []protocol.ExecutionFrame{{LineNumber: 1, OutputText: "two"}})
	_ = r.Render(uri, []protocol.ExecutionFrame{{LineNumber: 1, OutputText: "three"}})
	prev := r.Previous(uri)
	if len(prev) != 1 || prev[0].OutputText != "two" {
		t.Fatalf("previous = %+v", prev)
	}
}

func TestFramesBeforeFirstLineAreSkipped(t *testing.T) {
	sink := &recordingSink{}
	r := NewRenderer(sink, nil)
	_ = r.Render(uri, []protocol.ExecutionFrame{{LineNumber: 0, OutputText: "x"}, {LineNumber: 1, OutputText: "y"}})
	got := sink.last(t)
	if len(got) != 1 || got[0].ContentText != "y" {
		t.Fatalf("annotations = %+v", got)
	}
}

func TestClearRemovesAnnotations(t *testing.T) {
	sink := &recordingSink{}
	r := NewRenderer(sink, nil)
	_ = r.Render(uri, []protocol.ExecutionFrame{{LineNumber: 1, OutputText: "y"}})
	if err := r.Clear(uri); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := sink.last(t); len(got) != 0 {
		t.Fatalf("expected empty set, got %+v", got)
	}
	if r.Previous(uri) != nil {
		t.Fatal("cleared document still has state")
	}
}

func TestSinkErrorIsReturned(t *testing.T) {
	boom := errors.New("closed")
	r := NewRenderer(&recordingSink{err: boom}, nil)
	if err := r.Render(uri, []protocol.ExecutionFrame{{LineNumber: 1}}); !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestTerminalSinkPlain(t *testing.T) {
	var buf bytes.Buffer
	sink := NewTerminalSink(&buf, "x = 1\nprint x\n", 0, true)
	r := NewRenderer(sink, nil)
	if err := r.Render("", []protocol.ExecutionFrame{{LineNumber: 2, OutputText: "1"}}); err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "1 │ x = 1\n2 │ print x  1\n"
	if buf.String() != want {
		t.Fatalf("output:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestTerminalSinkTruncates(t *testing.T) {
	var buf bytes.Buffer
	sink := NewTerminalSink(&buf, "print something long\n", 14, true)
	if err := sink.SetAnnotations("", []protocol.Annotation{Annotate(0, "output", false)}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if buf.String() != "1 │ print s...\n" {
		t.Fatalf("output %q", buf.String())
	}
}

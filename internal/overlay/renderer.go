// Package overlay turns execution frames into inline annotations.
package overlay

import (
	"strings"
	"sync"

	"fortio.org/safecast"
	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"kelilsp/internal/protocol"
)

// StaleRune replaces every display column of output that belongs to a
// previous run.
const StaleRune = "."

// Sink draws an annotation set for a document, replacing whatever it drew
// for that document before. An empty set removes all annotations.
type Sink interface {
	SetAnnotations(uri string, annotations []protocol.Annotation) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(uri string, annotations []protocol.Annotation) error

// SetAnnotations calls f.
func (f SinkFunc) SetAnnotations(uri string, annotations []protocol.Annotation) error {
	return f(uri, annotations)
}

type frameSets struct {
	current  []protocol.ExecutionFrame
	previous []protocol.ExecutionFrame
}

// Renderer keeps the current and previous frame set per document. Nothing
// older is retained.
type Renderer struct {
	mu   sync.Mutex
	sink Sink
	log  *zap.Logger
	docs map[string]*frameSets
}

// NewRenderer constructs a Renderer drawing onto sink.
func NewRenderer(sink Sink, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{sink: sink, log: logger, docs: make(map[string]*frameSets)}
}

// Render replaces the annotation set of uri with one annotation per frame.
func (r *Renderer) Render(uri string, frames []protocol.ExecutionFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sets := r.docs[uri]
	if sets == nil {
		sets = &frameSets{}
		r.docs[uri] = sets
	}
	sets.previous = sets.current
	sets.current = append([]protocol.ExecutionFrame(nil), frames...)
	return r.sink.SetAnnotations(uri, r.annotations(sets.current, false))
}

// Dim redraws the current frame set of uri with its output replaced by dots
// of the same width. It runs before a new run is dispatched so line layout
// does not shift while the run is in flight. Documents without frames are
// left alone.
func (r *Renderer) Dim(uri string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sets := r.docs[uri]
	if sets == nil || len(sets.current) == 0 {
		return nil
	}
	return r.sink.SetAnnotations(uri, r.annotations(sets.current, true))
}

// Clear forgets uri and removes its annotations.
func (r *Renderer) Clear(uri string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[uri]; !ok {
		return nil
	}
	delete(r.docs, uri)
	return r.sink.SetAnnotations(uri, nil)
}

// Previous returns the frame set drawn before the current one.
func (r *Renderer) Previous(uri string) []protocol.ExecutionFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sets := r.docs[uri]; sets != nil {
		return append([]protocol.ExecutionFrame(nil), sets.previous...)
	}
	return nil
}

func (r *Renderer) annotations(frames []protocol.ExecutionFrame, stale bool) []protocol.Annotation {
	out := make([]protocol.Annotation, 0, len(frames))
	for _, f := range frames {
		line, err := safecast.Conv[uint32](f.LineNumber - 1)
		if err != nil {
			r.log.Debug("frame outside the document", zap.Int("lineNumber", f.LineNumber))
			continue
		}
		out = append(out, Annotate(int(line), f.OutputText, stale))
	}
	return out
}

// Annotate builds the annotation for output at a zero-based line. The hover
// always carries the full output, dimmed or not.
func Annotate(line int, output string, stale bool) protocol.Annotation {
	text := output
	if stale {
		text = StaleText(output)
	}
	anchor := protocol.Position{Line: line, Character: 0}
	return protocol.Annotation{
		Range:        protocol.Range{Start: anchor, End: anchor},
		ContentText:  text,
		HoverMessage: output,
		Stale:        stale,
	}
}

// StaleText returns a run of dots as wide as output.
func StaleText(output string) string {
	return strings.Repeat(StaleRune, runewidth.StringWidth(output))
}

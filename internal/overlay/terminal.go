package overlay

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"kelilsp/internal/protocol"
)

// TerminalSink prints a document with its annotations drawn after each line.
type TerminalSink struct {
	mu     sync.Mutex
	out    io.Writer
	source string
	width  int // 0 disables truncation
	plain  bool

	outputStyle lipgloss.Style
	staleStyle  lipgloss.Style
	lineStyle   lipgloss.Style
}

// NewTerminalSink prints source to out. With plain set no styling is applied.
func NewTerminalSink(out io.Writer, source string, width int, plain bool) *TerminalSink {
	return &TerminalSink{
		out:         out,
		source:      source,
		width:       width,
		plain:       plain,
		outputStyle: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8")),
		staleStyle:  lipgloss.NewStyle().Faint(true),
		lineStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	}
}

// SetAnnotations redraws the whole document.
func (s *TerminalSink) SetAnnotations(_ string, annotations []protocol.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byLine := make(map[int][]string, len(annotations))
	for _, a := range annotations {
		text := a.ContentText
		if !s.plain {
			if a.Stale {
				text = s.staleStyle.Render(text)
			} else {
				text = s.outputStyle.Render(text)
			}
		}
		byLine[a.Range.Start.Line] = append(byLine[a.Range.Start.Line], text)
	}

	lines := strings.Split(strings.TrimSuffix(s.source, "\n"), "\n")
	gutter := len(fmt.Sprint(len(lines)))
	var b strings.Builder
	for i, line := range lines {
		number := fmt.Sprintf("%*d", gutter, i+1)
		if !s.plain {
			number = s.lineStyle.Render(number)
		}
		body := line
		if extra := byLine[i]; len(extra) > 0 {
			body += "  " + strings.Join(extra, " ")
		}
		fmt.Fprintf(&b, "%s │ %s\n", number, s.truncate(body, gutter+3))
	}
	_, err := io.WriteString(s.out, b.String())
	return err
}

func (s *TerminalSink) truncate(value string, used int) string {
	// styled text carries escape codes runewidth cannot measure
	if s.width <= 0 || !s.plain {
		return value
	}
	width := s.width - used
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}

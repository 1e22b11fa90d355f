package fix

import "kelilsp/internal/protocol"

// Fix is one quick-fix derived from a diagnostic.
type Fix struct {
	ID          string
	Title       string
	Command     string // editor command that applies the fix
	Diagnostic  protocol.Diagnostic
	Edit        protocol.QuickFixEdit
	IsPreferred bool
}

// Option mutates fix during construction.
type Option func(*Fix)

// Preferred marks fix as preferred suggestion.
func Preferred() Option {
	return func(f *Fix) {
		f.IsPreferred = true
	}
}

// WithCommand names the editor command that applies fix.
func WithCommand(command string) Option {
	return func(f *Fix) {
		f.Command = command
	}
}

func applyOptions(f Fix, opts []Option) Fix {
	for _, opt := range opts {
		if opt != nil {
			opt(&f)
		}
	}
	return f
}

// InsertText creates fix that inserts text at a single position.
func InsertText(title string, d protocol.Diagnostic, at protocol.Position, text string, opts ...Option) Fix {
	fix := Fix{
		Title:      title,
		Diagnostic: d,
		Edit:       protocol.QuickFixEdit{InsertPosition: at, InsertedText: text},
	}
	return applyOptions(fix, opts)
}

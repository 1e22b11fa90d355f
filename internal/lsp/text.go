package lsp

import "kelilsp/internal/protocol"

// applyChanges replays didChange events in order. A change without a range
// replaces the whole document.
func applyChanges(text string, changes []textDocumentContentChangeEvent) string {
	for _, change := range changes {
		if change.Range == nil {
			text = change.Text
			continue
		}
		text = protocol.ApplyEdit(text, protocol.TextEdit{Range: *change.Range, NewText: change.Text})
	}
	return text
}

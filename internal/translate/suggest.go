package translate

import (
	"fmt"
	"strings"

	"kelilsp/internal/protocol"
)

// MarkupMarkdown is the markup kind attached to compiler documentation.
const MarkupMarkdown = "markdown"

type rawCompletion struct {
	Label         string                      `json:"label"`
	Kind          protocol.CompletionItemKind `json:"kind"`
	Detail        string                      `json:"detail"`
	InsertText    string                      `json:"insertText"`
	Documentation *string                     `json:"documentation"`
}

// Completions parses suggest output. Labels starting with an underscore name
// internal symbols and are dropped.
func Completions(raw []byte) ([]protocol.CompletionItem, error) {
	var records []rawCompletion
	if err := decodeArray(raw, &records); err != nil {
		return nil, fmt.Errorf("suggest output: %w", err)
	}
	out := make([]protocol.CompletionItem, 0, len(records))
	for _, r := range records {
		if strings.HasPrefix(r.Label, "_") {
			continue
		}
		item := protocol.CompletionItem{
			Label:      r.Label,
			Kind:       r.Kind,
			Detail:     r.Detail,
			InsertText: r.InsertText,
		}
		if r.Documentation != nil {
			item.Documentation = &protocol.MarkupContent{Kind: MarkupMarkdown, Value: *r.Documentation}
		}
		out = append(out, item)
	}
	return out, nil
}

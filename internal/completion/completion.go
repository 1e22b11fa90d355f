// Package completion merges compiler suggestions with keyword and lexical
// fallbacks.
package completion

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"kelilsp/internal/compiler"
	"kelilsp/internal/protocol"
)

// Suggester is the compiler-backed completion source.
type Suggester interface {
	Suggest(ctx context.Context, doc compiler.Document, pos protocol.Position) ([]protocol.CompletionItem, error)
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_'’-]+`)

// Aggregator decides which completion candidates reach the editor.
type Aggregator struct {
	suggester Suggester
	log       *zap.Logger
}

// New constructs an Aggregator. A nil logger disables logging.
func New(suggester Suggester, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{suggester: suggester, log: logger}
}

// Complete returns candidates for the cursor at pos. It never fails: when
// the compiler cannot answer, keywords and document words are returned.
func (a *Aggregator) Complete(ctx context.Context, doc compiler.Document, pos protocol.Position) []protocol.CompletionItem {
	// the compiler expects the column before the cursor
	query := protocol.Position{Line: pos.Line, Character: pos.Character - 1}
	items, err := a.suggester.Suggest(ctx, doc, query)
	if err != nil {
		a.log.Debug("suggest failed, using fallback", zap.String("uri", doc.URI), zap.Error(err))
		return mergeCompletionItems(Keywords(), LexicalItems(doc.Text))
	}
	if hasPrecise(items) {
		return items
	}
	return mergeCompletionItems(mergeCompletionItems(items, Keywords()), LexicalItems(doc.Text))
}

func hasPrecise(items []protocol.CompletionItem) bool {
	for _, item := range items {
		switch item.Kind {
		case protocol.KindFunction, protocol.KindMethod, protocol.KindEnum,
			protocol.KindConstructor, protocol.KindProperty:
			return true
		}
	}
	return false
}

// LexicalItems returns one plain candidate per distinct word in text, in
// order of first appearance.
func LexicalItems(text string) []protocol.CompletionItem {
	words := wordPattern.FindAllString(text, -1)
	items := make([]protocol.CompletionItem, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		items = append(items, protocol.CompletionItem{Label: w, Kind: protocol.KindText})
	}
	return items
}

func mergeCompletionItems(primary, secondary []protocol.CompletionItem) []protocol.CompletionItem {
	if len(primary) == 0 {
		return secondary
	}
	if len(secondary) == 0 {
		return primary
	}
	seen := make(map[string]struct{}, len(primary))
	out := make([]protocol.CompletionItem, 0, len(primary)+len(secondary))
	for _, item := range primary {
		out = append(out, item)
		seen[item.Label] = struct{}{}
	}
	for _, item := range secondary {
		if _, ok := seen[item.Label]; ok {
			continue
		}
		out = append(out, item)
	}
	return out
}

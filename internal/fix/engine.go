package fix

import (
	"errors"
	"fmt"
	"sort"

	"kelilsp/internal/protocol"
)

// ErrNoFixes is returned when no fixes were applied.
var ErrNoFixes = errors.New("no applicable fixes found")

// ApplyMode determines selection strategy for fixes.
type ApplyMode uint8

const (
	ApplyModeOnce ApplyMode = iota
	ApplyModeAll
	ApplyModeID
)

// ApplyOptions configures how fixes are selected.
type ApplyOptions struct {
	Mode     ApplyMode
	TargetID string
}

// SkippedFix captures a skipped or failed fix with a reason.
type SkippedFix struct {
	ID     string
	Title  string
	Reason string
}

// ApplyResult aggregates applied fixes and skipped ones.
type ApplyResult struct {
	Applied []Fix
	Skipped []SkippedFix
}

type builder func(protocol.Diagnostic) (Fix, bool)

var builders = []builder{missingCasesFix}

// Provide returns every quick-fix available for diags, ordered by position.
// Fix IDs are synthesized when a builder does not set one.
func Provide(diags []protocol.Diagnostic) []Fix {
	fixes, _ := gatherCandidates(diags)
	return fixes
}

// gatherCandidates runs every builder over every diagnostic. Fixes sharing
// an ID with an earlier fix are skipped.
func gatherCandidates(diags []protocol.Diagnostic) ([]Fix, []SkippedFix) {
	type candidate struct {
		fix   Fix
		order int
	}
	cands := make([]candidate, 0)
	skips := make([]SkippedFix, 0)
	seen := make(map[string]struct{})
	order := 0
	for _, d := range diags {
		for idx, build := range builders {
			f, ok := build(d)
			if !ok {
				continue
			}
			if f.ID == "" {
				f.ID = fmt.Sprintf("%s-%d-%d-%d", f.Command, d.Range.Start.Line, d.Range.Start.Character, idx)
			}
			if _, dup := seen[f.ID]; dup {
				skips = append(skips, SkippedFix{ID: f.ID, Title: f.Title, Reason: "duplicate fix id"})
				continue
			}
			seen[f.ID] = struct{}{}
			cands = append(cands, candidate{fix: f, order: order})
			order++
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		pi, pj := cands[i].fix.Edit.InsertPosition, cands[j].fix.Edit.InsertPosition
		if pi.Line != pj.Line {
			return pi.Line < pj.Line
		}
		if pi.Character != pj.Character {
			return pi.Character < pj.Character
		}
		return cands[i].order < cands[j].order
	})
	fixes := make([]Fix, len(cands))
	for i, c := range cands {
		fixes[i] = c.fix
	}
	return fixes, skips
}

// Apply collects fixes from diags, selects a subset according to opts, and
// applies them to text.
func Apply(text string, diags []protocol.Diagnostic, opts ApplyOptions) (string, *ApplyResult, error) {
	result := &ApplyResult{
		Applied: make([]Fix, 0),
		Skipped: make([]SkippedFix, 0),
	}
	candidates, buildSkips := gatherCandidates(diags)
	result.Skipped = append(result.Skipped, buildSkips...)
	if len(candidates) == 0 {
		return text, result, ErrNoFixes
	}

	selected, selectionSkips := selectCandidates(candidates, opts)
	result.Skipped = append(result.Skipped, selectionSkips...)
	if len(selected) == 0 {
		return text, result, ErrNoFixes
	}

	out, applied, skipped := applyCandidates(text, selected)
	result.Applied = append(result.Applied, applied...)
	result.Skipped = append(result.Skipped, skipped...)
	if len(result.Applied) == 0 {
		return text, result, ErrNoFixes
	}
	return out, result, nil
}

func selectCandidates(candidates []Fix, opts ApplyOptions) ([]Fix, []SkippedFix) {
	switch opts.Mode {
	case ApplyModeID:
		for _, cand := range candidates {
			if cand.ID == opts.TargetID {
				return []Fix{cand}, nil
			}
		}
		return nil, []SkippedFix{{ID: opts.TargetID, Reason: "fix id not found"}}
	case ApplyModeAll:
		return candidates, nil
	case ApplyModeOnce:
		for _, cand := range candidates {
			if cand.IsPreferred {
				return []Fix{cand}, nil
			}
		}
		return candidates[:1], nil
	default:
		return nil, nil
	}
}

// applyCandidates inserts from the end of text backwards so earlier offsets
// stay valid. Insertions sharing an offset keep their candidate order.
func applyCandidates(text string, selected []Fix) (string, []Fix, []SkippedFix) {
	type placed struct {
		fix    Fix
		offset int
		order  int
	}
	lineCount := 1
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lineCount++
		}
	}
	edits := make([]placed, 0, len(selected))
	skipped := make([]SkippedFix, 0)
	for i, f := range selected {
		pos := f.Edit.InsertPosition
		if pos.Line < 0 || pos.Line >= lineCount || pos.Character < 0 {
			skipped = append(skipped, SkippedFix{ID: f.ID, Title: f.Title, Reason: "edit position out of range"})
			continue
		}
		edits = append(edits, placed{fix: f, offset: protocol.OffsetAt(text, pos), order: i})
	}
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].offset != edits[j].offset {
			return edits[i].offset > edits[j].offset
		}
		return edits[i].order > edits[j].order
	})
	applied := make([]Fix, len(edits))
	for i, e := range edits {
		text = text[:e.offset] + e.fix.Edit.InsertedText + text[e.offset:]
		applied[len(edits)-1-i] = e.fix
	}
	return text, applied, skipped
}

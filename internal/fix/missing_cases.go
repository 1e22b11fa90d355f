package fix

import (
	"strings"

	"kelilsp/internal/protocol"
)

const (
	// MissingCasesMarker is the first line of an exhaustiveness diagnostic.
	MissingCasesMarker = "Missing cases"
	// CommandAddMissingCases is the editor command applying the fix.
	CommandAddMissingCases = "keli.addMissingCases"
	// TitleAddMissingCases is shown in the editor's quick-fix menu.
	TitleAddMissingCases = "Add missing cases"

	caseBody = "(undefined)"
)

// MissingCases builds the insertion that adds one case skeleton per missing
// case named in the message of d. It reports false when d is not an
// exhaustiveness diagnostic.
func MissingCases(d protocol.Diagnostic) (protocol.QuickFixEdit, bool) {
	lines := strings.Split(d.Message, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) != MissingCasesMarker {
		return protocol.QuickFixEdit{}, false
	}
	blocks := make([]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		blocks = append(blocks, "case("+name+"):\n\t\t"+caseBody)
	}
	if len(blocks) == 0 {
		return protocol.QuickFixEdit{}, false
	}
	return protocol.QuickFixEdit{
		InsertPosition: protocol.Position{
			Line:      d.Range.End.Line,
			Character: d.Range.End.Character + 1,
		},
		InsertedText: "\n\t" + strings.Join(blocks, "\n\t"),
	}, true
}

func missingCasesFix(d protocol.Diagnostic) (Fix, bool) {
	edit, ok := MissingCases(d)
	if !ok {
		return Fix{}, false
	}
	return InsertText(TitleAddMissingCases, d, edit.InsertPosition, edit.InsertedText,
		WithCommand(CommandAddMissingCases), Preferred()), true
}

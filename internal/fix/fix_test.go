package fix

import (
	"errors"
	"testing"

	"kelilsp/internal/protocol"
)

func missingDiag(line, start, end int, cases ...string) protocol.Diagnostic {
	msg := MissingCasesMarker
	for _, c := range cases {
		msg += "\n  " + c
	}
	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: start},
			End:   protocol.Position{Line: line, Character: end},
		},
		Severity: protocol.SeverityError,
		Source:   protocol.SourceTag,
		Message:  msg,
	}
}

func TestMissingCasesText(t *testing.T) {
	d := missingDiag(2, 4, 10, "A", "B")
	edit, ok := MissingCases(d)
	if !ok {
		t.Fatal("expected a quick-fix")
	}
	want := "\n\tcase(A):\n\t\t(undefined)\n\tcase(B):\n\t\t(undefined)"
	if edit.InsertedText != want {
		t.Fatalf("inserted text = %q, want %q", edit.InsertedText, want)
	}
	if edit.InsertPosition != (protocol.Position{Line: 2, Character: 11}) {
		t.Fatalf("insert position = %+v", edit.InsertPosition)
	}
}

func TestMissingCasesIgnoresOtherDiagnostics(t *testing.T) {
	cases := []string{
		"type mismatch",
		"Missing cases",
		"Missing cases\n   \n",
		"missing cases\n  A",
		"Note\nMissing cases\n  A",
	}
	for _, msg := range cases {
		if _, ok := MissingCases(protocol.Diagnostic{Message: msg}); ok {
			t.Errorf("%q: unexpected quick-fix", msg)
		}
	}
}

func TestMissingCasesSkipsBlankLines(t *testing.T) {
	edit, ok := MissingCases(protocol.Diagnostic{Message: "Missing cases\n  A\n\n  B  "})
	if !ok {
		t.Fatal("expected a quick-fix")
	}
	if edit.InsertedText != "\n\tcase(A):\n\t\t(undefined)\n\tcase(B):\n\t\t(undefined)" {
		t.Fatalf("inserted text = %q", edit.InsertedText)
	}
}

func TestProvideSetsCommandAndID(t *testing.T) {
	diags := []protocol.Diagnostic{
		{Message: "unrelated"},
		missingDiag(0, 0, 3, "Red"),
	}
	fixes := Provide(diags)
	if len(fixes) != 1 {
		t.Fatalf("expected 1 fix, got %+v", fixes)
	}
	f := fixes[0]
	if f.Command != CommandAddMissingCases || f.Title != TitleAddMissingCases || !f.IsPreferred {
		t.Fatalf("unexpected fix metadata: %+v", f)
	}
	if f.ID == "" {
		t.Fatal("expected synthesized id")
	}
}

func TestGatherCandidatesSkipsDuplicateFixIDs(t *testing.T) {
	d := missingDiag(1, 0, 5, "A")
	fixes, skips := gatherCandidates([]protocol.Diagnostic{d, d})
	if len(fixes) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(fixes))
	}
	if len(skips) != 1 || skips[0].Reason != "duplicate fix id" {
		t.Fatalf("expected duplicate fix skip, got %+v", skips)
	}
}

func TestApplyAllInsertsAfterRangeEnd(t *testing.T) {
	text := "c = choice\nf = c.match\nend\n"
	// the ranges end one character before the insertion point
	diags := []protocol.Diagnostic{
		missingDiag(1, 4, 10, "Red", "Blue"),
		missingDiag(0, 4, 9, "X"),
	}
	out, result, err := Apply(text, diags, ApplyOptions{Mode: ApplyModeAll})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := "c = choice\n\tcase(X):\n\t\t(undefined)\n" +
		"f = c.match\n\tcase(Red):\n\t\t(undefined)\n\tcase(Blue):\n\t\t(undefined)\nend\n"
	if out != want {
		t.Fatalf("output:\n%q\nwant:\n%q", out, want)
	}
	if len(result.Applied) != 2 || result.Applied[0].Edit.InsertPosition.Line != 0 {
		t.Fatalf("unexpected applied fixes: %+v", result.Applied)
	}
}

func TestApplyOnceAndByID(t *testing.T) {
	text := "a\nb\n"
	diags := []protocol.Diagnostic{missingDiag(0, 0, 0, "A"), missingDiag(1, 0, 0, "B")}

	out, result, err := Apply(text, diags, ApplyOptions{Mode: ApplyModeOnce})
	if err != nil {
		t.Fatalf("apply once: %v", err)
	}
	if out != "a\n\tcase(A):\n\t\t(undefined)\nb\n" || len(result.Applied) != 1 {
		t.Fatalf("unexpected once output %q", out)
	}

	target := Provide(diags)[1].ID
	out, _, err = Apply(text, diags, ApplyOptions{Mode: ApplyModeID, TargetID: target})
	if err != nil {
		t.Fatalf("apply by id: %v", err)
	}
	if out != "a\nb\n\tcase(B):\n\t\t(undefined)\n" {
		t.Fatalf("unexpected id output %q", out)
	}

	_, result, err = Apply(text, diags, ApplyOptions{Mode: ApplyModeID, TargetID: "nope"})
	if !errors.Is(err, ErrNoFixes) || len(result.Skipped) != 1 {
		t.Fatalf("expected ErrNoFixes with a skip, got %v %+v", err, result)
	}
}

func TestApplyNoCandidates(t *testing.T) {
	out, _, err := Apply("x", []protocol.Diagnostic{{Message: "boom"}}, ApplyOptions{Mode: ApplyModeAll})
	if !errors.Is(err, ErrNoFixes) || out != "x" {
		t.Fatalf("expected ErrNoFixes and untouched text, got %q %v", out, err)
	}
}

func TestApplySkipsOutOfRange(t *testing.T) {
	_, result, err := Apply("one line", []protocol.Diagnostic{missingDiag(5, 0, 1, "A")}, ApplyOptions{Mode: ApplyModeAll})
	if !errors.Is(err, ErrNoFixes) {
		t.Fatalf("expected ErrNoFixes, got %v", err)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Reason != "edit position out of range" {
		t.Fatalf("unexpected skips %+v", result.Skipped)
	}
}

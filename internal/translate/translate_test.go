package translate

import (
	"errors"
	"reflect"
	"testing"

	"kelilsp/internal/protocol"
)

func TestDiagnosticsEmptyArray(t *testing.T) {
	diags, err := Diagnostics([]byte("[]\n"))
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if diags == nil || len(diags) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", diags)
	}
}

func TestDiagnosticsTrimAndStamp(t *testing.T) {
	raw := `[{"range":{"start":{"line":1,"character":2},"end":{"line":1,"character":9}},"severity":2,"message":"  unused binding \n"}]`
	diags, err := Diagnostics([]byte(raw))
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	want := protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: 1, Character: 2},
			End:   protocol.Position{Line: 1, Character: 9},
		},
		Severity: protocol.SeverityWarning,
		Source:   protocol.SourceTag,
		Message:  "unused binding",
	}
	if len(diags) != 1 || diags[0] != want {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
}

func TestDiagnosticsKeepsInnerNewlines(t *testing.T) {
	raw := `[{"range":{"start":{"line":0,"character":0},"end":{"line":0,"character":5}},"severity":1,"message":"Missing cases\n  A\n  B\n"}]`
	diags, err := Diagnostics([]byte(raw))
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if diags[0].Message != "Missing cases\n  A\n  B" {
		t.Fatalf("unexpected message %q", diags[0].Message)
	}
	if diags[0].Source == "" {
		t.Fatal("diagnostic without source tag")
	}
}

func TestDiagnosticsUnwrapsOneStringLevel(t *testing.T) {
	raw := `"[{\"range\":{\"start\":{\"line\":0,\"character\":0},\"end\":{\"line\":0,\"character\":1}},\"message\":\"x\"}]"`
	diags, err := Diagnostics([]byte(raw))
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if len(diags) != 1 || diags[0].Severity != protocol.SeverityError {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
}

func TestDiagnosticsRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"garbage":       "Segmentation fault",
		"object":        `{"message":"x"}`,
		"empty":         "",
		"double string": `"\"[]\""`,
		"missing range": `[{"message":"x"}]`,
	}
	for name, raw := range cases {
		if diags, err := Diagnostics([]byte(raw)); err == nil {
			t.Errorf("%s: expected error, got %+v", name, diags)
		}
	}
	if _, err := Diagnostics([]byte(`{}`)); !errors.Is(err, ErrNotArray) {
		t.Fatalf("expected ErrNotArray, got %v", err)
	}
}

func TestCompletionsMarkdownAndUnderscore(t *testing.T) {
	raw := `[
		{"label":"length","kind":"Function","detail":"Int","documentation":"Number of *items*."},
		{"label":"_internal","kind":3,"detail":"hidden"},
		{"label":"Point","kind":22,"detail":"type","insertText":"Point($1)"}
	]`
	items, err := Completions([]byte(raw))
	if err != nil {
		t.Fatalf("completions: %v", err)
	}
	want := []protocol.CompletionItem{
		{
			Label:         "length",
			Kind:          protocol.KindFunction,
			Detail:        "Int",
			Documentation: &protocol.MarkupContent{Kind: MarkupMarkdown, Value: "Number of *items*."},
		},
		{Label: "Point", Kind: protocol.KindStruct, Detail: "type", InsertText: "Point($1)"},
	}
	if !reflect.DeepEqual(items, want) {
		t.Fatalf("unexpected items:\n got %+v\nwant %+v", items, want)
	}
}

func TestCompletionsRejectsUnknownKindName(t *testing.T) {
	if _, err := Completions([]byte(`[{"label":"x","kind":"Gizmo"}]`)); err == nil {
		t.Fatal("expected error for unknown kind name")
	}
}

func TestFramesParsesPrefixedLines(t *testing.T) {
	raw := "XXXXX3 = hello\n#OUT#1 =   spaced out  \n\nabcde12=x=y\n"
	frames, err := Frames([]byte(raw))
	if err != nil {
		t.Fatalf("frames: %v", err)
	}
	want := []protocol.ExecutionFrame{
		{LineNumber: 3, OutputText: "hello"},
		{LineNumber: 1, OutputText: "spaced out  "},
		{LineNumber: 12, OutputText: "x=y"},
	}
	if !reflect.DeepEqual(frames, want) {
		t.Fatalf("unexpected frames:\n got %+v\nwant %+v", frames, want)
	}
}

func TestFramesAcceptsCRLF(t *testing.T) {
	frames, err := Frames([]byte("XXXXX3 = hello\r\n\r\nXXXXX4 = bye\r\n"))
	if err != nil {
		t.Fatalf("frames: %v", err)
	}
	want := []protocol.ExecutionFrame{
		{LineNumber: 3, OutputText: "hello"},
		{LineNumber: 4, OutputText: "bye"},
	}
	if !reflect.DeepEqual(frames, want) {
		t.Fatalf("unexpected frames:\n got %+v\nwant %+v", frames, want)
	}
}

func TestFramesEmptyOutput(t *testing.T) {
	frames, err := Frames(nil)
	if err != nil {
		t.Fatalf("frames: %v", err)
	}
	if frames == nil || len(frames) != 0 {
		t.Fatalf("expected empty frames, got %#v", frames)
	}
}

func TestFramesFatalOnMalformedLine(t *testing.T) {
	cases := []string{
		"XXXXX3 = ok\nXXXXX4 no equals\n",
		"XXXXXfour = nope\n",
		"XXX\n",
	}
	for _, raw := range cases {
		if frames, err := Frames([]byte(raw)); err == nil {
			t.Errorf("%q: expected error, got %+v", raw, frames)
		}
	}
}

// Package protocol holds the editor-facing value types shared by the
// compiler bridge, the result translators and the language server.
//
// The JSON shapes follow the Language Server Protocol so values can be
// forwarded to the editor without conversion.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SourceTag is stamped on every diagnostic that comes from the compiler.
const SourceTag = "keli"

// Position is a zero-based line/character pair. Character counts UTF-16
// code units, as editors do.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open span between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Severity mirrors LSP DiagnosticSeverity.
type Severity int

const (
	SeverityError       Severity = 1
	SeverityWarning     Severity = 2
	SeverityInformation Severity = 3
	SeverityHint        Severity = 4
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "ERROR"
	case SeverityWarning:
		return "WARNING"
	case SeverityInformation:
		return "INFO"
	case SeverityHint:
		return "HINT"
	}
	return "UNKNOWN"
}

// Diagnostic is a compiler-reported issue.
type Diagnostic struct {
	Range    Range    `json:"range"`
	Severity Severity `json:"severity,omitempty"`
	Code     string   `json:"code,omitempty"`
	Source   string   `json:"source"`
	Message  string   `json:"message"`
}

// CompletionItemKind mirrors LSP CompletionItemKind.
type CompletionItemKind int

const (
	KindText          CompletionItemKind = 1
	KindMethod        CompletionItemKind = 2
	KindFunction      CompletionItemKind = 3
	KindConstructor   CompletionItemKind = 4
	KindField         CompletionItemKind = 5
	KindVariable      CompletionItemKind = 6
	KindClass         CompletionItemKind = 7
	KindInterface     CompletionItemKind = 8
	KindModule        CompletionItemKind = 9
	KindProperty      CompletionItemKind = 10
	KindUnit          CompletionItemKind = 11
	KindValue         CompletionItemKind = 12
	KindEnum          CompletionItemKind = 13
	KindKeyword       CompletionItemKind = 14
	KindSnippet       CompletionItemKind = 15
	KindColor         CompletionItemKind = 16
	KindFile          CompletionItemKind = 17
	KindReference     CompletionItemKind = 18
	KindFolder        CompletionItemKind = 19
	KindEnumMember    CompletionItemKind = 20
	KindConstant      CompletionItemKind = 21
	KindStruct        CompletionItemKind = 22
	KindEvent         CompletionItemKind = 23
	KindOperator      CompletionItemKind = 24
	KindTypeParameter CompletionItemKind = 25
)

var kindNames = map[string]CompletionItemKind{
	"text":          KindText,
	"method":        KindMethod,
	"function":      KindFunction,
	"constructor":   KindConstructor,
	"field":         KindField,
	"variable":      KindVariable,
	"class":         KindClass,
	"interface":     KindInterface,
	"module":        KindModule,
	"property":      KindProperty,
	"unit":          KindUnit,
	"value":         KindValue,
	"enum":          KindEnum,
	"keyword":       KindKeyword,
	"snippet":       KindSnippet,
	"color":         KindColor,
	"file":          KindFile,
	"reference":     KindReference,
	"folder":        KindFolder,
	"enummember":    KindEnumMember,
	"constant":      KindConstant,
	"struct":        KindStruct,
	"event":         KindEvent,
	"operator":      KindOperator,
	"typeparameter": KindTypeParameter,
}

// ParseCompletionItemKind maps a kind name such as "Function" to its value.
func ParseCompletionItemKind(name string) (CompletionItemKind, bool) {
	kind, ok := kindNames[strings.ToLower(strings.TrimSpace(name))]
	return kind, ok
}

// UnmarshalJSON accepts either the numeric LSP value or the kind name.
func (k *CompletionItemKind) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*k = CompletionItemKind(n)
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("completion kind: %w", err)
	}
	kind, ok := ParseCompletionItemKind(name)
	if !ok {
		return fmt.Errorf("unknown completion kind %q", name)
	}
	*k = kind
	return nil
}

// InsertTextFormat mirrors LSP InsertTextFormat.
type InsertTextFormat int

const (
	InsertTextPlain   InsertTextFormat = 1
	InsertTextSnippet InsertTextFormat = 2
)

// MarkupContent is documentation tagged with its markup language.
type MarkupContent struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// CompletionItem is one completion candidate.
type CompletionItem struct {
	Label            string             `json:"label"`
	Kind             CompletionItemKind `json:"kind,omitempty"`
	Detail           string             `json:"detail,omitempty"`
	InsertText       string             `json:"insertText,omitempty"`
	InsertTextFormat InsertTextFormat   `json:"insertTextFormat,omitempty"`
	Documentation    *MarkupContent     `json:"documentation,omitempty"`
}

// ExecutionFrame is one line of output produced by running a program.
type ExecutionFrame struct {
	LineNumber int    `json:"lineNumber"`
	OutputText string `json:"output"`
}

// TextEdit replaces Range with NewText. An empty range is an insertion.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// QuickFixEdit is a single insertion derived from a diagnostic.
type QuickFixEdit struct {
	InsertPosition Position `json:"insertPosition"`
	InsertedText   string   `json:"insertedText"`
}

// TextEdit converts the quick-fix into a zero-width edit.
func (q QuickFixEdit) TextEdit() TextEdit {
	return TextEdit{
		Range:   Range{Start: q.InsertPosition, End: q.InsertPosition},
		NewText: q.InsertedText,
	}
}

// Annotation is an inline decoration drawn after the text of a line.
type Annotation struct {
	Range        Range  `json:"range"`
	ContentText  string `json:"contentText"`
	HoverMessage string `json:"hoverMessage"`
	Stale        bool   `json:"stale,omitempty"`
}

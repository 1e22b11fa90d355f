package completion

import "kelilsp/internal/protocol"

// keywords are offered whenever the compiler has nothing precise to say.
var keywords = []protocol.CompletionItem{
	{
		Label:            "choice.",
		Kind:             protocol.KindKeyword,
		Detail:           "Declare a tagged union.",
		InsertText:       "tags.\n\tcase($1)",
		InsertTextFormat: protocol.InsertTextSnippet,
	},
	{
		Label:  "$",
		Kind:   protocol.KindKeyword,
		Detail: "This keyword is use for declaring object types or object expression.",
	},
	{
		Label:            "module.import()",
		Kind:             protocol.KindKeyword,
		Detail:           "This keyword is use for importing module",
		InsertText:       `module.import("$1")`,
		InsertTextFormat: protocol.InsertTextSnippet,
	},
}

// Keywords returns a copy of the static keyword list.
func Keywords() []protocol.CompletionItem {
	return append([]protocol.CompletionItem(nil), keywords...)
}

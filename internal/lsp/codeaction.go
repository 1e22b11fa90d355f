package lsp

import (
	"encoding/json"
	"fmt"

	"kelilsp/internal/fix"
	"kelilsp/internal/protocol"
)

const codeActionQuickFix = "quickfix"

func (s *Server) handleCodeAction(msg *rpcMessage) error {
	var params codeActionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	uri := canonicalURI(params.TextDocument.URI)
	actions := make([]codeAction, 0)
	for _, f := range s.quickFix(params.Context.Diagnostics) {
		actions = append(actions, codeAction{
			Title:       f.Title,
			Kind:        codeActionQuickFix,
			Diagnostics: []protocol.Diagnostic{f.Diagnostic},
			IsPreferred: f.IsPreferred,
			Command: &command{
				Title:     f.Title,
				Command:   f.Command,
				Arguments: []any{uri, f.Diagnostic.Range, f.Diagnostic.Message},
			},
		})
	}
	return s.sendResponse(msg.ID, actions)
}

func (s *Server) handleExecuteCommand(msg *rpcMessage) error {
	var params executeCommandParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	if params.Command != fix.CommandAddMissingCases {
		return s.sendError(msg.ID, codeInvalidParams, fmt.Sprintf("unknown command %q", params.Command))
	}
	uri, d, err := decodeFixArguments(params.Arguments)
	if err != nil {
		return s.sendError(msg.ID, codeInvalidParams, err.Error())
	}
	var edit *protocol.TextEdit
	for _, f := range s.quickFix([]protocol.Diagnostic{d}) {
		if f.Command == params.Command {
			e := f.Edit.TextEdit()
			edit = &e
			break
		}
	}
	if edit == nil {
		return s.sendError(msg.ID, codeInvalidParams, "diagnostic has no missing cases")
	}
	apply := applyWorkspaceEditParams{
		Label: fix.TitleAddMissingCases,
		Edit: workspaceEdit{
			Changes: map[string][]protocol.TextEdit{uri: {*edit}},
		},
	}
	if err := s.sendRequest("workspace/applyEdit", apply); err != nil {
		return err
	}
	return s.sendResponse(msg.ID, nil)
}

// decodeFixArguments reads the (document, range, message) triple attached
// to a quick-fix command.
func decodeFixArguments(args []json.RawMessage) (string, protocol.Diagnostic, error) {
	if len(args) != 3 {
		return "", protocol.Diagnostic{}, fmt.Errorf("expected 3 arguments, got %d", len(args))
	}
	var (
		uri string
		d   protocol.Diagnostic
	)
	if err := json.Unmarshal(args[0], &uri); err != nil {
		return "", d, fmt.Errorf("document: %w", err)
	}
	if err := json.Unmarshal(args[1], &d.Range); err != nil {
		return "", d, fmt.Errorf("range: %w", err)
	}
	if err := json.Unmarshal(args[2], &d.Message); err != nil {
		return "", d, fmt.Errorf("message: %w", err)
	}
	return canonicalURI(uri), d, nil
}

package lsp

import (
	"encoding/json"

	"kelilsp/internal/protocol"
)

func (s *Server) handleCompletion(msg *rpcMessage) error {
	var params completionParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "invalid params")
		}
	}
	uri := canonicalURI(params.TextDocument.URI)
	doc, ok := s.document(uri)
	if !ok || s.complete == nil {
		return s.sendResponse(msg.ID, completionList{Items: []protocol.CompletionItem{}})
	}
	// answered in the background so a slow compiler does not stall the
	// message loop
	s.goTracked(func() {
		items := s.complete(s.baseCtx, doc, params.Position)
		if items == nil {
			items = []protocol.CompletionItem{}
		}
		if err := s.sendResponse(msg.ID, completionList{IsIncomplete: false, Items: items}); err != nil {
			s.logf("failed to send completion: %v", err)
		}
	})
	return nil
}

// handleCompletionResolve returns the item unchanged; every field is
// already filled in by the completion response.
func (s *Server) handleCompletionResolve(msg *rpcMessage) error {
	var item protocol.CompletionItem
	if err := json.Unmarshal(msg.Params, &item); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	return s.sendResponse(msg.ID, item)
}

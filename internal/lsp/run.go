package lsp

import (
	"encoding/json"

	"kelilsp/internal/compiler"
	"kelilsp/internal/protocol"
)

// handleRunThisFile executes a document and draws its output inline. The
// previous output is dimmed first so lines keep their layout while the run
// is in flight.
func (s *Server) handleRunThisFile(msg *rpcMessage) error {
	var params runThisFileParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeInvalidParams, "invalid params")
		}
		s.logf("invalid %s params: %v", MethodRunThisFile, err)
		return nil
	}
	uri := canonicalURI(params.URI)
	var doc compiler.Document
	if params.Text != nil {
		doc = documentFor(uri, *params.Text)
	} else {
		var ok bool
		if doc, ok = s.document(uri); !ok {
			return s.runFailed(msg, "document is not open: "+params.URI)
		}
	}
	if s.run == nil {
		return s.runFailed(msg, "running is not configured")
	}
	if err := s.renderer.Dim(uri); err != nil {
		s.logf("failed to dim annotations: %v", err)
	}
	epoch := s.openEpoch(uri)
	s.goTracked(func() {
		frames, err := s.run(s.baseCtx, doc)
		if err != nil {
			if sendErr := s.runFailed(msg, err.Error()); sendErr != nil {
				s.logf("failed to report run failure: %v", sendErr)
			}
			return
		}
		if err := s.renderIfOpen(uri, epoch, frames); err != nil {
			s.logf("failed to draw annotations: %v", err)
		}
		if err := s.runCompleted(msg, frames); err != nil {
			s.logf("failed to report run result: %v", err)
		}
	})
	return nil
}

func (s *Server) openEpoch(uri string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openEpochs[uri]
}

// renderIfOpen draws frames unless the document was closed or reopened
// since the run was dispatched. Runs of documents that were never open
// (text sent with the request) are drawn as long as that is still true.
func (s *Server) renderIfOpen(uri string, epoch uint64, frames []protocol.ExecutionFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openEpochs[uri] != epoch {
		s.log.Debugf("dropping annotations for %s: document closed during the run", uri)
		return nil
	}
	return s.renderer.Render(uri, frames)
}

// runCompleted sends the frames as a JSON string, which is what the editor
// extension parses.
func (s *Server) runCompleted(msg *rpcMessage, frames []protocol.ExecutionFrame) error {
	payload, err := json.Marshal(frames)
	if err != nil {
		return err
	}
	if err := s.sendNotification(MethodRunThisFileCompleted, string(payload)); err != nil {
		return err
	}
	if len(msg.ID) > 0 {
		return s.sendResponse(msg.ID, frames)
	}
	return nil
}

func (s *Server) runFailed(msg *rpcMessage, text string) error {
	if err := s.sendNotification("window/showMessage", showMessageParams{Type: messageTypeError, Message: text}); err != nil {
		return err
	}
	if err := s.sendNotification(MethodRunThisFileFailed, text); err != nil {
		return err
	}
	if len(msg.ID) > 0 {
		return s.sendError(msg.ID, codeInternalError, text)
	}
	return nil
}

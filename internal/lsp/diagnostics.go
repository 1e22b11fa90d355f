package lsp

import (
	"context"
	"sync/atomic"
	"time"

	"kelilsp/internal/protocol"
)

// scheduleDiagnostics restarts the debounce timer of uri. Only the newest
// scheduled validation of a document may publish.
func (s *Server) scheduleDiagnostics(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdownRequested || s.analyze == nil {
		return
	}
	seq := s.nextSeqLocked(uri)
	s.inflight.Add(1)
	s.timers[uri] = time.AfterFunc(s.debounce, func() {
		defer s.inflight.Done()
		s.runDiagnostics(uri, seq)
	})
}

// nextSeqLocked supersedes any pending or running validation of uri.
func (s *Server) nextSeqLocked(uri string) uint64 {
	s.forgetValidationLocked(uri)
	seq := atomic.AddUint64(&s.analysisSeq, 1)
	s.seqs[uri] = seq
	return seq
}

func (s *Server) forgetValidationLocked(uri string) {
	if cancel := s.cancels[uri]; cancel != nil {
		cancel()
		delete(s.cancels, uri)
	}
	if timer := s.timers[uri]; timer != nil {
		// a stopped timer never runs its func, so it cannot call Done
		if timer.Stop() {
			s.inflight.Done()
		}
		delete(s.timers, uri)
	}
	delete(s.seqs, uri)
}

func (s *Server) isLatestSeq(uri string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seq != 0 && s.seqs[uri] == seq
}

// validate runs diagnostics for uri immediately.
func (s *Server) validate(uri string) {
	s.mu.Lock()
	seq := s.nextSeqLocked(uri)
	s.mu.Unlock()
	s.runDiagnostics(uri, seq)
}

func (s *Server) runDiagnostics(uri string, seq uint64) {
	if s.analyze == nil || !s.isLatestSeq(uri, seq) {
		return
	}
	doc, ok := s.document(uri)
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()
	s.mu.Lock()
	if s.seqs[uri] != seq {
		s.mu.Unlock()
		return
	}
	s.cancels[uri] = cancel
	settings := s.settingsLocked(uri)
	s.mu.Unlock()

	if settings.Trace {
		s.logf("analysis start: seq=%d uri=%s", seq, uri)
	}
	diags, err := s.analyze(ctx, doc)

	s.mu.Lock()
	if s.seqs[uri] == seq {
		delete(s.cancels, uri)
	}
	s.mu.Unlock()
	if !s.isLatestSeq(uri, seq) {
		if settings.Trace {
			s.logf("analysis discard: seq=%d uri=%s reason=stale", seq, uri)
		}
		return
	}
	if err != nil {
		// unknown diagnostics never replace what the editor already shows
		s.log.Warnw("diagnostics failed", "uri", uri, "error", err)
		return
	}
	if limit := settings.MaxNumberOfProblems; limit > 0 && len(diags) > limit {
		diags = diags[:limit]
	}
	s.publishDiagnostics(uri, seq, diags)
}

func (s *Server) publishDiagnostics(uri string, seq uint64, diags []protocol.Diagnostic) {
	s.mu.Lock()
	if s.seqs[uri] != seq {
		s.mu.Unlock()
		return
	}
	s.published[uri] = struct{}{}
	s.mu.Unlock()
	if err := s.sendPublish(uri, diags); err != nil {
		s.logf("failed to publish diagnostics: %v", err)
	}
}

func (s *Server) clearPublishedDiagnostics() {
	s.mu.Lock()
	if len(s.published) == 0 {
		s.mu.Unlock()
		return
	}
	prev := s.published
	s.published = make(map[string]struct{})
	s.mu.Unlock()
	for uri := range prev {
		if err := s.sendPublish(uri, nil); err != nil {
			s.logf("failed to clear diagnostics: %v", err)
		}
	}
}

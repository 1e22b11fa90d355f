package lsp

import (
	"encoding/json"
	"sort"

	"golang.org/x/sync/errgroup"
)

// revalidateLimit bounds concurrent compiler processes after a settings change.
const revalidateLimit = 4

type documentSettings struct {
	MaxNumberOfProblems int
	Trace               bool
}

// settingsLocked returns the cached settings of uri, filling the cache from
// the global settings on first use.
func (s *Server) settingsLocked(uri string) documentSettings {
	if cached, ok := s.docSettings[uri]; ok {
		return cached
	}
	settings := s.globalSettings
	if _, open := s.openDocs[uri]; open {
		s.docSettings[uri] = settings
	}
	return settings
}

func (s *Server) handleDidChangeConfiguration(msg *rpcMessage) error {
	if len(msg.Params) == 0 {
		return nil
	}
	var params didChangeConfigurationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	s.applySettings(params.Settings)
	s.revalidateAll()
	return nil
}

func (s *Server) applySettings(raw json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docSettings = make(map[string]documentSettings)
	if len(raw) == 0 {
		return
	}
	var settings lspSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return
	}
	if n := settings.Keli.MaxNumberOfProblems; n != nil && *n > 0 {
		s.globalSettings.MaxNumberOfProblems = *n
	}
	if settings.Keli.Trace != nil {
		s.globalSettings.Trace = *settings.Keli.Trace
	}
}

// revalidateAll re-runs diagnostics for every open document in the
// background.
func (s *Server) revalidateAll() {
	s.mu.Lock()
	uris := make([]string, 0, len(s.openDocs))
	for uri := range s.openDocs {
		uris = append(uris, uri)
	}
	s.mu.Unlock()
	if len(uris) == 0 {
		return
	}
	sort.Strings(uris)
	s.goTracked(func() {
		var g errgroup.Group
		g.SetLimit(revalidateLimit)
		for _, uri := range uris {
			uri := uri
			g.Go(func() error {
				s.validate(uri)
				return nil
			})
		}
		_ = g.Wait()
	})
}

package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"kelilsp/internal/compiler"
	"kelilsp/internal/fix"
	"kelilsp/internal/overlay"
	"kelilsp/internal/protocol"
	"kelilsp/internal/version"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// Custom methods exchanged with the editor extension.
const (
	MethodRunThisFile          = "keli/runThisFile"
	MethodRunThisFileCompleted = "keli/runThisFileCompleted"
	MethodRunThisFileFailed    = "keli/runThisFileFailed"
	MethodAnnotations          = "keli/annotations"
)

// AnalyzeFunc returns the diagnostics of one document. An error means the
// diagnostics are unknown.
type AnalyzeFunc func(ctx context.Context, doc compiler.Document) ([]protocol.Diagnostic, error)

// CompleteFunc returns completion candidates at pos. It does not fail.
type CompleteFunc func(ctx context.Context, doc compiler.Document, pos protocol.Position) []protocol.CompletionItem

// RunFunc executes a document.
type RunFunc func(ctx context.Context, doc compiler.Document) ([]protocol.ExecutionFrame, error)

// QuickFixFunc derives quick-fixes from diagnostics.
type QuickFixFunc func(diags []protocol.Diagnostic) []fix.Fix

// ServerOptions configures LSP server behavior.
type ServerOptions struct {
	Debounce    time.Duration
	MaxProblems int
	Analyze     AnalyzeFunc
	Complete    CompleteFunc
	Run         RunFunc
	QuickFix    QuickFixFunc
	// Overlay receives execution annotations. By default they are sent to
	// the editor as keli/annotations notifications.
	Overlay overlay.Sink
	Logger  *zap.Logger
}

// Server handles stdio JSON-RPC for the Keli language server.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex
	mu     sync.Mutex

	openDocs  map[string]string
	versions  map[string]int
	published map[string]struct{}
	// openEpochs changes on every open and is dropped on close, so work
	// dispatched before a close can tell that its document went away.
	openEpochs map[string]uint64
	openSeq    uint64

	shutdownRequested bool
	debounce          time.Duration
	timers            map[string]*time.Timer
	cancels           map[string]context.CancelFunc
	seqs              map[string]uint64
	analysisSeq       uint64
	requestSeq        int64

	globalSettings documentSettings
	docSettings    map[string]documentSettings

	analyze  AnalyzeFunc
	complete CompleteFunc
	run      RunFunc
	quickFix QuickFixFunc
	renderer *overlay.Renderer

	baseCtx  context.Context
	inflight sync.WaitGroup
	log      *zap.SugaredLogger
}

// NewServer constructs a new LSP server.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 150 * time.Millisecond
	}
	maxProblems := opts.MaxProblems
	if maxProblems <= 0 {
		maxProblems = 1000
	}
	quickFix := opts.QuickFix
	if quickFix == nil {
		quickFix = fix.Provide
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		in:             bufio.NewReader(in),
		out:            bufio.NewWriter(out),
		openDocs:       make(map[string]string),
		versions:       make(map[string]int),
		published:      make(map[string]struct{}),
		openEpochs:     make(map[string]uint64),
		debounce:       debounce,
		timers:         make(map[string]*time.Timer),
		cancels:        make(map[string]context.CancelFunc),
		seqs:           make(map[string]uint64),
		globalSettings: documentSettings{MaxNumberOfProblems: maxProblems},
		docSettings:    make(map[string]documentSettings),
		analyze:        opts.Analyze,
		complete:       opts.Complete,
		run:            opts.Run,
		quickFix:       quickFix,
		baseCtx:        context.Background(),
		log:            logger.Named("lsp").Sugar(),
	}
	sink := opts.Overlay
	if sink == nil {
		sink = overlay.SinkFunc(s.sendAnnotations)
	}
	s.renderer = overlay.NewRenderer(sink, logger.Named("overlay"))
	return s
}

// Run serves LSP requests until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	defer s.inflight.Wait()
	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logf("failed to parse message: %v", err)
			continue
		}
		if msg.Method == "" {
			// responses to server-initiated requests
			if msg.Error != nil {
				s.logf("client error for request %s: %s", string(msg.ID), msg.Error.Message)
			}
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

// Wait blocks until background validation and runs have finished.
func (s *Server) Wait() {
	s.inflight.Wait()
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		if s.shutdownRequested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(msg)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/completion":
		return s.handleCompletion(msg)
	case "completionItem/resolve":
		return s.handleCompletionResolve(msg)
	case "textDocument/codeAction":
		return s.handleCodeAction(msg)
	case MethodRunThisFile:
		return s.handleRunThisFile(msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeMethodNotFound, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "invalid params")
		}
	}
	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    2,
				Save: saveOptions{
					IncludeText: true,
				},
			},
			CompletionProvider: &completionOptions{
				TriggerCharacters: []string{"."},
				ResolveProvider:   true,
			},
			CodeActionProvider: &codeActionOptions{
				CodeActionKinds: []string{codeActionQuickFix},
			},
			ExecuteCommandProvider: &executeCommandOptions{
				Commands: []string{fix.CommandAddMissingCases},
			},
		},
		ServerInfo: &serverInfo{Name: "kelilsp", Version: version.Version},
	}
	return s.sendResponse(msg.ID, result)
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	for uri := range s.openDocs {
		s.forgetValidationLocked(uri)
	}
	s.mu.Unlock()
	s.clearPublishedDiagnostics()
	return s.sendResponse(msg.ID, nil)
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	s.openDocs[uri] = params.TextDocument.Text
	s.versions[uri] = params.TextDocument.Version
	s.openSeq++
	s.openEpochs[uri] = s.openSeq
	s.mu.Unlock()
	s.scheduleDiagnostics(uri)
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	text := applyChanges(s.openDocs[uri], params.ContentChanges)
	s.openDocs[uri] = text
	oldVersion := s.versions[uri]
	s.versions[uri] = params.TextDocument.Version
	trace := s.settingsLocked(uri).Trace
	s.mu.Unlock()
	if trace {
		s.logf("didChange: uri=%s version=%d->%d", uri, oldVersion, params.TextDocument.Version)
	}
	s.scheduleDiagnostics(uri)
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	if params.Text != nil {
		s.openDocs[uri] = *params.Text
	}
	s.mu.Unlock()
	s.scheduleDiagnostics(uri)
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	delete(s.openDocs, uri)
	delete(s.versions, uri)
	delete(s.openEpochs, uri)
	delete(s.docSettings, uri)
	s.forgetValidationLocked(uri)
	_, hadDiagnostics := s.published[uri]
	delete(s.published, uri)
	s.mu.Unlock()
	if hadDiagnostics {
		if err := s.sendPublish(uri, nil); err != nil {
			s.logf("failed to clear diagnostics: %v", err)
		}
	}
	if err := s.renderer.Clear(uri); err != nil {
		s.logf("failed to clear annotations: %v", err)
	}
	return nil
}

func (s *Server) document(uri string) (compiler.Document, bool) {
	s.mu.Lock()
	text, ok := s.openDocs[uri]
	s.mu.Unlock()
	if !ok {
		return compiler.Document{}, false
	}
	return documentFor(uri, text), true
}

// goTracked runs fn in the background; Wait and Run block until it returns.
func (s *Server) goTracked(fn func()) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		fn()
	}()
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}
	return s.send(msg)
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": rpcError{
			Code:    code,
			Message: message,
		},
	}
	return s.send(msg)
}

func (s *Server) sendNotification(method string, params any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	}
	return s.send(msg)
}

// sendRequest issues a server-initiated request. Replies are only logged.
func (s *Server) sendRequest(method string, params any) error {
	id := atomic.AddInt64(&s.requestSeq, 1)
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(strconv.FormatInt(id, 10)),
		"method":  method,
		"params":  params,
	}
	return s.send(msg)
}

func (s *Server) sendPublish(uri string, list []protocol.Diagnostic) error {
	if list == nil {
		list = []protocol.Diagnostic{}
	}
	return s.sendNotification("textDocument/publishDiagnostics", publishDiagnosticsParams{
		URI:         uri,
		Diagnostics: list,
	})
}

func (s *Server) sendAnnotations(uri string, annotations []protocol.Annotation) error {
	if annotations == nil {
		annotations = []protocol.Annotation{}
	}
	return s.sendNotification(MethodAnnotations, annotationsParams{URI: uri, Annotations: annotations})
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *Server) logf(format string, args ...any) {
	s.log.Infof(format, args...)
}

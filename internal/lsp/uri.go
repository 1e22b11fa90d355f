package lsp

import (
	"net/url"
	"path/filepath"

	"kelilsp/internal/compiler"
)

func uriToPath(uri string) string {
	if uri == "" {
		return ""
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "" && parsed.Scheme != "file" {
		return ""
	}
	path := parsed.Path
	if parsed.Scheme == "" {
		path = uri
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	path = filepath.FromSlash(path)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path
}

func pathToURI(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// canonicalURI normalizes file URIs so the same document always maps to the
// same key. Other schemes are kept as sent.
func canonicalURI(uri string) string {
	if path := uriToPath(uri); path != "" {
		return pathToURI(path)
	}
	return uri
}

// documentFor builds the compiler view of a document. Unsaved documents
// without a file path get their scratch file in the temp directory.
func documentFor(uri, text string) compiler.Document {
	doc := compiler.Document{URI: uri, Text: text}
	if path := uriToPath(uri); path != "" {
		doc.Dir = filepath.Dir(path)
	}
	return doc
}

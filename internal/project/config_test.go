package project

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadFindsManifestInParent(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[compiler]
path = "/opt/keli/bin/keli"
timeout = "3s"

[lsp]
debounce = "0s"
max_problems = 7
`)
	nested := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	manifest, ok, err := Load(nested)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("expected manifest to be found")
	}
	if manifest.Root != root {
		t.Fatalf("expected root %q, got %q", root, manifest.Root)
	}
	cfg := manifest.Config
	if cfg.Compiler.Path != "/opt/keli/bin/keli" {
		t.Fatalf("unexpected compiler path %q", cfg.Compiler.Path)
	}
	if cfg.Compiler.Timeout.Duration != 3*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.Compiler.Timeout)
	}
	if cfg.Compiler.ScratchPrefix != DefaultScratchPrefix {
		t.Fatalf("expected default scratch prefix, got %q", cfg.Compiler.ScratchPrefix)
	}
	if cfg.LSP.Debounce.Duration != 0 || cfg.LSP.MaxProblems != 7 {
		t.Fatalf("unexpected lsp config %+v", cfg.LSP)
	}
}

func TestLoadWithoutManifestReturnsDefaults(t *testing.T) {
	manifest, ok, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatal("did not expect a manifest")
	}
	if manifest.Config != DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", manifest.Config)
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "[compiler]\npaht = \"typo\"\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "[compiler]\ntimeout = \"soon\"\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestLoadConfigRejectsZeroTimeout(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "[compiler]\ntimeout = \"0s\"\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for a zero compiler timeout")
	}
}

func TestApplyEnvOverridesCompiler(t *testing.T) {
	t.Setenv(EnvCompiler, "/usr/local/bin/keli")
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	if cfg.Compiler.Path != "/usr/local/bin/keli" {
		t.Fatalf("expected env override, got %q", cfg.Compiler.Path)
	}
}

package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bdobrica/quickrizz/internal/quickrizz/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.Execute()
	return out.String(), err
}

// isolate points every path at a temp dir and clears settings the host
// environment could leak in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("QR_DB", filepath.Join(dir, "qrizz.db"))
	t.Setenv("QR_COMMITS", filepath.Join(dir, "qr_commits.json"))
	t.Setenv("QR_SLANG", "")
	t.Setenv("QR_LOG_LEVEL", "error")
	t.Setenv("OPENAI_API_KEY", "")
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "quickrizz ") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestReindexAndRecall(t *testing.T) {
	dir := isolate(t)
	data := `{"so what are you up to":{"items":[{"resp":"plotting my weekend","stage":"banter","heat":1,"rating":"Y","reason":"","ts":1}]}}`
	if err := os.WriteFile(filepath.Join(dir, "qr_commits.json"), []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "reindex")
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if !strings.HasPrefix(out, "1 keys") {
		t.Errorf("reindex output %q", out)
	}

	out, err = run(t, "recall", "so", "what", "are", "you", "up", "to")
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if !strings.Contains(out, "- plotting my weekend") {
		t.Errorf("recall output %q", out)
	}

	out, err = run(t, "recall", "completely unrelated words here")
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if !strings.Contains(out, "no similar messages") {
		t.Errorf("recall output %q", out)
	}
}

func TestReindex_CorruptStore(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, "qr_commits.json"), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "reindex"); err == nil {
		t.Fatal("expected an error for a corrupt store")
	}
}

func TestServe_RequiresAPIKey(t *testing.T) {
	isolate(t)
	if _, err := run(t, "serve"); !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

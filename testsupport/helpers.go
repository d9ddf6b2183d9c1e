// Package testsupport helps applications test their router files, renderers
// and templates against a real conductor Server without a listener.
package testsupport

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

// NewTestLogger returns a logger that discards all output.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// WriteFile writes content to name under dir, creating parent directories,
// and returns the file's path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("testsupport: mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("testsupport: write %s: %v", name, err)
	}
	return path
}

// RouterDocument encodes routes as a router file declaring version. Keys
// are written in sorted order.
func RouterDocument(t testing.TB, version string, routes map[string]any) string {
	t.Helper()
	doc := make(map[string]any, len(routes)+1)
	for k, v := range routes {
		doc[k] = v
	}
	doc["$version"] = version
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("testsupport: encode router: %v", err)
	}
	return string(data)
}

// ReadBody reads and closes a response body.
func ReadBody(t testing.TB, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("testsupport: read body: %v", err)
	}
	return string(data)
}

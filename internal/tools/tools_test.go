package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeSearcher struct {
	query  string
	result string
	err    error
}

func (f *fakeSearcher) Call(ctx context.Context, input string) (string, error) {
	f.query = input
	return f.result, f.err
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	fs, err := NewFilesystemTool(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemTool failed: %v", err)
	}
	r.Register(fs)
	r.Register(&SearchTool{client: &fakeSearcher{}})

	if got := r.Names(); len(got) != 2 || got[0] != "filesystem" || got[1] != "search" {
		t.Errorf("Unexpected names %v", got)
	}
	if got := r.Select([]string{"search", "missing"}); len(got) != 1 || got[0].Name() != "search" {
		t.Errorf("Unexpected selection %v", got)
	}
	if got := r.Select(nil); len(got) != 2 {
		t.Errorf("Expected all tools for empty selection, got %d", len(got))
	}
	if !strings.Contains(r.Catalog(), "- search: ") {
		t.Errorf("Catalog missing search line: %q", r.Catalog())
	}
}

func TestSearchTool_Execute(t *testing.T) {
	fake := &fakeSearcher{result: "1. Go release notes"}
	s := &SearchTool{client: fake, MaxChars: 100}

	out, err := s.Execute(context.Background(), `{"query": "  go 1.25  "}`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if fake.query != "go 1.25" || out != "1. Go release notes" {
		t.Errorf("Unexpected call %q -> %q", fake.query, out)
	}

	if _, err := s.Execute(context.Background(), `{"query": ""}`); err == nil {
		t.Error("Expected empty query to fail")
	}

	fake.err = errors.New("rate limited")
	if _, err := s.Execute(context.Background(), `{"query": "x"}`); err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("Expected wrapped search error, got %v", err)
	}
}

func TestScraperTool_Execute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Launch notes</title></head><body>
<article><h1>Launch notes</h1>
<p>The rocket launched on schedule and reached orbit after nine minutes of flight.</p>
<p>Engineers confirmed every stage separated cleanly and the payload deployed its panels.</p>
<p>The next mission is planned for the spring window, pending the usual reviews.</p>
</article><script>alert("x")</script></body></html>`))
	}))
	defer srv.Close()

	s := NewScraperTool(0)
	out, err := s.Execute(context.Background(), `{"url": "`+srv.URL+`"}`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "reached orbit") {
		t.Errorf("Expected article text, got %q", out)
	}
	if strings.Contains(out, "alert(") {
		t.Errorf("Expected scripts stripped, got %q", out)
	}
}

func TestScraperTool_RejectsNonWebURL(t *testing.T) {
	s := NewScraperTool(0)
	if _, err := s.Execute(context.Background(), `{"url": "file:///etc/passwd"}`); err == nil {
		t.Error("Expected file URL to be rejected")
	}
}

func TestFilesystemTool(t *testing.T) {
	fs, err := NewFilesystemTool(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemTool failed: %v", err)
	}
	ctx := context.Background()

	if _, err := fs.Execute(ctx, `{"command": "write", "filename": "notes/a.md", "content": "# A"}`); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, err := fs.Execute(ctx, `{"command": "read", "filename": "notes/a.md"}`)
	if err != nil || got != "# A" {
		t.Errorf("read returned %q, %v", got, err)
	}
	list, err := fs.Execute(ctx, `{"command": "list", "filename": "notes"}`)
	if err != nil || !strings.Contains(list, "[file] a.md") {
		t.Errorf("list returned %q, %v", list, err)
	}

	// Escapes are clamped to the root.
	if _, err := fs.Execute(ctx, `{"command": "read", "filename": "../../etc/passwd"}`); err == nil {
		t.Error("Expected read outside workspace to fail")
	}
}

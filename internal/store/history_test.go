package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"
)

func newTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	s, err := NewHistoryStore(filepath.Join(t.TempDir(), "karya.db"))
	if err != nil {
		t.Fatalf("NewHistoryStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHistoryStore_GetHistory(t *testing.T) {
	s := newTestStore(t)
	for _, m := range []struct{ role, content string }{
		{"human", "first"},
		{"ai", "second"},
		{"human", "third"},
	} {
		if err := s.AddMessage("chat-1", m.role, m.content); err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
	}
	if err := s.AddMessage("chat-2", "human", "other chat"); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}

	history, err := s.GetHistory("chat-1", 2)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(history))
	}
	if history[0].Role != llms.ChatMessageTypeAI || history[1].Role != llms.ChatMessageTypeHuman {
		t.Errorf("Unexpected roles %s, %s", history[0].Role, history[1].Role)
	}
	if text := history[1].Parts[0].(llms.TextContent).Text; text != "third" {
		t.Errorf("Expected chronological order ending in 'third', got %q", text)
	}
}

func TestHistoryStore_Runs(t *testing.T) {
	s := newTestStore(t)
	older := Run{ID: "run-1", ChatID: "cli", Goal: "old goal", Status: RunCompleted, Deliverable: "d1", Plan: `{}`, CreatedAt: time.Now().Add(-time.Hour).UTC()}
	newer := Run{ID: "run-2", ChatID: "cli", Goal: "new goal", Status: RunAborted, Error: "aborted", Plan: `{"id":"run-2"}`, CreatedAt: time.Now().UTC()}
	for _, r := range []Run{older, newer} {
		if err := s.SaveRun(r); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}

	got, err := s.GetRun("run-2")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != RunAborted || got.Plan != `{"id":"run-2"}` || got.Error != "aborted" {
		t.Errorf("Unexpected run %+v", got)
	}

	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-2" {
		t.Errorf("Expected newest first, got %+v", runs)
	}

	if _, err := s.GetRun("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

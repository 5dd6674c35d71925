package session

import (
	"os"
	"testing"
	"time"
)

func TestStoreSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := SessionRecord{
		SessionID: "abc123",
		CreatedAt: time.Now().Truncate(time.Second),
		ModelID:   "gpt-4o",
		Turns:     1,
		ConversationHistory: []PersistedMessage{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	}

	if err := store.Save(rec); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.Load(rec.SessionID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.SessionID != rec.SessionID || loaded.Turns != 1 || loaded.ModelID != "gpt-4o" {
		t.Errorf("round-tripped record doesn't match: %+v", loaded)
	}
	if len(loaded.ConversationHistory) != 2 || loaded.ConversationHistory[1].Content != "hello" {
		t.Errorf("expected conversation history persisted, got %+v", loaded.ConversationHistory)
	}
}

func TestStoreLoadNewestPicksLatestMtime(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = store.Save(SessionRecord{SessionID: "older"})
	time.Sleep(10 * time.Millisecond)
	_ = store.Save(SessionRecord{SessionID: "newer"})

	rec, err := store.LoadNewest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.SessionID != "newer" {
		t.Errorf("expected newest record by mtime, got %q", rec.SessionID)
	}
}

func TestStoreSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Save(SessionRecord{SessionID: "x"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading persist dir: %v", err)
	}
	if len(files) != 1 || files[0].Name() != "session_x.json" {
		t.Errorf("expected only the renamed final file after save, got %v", files)
	}
	entries, _ := store.LoadNewest()
	if entries.SessionID != "x" {
		t.Errorf("expected saved record to be readable immediately, got %+v", entries)
	}
}

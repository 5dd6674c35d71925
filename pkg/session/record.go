package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// SessionRecord is the durable, replayable transcript of a session. The
// system prompt is deliberately not persisted — it is reconstructed from
// configuration on load, never stored alongside user data. ConversationHistory
// is the actual message log (user/assistant/tool roles only); Turns is just
// the count of turns that produced it, not an array of turn objects.
type SessionRecord struct {
	SessionID           string             `json:"session_id"`
	CreatedAt           time.Time          `json:"created_at"`
	ModelID             string             `json:"model_id"`
	Turns               int                `json:"turns"`
	ConversationHistory []PersistedMessage `json:"conversation_history"`
}

// PersistedMessage is the on-disk shape of one reasoning.Message: just role
// and content, since ToolCallID/ToolCalls are only meaningful within a
// single live round-trip to the model.
type PersistedMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store persists SessionRecords to PersistDir using an atomic
// write-temp-then-rename, and loads the newest record by file mtime.
type Store struct {
	Dir string
}

// NewStore returns a Store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session: creating persist dir: %w", err)
	}
	return &Store{Dir: dir}, nil
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.Dir, fmt.Sprintf("session_%s.json", sessionID))
}

// Save writes rec atomically: marshal to a temp file in the same
// directory, then rename over the final path, so a crash mid-write never
// leaves a half-written transcript.
func (s *Store) Save(rec SessionRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshaling record: %w", err)
	}

	final := s.path(rec.SessionID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("session: writing temp file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("session: renaming temp file: %w", err)
	}
	return nil
}

// Load reads back the record for sessionID.
func (s *Store) Load(sessionID string) (SessionRecord, error) {
	var rec SessionRecord
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		return rec, fmt.Errorf("session: reading record: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("session: decoding record: %w", err)
	}
	return rec, nil
}

// LoadNewest returns the most recently modified session record in Dir, for
// resuming the last conversation on restart.
func (s *Store) LoadNewest() (SessionRecord, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("session: listing persist dir: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{path: filepath.Join(s.Dir, e.Name()), modTime: info.ModTime()})
	}
	if len(candidates) == 0 {
		return SessionRecord{}, fmt.Errorf("session: no records in %s", s.Dir)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].modTime.After(candidates[j].modTime) })

	data, err := os.ReadFile(candidates[0].path)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("session: reading newest record: %w", err)
	}
	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return SessionRecord{}, fmt.Errorf("session: decoding newest record: %w", err)
	}
	return rec, nil
}

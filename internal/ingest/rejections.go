package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Rejection is one scraped message that failed validation.
type Rejection struct {
	Source string `json:"source"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// RejectionStore appends rejected messages to day-partitioned JSONL files so
// scraper bugs can be diagnosed after the fact.
type RejectionStore struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewRejectionStore returns a store rooted at dir.
func NewRejectionStore(dir string) *RejectionStore {
	return &RejectionStore{dir: dir, now: time.Now}
}

// Write appends one rejection record.
func (s *RejectionStore) Write(rej Rejection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	fpath := filepath.Join(s.dir, fmt.Sprintf("rejections_%s.jsonl", s.now().Format("2006-01-02")))
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	record := map[string]any{
		"source":    rej.Source,
		"id":        rej.ID,
		"reason":    rej.Reason,
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"priceradar-backend/internal/model"
)

// Archive keeps an append-only JSONL trail of every accepted snapshot,
// partitioned by source and day. The live stores only hold the latest
// snapshot per product; the archive is what a later batch job would replay.
type Archive struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewArchive returns an archive rooted at dir.
func NewArchive(dir string) *Archive {
	return &Archive{dir: dir, now: time.Now}
}

// Append writes one accepted snapshot.
func (a *Archive) Append(tag model.SourceTag, rec *model.ProductRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	dir := filepath.Join(a.dir, string(tag))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	fpath := filepath.Join(dir, fmt.Sprintf("%s.jsonl", a.now().Format("2006-01-02")))
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

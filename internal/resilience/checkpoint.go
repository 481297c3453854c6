package resilience

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/idkny/sale-sofia/internal/core/domain"
)

// checkpointFile mirrors domain.Checkpoint in a JSON-friendly shape
// (Scraped as a slice rather than a set-shaped map).
type checkpointFile struct {
	UpdatedAt string   `json:"updated_at"`
	Scraped   []string `json:"scraped"`
	Pending   []string `json:"pending"`
}

// CheckpointStore persists per-session progress to disk so a crashed or
// restarted scrape job can resume instead of re-scraping from scratch.
// Writes use the write-tmp-then-rename pattern so a reader never observes
// a half-written file.
type CheckpointStore struct {
	dir       string
	batchSize int

	mu      sync.Mutex
	pending map[string]int // session -> un-flushed increments since last save
}

func NewCheckpointStore(dir string, batchSize int) *CheckpointStore {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &CheckpointStore{dir: dir, batchSize: batchSize, pending: make(map[string]int)}
}

func (c *CheckpointStore) path(session string) string {
	return filepath.Join(c.dir, session+".json")
}

// Load reads a session's checkpoint, or a fresh empty one if none exists.
func (c *CheckpointStore) Load(session string) (domain.Checkpoint, error) {
	raw, err := os.ReadFile(c.path(session))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NewCheckpoint(), nil
		}
		return domain.Checkpoint{}, fmt.Errorf("checkpoint: read %s: %w", session, err)
	}

	var f checkpointFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return domain.Checkpoint{}, fmt.Errorf("checkpoint: decode %s: %w", session, err)
	}

	cp := domain.NewCheckpoint()
	for _, url := range f.Scraped {
		cp.Scraped[url] = struct{}{}
	}
	cp.Pending = f.Pending
	return cp, nil
}

// Save atomically persists cp for session, regardless of batching state.
func (c *CheckpointStore) Save(session string, cp domain.Checkpoint) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: mkdir %s: %w", c.dir, err)
	}

	scraped := make([]string, 0, len(cp.Scraped))
	for url := range cp.Scraped {
		scraped = append(scraped, url)
	}

	f := checkpointFile{
		UpdatedAt: cp.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Scraped:   scraped,
		Pending:   cp.Pending,
	}

	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: encode %s: %w", session, err)
	}

	target := c.path(session)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("checkpoint: rename %s: %w", tmp, err)
	}
	return nil
}

// MarkScraped records url as done and flushes to disk every batchSize
// calls for this session, returning whether a flush happened.
func (c *CheckpointStore) MarkScraped(session string, cp *domain.Checkpoint, url string) (flushed bool, err error) {
	cp.Scraped[url] = struct{}{}
	cp.UpdatedAt = time.Now()

	c.mu.Lock()
	c.pending[session]++
	shouldFlush := c.pending[session] >= c.batchSize
	if shouldFlush {
		c.pending[session] = 0
	}
	c.mu.Unlock()

	if !shouldFlush {
		return false, nil
	}
	return true, c.Save(session, *cp)
}

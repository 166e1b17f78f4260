package engine

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// EvidenceStore writes card screenshots to a directory served under a
// public prefix. Names embed a nanosecond stamp that is strictly increasing
// per store, so references never collide even under a frozen clock.
type EvidenceStore struct {
	dir    string
	prefix string
	now    func() time.Time

	mu   sync.Mutex
	last int64
}

// NewEvidenceStore returns a store rooted at dir. The directory is created
// on first write.
func NewEvidenceStore(dir, publicPrefix string, now func() time.Time) *EvidenceStore {
	if now == nil {
		now = time.Now
	}
	return &EvidenceStore{dir: dir, prefix: publicPrefix, now: now}
}

// Name reserves a unique file name for an offer.
func (s *EvidenceStore) Name(citySlug, from, to string, price float64) string {
	if from == "" {
		from = "anytime"
	}
	if to == "" {
		to = "anytime"
	}
	return fmt.Sprintf("flight-%s-%s-%s-%s-%d.png",
		citySlug, from, to, strconv.FormatFloat(price, 'f', -1, 64), s.stamp())
}

func (s *EvidenceStore) stamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UnixNano()
	if ts <= s.last {
		ts = s.last + 1
	}
	s.last = ts
	return ts
}

// Save writes png under name and returns its public reference.
func (s *EvidenceStore) Save(name string, png []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), png, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path.Join(s.prefix, name), nil
}

// Dir returns the directory screenshots are written to.
func (s *EvidenceStore) Dir() string { return s.dir }

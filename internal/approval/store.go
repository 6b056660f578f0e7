package approval

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

const (
	ledgerVersion  = 1
	ledgerFileName = "approvals.json"
)

// ledger is the on-disk document: every request ever made in the workspace.
type ledger struct {
	Version  int       `json:"version"`
	NextID   int64     `json:"next_id"`
	Requests []Request `json:"requests"`
}

// issueID hands out the next sequential id. A ledger written without
// next_id resumes after the highest numeric id it holds.
func (l *ledger) issueID() string {
	if l.NextID <= 0 {
		l.NextID = 1
		for _, req := range l.Requests {
			if n, err := strconv.ParseInt(req.ID, 10, 64); err == nil && n >= l.NextID {
				l.NextID = n + 1
			}
		}
	}
	id := strconv.FormatInt(l.NextID, 10)
	l.NextID++
	return id
}

func (l *ledger) find(id string) *Request {
	for i := range l.Requests {
		if l.Requests[i].ID == id {
			return &l.Requests[i]
		}
	}
	return nil
}

// fileStore serialises access to the ledger file. Every mutation is a
// read-modify-write under one lock, replaced atomically on disk.
type fileStore struct {
	mu   sync.Mutex
	path string
}

func newFileStore(stateDir string) *fileStore {
	return &fileStore{path: filepath.Join(stateDir, ledgerFileName)}
}

// view runs fn on a snapshot of the ledger.
func (s *fileStore) view(fn func(*ledger)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.load()
	if err != nil {
		return err
	}
	fn(l)
	return nil
}

// update runs fn on the ledger and persists it when fn reports a change.
func (s *fileStore) update(fn func(*ledger) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.load()
	if err != nil {
		return err
	}
	changed, err := fn(l)
	if err != nil || !changed {
		return err
	}
	return s.save(l)
}

func (s *fileStore) load() (*ledger, error) {
	l := &ledger{Version: ledgerVersion}
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read approval ledger: %w", err)
	}
	if err := json.Unmarshal(raw, l); err != nil {
		return nil, fmt.Errorf("parse approval ledger %s: %w", s.path, err)
	}
	return l, nil
}

func (s *fileStore) save(l *ledger) error {
	l.Version = ledgerVersion
	if l.Requests == nil {
		l.Requests = []Request{}
	}
	payload, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encode approval ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ledgerFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	// Windows refuses to rename over an existing file.
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return fmt.Errorf("replace approval ledger: %w", err)
		}
		if err := os.Rename(tmp.Name(), s.path); err != nil {
			return fmt.Errorf("replace approval ledger: %w", err)
		}
	}
	return nil
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/bytedance/sonic"
	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
)

var safeFileID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

type fileRecord struct {
	Summary string `json:"summary"`
	Version int64  `json:"version"`
}

// FileStore keeps one JSON file per conversation under dir.
// Writes go through a temp file and a rename so readers never see a torn file.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("summary directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create summary directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(conversationID string) (string, error) {
	id, err := validateConversationID(conversationID)
	if err != nil {
		return "", err
	}
	if !safeFileID.MatchString(id) {
		return "", fmt.Errorf("%w: conversation id %q is not a safe file name", contractx.ErrValidation, id)
	}
	return filepath.Join(s.dir, id+".summary.json"), nil
}

func (s *FileStore) read(path string) (fileRecord, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fileRecord{}, nil
	}
	if err != nil {
		return fileRecord{}, fmt.Errorf("%w: read summary file: %v", contractx.ErrUpstream, err)
	}
	var rec fileRecord
	if err := sonic.Unmarshal(raw, &rec); err != nil {
		return fileRecord{}, fmt.Errorf("%w: decode summary file: %v", contractx.ErrUpstream, err)
	}
	return rec, nil
}

func (s *FileStore) ReadSummary(ctx context.Context, conversationID string) (contractx.Summary, error) {
	path, err := s.path(conversationID)
	if err != nil {
		return contractx.Summary{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(path)
	if err != nil {
		return contractx.Summary{}, err
	}
	return contractx.Summary{Text: rec.Summary, Version: rec.Version}, nil
}

func (s *FileStore) WriteSummary(ctx context.Context, conversationID string, text string, expectedVersion int64) (int64, error) {
	path, err := s.path(conversationID)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(path)
	if err != nil {
		return 0, err
	}
	if current.Version != expectedVersion {
		return 0, versionConflict(conversationID, expectedVersion, current.Version)
	}

	next := fileRecord{Summary: text, Version: current.Version + 1}
	raw, err := sonic.Marshal(next)
	if err != nil {
		return 0, fmt.Errorf("marshal summary file: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".summary-*")
	if err != nil {
		return 0, fmt.Errorf("%w: create temp summary file: %v", contractx.ErrUpstream, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return 0, fmt.Errorf("%w: write summary file: %v", contractx.ErrUpstream, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("%w: close summary file: %v", contractx.ErrUpstream, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("%w: replace summary file: %v", contractx.ErrUpstream, err)
	}
	return next.Version, nil
}

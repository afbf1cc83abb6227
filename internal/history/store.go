package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultSession is the conversation used when a caller names none.
const DefaultSession = "default"

// Store persists the transcript of a single conversation.
type Store interface {
	// Load returns the persisted transcript, or an empty one when nothing is stored.
	Load(ctx context.Context) (Transcript, error)
	// Save overwrites the persisted transcript.
	Save(ctx context.Context, t Transcript) error
	// Reset discards the persisted transcript if present.
	Reset(ctx context.Context) error
}

// Backend hands out stores per conversation.
type Backend interface {
	Open(sessionID string) Store
	// Purge discards every conversation the backend holds. Called once at startup.
	Purge(ctx context.Context) error
}

// FileStore keeps a transcript in one JSON file.
type FileStore struct {
	Path string
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load(ctx context.Context) (Transcript, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Transcript{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", s.Path, err)
	}
	for i := range t {
		t[i].Role = normalizeRole(t[i].Role)
	}
	if t == nil {
		t = Transcript{}
	}
	return t, nil
}

// Save writes to a temp file in the same directory and renames it over the target.
func (s *FileStore) Save(ctx context.Context, t Transcript) error {
	if t == nil {
		t = Transcript{}
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

func (s *FileStore) Reset(ctx context.Context) error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove history: %w", err)
	}
	return nil
}

// FileBackend stores the default conversation at DefaultFile and any other
// conversation at Dir/chat_history_<id>.json.
type FileBackend struct {
	DefaultFile string
	Dir         string
}

func (b *FileBackend) Open(sessionID string) Store {
	if sessionID == "" || sessionID == DefaultSession {
		return NewFileStore(b.DefaultFile)
	}
	return NewFileStore(filepath.Join(b.Dir, "chat_history_"+sessionID+".json"))
}

func (b *FileBackend) Purge(ctx context.Context) error {
	if err := NewFileStore(b.DefaultFile).Reset(ctx); err != nil {
		return err
	}
	matches, err := filepath.Glob(filepath.Join(b.Dir, "chat_history_*.json"))
	if err != nil {
		return fmt.Errorf("list histories: %w", err)
	}
	for _, m := range matches {
		if err := NewFileStore(m).Reset(ctx); err != nil {
			return err
		}
	}
	return nil
}

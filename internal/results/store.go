// Package results persists scoring runs as self-contained JSON documents.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/democoach/internal/model"
)

// ErrNotFound means no record exists for an ID
var ErrNotFound = errors.New("result not found")

// Record is one persisted scoring run
type Record struct {
	ID             string               `json:"id"`
	TranscriptFile string               `json:"transcript_file"`
	Framework      string               `json:"framework"`
	Model          string               `json:"model"`
	Participants   []model.Participant  `json:"participants"`
	Result         *model.ScoringResult `json:"result"`
	CreatedAt      time.Time            `json:"created_at"`
}

// FileStore keeps one <id>.json file per record in a directory
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir; the directory is created on
// first save
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the store directory
func (s *FileStore) Dir() string {
	return s.dir
}

// Save writes rec, assigning an ID and creation time when missing.
// It returns the path written.
func (s *FileStore) Save(rec *Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	} else if err := validateID(rec.ID); err != nil {
		return "", err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}

	path := s.path(rec.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename result: %w", err)
	}
	return path, nil
}

// Load reads the record with the given ID
func (s *FileStore) Load(id string) (*Record, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse result %s: %w", id, err)
	}
	return &rec, nil
}

// Delete removes the record with the given ID
func (s *FileStore) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

// List returns all records, newest first. Unreadable files are skipped.
func (s *FileStore) List() ([]*Record, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read results dir: %w", err)
	}

	var records []*Record
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		rec, err := s.Load(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// validateID accepts canonical UUIDs only, which also keeps IDs from
// escaping the store directory
func validateID(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return fmt.Errorf("invalid result id %q", id)
	}
	return nil
}

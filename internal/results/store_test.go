package results

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/democoach/internal/model"
)

func sampleRecord() *Record {
	return &Record{
		TranscriptFile: "demo.txt",
		Framework:      "7 Habits",
		Model:          "gpt-4",
		Participants:   []model.Participant{{Name: "Alice", Role: model.RoleSE}},
		Result: &model.ScoringResult{
			OverallScore:    3.5,
			MetricScores:    map[string]float64{"clarity": 4, "structure": 3},
			SummaryFeedback: "<p>Good <strong>pacing</strong>.</p>",
			PerMetricExplanations: map[string]model.MetricEvaluation{
				"clarity":   {Score: 4, Explanation: "Clear", BestQuote: "Let me show you exactly how the workflow saves your team time"},
				"structure": {Score: 3, Explanation: "Okay"},
			},
		},
	}
}

func TestFileStore_SaveLoad(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "results"))

	rec := sampleRecord()
	path, err := s.Save(rec)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := uuid.Parse(rec.ID); err != nil {
		t.Errorf("expected a uuid ID, got %q", rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if filepath.Base(path) != rec.ID+".json" {
		t.Errorf("unexpected path %s", path)
	}

	got, err := s.Load(rec.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got.Result, rec.Result) {
		t.Errorf("result changed on round trip:\n got %+v\nwant %+v", got.Result, rec.Result)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("expected CreatedAt %v, got %v", rec.CreatedAt, got.CreatedAt)
	}
}

func TestFileStore_KeepsExplicitID(t *testing.T) {
	s := NewFileStore(t.TempDir())
	rec := sampleRecord()
	rec.ID = "6f0c9a57-3d1e-4b8a-9c2f-1e5d7a4b8c90"

	if _, err := s.Save(rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID != "6f0c9a57-3d1e-4b8a-9c2f-1e5d7a4b8c90" {
		t.Errorf("expected ID to be kept, got %s", rec.ID)
	}
	if _, err := s.Load("6f0c9a57-3d1e-4b8a-9c2f-1e5d7a4b8c90"); err != nil {
		t.Error(err)
	}
}

func TestFileStore_NotFound(t *testing.T) {
	s := NewFileStore(t.TempDir())

	missing := uuid.New().String()
	if _, err := s.Load(missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStore_InvalidID(t *testing.T) {
	s := NewFileStore(t.TempDir())
	for _, id := range []string{"", "..", "../etc/passwd", `a\b`, "run-42", "6F0C9A57-3D1E-4B8A-9C2F-1E5D7A4B8C90"} {
		if _, err := s.Load(id); err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("expected invalid id error for %q, got %v", id, err)
		}
	}

	rec := sampleRecord()
	rec.ID = "run-42"
	if _, err := s.Save(rec); err == nil {
		t.Error("expected Save to reject a non-uuid id")
	}
}

func TestFileStore_ListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	oldID, newID, midID := uuid.New().String(), uuid.New().String(), uuid.New().String()
	for i, id := range []string{oldID, newID, midID} {
		rec := sampleRecord()
		rec.ID = id
		rec.CreatedAt = base.Add(time.Duration([]int{0, 2, 1}[i]) * time.Hour)
		if _, err := s.Save(rec); err != nil {
			t.Fatal(err)
		}
	}
	// Junk files are ignored
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	if !reflect.DeepEqual(ids, []string{newID, midID, oldID}) {
		t.Errorf("unexpected order %v", ids)
	}
}

func TestFileStore_ListMissingDir(t *testing.T) {
	records, err := NewFileStore(filepath.Join(t.TempDir(), "nope")).List()
	if err != nil || len(records) != 0 {
		t.Errorf("expected empty list, got %v (%v)", records, err)
	}
}

func TestFileStore_Delete(t *testing.T) {
	s := NewFileStore(t.TempDir())
	rec := sampleRecord()
	if _, err := s.Save(rec); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected record to be gone, got %v", err)
	}
}

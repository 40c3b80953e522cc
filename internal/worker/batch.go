package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/democoach/internal/results"
)

// Entry is one manifest line: a transcript and optionally a participants file
type Entry struct {
	Transcript       string
	ParticipantsFile string
	Line             int
}

// Scorer scores one manifest entry
type Scorer interface {
	ScoreEntry(ctx context.Context, entry Entry) (*results.Record, error)
}

// ScoreJob represents one transcript scoring job
type ScoreJob struct {
	Entry  Entry
	Scorer Scorer
	slot   int
}

// Execute executes the scoring job
func (j *ScoreJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &ScoreResult{Entry: j.Entry, Error: err, slot: j.slot}
	}

	rec, err := j.Scorer.ScoreEntry(ctx, j.Entry)
	if err != nil {
		return &ScoreResult{Entry: j.Entry, Error: err, slot: j.slot}
	}
	return &ScoreResult{Entry: j.Entry, Record: rec, slot: j.slot}
}

// ScoreResult represents the result of a scoring job
type ScoreResult struct {
	Entry  Entry
	Record *results.Record
	Error  error
	slot   int
}

// GetError returns the error from the scoring result
func (r *ScoreResult) GetError() error {
	return r.Error
}

// BatchProcessor scores many transcripts concurrently. Runs share nothing
// but the scorer's collaborators.
type BatchProcessor struct {
	scorer      Scorer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(scorer Scorer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		scorer:      scorer,
		concurrency: concurrency,
	}
}

// ProcessEntries scores entries concurrently. It returns exactly one result
// per entry, in entry order; entries that never ran or whose result was
// dropped on cancellation carry the context's error.
func (b *BatchProcessor) ProcessEntries(ctx context.Context, entries []Entry) []*ScoreResult {
	if len(entries) == 0 {
		return []*ScoreResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, entry := range entries {
		pool.Submit(&ScoreJob{Entry: entry, Scorer: b.scorer, slot: i})
	}

	scoreResults := make([]*ScoreResult, len(entries))
	for _, result := range pool.Wait() {
		res := result.(*ScoreResult)
		scoreResults[res.slot] = res
	}

	for i, res := range scoreResults {
		if res != nil {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		scoreResults[i] = &ScoreResult{Entry: entries[i], Error: fmt.Errorf("not scored: %w", err), slot: i}
	}

	return scoreResults
}

// ProcessFile reads a manifest and scores its entries concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ScoreResult, error) {
	entries, err := ReadManifest(filePath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return b.ProcessEntries(ctx, entries), nil
}

// ReadManifest reads "<transcript> [participants file]" lines. Blank lines
// and # comments are skipped, repeated transcripts are scored once, and
// relative paths are resolved against the manifest's directory.
func ReadManifest(filePath string) ([]Entry, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(filePath)
	var entries []Entry
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) > 2 {
			return nil, fmt.Errorf("line %d: expected \"<transcript> [participants file]\", got %d fields", lineNo, len(fields))
		}

		entry := Entry{Transcript: resolvePath(base, fields[0]), Line: lineNo}
		if len(fields) == 2 {
			entry.ParticipantsFile = resolvePath(base, fields[1])
		}

		if !seen[entry.Transcript] {
			seen[entry.Transcript] = true
			entries = append(entries, entry)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return entries, nil
}

func resolvePath(base, p string) string {
	if strings.Contains(p, "://") || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

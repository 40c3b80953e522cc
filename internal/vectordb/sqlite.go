package vectordb

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// SQLiteStore keeps passages in a SQLite database and ranks them in process
type SQLiteStore struct {
	db        *sql.DB
	dimension int
}

// NewSQLiteStore opens (and if needed creates) the database at path.
// An empty path or ":memory:" gives a private in-memory database.
func NewSQLiteStore(path string, dimension int) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	if dimension == 0 {
		dimension = DefaultDimension
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db, dimension: dimension}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS passages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			collection TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			embedding BLOB NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create passages table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_passages_collection ON passages(collection)"); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Add stores passages in one transaction
func (s *SQLiteStore) Add(ctx context.Context, collection string, passages []Passage, embeddings [][]float32) error {
	if err := validateBatch(passages, embeddings, s.dimension); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO passages (id, collection, content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, p := range passages {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		metadata, err := marshalMetadata(p.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, p.ID, collection, p.Content, metadata, encodeEmbedding(embeddings[i])); err != nil {
			return fmt.Errorf("insert passage: %w", err)
		}
	}

	return tx.Commit()
}

type scored struct {
	passage Passage
	score   float64
}

// Query ranks every candidate passage by cosine similarity. Ties keep
// insertion order.
func (s *SQLiteStore) Query(ctx context.Context, collection string, embedding []float32, limit int, filter map[string]string) ([]Passage, error) {
	if limit <= 0 {
		return []Passage{}, nil
	}
	if err := validateEmbedding(embedding, s.dimension); err != nil {
		return nil, err
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT id, content, metadata, embedding FROM passages WHERE collection = ?")
	args := []any{collection}
	for _, k := range sortedKeys(filter) {
		sb.WriteString(" AND json_extract(metadata, ?) = ?")
		args = append(args, "$."+k, filter[k])
	}
	sb.WriteString(" ORDER BY seq")

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query passages: %w", err)
	}
	defer rows.Close()

	var candidates []scored
	for rows.Next() {
		var (
			p        Passage
			metadata string
			blob     []byte
		)
		if err := rows.Scan(&p.ID, &p.Content, &metadata, &blob); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &p.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		candidates = append(candidates, scored{passage: p, score: cosineSimilarity(embedding, decodeEmbedding(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passages: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]Passage, len(candidates))
	for i, c := range candidates {
		out[i] = c.passage
	}
	return out, nil
}

// Count reports how many passages a collection holds
func (s *SQLiteStore) Count(ctx context.Context, collection string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM passages WHERE collection = ?", collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("count passages: %w", err)
	}
	return n, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func marshalMetadata(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// encodeEmbedding stores each float32 as 4 little-endian bytes
func encodeEmbedding(embedding []float32) []byte {
	data := make([]byte, len(embedding)*4)
	for i, f := range embedding {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(f))
	}
	return data
}

func decodeEmbedding(data []byte) []float32 {
	if len(data)%4 != 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return embedding
}

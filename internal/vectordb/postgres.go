package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresStore keeps passages in PostgreSQL and ranks them with pgvector
type PostgresStore struct {
	db        *sql.DB
	dimension int
	ownsDB    bool
}

// NewPostgresStore connects to dsn and creates the schema when missing
func NewPostgresStore(ctx context.Context, dsn string, dimension int) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres vector store requires a DSN")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := NewPostgresStoreFromDB(db, dimension)
	s.ownsDB = true
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreFromDB reuses an existing connection; Close leaves it open
func NewPostgresStoreFromDB(db *sql.DB, dimension int) *PostgresStore {
	if dimension == 0 {
		dimension = DefaultDimension
	}
	return &PostgresStore{db: db, dimension: dimension}
}

// Migrate creates the pgvector extension, table and indexes
func (s *PostgresStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS democoach_passages (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			collection TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.dimension),
		`CREATE INDEX IF NOT EXISTS idx_democoach_passages_collection ON democoach_passages (collection)`,
		`CREATE INDEX IF NOT EXISTS idx_democoach_passages_metadata ON democoach_passages USING GIN (metadata)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate vector store: %w", err)
		}
	}
	return nil
}

// Add stores passages in one transaction, replacing any with the same ID
func (s *PostgresStore) Add(ctx context.Context, collection string, passages []Passage, embeddings [][]float32) error {
	if err := validateBatch(passages, embeddings, s.dimension); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO democoach_passages (id, collection, content, metadata, embedding)
		VALUES ($1, $2, $3, $4::jsonb, $5::vector)
		ON CONFLICT (id) DO UPDATE SET
			collection = EXCLUDED.collection,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding
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
		if _, err := stmt.ExecContext(ctx, p.ID, collection, p.Content, metadata, vectorLiteral(embeddings[i])); err != nil {
			return fmt.Errorf("insert passage: %w", err)
		}
	}

	return tx.Commit()
}

// Query orders by cosine distance; ties fall back to insertion order
func (s *PostgresStore) Query(ctx context.Context, collection string, embedding []float32, limit int, filter map[string]string) ([]Passage, error) {
	if limit <= 0 {
		return []Passage{}, nil
	}
	if err := validateEmbedding(embedding, s.dimension); err != nil {
		return nil, err
	}

	filterJSON, err := marshalMetadata(filter)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, metadata::text
		FROM democoach_passages
		WHERE collection = $2 AND metadata @> $3::jsonb
		ORDER BY embedding <=> $1::vector ASC, seq ASC
		LIMIT $4
	`, vectorLiteral(embedding), collection, filterJSON, limit)
	if err != nil {
		return nil, fmt.Errorf("query passages: %w", err)
	}
	defer rows.Close()

	out := []Passage{}
	for rows.Next() {
		var (
			p        Passage
			metadata string
		)
		if err := rows.Scan(&p.ID, &p.Content, &metadata); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &p.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passages: %w", err)
	}
	return out, nil
}

// Count reports how many passages a collection holds
func (s *PostgresStore) Count(ctx context.Context, collection string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM democoach_passages WHERE collection = $1`, collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("count passages: %w", err)
	}
	return n, nil
}

// Close closes the connection if the store opened it
func (s *PostgresStore) Close() error {
	if s.ownsDB && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// vectorLiteral formats an embedding in pgvector's text form: [1,2,3]
func vectorLiteral(embedding []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

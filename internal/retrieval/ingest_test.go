package retrieval

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunk_PacksParagraphs(t *testing.T) {
	p1 := strings.Repeat("a", 40)
	p2 := strings.Repeat("b", 40)
	p3 := strings.Repeat("c", 40)

	chunks := Chunk(p1+"\n\n"+p2+"\n\n\n"+p3, ChunkerConfig{ChunkSize: 100, ChunkOverlap: 0})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != p1+"\n\n"+p2 {
		t.Errorf("unexpected first chunk %q", chunks[0])
	}
	if chunks[1] != p3 {
		t.Errorf("unexpected second chunk %q", chunks[1])
	}
}

func TestChunk_Overlap(t *testing.T) {
	text := "alpha beta gamma delta\n\nepsilon zeta eta theta"
	chunks := Chunk(text, ChunkerConfig{ChunkSize: 30, ChunkOverlap: 10})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %q", chunks)
	}
	if !strings.HasPrefix(chunks[1], "delta") {
		t.Errorf("expected second chunk to carry over the tail of the first, got %q", chunks[1])
	}
	if !strings.HasSuffix(chunks[1], "epsilon zeta eta theta") {
		t.Errorf("expected second chunk to end with the new paragraph, got %q", chunks[1])
	}
}

func TestChunk_OverlapKeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("ü", 20) + "\n\n" + strings.Repeat("é", 20)
	chunks := Chunk(text, ChunkerConfig{ChunkSize: 50, ChunkOverlap: 9})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %q", chunks)
	}
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, c)
		}
	}
	if !strings.HasPrefix(chunks[1], "üüüü\n\n") {
		t.Errorf("expected whole runes carried over, got %q", chunks[1])
	}
}

func TestTail(t *testing.T) {
	s := "Gesprächsführung"
	for n := 1; n <= len(s); n++ {
		if got := tail(s, n); !utf8.ValidString(got) || len(got) > n {
			t.Errorf("tail(%q, %d) = %q", s, n, got)
		}
	}
	if got := tail("alpha beta", 6); got != "beta" {
		t.Errorf("expected word boundary, got %q", got)
	}
}

func TestChunk_LongParagraph(t *testing.T) {
	words := strings.Repeat("word ", 100)
	chunks := Chunk(words, ChunkerConfig{ChunkSize: 50, ChunkOverlap: 0})
	if len(chunks) < 10 {
		t.Fatalf("expected the paragraph to be split, got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > 50 {
			t.Errorf("chunk exceeds size: %d chars", len(c))
		}
	}
}

func TestChunk_Empty(t *testing.T) {
	if chunks := Chunk(" \n\n \r\n", DefaultChunkerConfig()); len(chunks) != 0 {
		t.Errorf("expected no chunks, got %q", chunks)
	}
}

func TestIngester_Ingest(t *testing.T) {
	store := newStore(t)
	embedder := &keywordEmbedder{}
	in := NewIngester(embedder, store, ChunkerConfig{ChunkSize: 50, ChunkOverlap: 0})

	text := "Begin with the end in mind.\n\nPicture the outcome before you start the demo."
	n, err := in.Ingest(context.Background(), "7 Habits", "Habit 2", text)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 chunks, got %d", n)
	}
	if embedder.calls != 1 {
		t.Errorf("expected chunks to be embedded in one batch, got %d calls", embedder.calls)
	}

	count, err := store.Count(context.Background(), "7 Habits")
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 stored passages, got %d", count)
	}
}

func TestIngester_Validation(t *testing.T) {
	in := NewIngester(&keywordEmbedder{}, newStore(t), DefaultChunkerConfig())
	ctx := context.Background()

	if _, err := in.Ingest(ctx, "", "Habit 2", "text"); err == nil {
		t.Error("expected error for missing collection")
	}
	if _, err := in.Ingest(ctx, "c", " ", "text"); err == nil {
		t.Error("expected error for missing framework key")
	}
	if _, err := in.Ingest(ctx, "c", "Habit 2", "   "); err == nil {
		t.Error("expected error for empty text")
	}
}

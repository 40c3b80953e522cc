package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"time"

	"github.com/ppiankov/democoach/internal/model"
)

const keyPrefix = "democoach:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// EmbeddingKey derives the cache key for a text embedded with a given model.
// Keys are file-name safe.
func EmbeddingKey(embeddingModel, text string) string {
	h := sha256.New()
	h.Write([]byte(embeddingModel))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return keyPrefix + "embed:" + hex.EncodeToString(h.Sum(nil))
}

// New builds the cache described by cfg: memory in front of disk, or a no-op
// cache when caching is disabled.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return Noop{}
	}
	if cfg.Dir == "" {
		return NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)
	}
	return NewLayeredCache(
		NewMemoryCache(cfg.MemoryTTL, 10*time.Minute),
		NewDiskCache(filepath.Join(cfg.Dir, "embeddings"), cfg.DiskTTL),
	)
}

// Noop never stores anything
type Noop struct{}

func (Noop) Get(string) ([]byte, bool)               { return nil, false }
func (Noop) Set(string, []byte, time.Duration) error { return nil }
func (Noop) Delete(string) error                     { return nil }
func (Noop) Clear() error                            { return nil }

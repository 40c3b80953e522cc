package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// DefaultMaxTranscriptBytes caps a transcript when no limit is configured
const DefaultMaxTranscriptBytes = 2 << 20

var (
	ErrEmptyTranscript    = errors.New("transcript is empty")
	ErrTranscriptTooLarge = errors.New("transcript exceeds size limit")
	ErrNotUTF8            = errors.New("transcript is not valid UTF-8")
)

// LoadTranscript reads a transcript file. Line endings are normalised to \n.
func LoadTranscript(path string, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxTranscriptBytes
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat transcript: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("transcript %s is a directory", path)
	}
	if info.Size() > maxBytes {
		return "", fmt.Errorf("%w: %d > %d bytes", ErrTranscriptTooLarge, info.Size(), maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return normalizeTranscript(data, maxBytes)
}

func normalizeTranscript(data []byte, maxBytes int64) (string, error) {
	if int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: %d > %d bytes", ErrTranscriptTooLarge, len(data), maxBytes)
	}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", ErrNotUTF8
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

// IsRemote reports whether source is an http(s) URL rather than a file path
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

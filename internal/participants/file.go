package participants

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/democoach/internal/model"
)

// Load reads a participant list from a .json, .yaml or .yml file
func Load(path string) ([]model.Participant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read participants: %w", err)
	}

	var people []model.Participant
	if isYAML(path) {
		err = yaml.Unmarshal(data, &people)
	} else {
		err = json.Unmarshal(data, &people)
	}
	if err != nil {
		return nil, fmt.Errorf("parse participants %s: %w", path, err)
	}

	for i, p := range people {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("participant %d: missing name", i+1)
		}
		if !p.Role.Valid() {
			return nil, fmt.Errorf("participant %q: unknown role %q", p.Name, p.Role)
		}
	}

	return people, nil
}

// Save writes a participant list; the format follows the file extension
func Save(path string, people []model.Participant) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(people)
	} else {
		data, err = json.MarshalIndent(people, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write participants: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

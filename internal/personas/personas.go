// Package personas loads persona definitions and hands out cached
// agents for them.
package personas

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/derailed-dash/rickbot/pkg/models"
)

// LoadConfig configures persona loading.
type LoadConfig struct {
	// Path is the personalities YAML file.
	Path string
	// PromptsDir holds one <name>.txt system prompt per persona,
	// lowercase file names.
	PromptsDir string
	// AllowMissingPrompts substitutes a placeholder instruction when a
	// prompt file is absent. Test and local runs only.
	AllowMissingPrompts bool
}

// Load reads the personalities file and resolves each persona's system
// instruction from the prompts directory.
func Load(cfg LoadConfig) (map[string]*models.Personality, error) {
	data, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("read personalities file: %w", err)
	}

	var defs []*models.Personality
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse personalities file: %w", err)
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("no personalities defined in %s", cfg.Path)
	}

	out := make(map[string]*models.Personality, len(defs))
	for _, p := range defs {
		if p.Name == "" {
			return nil, fmt.Errorf("personality with empty name in %s", cfg.Path)
		}
		if _, dup := out[p.Name]; dup {
			return nil, fmt.Errorf("duplicate personality %q", p.Name)
		}
		if p.Avatar == "" {
			p.Avatar = "media/" + strings.ToLower(p.Name) + ".png"
		}
		instruction, err := loadPrompt(cfg, p.Name)
		if err != nil {
			return nil, err
		}
		p.SystemInstruction = instruction
		out[p.Name] = p
	}
	return out, nil
}

func loadPrompt(cfg LoadConfig, name string) (string, error) {
	path := filepath.Join(cfg.PromptsDir, strings.ToLower(name)+".txt")
	data, err := os.ReadFile(path)
	if err == nil {
		return string(data), nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("read prompt for %s: %w", name, err)
	}
	if cfg.AllowMissingPrompts {
		return fmt.Sprintf("You are %s. (placeholder prompt)", name), nil
	}
	return "", fmt.Errorf("system prompt for %s not found at %s", name, path)
}

// Names returns the persona names in sorted order.
func Names(personalities map[string]*models.Personality) []string {
	names := make([]string, 0, len(personalities))
	for name := range personalities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/game"
	"gopkg.in/yaml.v3"
)

// Catalog is the game configuration file: rule overrides plus seed data.
type Catalog struct {
	Rules   game.Rules         `yaml:"rules"`
	Items   []domain.StoreItem `yaml:"items"`
	Phrases []domain.Phrase    `yaml:"phrases"`
}

// LoadCatalog reads the YAML catalog at path. Fields the file omits keep their
// defaults, and a missing file yields the defaults alone.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Catalog{Rules: game.DefaultRules()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	c := &Catalog{Rules: game.DefaultRules()}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("catalog rules: %w", err)
	}

	slugs := make(map[string]bool, len(c.Items))
	for i := range c.Items {
		it := &c.Items[i]
		if err := domain.ValidateStoreItem(*it); err != nil {
			return nil, fmt.Errorf("catalog item %d: %w", i, err)
		}
		if slugs[it.Slug] {
			return nil, fmt.Errorf("catalog item %d: duplicate slug %q", i, it.Slug)
		}
		slugs[it.Slug] = true
	}

	for i := range c.Phrases {
		p := &c.Phrases[i]
		p.CharacterType = domain.ParseCharacterType(strings.ToLower(strings.TrimSpace(string(p.CharacterType))))
		p.Language = strings.ToLower(strings.TrimSpace(p.Language))
		if p.Language == "" {
			p.Language = "en"
		}
		if strings.TrimSpace(p.Text) == "" {
			return nil, fmt.Errorf("catalog phrase %d: text is required", i)
		}
	}
	return c, nil
}

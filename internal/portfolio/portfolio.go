// Package portfolio loads the reference table of tracked holdings.
package portfolio

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.yaml.in/yaml/v3"

	"portfolio/internal/models"
)

//go:embed portfolio.yaml
var defaultTable []byte

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

type document struct {
	Stocks []models.Entity `yaml:"stocks"`
}

// Default returns the built-in holdings.
func Default() ([]models.Entity, error) {
	return Parse(defaultTable)
}

// Load reads a holdings file, or the built-in table when path is empty.
func Load(path string) ([]models.Entity, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	entities, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entities, nil
}

func Parse(b []byte) ([]models.Entity, error) {
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	if len(doc.Stocks) == 0 {
		return nil, errors.New("portfolio has no stocks")
	}
	seen := make(map[string]struct{}, len(doc.Stocks))
	for i, e := range doc.Stocks {
		if !idPattern.MatchString(e.ID) {
			return nil, fmt.Errorf("stock %d: invalid id %q", i, e.ID)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("stock %q: duplicate id", e.ID)
		}
		seen[e.ID] = struct{}{}
		if strings.TrimSpace(e.Symbol.Google) == "" || strings.TrimSpace(e.Symbol.Yahoo) == "" {
			return nil, fmt.Errorf("stock %q: google and yahoo symbols are required", e.ID)
		}
		if e.Quantity < 0 {
			return nil, fmt.Errorf("stock %q: negative quantity", e.ID)
		}
	}
	return doc.Stocks, nil
}

func GoogleTargets(entities []models.Entity) []models.Target {
	out := make([]models.Target, 0, len(entities))
	for _, e := range entities {
		out = append(out, models.Target{ID: e.ID, Symbol: e.Symbol.Google})
	}
	return out
}

func YahooTargets(entities []models.Entity) []models.Target {
	out := make([]models.Target, 0, len(entities))
	for _, e := range entities {
		out = append(out, models.Target{ID: e.ID, Symbol: e.Symbol.Yahoo})
	}
	return out
}

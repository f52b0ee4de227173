package tags

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/starford/reoverflow/internal/models"
)

// Catalog is the on-disk tag catalog format.
type Catalog struct {
	Tags []models.Tag `yaml:"tags"`
}

// Writer persists catalog entries.
type Writer interface {
	UpsertTags(ctx context.Context, tags []models.Tag) error
}

// LoadCatalogFile parses a YAML tag catalog.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tags: read catalog %s: %w", path, err)
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("tags: parse catalog %s: %w", path, err)
	}
	return &cat, nil
}

// SeedFromFile loads the catalog file and upserts its entries.
// Existing tags that are absent from the file are kept.
func SeedFromFile(ctx context.Context, w Writer, path string) (int, error) {
	cat, err := LoadCatalogFile(path)
	if err != nil {
		return 0, err
	}
	if err := w.UpsertTags(ctx, cat.Tags); err != nil {
		return 0, err
	}
	return len(cat.Tags), nil
}

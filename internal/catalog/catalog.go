package catalog

import (
	"fmt"
	"os"

	"marpro/internal/models"

	"gopkg.in/yaml.v3"
)

// Catalog is the operator maintained list of rentable equipment and
// services. It is read-only once loaded.
type Catalog struct {
	Containers    []models.CatalogEntry `yaml:"containers"`
	Excavators    []models.CatalogEntry `yaml:"excavators"`
	Constructions []models.CatalogEntry `yaml:"constructions"`
}

// Load reads and validates the catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) Validate() error {
	sections := map[models.ServiceType][]models.CatalogEntry{
		models.ServiceContainers:    c.Containers,
		models.ServiceExcavators:    c.Excavators,
		models.ServiceConstructions: c.Constructions,
	}
	for st, entries := range sections {
		if err := validateEntries(st, entries); err != nil {
			return err
		}
	}
	return nil
}

func validateEntries(st models.ServiceType, entries []models.CatalogEntry) error {
	ids := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("%s entry '%s' has empty id", st, e.Name)
		}
		if ids[e.ID] {
			return fmt.Errorf("duplicate %s id found: %s", st, e.ID)
		}
		if e.Price < 0 {
			return fmt.Errorf("%s entry %s has negative price", st, e.ID)
		}
		ids[e.ID] = true
	}
	return nil
}

func (c *Catalog) section(st models.ServiceType) []models.CatalogEntry {
	switch st {
	case models.ServiceContainers:
		return c.Containers
	case models.ServiceExcavators:
		return c.Excavators
	case models.ServiceConstructions:
		return c.Constructions
	default:
		return nil
	}
}

// Active returns the entries offered to customers in file order.
func (c *Catalog) Active(st models.ServiceType) []models.CatalogEntry {
	var out []models.CatalogEntry
	for _, e := range c.section(st) {
		if e.IsActive {
			out = append(out, e)
		}
	}
	return out
}

// Lookup finds an active entry. Inactive entries are not selectable.
func (c *Catalog) Lookup(st models.ServiceType, id string) (*models.CatalogEntry, bool) {
	for _, e := range c.section(st) {
		if e.ID == id && e.IsActive {
			entry := e
			return &entry, true
		}
	}
	return nil, false
}

// Localize resolves the description for lang, falling back to the default
// language.
func Localize(e models.CatalogEntry, lang string) models.CatalogEntry {
	if text := e.Descriptions[lang]; text != "" {
		e.Description = text
		return e
	}
	e.Description = e.Descriptions[models.DefaultLanguage]
	return e
}

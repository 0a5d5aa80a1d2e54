package models

// CatalogEntry is one rentable container size, excavator model or
// construction service.
type CatalogEntry struct {
	ID           string            `yaml:"id" json:"id"`
	Name         string            `yaml:"name" json:"name"`
	Descriptions map[string]string `yaml:"description" json:"-"`
	Description  string            `yaml:"-" json:"description,omitempty"`
	Specs        map[string]string `yaml:"specs" json:"specs,omitempty"`
	Price        float64           `yaml:"price" json:"price"`
	PriceUnit    string            `yaml:"price_unit" json:"priceUnit,omitempty"`
	SortOrder    int               `yaml:"sort_order" json:"sortOrder"`
	IsActive     bool              `yaml:"is_active" json:"isActive"`
}

package service

import (
	"sort"

	"marpro/internal/catalog"
	"marpro/internal/domain"
	"marpro/internal/models"
)

type CatalogService struct {
	catalog domain.Catalog
}

func NewCatalogService(c domain.Catalog) *CatalogService {
	return &CatalogService{catalog: c}
}

// ActiveEntries returns the active entries of serviceType localized to lang.
// Entries with an explicit sort order come first; file order is kept
// otherwise.
func (s *CatalogService) ActiveEntries(serviceType models.ServiceType, lang string) []models.CatalogEntry {
	active := s.catalog.Active(serviceType)
	out := make([]models.CatalogEntry, 0, len(active))
	for _, e := range active {
		out = append(out, catalog.Localize(e, lang))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return sortKey(out[i]) < sortKey(out[j])
	})
	return out
}

func sortKey(e models.CatalogEntry) int {
	if e.SortOrder == 0 {
		return int(^uint(0) >> 1)
	}
	return e.SortOrder
}

func (s *CatalogService) Lookup(serviceType models.ServiceType, id string) (*models.CatalogEntry, bool) {
	return s.catalog.Lookup(serviceType, id)
}

package fhirdefs

import (
	"github.com/gofhir/fsh/lrucache"
	"github.com/gofhir/fsh/sd"
)

// CachingFetcher wraps a Cache with an LRU front end, so repeated fishes
// for the same frequently-derived-from base type (Observation,
// Extension, DomainResource, ...) across many Profile/Extension entities
// in one compilation are answered from the LRU, whose hit/miss counts
// the CLI reports.
type CachingFetcher struct {
	backing  *Cache
	byURL    *lrucache.Cache[string, *sd.StructureDefinition]
	byType   *lrucache.Cache[string, *sd.StructureDefinition]
}

// NewCachingFetcher wraps backing with an LRU of the given capacity per index.
func NewCachingFetcher(backing *Cache, capacity int) *CachingFetcher {
	return &CachingFetcher{
		backing: backing,
		byURL:   lrucache.New[string, *sd.StructureDefinition](capacity),
		byType:  lrucache.New[string, *sd.StructureDefinition](capacity),
	}
}

// FetchByURL implements sd.Fetcher.
func (f *CachingFetcher) FetchByURL(url string) (*sd.StructureDefinition, bool) {
	return f.byURL.GetOrSet(url, func() (*sd.StructureDefinition, bool) {
		return f.backing.FetchByURL(url)
	})
}

// FetchByType implements sd.Fetcher.
func (f *CachingFetcher) FetchByType(typeName string) (*sd.StructureDefinition, bool) {
	return f.byType.GetOrSet(typeName, func() (*sd.StructureDefinition, bool) {
		return f.backing.FetchByType(typeName)
	})
}

// Stats reports the combined URL/type lookup cache statistics.
func (f *CachingFetcher) Stats() (byURL, byType lrucache.Stats) {
	return f.byURL.Stats(), f.byType.Stats()
}

var _ sd.Fetcher = (*CachingFetcher)(nil)

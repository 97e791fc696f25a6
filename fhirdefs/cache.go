// Package fhirdefs implements the Definitions Cache port: the narrow,
// read-only lookup capability the SD Exporter and Instance Exporter use
// to resolve a base FHIR type or an externally-published profile that
// isn't itself an FSH entity in the Tank.
//
// The concrete FHIR definitions cache (network package retrieval, the
// full base FHIR core package's JSON) is an external collaborator named
// out of scope by the purpose and scope section; this package specifies
// and implements only the lookup port plus an in-memory/on-disk loader
// for whatever StructureDefinition JSON the caller has available, for
// any FHIR core or IG dependency package the compiler needs to fish
// against. Each file is unmarshaled into github.com/gofhir/fhir/r4's
// StructureDefinition/ElementDefinition types and converted down into
// the compiler's own element arena.
package fhirdefs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofhir/fhir/r4"

	"github.com/gofhir/fsh/sd"
)

// Cache is an in-memory, URL- and type-indexed store of base
// StructureDefinitions, loaded once per compilation and shared
// read-only thereafter.
type Cache struct {
	mu     sync.RWMutex
	byURL  map[string]*sd.StructureDefinition
	byType map[string]*sd.StructureDefinition
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{byURL: map[string]*sd.StructureDefinition{}, byType: map[string]*sd.StructureDefinition{}}
}

// Load loads the given FHIR version's core package from dir, one flat
// directory of StructureDefinition JSON files read by LoadDirectory.
// When dir is "" or does not exist, Load returns an empty Cache. It
// never fetches packages over the network.
func Load(ctx context.Context, dir string, fhirVersion string) (*Cache, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c := New()
	if dir == "" {
		return c, nil
	}
	if _, err := os.Stat(dir); err != nil {
		return c, nil
	}
	if _, err := c.LoadDirectory(dir); err != nil {
		return nil, fmt.Errorf("load FHIR %s core package from %s: %w", fhirVersion, dir, err)
	}
	return c, nil
}

// LoadDirectory loads every StructureDefinition-*.json file in dir,
// returning the number of definitions loaded.
func (c *Cache) LoadDirectory(dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "StructureDefinition-*.json"))
	if err != nil {
		return 0, err
	}
	total := 0
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		if err := c.LoadJSON(data); err == nil {
			total++
		}
	}
	return total, nil
}

// resourceTypeProbe reads just enough of a JSON document to route it,
// telling resource types apart before committing to a typed decode.
type resourceTypeProbe struct {
	ResourceType string `json:"resourceType"`
}

// LoadJSON parses one StructureDefinition JSON document and indexes it.
func (c *Cache) LoadJSON(data []byte) error {
	var probe resourceTypeProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("invalid StructureDefinition JSON: %w", err)
	}
	if probe.ResourceType != "StructureDefinition" {
		return fmt.Errorf("expected StructureDefinition, got %s", probe.ResourceType)
	}

	var doc r4.StructureDefinition
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid StructureDefinition JSON: %w", err)
	}
	c.put(convertR4(&doc))
	return nil
}

// findParentIndex finds the arena index of path's parent element by
// trimming its last dotted segment, falling back to the root.
func findParentIndex(tree *sd.Tree, path string) int {
	dot := strings.LastIndexByte(path, '.')
	if dot == -1 {
		return -1
	}
	parentPath := path[:dot]
	if idx, ok := tree.ByPath(parentPath); ok {
		return idx
	}
	return tree.Root()
}

func (c *Cache) put(s *sd.StructureDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.URL != "" {
		c.byURL[s.URL] = s
	}
	if s.Type != "" {
		if isBaseTypeURL(s.URL, s.Type) {
			c.byType[s.Type] = s
		} else if _, exists := c.byType[s.Type]; !exists {
			c.byType[s.Type] = s
		}
	}
}

func isBaseTypeURL(url, typeName string) bool {
	return url == "http://hl7.org/fhir/StructureDefinition/"+typeName
}

// FetchByURL implements sd.Fetcher.
func (c *Cache) FetchByURL(url string) (*sd.StructureDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byURL[url]
	return s, ok
}

// FetchByType implements sd.Fetcher.
func (c *Cache) FetchByType(typeName string) (*sd.StructureDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.byType[typeName]; ok {
		return s, true
	}
	s, ok := c.byURL["http://hl7.org/fhir/StructureDefinition/"+typeName]
	return s, ok
}

// Count returns the number of distinct URLs loaded.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byURL)
}

var _ sd.Fetcher = (*Cache)(nil)

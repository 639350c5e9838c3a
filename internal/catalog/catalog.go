// Package catalog loads the package classification list: for each known
// package name, its description, the list it belongs to and how safe it is
// to remove.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/droidprune/internal/inventory"
)

// ErrInvalidCatalog is returned when a catalog file cannot be decoded.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Entry is the classification of one package.
type Entry struct {
	Name         string
	List         string
	Description  string
	Tier         string
	Dependencies []string
	NeededBy     []string
	Labels       []string
}

// record is the on-disk shape of an entry. Older lists key entries by name
// and call the tier "confidence"; newer ones carry an id and "removal".
type record struct {
	ID           string   `json:"id" yaml:"id"`
	List         string   `json:"list" yaml:"list"`
	Description  *string  `json:"description" yaml:"description"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
	NeededBy     []string `json:"neededBy" yaml:"neededBy"`
	Labels       []string `json:"labels" yaml:"labels"`
	Removal      string   `json:"removal" yaml:"removal"`
	Confidence   string   `json:"confidence" yaml:"confidence"`
}

// Catalog is a thread-safe, reloadable set of entries.
type Catalog struct {
	path string

	mu      sync.RWMutex
	entries map[string]Entry
}

// Empty returns a catalog without entries. Every lookup misses.
func Empty() *Catalog {
	return &Catalog{entries: map[string]Entry{}}
}

// New returns an empty catalog bound to path. Entries appear once Reload
// succeeds, so a list written later can still be picked up.
func New(path string) *Catalog {
	return &Catalog{path: path, entries: map[string]Entry{}}
}

// Load reads the catalog at path.
func Load(path string) (*Catalog, error) {
	c := &Catalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the catalog file and swaps the entries in one step. On
// error the current entries are kept.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return fmt.Errorf("failed to reload catalog: no file")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}

	entries, err := Parse(data, formatOf(c.path, data))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", c.path, err)
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// Path returns the file the catalog was loaded from.
func (c *Catalog) Path() string { return c.path }

// Lookup implements inventory.Classifier.
func (c *Catalog) Lookup(name string) (inventory.Classification, bool) {
	e, ok := c.Entry(name)
	if !ok {
		return inventory.Classification{}, false
	}
	return inventory.Classification{
		Description: e.Description,
		Category:    e.List,
		Tier:        e.Tier,
	}, true
}

// Entry returns the full entry for a package.
func (c *Catalog) Entry(name string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e, ok
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Categories returns the distinct list labels, sorted.
func (c *Catalog) Categories() []string {
	return c.distinct(func(e Entry) string { return e.List })
}

// Tiers returns the distinct tiers in use, sorted.
func (c *Catalog) Tiers() []string {
	return c.distinct(func(e Entry) string { return e.Tier })
}

func (c *Catalog) distinct(field func(Entry) string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range c.entries {
		if v := field(e); v != "" {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Format is the encoding of a catalog file.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func formatOf(path string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatJSON
	}
	return FormatYAML
}

// Parse decodes catalog data. Both a sequence of records carrying an id and
// a mapping from package name to record are accepted.
func Parse(data []byte, format Format) (map[string]Entry, error) {
	var list []record
	var byName map[string]record

	unmarshal := json.Unmarshal
	if format == FormatYAML {
		unmarshal = yaml.Unmarshal
	}

	if err := unmarshal(data, &list); err != nil {
		list = nil
		if err := unmarshal(data, &byName); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
		}
	}

	entries := make(map[string]Entry, len(list)+len(byName))
	for _, r := range list {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: entry without id", ErrInvalidCatalog)
		}
		entries[r.ID] = r.entry(r.ID)
	}
	for name, r := range byName {
		entries[name] = r.entry(name)
	}
	return entries, nil
}

func (r record) entry(name string) Entry {
	e := Entry{
		Name:         name,
		List:         strings.ToLower(strings.TrimSpace(r.List)),
		Description:  inventory.DefaultDescription,
		Tier:         inventory.NormalizeTier(r.Removal),
		Dependencies: r.Dependencies,
		NeededBy:     r.NeededBy,
		Labels:       r.Labels,
	}
	if e.Tier == "" {
		e.Tier = inventory.NormalizeTier(r.Confidence)
	}
	if e.List == "" {
		e.List = inventory.DefaultCategory
	}
	if r.Description != nil && strings.TrimSpace(*r.Description) != "" {
		e.Description = strings.TrimSpace(*r.Description)
	}
	return e
}

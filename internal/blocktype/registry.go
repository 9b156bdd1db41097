// Package blocktype holds the block type registry and the block factory.
package blocktype

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"blockeditor/internal/domain"
)

// ErrDuplicateType is returned when a block type name is registered twice.
var ErrDuplicateType = errors.New("block type already registered")

// ─────────────────────────────────────────────────────────────
// Registry: block types keyed by name
// ─────────────────────────────────────────────────────────────

// Registry manages registered block types. It implements template.TypeLookup.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*domain.BlockType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*domain.BlockType)}
}

// Register adds a block type. Names must be non-empty and unique.
func (r *Registry) Register(bt domain.BlockType) error {
	if bt.Name == "" {
		return fmt.Errorf("block type registry: empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[bt.Name]; exists {
		return fmt.Errorf("block type registry: %w: %q", ErrDuplicateType, bt.Name)
	}
	c := cloneType(&bt)
	if c.Attributes == nil {
		c.Attributes = map[string]domain.AttributeSchema{}
	}
	r.types[bt.Name] = &c
	return nil
}

// Unregister removes a block type. Unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.types, name)
}

// LookupType returns a copy of the block type registered under name.
func (r *Registry) LookupType(name string) (*domain.BlockType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bt, ok := r.types[name]
	if !ok {
		return nil, false
	}
	c := cloneType(bt)
	return &c, true
}

// List returns all registered block types sorted by name.
func (r *Registry) List() []domain.BlockType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.BlockType, 0, len(r.types))
	for _, bt := range r.types {
		out = append(out, cloneType(bt))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func cloneType(bt *domain.BlockType) domain.BlockType {
	c := *bt
	c.Attributes = maps.Clone(bt.Attributes)
	return c
}

type blockTypesFile struct {
	BlockTypes []domain.BlockType `yaml:"blockTypes"`
}

// LoadFile registers every block type defined in a YAML file of the form
//
//	blockTypes:
//	  - name: acme/card
//	    attributes:
//	      items: {type: array, source: children}
func (r *Registry) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read block types: %w", err)
	}
	var f blockTypesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parse block types %s: %w", path, err)
	}
	for i, bt := range f.BlockTypes {
		if err := r.Register(bt); err != nil {
			return i, err
		}
	}
	return len(f.BlockTypes), nil
}

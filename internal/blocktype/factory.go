package blocktype

import (
	"github.com/google/uuid"

	"blockeditor/internal/domain"
)

// Factory creates new blocks. It implements template.BlockFactory.
type Factory struct {
	registry *Registry
	newID    func() string
}

// NewFactory creates a Factory that sanitizes attributes against registry.
func NewFactory(registry *Registry) *Factory {
	return &Factory{registry: registry, newID: func() string { return uuid.New().String() }}
}

// CreateBlock builds a block with a fresh client id. For registered types,
// schema defaults fill missing attributes and attributes unknown to the
// schema are dropped; unregistered types keep attrs as given.
func (f *Factory) CreateBlock(name string, attrs map[string]any, inner []domain.Block) domain.Block {
	if inner == nil {
		inner = []domain.Block{}
	}
	return domain.Block{
		ClientID:    f.newID(),
		Name:        name,
		Attributes:  f.sanitize(name, attrs),
		InnerBlocks: inner,
	}
}

func (f *Factory) sanitize(name string, attrs map[string]any) map[string]any {
	bt, ok := f.registry.LookupType(name)
	if !ok {
		out := make(map[string]any, len(attrs))
		for k, v := range attrs {
			out[k] = v
		}
		return out
	}
	out := make(map[string]any, len(bt.Attributes))
	for key, schema := range bt.Attributes {
		if v, ok := attrs[key]; ok {
			out[key] = v
		} else if schema.Default != nil {
			out[key] = schema.Default
		}
	}
	return out
}

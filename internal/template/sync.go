package template

import (
	"go.uber.org/zap"

	"blockeditor/internal/domain"
)

// SourceChildren selects child-content extraction from markup.
const SourceChildren = "children"

// AttributeSource configures how a raw attribute string is parsed.
type AttributeSource struct {
	Source   string
	Selector string
}

// TypeLookup resolves a block name to its registered type.
type TypeLookup interface {
	LookupType(name string) (*domain.BlockType, bool)
}

// AttributeParser turns raw markup into a structured attribute value.
type AttributeParser interface {
	ParseStructured(raw string, src AttributeSource) (any, error)
}

// BlockFactory constructs brand-new blocks.
type BlockFactory interface {
	CreateBlock(name string, attrs map[string]any, inner []domain.Block) domain.Block
}

// Synchronizer produces block trees that mirror a template, reusing existing
// blocks where the name at a position already matches.
type Synchronizer struct {
	types   TypeLookup
	parser  AttributeParser
	factory BlockFactory
	log     *zap.Logger
}

// NewSynchronizer creates a Synchronizer. A nil logger disables logging.
func NewSynchronizer(types TypeLookup, parser AttributeParser, factory BlockFactory, log *zap.Logger) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{types: types, parser: parser, factory: factory, log: log}
}

// SynchronizeBlocksWithTemplate returns a new tree with len(tmpl) blocks in
// template order. blocks is matched by position only. A block whose name
// matches its entry is kept (attributes untouched) with synchronized inner
// blocks; every other position gets a freshly created block seeded with the
// entry's attributes. Blocks past len(tmpl) are dropped. The input is never
// mutated.
func (s *Synchronizer) SynchronizeBlocksWithTemplate(blocks []domain.Block, tmpl domain.Template) []domain.Block {
	out := make([]domain.Block, len(tmpl))
	for i, entry := range tmpl {
		if i < len(blocks) && blocks[i].Name == entry.Name {
			reused := blocks[i]
			reused.InnerBlocks = s.SynchronizeBlocksWithTemplate(blocks[i].InnerBlocks, entry.Inner)
			out[i] = reused
			continue
		}
		out[i] = s.createFromEntry(entry)
	}
	return out
}

func (s *Synchronizer) createFromEntry(entry domain.TemplateEntry) domain.Block {
	blockType, _ := s.types.LookupType(entry.Name)

	attrs := make(map[string]any, len(entry.Attributes))
	for key, value := range entry.Attributes {
		attrs[key] = s.normalizeAttribute(blockType, entry.Name, key, value)
	}

	inner := s.SynchronizeBlocksWithTemplate(nil, entry.Inner)
	return s.factory.CreateBlock(entry.Name, attrs, inner)
}

// normalizeAttribute parses string values of array-typed attributes into
// their structured children form.
func (s *Synchronizer) normalizeAttribute(bt *domain.BlockType, name, key string, value any) any {
	raw, ok := value.(string)
	if !ok || bt.AttributeType(key) != domain.AttributeTypeArray {
		return value
	}
	parsed, err := s.parser.ParseStructured(raw, AttributeSource{Source: SourceChildren})
	if err != nil {
		s.log.Debug("keeping raw template attribute",
			zap.String("block", name), zap.String("attribute", key), zap.Error(err))
		return value
	}
	return parsed
}

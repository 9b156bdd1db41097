package domain

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// TemplateLock restricts how far a session may drift from its template.
type TemplateLock string

const (
	TemplateLockNone   TemplateLock = ""
	TemplateLockInsert TemplateLock = "insert"
	TemplateLockAll    TemplateLock = "all"
)

// PostTypeTemplate binds a block template to a post type.
type PostTypeTemplate struct {
	PostType string       `json:"postType" yaml:"postType" validate:"required"`
	Lock     TemplateLock `json:"lock,omitempty" yaml:"lock,omitempty" validate:"omitempty,oneof=insert all"`
	Blocks   Template     `json:"blocks" yaml:"blocks" validate:"dive"`
}

// TemplateEntry is one required block shape: name, seed attributes and the
// template for its inner blocks. It encodes as a positional array
// [name, attributes, innerBlocksTemplate] in both JSON and YAML.
type TemplateEntry struct {
	Name       string         `validate:"required"`
	Attributes map[string]any `validate:"-"`
	Inner      Template       `validate:"dive"`
}

// Template is an ordered, possibly nested list of required block shapes.
type Template []TemplateEntry

func (e TemplateEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.tuple())
}

func (e *TemplateEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("template entry must be an array: %w", err)
	}
	if len(raw) == 0 || len(raw) > 3 {
		return fmt.Errorf("template entry must have 1 to 3 elements, got %d", len(raw))
	}
	*e = TemplateEntry{}
	if err := json.Unmarshal(raw[0], &e.Name); err != nil {
		return fmt.Errorf("template entry name: %w", err)
	}
	if len(raw) > 1 {
		if err := json.Unmarshal(raw[1], &e.Attributes); err != nil {
			return fmt.Errorf("template entry %q attributes: %w", e.Name, err)
		}
	}
	if len(raw) > 2 {
		if err := json.Unmarshal(raw[2], &e.Inner); err != nil {
			return fmt.Errorf("template entry %q inner template: %w", e.Name, err)
		}
	}
	return nil
}

func (e TemplateEntry) MarshalYAML() (any, error) {
	return e.tuple(), nil
}

func (e *TemplateEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: template entry must be a sequence", node.Line)
	}
	if len(node.Content) == 0 || len(node.Content) > 3 {
		return fmt.Errorf("line %d: template entry must have 1 to 3 elements, got %d", node.Line, len(node.Content))
	}
	*e = TemplateEntry{}
	if err := node.Content[0].Decode(&e.Name); err != nil {
		return fmt.Errorf("line %d: template entry name: %w", node.Line, err)
	}
	if len(node.Content) > 1 {
		if err := node.Content[1].Decode(&e.Attributes); err != nil {
			return fmt.Errorf("line %d: template entry %q attributes: %w", node.Line, e.Name, err)
		}
	}
	if len(node.Content) > 2 {
		if err := node.Content[2].Decode(&e.Inner); err != nil {
			return fmt.Errorf("line %d: template entry %q inner template: %w", node.Line, e.Name, err)
		}
	}
	return nil
}

func (e TemplateEntry) tuple() []any {
	attrs := e.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	inner := e.Inner
	if inner == nil {
		inner = Template{}
	}
	return []any{e.Name, attrs, inner}
}

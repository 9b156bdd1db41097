package domain

// AttributeTypeArray marks an attribute holding structured children content.
const AttributeTypeArray = "array"

// AttributeSchema describes one attribute of a block type.
type AttributeSchema struct {
	Type     string `json:"type" yaml:"type"`
	Source   string `json:"source,omitempty" yaml:"source,omitempty"`
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`
	Default  any    `json:"default,omitempty" yaml:"default,omitempty"`
}

// BlockType is a registry entry describing a block's attribute schema.
type BlockType struct {
	Name       string                     `json:"name" yaml:"name"`
	Title      string                     `json:"title" yaml:"title"`
	Category   string                     `json:"category" yaml:"category"`
	Attributes map[string]AttributeSchema `json:"attributes" yaml:"attributes"`
}

// AttributeType returns the declared type of attr, or "" if undeclared.
func (bt *BlockType) AttributeType(attr string) string {
	if bt == nil {
		return ""
	}
	return bt.Attributes[attr].Type
}

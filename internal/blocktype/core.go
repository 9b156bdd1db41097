package blocktype

import "blockeditor/internal/domain"

// coreTypes is the built-in block set every registry starts from.
var coreTypes = []domain.BlockType{
	{
		Name: "core/paragraph", Title: "Paragraph", Category: "text",
		Attributes: map[string]domain.AttributeSchema{
			"content":     {Type: "string", Source: "html", Selector: "p"},
			"align":       {Type: "string"},
			"placeholder": {Type: "string"},
			"dropCap":     {Type: "boolean", Default: false},
		},
	},
	{
		Name: "core/heading", Title: "Heading", Category: "text",
		Attributes: map[string]domain.AttributeSchema{
			"content":     {Type: "string", Source: "html", Selector: "h1,h2,h3,h4,h5,h6"},
			"level":       {Type: "number", Default: 2},
			"placeholder": {Type: "string"},
		},
	},
	{
		Name: "core/list", Title: "List", Category: "text",
		Attributes: map[string]domain.AttributeSchema{
			"values":  {Type: domain.AttributeTypeArray, Source: "children", Selector: "ol,ul"},
			"ordered": {Type: "boolean", Default: false},
		},
	},
	{
		Name: "core/quote", Title: "Quote", Category: "text",
		Attributes: map[string]domain.AttributeSchema{
			"value":    {Type: domain.AttributeTypeArray, Source: "children", Selector: "blockquote"},
			"citation": {Type: domain.AttributeTypeArray, Source: "children", Selector: "cite"},
		},
	},
	{
		Name: "core/image", Title: "Image", Category: "media",
		Attributes: map[string]domain.AttributeSchema{
			"url":     {Type: "string", Source: "attribute", Selector: "img"},
			"alt":     {Type: "string", Default: ""},
			"caption": {Type: domain.AttributeTypeArray, Source: "children", Selector: "figcaption"},
		},
	},
	{Name: "core/columns", Title: "Columns", Category: "design",
		Attributes: map[string]domain.AttributeSchema{
			"columns": {Type: "number", Default: 2},
		},
	},
	{Name: "core/column", Title: "Column", Category: "design"},
}

// RegisterCore registers the built-in block types.
func (r *Registry) RegisterCore() error {
	for _, bt := range coreTypes {
		if err := r.Register(bt); err != nil {
			return err
		}
	}
	return nil
}

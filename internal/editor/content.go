package editor

import (
	"encoding/json"

	"blockeditor/internal/domain"
)

// contentNode is the persisted shape of a block: client ids are session
// identities and never count as content.
type contentNode struct {
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Inner      []contentNode  `json:"innerBlocks,omitempty"`
}

func toContent(blocks []domain.Block) []contentNode {
	out := make([]contentNode, len(blocks))
	for i, b := range blocks {
		out[i] = contentNode{Name: b.Name, Attributes: b.Attributes, Inner: toContent(b.InnerBlocks)}
	}
	return out
}

// serializeContent returns a canonical string for comparing block trees.
// encoding/json sorts map keys, so equal trees serialize equally.
func serializeContent(blocks []domain.Block) string {
	if len(blocks) == 0 {
		return ""
	}
	data, err := json.Marshal(toContent(blocks))
	if err != nil {
		// Attribute values come from JSON or YAML decoding; fall back to
		// a value that never equals a valid serialization.
		return "\x00unserializable"
	}
	return string(data)
}

// isContentEmpty mirrors the editor rule that a lone empty paragraph is no content.
func isContentEmpty(blocks []domain.Block) bool {
	switch len(blocks) {
	case 0:
		return true
	case 1:
		b := blocks[0]
		if b.Name != "core/paragraph" || len(b.InnerBlocks) > 0 {
			return false
		}
		content, _ := b.Attributes["content"].(string)
		return content == ""
	default:
		return false
	}
}

type snapshot struct {
	title   string
	excerpt string
	content string
}

func snapshotOf(title, excerpt string, blocks []domain.Block) snapshot {
	return snapshot{title: title, excerpt: excerpt, content: serializeContent(blocks)}
}

package mcpserver

import (
	"encoding/json"
	"fmt"

	"blockeditor/internal/domain"
)

// parseJSON parses a JSON string into the target type.
func parseJSON(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

// parseBlocksArg decodes a JSON block tree argument.
func parseBlocksArg(args map[string]any, key string) ([]domain.Block, bool, error) {
	raw, ok := args[key].(string)
	if !ok || raw == "" {
		return nil, false, nil
	}
	var blocks []domain.Block
	if err := parseJSON(raw, &blocks); err != nil {
		return nil, true, fmt.Errorf("%s must be a JSON array of blocks: %w", key, err)
	}
	if blocks == nil {
		blocks = []domain.Block{}
	}
	return blocks, true, nil
}

// postSummary is the compact listing form of a post.
type postSummary struct {
	ID         string            `json:"id"`
	PostType   string            `json:"postType"`
	Title      string            `json:"title"`
	Status     domain.PostStatus `json:"status"`
	BlockCount int               `json:"blockCount"`
	Outline    []string          `json:"outline"`
}

func summarizePost(p domain.Post) postSummary {
	return postSummary{
		ID:         p.ID,
		PostType:   p.PostType,
		Title:      p.Title,
		Status:     p.Status,
		BlockCount: domain.CountBlocks(p.Blocks),
		Outline:    domain.Names(p.Blocks),
	}
}

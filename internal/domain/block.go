package domain

// Block is a single content unit in a post's block tree.
type Block struct {
	ClientID    string         `json:"clientId"`
	Name        string         `json:"name"`
	Attributes  map[string]any `json:"attributes"`
	InnerBlocks []Block        `json:"innerBlocks"`
}

// Names returns the top-level block names in order.
func Names(blocks []Block) []string {
	names := make([]string, len(blocks))
	for i, b := range blocks {
		names[i] = b.Name
	}
	return names
}

// CountBlocks returns the number of blocks in the tree, inner blocks included.
func CountBlocks(blocks []Block) int {
	n := len(blocks)
	for _, b := range blocks {
		n += CountBlocks(b.InnerBlocks)
	}
	return n
}

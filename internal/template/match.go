// Package template reconciles block trees against declarative block templates.
package template

import "blockeditor/internal/domain"

// DoBlocksMatchTemplate reports whether blocks have exactly the shape of tmpl:
// same length, same names in order, and matching inner blocks at every depth.
// Attributes are not compared.
func DoBlocksMatchTemplate(blocks []domain.Block, tmpl domain.Template) bool {
	if len(blocks) != len(tmpl) {
		return false
	}
	for i, entry := range tmpl {
		b := blocks[i]
		if b.Name != entry.Name || !DoBlocksMatchTemplate(b.InnerBlocks, entry.Inner) {
			return false
		}
	}
	return true
}

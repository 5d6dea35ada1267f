package lang

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codesearch-core/codesearch/internal/entity"
)

// ScanCalls walks every descendant of body whose type is callNodeType and
// records a Calls SourceReference for it, using funcField to pick out the
// callee expression. This is intra-file, pre-resolution collection (§4.3
// "intra-file ... populates relationships"); internal/resolve later turns
// the raw Target text into a ResolvedReference.
func ScanCalls(body *sitter.Node, source []byte, callNodeType, funcField string) []entity.SourceReference {
	if body == nil {
		return nil
	}
	var refs []entity.SourceReference
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == callNodeType {
			if callee := n.ChildByFieldName(funcField); callee != nil {
				refs = append(refs, entity.NewSourceReference(
					NodeContent(callee, source), entity.RefCalls, NodeLocation(n)))
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(body)
	return refs
}

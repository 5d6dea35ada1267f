package lang

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codesearch-core/codesearch/internal/entity"
)

// NodeContent returns the source slice a node spans.
func NodeContent(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return node.Content(source)
}

// NodeLocation converts a node's tree-sitter points into entity.Location,
// 1-basing line numbers (tree-sitter rows are 0-based) to match the
// teacher's GetNodeLocation convention.
func NodeLocation(node *sitter.Node) entity.Location {
	start := node.StartPoint()
	end := node.EndPoint()
	return entity.Location{
		StartLine:   int(start.Row) + 1,
		EndLine:     int(end.Row) + 1,
		StartColumn: int(start.Column),
		EndColumn:   int(end.Column),
		StartByte:   int(node.StartByte()),
		EndByte:     int(node.EndByte()),
	}
}

// FindChildByType returns the first direct child (named or not) of the
// given type.
func FindChildByType(node *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child != nil && child.Type() == nodeType {
			return child
		}
	}
	return nil
}

// FindChildrenByType returns every direct named child of the given type.
func FindChildrenByType(node *sitter.Node, nodeType string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child != nil && child.Type() == nodeType {
			out = append(out, child)
		}
	}
	return out
}

// ExtractDocString looks at the previous named sibling of node and returns
// its content if it looks like a comment, matching the teacher's
// BaseExtractor.ExtractDocString heuristic.
func ExtractDocString(node *sitter.Node, source []byte) string {
	parent := node.Parent()
	if parent == nil {
		return ""
	}
	idx := -1
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		if parent.NamedChild(i) == node {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return ""
	}
	prev := parent.NamedChild(idx - 1)
	if prev == nil {
		return ""
	}
	switch prev.Type() {
	case "comment", "block_comment", "line_comment", "documentation_comment", "doc_comment":
		return NodeContent(prev, source)
	default:
		return ""
	}
}

// BuildQualifiedName joins a parent's qualified name and a local name with
// sep, producing the empty-parent case ("" -> name) every PathConfig needs.
func BuildQualifiedName(parentQualified, sep, name string) string {
	if parentQualified == "" {
		return name
	}
	return parentQualified + sep + name
}

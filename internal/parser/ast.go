package parser

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

const (
	maxNormalizeDepth = 1000
	maxParseErrors    = 50
)

// Node is one node of the normalized syntax tree. The tree keeps every named
// grammar node plus every leaf token, so downstream passes see both structure
// and the exact token stream without holding tree-sitter handles. Lines and
// columns are 1-based.
type Node struct {
	Kind      string
	Name      string // symbol name when the grammar exposes a name field
	Named     bool   // named grammar node vs anonymous token
	Err       bool   // ERROR or MISSING marker; subtree is malformed
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
	StartByte int
	EndByte   int
	Children  []*Node
}

// Content returns the source text the node spans.
func (n *Node) Content(source []byte) string {
	if n.StartByte < 0 || n.EndByte > len(source) || n.StartByte > n.EndByte {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// IsLeaf reports whether the node is a token.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Walk visits the subtree depth-first in document order, skipping
// error-marked subtrees. Detectors use this so a malformed region never
// contributes to metrics.
func (n *Node) Walk(visit func(*Node)) {
	if n == nil || n.Err {
		return
	}
	visit(n)
	for _, c := range n.Children {
		c.Walk(visit)
	}
}

// WalkAll visits every node including error-marked subtrees.
func (n *Node) WalkAll(visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, c := range n.Children {
		c.WalkAll(visit)
	}
}

// ChildOfKind returns the first direct child with the given kind, or nil.
func (n *Node) ChildOfKind(kind string) *Node {
	for _, c := range n.Children {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

// normalize converts a tree-sitter tree into the normalized Node tree.
// Comments are dropped, ERROR and MISSING nodes are marked and recorded, and
// recursion is depth-capped so pathological input cannot run away.
func normalize(root *sitter.Node, source []byte) (*Node, []ParseError) {
	var errs []ParseError
	node := normalizeNode(root, source, 0, &errs)
	return node, errs
}

func normalizeNode(n *sitter.Node, source []byte, depth int, errs *[]ParseError) *Node {
	node := &Node{
		Kind:      n.Type(),
		Named:     n.IsNamed(),
		StartLine: int(n.StartPoint().Row) + 1,
		StartCol:  int(n.StartPoint().Column) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
		EndCol:    int(n.EndPoint().Column) + 1,
		StartByte: int(n.StartByte()),
		EndByte:   int(n.EndByte()),
	}

	if n.IsError() || n.IsMissing() {
		node.Err = true
		if len(*errs) < maxParseErrors {
			msg := "syntax error"
			if n.IsMissing() {
				msg = fmt.Sprintf("missing %s", n.Type())
			}
			*errs = append(*errs, ParseError{
				Line:    node.StartLine,
				Col:     node.StartCol,
				Message: msg,
			})
		}
		return node
	}

	if depth >= maxNormalizeDepth {
		node.Err = true
		if len(*errs) < maxParseErrors {
			*errs = append(*errs, ParseError{
				Line:    node.StartLine,
				Col:     node.StartCol,
				Message: "tree exceeds maximum depth",
			})
		}
		return node
	}

	if name := n.ChildByFieldName("name"); name != nil {
		node.Name = name.Content(source)
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == "comment" {
			continue
		}
		if !child.IsNamed() && child.ChildCount() > 0 {
			continue
		}
		node.Children = append(node.Children, normalizeNode(child, source, depth+1, errs))
	}

	return node
}

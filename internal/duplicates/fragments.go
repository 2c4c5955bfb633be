package duplicates

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/refacto-hq/refacto/internal/parser"
)

// fragment is one extracted function body prepared for all three passes.
type fragment struct {
	path      string
	function  string
	startLine int
	endLine   int
	lines     int

	exactHash uint64
	shapeHash uint64
	kindSig   *signature
	tokenSig  *signature
}

var bodyKinds = map[string]bool{
	"block":           true,
	"statement_block": true,
}

var literalKinds = map[string]bool{
	"int_literal":                true,
	"float_literal":              true,
	"imaginary_literal":          true,
	"rune_literal":               true,
	"interpreted_string_literal": true,
	"raw_string_literal":         true,
	"integer":                    true,
	"float":                      true,
	"string":                     true,
	"number":                     true,
	"template_string":            true,
	"true":                       true,
	"false":                      true,
	"none":                       true,
	"null":                       true,
}

func isIdentifierKind(kind string) bool {
	return kind == "identifier" || strings.HasSuffix(kind, "_identifier")
}

// extractFragments pulls every function meeting the minimum length out of
// the parsed files. Callers pass files sorted by path, so fragment order is
// stable for a given run.
func extractFragments(files []*parser.ParsedFile, minLines int) []fragment {
	var frags []fragment
	for _, file := range files {
		if file == nil || file.Root == nil {
			continue
		}
		for i := range file.Functions {
			fn := &file.Functions[i]
			if fn.Node == nil || fn.Lines() < minLines {
				continue
			}

			body := bodyNode(fn.Node)
			raw, canonical := tokenize(body, file.Source)
			if len(raw) == 0 {
				continue
			}
			kinds := shapeKinds(body)

			frags = append(frags, fragment{
				path:      file.Path,
				function:  functionLabel(fn),
				startLine: fn.StartLine,
				endLine:   fn.EndLine,
				lines:     fn.Lines(),
				exactHash: xxhash.Sum64String(strings.Join(raw, " ")),
				shapeHash: xxhash.Sum64String(strings.Join(kinds, " ")),
				kindSig:   newSignature(shingle(kinds, shingleSize)),
				tokenSig:  newSignature(shingle(canonical, shingleSize)),
			})
		}
	}
	return frags
}

// bodyNode returns the block child of a function declaration, or the
// declaration itself when the grammar has no block (expression-bodied
// arrow functions).
func bodyNode(n *parser.Node) *parser.Node {
	for _, c := range n.Children {
		if bodyKinds[c.Kind] {
			return c
		}
	}
	return n
}

// tokenize flattens a subtree into its raw token stream and a canonical
// stream where identifiers become VAR_n in first-occurrence order and
// literals become LIT. The raw stream carries no whitespace or comments, so
// hashing it compares code alone; the canonical stream is invariant under
// renaming. Malformed subtrees are skipped.
func tokenize(n *parser.Node, source []byte) (raw, canonical []string) {
	varNames := make(map[string]string)

	var walk func(*parser.Node)
	walk = func(n *parser.Node) {
		if n.Err {
			return
		}
		switch {
		case literalKinds[n.Kind]:
			raw = append(raw, n.Content(source))
			canonical = append(canonical, "LIT")
			return
		case len(n.Children) == 0:
			// Statement terminators surface as bare "\n" tokens in some
			// grammars; the stream keeps code tokens only.
			text := strings.TrimSpace(n.Content(source))
			if text == "" {
				return
			}
			raw = append(raw, text)
			if isIdentifierKind(n.Kind) {
				name, ok := varNames[text]
				if !ok {
					name = "VAR_" + strconv.Itoa(len(varNames)+1)
					varNames[text] = name
				}
				canonical = append(canonical, name)
			} else {
				canonical = append(canonical, text)
			}
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return raw, canonical
}

// shapeKinds returns the preorder kind sequence of named nodes, the
// identifier-free shape the structural pass compares. Literal subtrees
// contribute their kind only.
func shapeKinds(n *parser.Node) []string {
	var kinds []string

	var walk func(*parser.Node)
	walk = func(n *parser.Node) {
		if n.Err {
			return
		}
		if n.Named {
			kinds = append(kinds, n.Kind)
		}
		if literalKinds[n.Kind] {
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return kinds
}

func functionLabel(fn *parser.Function) string {
	name := fn.Name
	if name == "" {
		name = "(anonymous)"
	}
	if fn.Class != "" {
		return fn.Class + "." + name
	}
	return name
}

// Package parser turns raw source text into normalized syntax trees using
// tree-sitter grammars. Parsing is deterministic and tolerant: malformed
// input yields a best-effort partial tree with error-marked subtrees rather
// than a failure for the whole file.
package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrUnsupportedLanguage marks files no parser adapter exists for. Such
// files are recorded and skipped, never fatal to a run.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Parser parses source code files using tree-sitter
type Parser struct {
	goParser *sitter.Parser
	pyParser *sitter.Parser
	jsParser *sitter.Parser
}

// NewParser creates a new parser with all language support
func NewParser() *Parser {
	goParser := sitter.NewParser()
	goParser.SetLanguage(golang.GetLanguage())

	pyParser := sitter.NewParser()
	pyParser.SetLanguage(python.GetLanguage())

	jsParser := sitter.NewParser()
	jsParser.SetLanguage(javascript.GetLanguage())

	return &Parser{
		goParser: goParser,
		pyParser: pyParser,
		jsParser: jsParser,
	}
}

// ParseFile parses a single file from disk
func (p *Parser) ParseFile(ctx context.Context, filePath string) (*ParsedFile, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	lang := DetectLanguage(filePath)
	if !lang.Supported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, filePath)
	}

	return p.ParseContent(ctx, filePath, string(content), lang)
}

// ParseContent parses source code content into a normalized tree plus
// extracted function and class summaries. Identical content and language
// always produce a structurally identical tree.
func (p *Parser) ParseContent(ctx context.Context, filePath, content string, lang Language) (*ParsedFile, error) {
	var parser *sitter.Parser
	switch lang {
	case LanguageGo:
		parser = p.goParser
	case LanguagePython:
		parser = p.pyParser
	case LanguageJavaScript, LanguageTypeScript:
		parser = p.jsParser // Use JS parser for TS as well (basic support)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}

	source := []byte(content)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	defer tree.Close()

	parsed := &ParsedFile{
		Path:      filePath,
		Language:  lang,
		Source:    source,
		Functions: make([]Function, 0),
		Classes:   make([]Class, 0),
	}
	parsed.Root, parsed.ParseErrors = normalize(tree.RootNode(), source)

	// Extract functions and classes based on language
	switch lang {
	case LanguageGo:
		p.extractGoFunctions(tree.RootNode(), source, parsed)
	case LanguagePython:
		p.extractPythonFunctions(tree.RootNode(), source, parsed)
	case LanguageJavaScript, LanguageTypeScript:
		p.extractJSFunctions(tree.RootNode(), source, parsed)
	}

	p.linkFunctionNodes(parsed)

	return parsed, nil
}

// linkFunctionNodes attaches each extracted function to its subtree in the
// normalized tree, matched by start byte.
func (p *Parser) linkFunctionNodes(parsed *ParsedFile) {
	index := make(map[int]*Node)
	parsed.Root.WalkAll(func(n *Node) {
		// Anonymous tokens can shadow their declaration: the JS "function"
		// keyword shares kind and start byte with the declaration node.
		if !n.Named {
			return
		}
		switch n.Kind {
		case "function_declaration", "method_declaration", "function_definition",
			"arrow_function", "function", "function_expression", "method_definition":
			index[n.StartByte] = n
		}
	})

	for i := range parsed.Functions {
		parsed.Functions[i].Node = index[parsed.Functions[i].StartByte]
	}
	for i := range parsed.Classes {
		for j := range parsed.Classes[i].Methods {
			m := &parsed.Classes[i].Methods[j]
			m.Node = index[m.StartByte]
		}
	}
}

// extractGoFunctions extracts functions and methods from Go source
func (p *Parser) extractGoFunctions(node *sitter.Node, source []byte, parsed *ParsedFile) {
	cursor := sitter.NewTreeCursor(node)
	defer cursor.Close()

	p.walkTree(cursor, func(n *sitter.Node) {
		switch n.Type() {
		case "function_declaration":
			fn := p.parseGoFunction(n, source)
			if fn != nil {
				fn.ID = fmt.Sprintf("%s:%d:%s", parsed.Path, fn.StartLine, fn.Name)
				parsed.Functions = append(parsed.Functions, *fn)
			}
		case "method_declaration":
			fn := p.parseGoMethod(n, source)
			if fn != nil {
				fn.ID = fmt.Sprintf("%s:%d:%s", parsed.Path, fn.StartLine, fn.Name)
				parsed.Functions = append(parsed.Functions, *fn)
			}
		}
	})
}

func (p *Parser) parseGoFunction(node *sitter.Node, source []byte) *Function {
	fn := &Function{
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		StartByte:  int(node.StartByte()),
		Parameters: make([]Parameter, 0),
	}

	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		fn.Name = nameNode.Content(source)
	}
	if fn.Name != "" {
		r, _ := utf8.DecodeRuneInString(fn.Name)
		fn.Exported = unicode.IsUpper(r)
	}

	if paramsNode := node.ChildByFieldName("parameters"); paramsNode != nil {
		fn.Parameters = p.parseGoParameters(paramsNode, source)
	}
	if bodyNode := node.ChildByFieldName("body"); bodyNode != nil {
		fn.Body = bodyNode.Content(source)
	}

	return fn
}

func (p *Parser) parseGoMethod(node *sitter.Node, source []byte) *Function {
	fn := p.parseGoFunction(node, source)
	if fn == nil {
		return nil
	}

	// Receiver type names the "class" the method belongs to
	if recv := node.ChildByFieldName("receiver"); recv != nil {
		for j := 0; j < int(recv.ChildCount()); j++ {
			param := recv.Child(j)
			if param.Type() == "parameter_declaration" {
				typeNode := param.ChildByFieldName("type")
				if typeNode != nil {
					fn.Class = strings.TrimPrefix(typeNode.Content(source), "*")
				}
			}
		}
	}

	return fn
}

func (p *Parser) parseGoParameters(node *sitter.Node, source []byte) []Parameter {
	params := make([]Parameter, 0)

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "parameter_declaration" && child.Type() != "variadic_parameter_declaration" {
			continue
		}

		typeName := ""
		if typeNode := child.ChildByFieldName("type"); typeNode != nil {
			typeName = typeNode.Content(source)
		}

		// One declaration can name several parameters: (a, b int)
		names := 0
		for j := 0; j < int(child.ChildCount()); j++ {
			sub := child.Child(j)
			if sub.Type() == "identifier" {
				params = append(params, Parameter{Name: sub.Content(source), Type: typeName})
				names++
			}
		}
		if names == 0 {
			// Unnamed parameter, type only
			params = append(params, Parameter{Type: typeName})
		}
	}

	return params
}

// extractPythonFunctions extracts functions and classes from Python source
func (p *Parser) extractPythonFunctions(node *sitter.Node, source []byte, parsed *ParsedFile) {
	cursor := sitter.NewTreeCursor(node)
	defer cursor.Close()

	// Methods are collected through their class first so they carry the
	// class name; the global walk then skips them.
	seen := make(map[uint32]bool)

	p.walkTree(cursor, func(n *sitter.Node) {
		switch n.Type() {
		case "class_definition":
			cls := p.parsePythonClass(n, source, parsed.Path, seen)
			if cls != nil {
				parsed.Classes = append(parsed.Classes, *cls)
				parsed.Functions = append(parsed.Functions, cls.Methods...)
			}
		case "function_definition":
			if seen[n.StartByte()] {
				return
			}
			fn := p.parsePythonFunction(n, source)
			if fn != nil {
				fn.ID = fmt.Sprintf("%s:%d:%s", parsed.Path, fn.StartLine, fn.Name)
				parsed.Functions = append(parsed.Functions, *fn)
			}
		}
	})
}

func (p *Parser) parsePythonFunction(node *sitter.Node, source []byte) *Function {
	fn := &Function{
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		StartByte:  int(node.StartByte()),
		Parameters: make([]Parameter, 0),
	}

	nameNode := node.ChildByFieldName("name")
	if nameNode != nil {
		fn.Name = nameNode.Content(source)
		fn.Exported = !strings.HasPrefix(fn.Name, "_")
	}

	paramsNode := node.ChildByFieldName("parameters")
	if paramsNode != nil {
		fn.Parameters = p.parsePythonParameters(paramsNode, source)
	}

	if bodyNode := node.ChildByFieldName("body"); bodyNode != nil {
		fn.Body = bodyNode.Content(source)
	}

	// Check if async
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "async" {
			fn.Async = true
			break
		}
	}

	return fn
}

func (p *Parser) parsePythonParameters(node *sitter.Node, source []byte) []Parameter {
	params := make([]Parameter, 0)

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "identifier" {
			name := child.Content(source)
			if name != "self" && name != "cls" {
				params = append(params, Parameter{Name: name})
			}
		} else if child.Type() == "typed_parameter" || child.Type() == "default_parameter" {
			var param Parameter
			for j := 0; j < int(child.ChildCount()); j++ {
				subChild := child.Child(j)
				if subChild.Type() == "identifier" {
					param.Name = subChild.Content(source)
				} else if subChild.Type() == "type" {
					param.Type = subChild.Content(source)
				}
			}
			if param.Name != "" && param.Name != "self" && param.Name != "cls" {
				params = append(params, param)
			}
		}
	}

	return params
}

func (p *Parser) parsePythonClass(node *sitter.Node, source []byte, filePath string, seen map[uint32]bool) *Class {
	cls := &Class{
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Methods:   make([]Function, 0),
	}

	nameNode := node.ChildByFieldName("name")
	if nameNode != nil {
		cls.Name = nameNode.Content(source)
		cls.Exported = !strings.HasPrefix(cls.Name, "_")
		cls.ID = fmt.Sprintf("%s:%d:%s", filePath, cls.StartLine, cls.Name)
	}

	// Extract methods from class body, unwrapping decorators
	bodyNode := node.ChildByFieldName("body")
	if bodyNode != nil {
		for i := 0; i < int(bodyNode.ChildCount()); i++ {
			child := bodyNode.Child(i)
			if child.Type() == "decorated_definition" {
				if def := child.ChildByFieldName("definition"); def != nil {
					child = def
				}
			}
			if child.Type() != "function_definition" {
				continue
			}
			fn := p.parsePythonFunction(child, source)
			if fn != nil {
				fn.Class = cls.Name
				fn.ID = fmt.Sprintf("%s:%d:%s.%s", filePath, fn.StartLine, cls.Name, fn.Name)
				cls.Methods = append(cls.Methods, *fn)
				seen[child.StartByte()] = true
			}
		}
	}

	return cls
}

// extractJSFunctions extracts functions, methods and classes from
// JavaScript/TypeScript source
func (p *Parser) extractJSFunctions(node *sitter.Node, source []byte, parsed *ParsedFile) {
	cursor := sitter.NewTreeCursor(node)
	defer cursor.Close()

	seen := make(map[uint32]bool)

	p.walkTree(cursor, func(n *sitter.Node) {
		switch n.Type() {
		case "class_declaration":
			cls := p.parseJSClass(n, source, parsed.Path, seen)
			if cls != nil {
				parsed.Classes = append(parsed.Classes, *cls)
				parsed.Functions = append(parsed.Functions, cls.Methods...)
			}
		case "function_declaration":
			fn := p.parseJSFunction(n, source)
			if fn != nil {
				fn.ID = fmt.Sprintf("%s:%d:%s", parsed.Path, fn.StartLine, fn.Name)
				parsed.Functions = append(parsed.Functions, *fn)
			}
		case "arrow_function", "function", "function_expression":
			// These might be assigned to variables
			parent := n.Parent()
			if parent != nil && parent.Type() == "variable_declarator" {
				fn := p.parseJSArrowFunction(n, parent, source)
				if fn != nil {
					fn.ID = fmt.Sprintf("%s:%d:%s", parsed.Path, fn.StartLine, fn.Name)
					parsed.Functions = append(parsed.Functions, *fn)
				}
			}
		case "method_definition":
			if seen[n.StartByte()] {
				return
			}
			fn := p.parseJSMethod(n, source)
			if fn != nil {
				fn.ID = fmt.Sprintf("%s:%d:%s", parsed.Path, fn.StartLine, fn.Name)
				parsed.Functions = append(parsed.Functions, *fn)
			}
		}
	})
}

func (p *Parser) parseJSFunction(node *sitter.Node, source []byte) *Function {
	fn := &Function{
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		StartByte:  int(node.StartByte()),
		Parameters: make([]Parameter, 0),
		Exported:   true, // Check export status separately
	}

	nameNode := node.ChildByFieldName("name")
	if nameNode != nil {
		fn.Name = nameNode.Content(source)
	}

	paramsNode := node.ChildByFieldName("parameters")
	if paramsNode != nil {
		fn.Parameters = p.parseJSParameters(paramsNode, source)
	}

	if bodyNode := node.ChildByFieldName("body"); bodyNode != nil {
		fn.Body = bodyNode.Content(source)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "async" {
			fn.Async = true
			break
		}
	}

	return fn
}

func (p *Parser) parseJSArrowFunction(node, parent *sitter.Node, source []byte) *Function {
	fn := &Function{
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		StartByte:  int(node.StartByte()),
		Parameters: make([]Parameter, 0),
	}

	// Get name from parent variable declarator
	nameNode := parent.ChildByFieldName("name")
	if nameNode != nil {
		fn.Name = nameNode.Content(source)
	}

	paramsNode := node.ChildByFieldName("parameters")
	if paramsNode != nil {
		fn.Parameters = p.parseJSParameters(paramsNode, source)
	}

	if bodyNode := node.ChildByFieldName("body"); bodyNode != nil {
		fn.Body = bodyNode.Content(source)
	}

	return fn
}

func (p *Parser) parseJSMethod(node *sitter.Node, source []byte) *Function {
	fn := &Function{
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		StartByte:  int(node.StartByte()),
		Parameters: make([]Parameter, 0),
	}

	nameNode := node.ChildByFieldName("name")
	if nameNode != nil {
		fn.Name = nameNode.Content(source)
	}

	paramsNode := node.ChildByFieldName("parameters")
	if paramsNode != nil {
		fn.Parameters = p.parseJSParameters(paramsNode, source)
	}

	if bodyNode := node.ChildByFieldName("body"); bodyNode != nil {
		fn.Body = bodyNode.Content(source)
	}

	return fn
}

func (p *Parser) parseJSParameters(node *sitter.Node, source []byte) []Parameter {
	params := make([]Parameter, 0)

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			params = append(params, Parameter{Name: child.Content(source)})
		case "assignment_pattern":
			// Default value: name sits on the left
			if left := child.ChildByFieldName("left"); left != nil {
				params = append(params, Parameter{Name: left.Content(source)})
			}
		case "rest_pattern":
			for j := 0; j < int(child.ChildCount()); j++ {
				if sub := child.Child(j); sub.Type() == "identifier" {
					params = append(params, Parameter{Name: sub.Content(source)})
				}
			}
		case "required_parameter", "optional_parameter":
			var param Parameter
			if patternNode := child.ChildByFieldName("pattern"); patternNode != nil {
				param.Name = patternNode.Content(source)
			}
			if typeNode := child.ChildByFieldName("type"); typeNode != nil {
				param.Type = typeNode.Content(source)
			}
			if param.Name != "" {
				params = append(params, param)
			}
		}
	}

	return params
}

func (p *Parser) parseJSClass(node *sitter.Node, source []byte, filePath string, seen map[uint32]bool) *Class {
	cls := &Class{
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Methods:   make([]Function, 0),
		Exported:  true,
	}

	nameNode := node.ChildByFieldName("name")
	if nameNode != nil {
		cls.Name = nameNode.Content(source)
		cls.ID = fmt.Sprintf("%s:%d:%s", filePath, cls.StartLine, cls.Name)
	}

	bodyNode := node.ChildByFieldName("body")
	if bodyNode != nil {
		for i := 0; i < int(bodyNode.ChildCount()); i++ {
			child := bodyNode.Child(i)
			if child.Type() != "method_definition" {
				continue
			}
			fn := p.parseJSMethod(child, source)
			if fn != nil {
				fn.Class = cls.Name
				fn.ID = fmt.Sprintf("%s:%d:%s.%s", filePath, fn.StartLine, cls.Name, fn.Name)
				cls.Methods = append(cls.Methods, *fn)
				seen[child.StartByte()] = true
			}
		}
	}

	return cls
}

// walkTree walks the tree and calls fn for each node
func (p *Parser) walkTree(cursor *sitter.TreeCursor, fn func(*sitter.Node)) {
	for {
		fn(cursor.CurrentNode())

		if cursor.GoToFirstChild() {
			continue
		}

		for {
			if cursor.GoToNextSibling() {
				break
			}
			if !cursor.GoToParent() {
				return
			}
		}
	}
}

// DetectLanguage detects language from file extension
func DetectLanguage(path string) Language {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".go":
		return LanguageGo
	case ".py":
		return LanguagePython
	case ".js", ".jsx", ".mjs":
		return LanguageJavaScript
	case ".ts", ".tsx":
		return LanguageTypeScript
	case ".java":
		return LanguageJava
	default:
		return LanguageUnknown
	}
}

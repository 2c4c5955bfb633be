package parser

// Language represents a programming language
type Language string

const (
	LanguageGo         Language = "go"
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageJava       Language = "java"
	LanguageUnknown    Language = "unknown"
)

// Supported reports whether a parser adapter exists for the language.
// TypeScript rides on the JavaScript grammar.
func (l Language) Supported() bool {
	switch l {
	case LanguageGo, LanguagePython, LanguageJavaScript, LanguageTypeScript:
		return true
	default:
		return false
	}
}

// SourceFile is one file of an analysis run. Immutable once read; owned by
// the run that read it.
type SourceFile struct {
	Path      string
	Language  Language
	Content   string
	Supported bool
}

// NewSourceFile builds a SourceFile, detecting language and support from the
// path.
func NewSourceFile(path, content string) SourceFile {
	lang := DetectLanguage(path)
	return SourceFile{
		Path:      path,
		Language:  lang,
		Content:   content,
		Supported: lang.Supported(),
	}
}

// ParsedFile represents a parsed source file: the normalized syntax tree
// plus extracted function and class summaries.
type ParsedFile struct {
	Path        string
	Language    Language
	Source      []byte
	Root        *Node
	Functions   []Function
	Classes     []Class
	ParseErrors []ParseError
}

// HasErrors reports whether the file parsed only partially.
func (f *ParsedFile) HasErrors() bool {
	return len(f.ParseErrors) > 0
}

// LineCount returns the number of lines in the source.
func (f *ParsedFile) LineCount() int {
	if len(f.Source) == 0 {
		return 0
	}
	n := 1
	for _, b := range f.Source {
		if b == '\n' {
			n++
		}
	}
	return n
}

// ParseError marks one malformed region of a file. The surrounding file is
// still analyzed; only the subtree rooted at the error is skipped.
type ParseError struct {
	Line    int
	Col     int
	Message string
}

// Function represents a parsed function or method
type Function struct {
	ID         string // Unique identifier: file:line:name
	Name       string
	StartLine  int
	EndLine    int
	StartByte  int
	Parameters []Parameter
	Body       string // Full function body
	Exported   bool   // Is publicly accessible
	Async      bool   // Is async function
	Class      string // Parent class or receiver type (if method)
	Node       *Node  // Subtree in the normalized AST
}

// Lines returns the function length in source lines.
func (fn *Function) Lines() int {
	return fn.EndLine - fn.StartLine + 1
}

// Class represents a parsed class
type Class struct {
	ID        string
	Name      string
	StartLine int
	EndLine   int
	Methods   []Function
	Exported  bool
}

// Parameter represents a function parameter
type Parameter struct {
	Name string
	Type string
}

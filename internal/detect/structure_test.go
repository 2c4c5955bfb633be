package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refacto-hq/refacto/pkg/model"
)

func TestLongMethod(t *testing.T) {
	file := parse(t, "calc.go", `package calc

func Grow(n int) int {
	n++
	n++
	n++
	n++
	return n
}

func Small() int {
	return 1
}
`)

	opts := testOptions()
	opts.MaxFunctionLines = 4

	issues := LongMethod{}.Detect(file, opts)
	require.Len(t, issues, 1)

	issue := issues[0]
	assert.Equal(t, model.IssueLongMethod, issue.Type)
	assert.Equal(t, "Grow", issue.FunctionName)
	assert.Equal(t, 3, issue.LineStart)
	assert.Equal(t, 9, issue.LineEnd)
	assert.Equal(t, float64(7), issue.Metrics.Value)
	assert.Equal(t, model.SeverityHigh, issue.Severity, "7 lines against a limit of 4")
	assert.Equal(t, 90, issue.Confidence)
}

func TestLongMethod_UnderLimit(t *testing.T) {
	file := parse(t, "calc.go", "package calc\n\nfunc A() int {\n\treturn 1\n}\n")
	issues := LongMethod{}.Detect(file, testOptions())
	assert.Empty(t, issues)
}

func TestGodClass_Python(t *testing.T) {
	file := parse(t, "store.py", `class Store:
    def get(self):
        pass

    def put(self):
        pass

    def delete(self):
        pass
`)

	opts := testOptions()
	opts.MaxClassMethods = 2

	issues := GodClass{}.Detect(file, opts)
	require.Len(t, issues, 1)

	issue := issues[0]
	assert.Equal(t, model.IssueGodClass, issue.Type)
	assert.Equal(t, "Store", issue.ClassName)
	assert.Equal(t, float64(3), issue.Metrics.Value)
	assert.Contains(t, issue.Description, "3 methods")
}

func TestGodClass_GoReceiverGrouping(t *testing.T) {
	file := parse(t, "store.go", `package store

type Store struct{}

func (s *Store) Get() {}

func (s *Store) Put() {}

func (s *Store) Delete() {}

func Helper() {}
`)

	opts := testOptions()
	opts.MaxClassMethods = 2

	issues := GodClass{}.Detect(file, opts)
	require.Len(t, issues, 1)

	issue := issues[0]
	assert.Equal(t, "Store", issue.ClassName)
	assert.Equal(t, 5, issue.LineStart)
	assert.Equal(t, 9, issue.LineEnd)
	assert.Contains(t, issue.Description, "Type 'Store'")
}

func TestGodClass_UnderLimit(t *testing.T) {
	file := parse(t, "store.go", "package store\n\ntype S struct{}\n\nfunc (s S) One() {}\n")
	issues := GodClass{}.Detect(file, testOptions())
	assert.Empty(t, issues)
}

func TestDeepNesting(t *testing.T) {
	file := parse(t, "deep.go", `package deep

func Nested(a, b, c bool) int {
	if a {
		if b {
			if c {
				return 1
			}
		}
	}
	return 0
}
`)

	opts := testOptions()
	opts.MaxNestingDepth = 2

	issues := DeepNesting{}.Detect(file, opts)
	require.Len(t, issues, 1)

	issue := issues[0]
	assert.Equal(t, model.IssueDeepNesting, issue.Type)
	assert.Equal(t, "Nested", issue.FunctionName)
	assert.Equal(t, float64(3), issue.Metrics.Value)
	assert.Equal(t, 6, issue.LineStart, "anchored at the innermost structure")
	assert.Equal(t, model.SeverityMedium, issue.Severity)
}

func TestDeepNesting_FlatFunction(t *testing.T) {
	file := parse(t, "flat.go", `package flat

func Flat(a bool) int {
	if a {
		return 1
	}
	return 0
}
`)
	issues := DeepNesting{}.Detect(file, testOptions())
	assert.Empty(t, issues)
}

func TestLongParameterList(t *testing.T) {
	file := parse(t, "params.py", `def configure(host, port, user, password, timeout, retries):
    pass
`)

	opts := testOptions()
	opts.MaxParameters = 5

	issues := LongParameterList{}.Detect(file, opts)
	require.Len(t, issues, 1)

	issue := issues[0]
	assert.Equal(t, model.IssueLongParameterList, issue.Type)
	assert.Equal(t, "configure", issue.FunctionName)
	assert.Equal(t, float64(6), issue.Metrics.Value)
	assert.Equal(t, 1, issue.LineStart)
	assert.Equal(t, 1, issue.LineEnd)
}

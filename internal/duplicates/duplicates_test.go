package duplicates

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refacto-hq/refacto/internal/analyzer"
	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/pkg/model"
)

const sumBody = `	total := 0
	for _, item := range items {
		if item > 0 {
			total += item
		}
		if item < 0 {
			total -= item
		}
	}
	limit := total * 2
	_ = limit
	return total`

// mergeBody has the exact statement shapes of sumBody with every
// identifier and literal changed.
const mergeBody = `	acc := 5
	for _, v := range values {
		if v > 10 {
			acc += v
		}
		if v < 20 {
			acc -= v
		}
	}
	bound := acc * 3
	_ = bound
	return acc`

func goFile(name, params, body string) string {
	return "package p\n\nfunc " + name + "(" + params + ") int {\n" + body + "\n}\n"
}

func parseAll(t *testing.T, files map[string]string) []*parser.ParsedFile {
	t.Helper()
	p := parser.NewParser()

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var parsed []*parser.ParsedFile
	for _, path := range paths {
		file, err := p.ParseContent(context.Background(), path, files[path], parser.DetectLanguage(path))
		require.NoError(t, err)
		parsed = append(parsed, file)
	}
	return parsed
}

func testOptions() *analyzer.Options {
	return analyzer.DefaultOptions()
}

func TestFind_ExactDuplicates(t *testing.T) {
	files := parseAll(t, map[string]string{
		"a.go": goFile("SumPositive", "items []int", sumBody),
		"b.go": goFile("Accumulate", "items []int", sumBody),
	})

	groups, issues := NewFinder().Find(files, testOptions())

	require.Len(t, groups, 1)
	group := groups[0]
	assert.Equal(t, 2, group.Size())
	assert.Equal(t, model.PassExact, group.Pass)
	assert.Equal(t, 1.0, group.Similarity)

	require.Len(t, issues, 2)
	for i, issue := range issues {
		assert.Equal(t, model.IssueDuplicateCode, issue.Type)
		assert.Equal(t, 100, issue.Confidence)
		assert.Equal(t, 3, issue.LineStart)
		assert.Equal(t, 16, issue.LineEnd)
		require.NotNil(t, issue.DuplicateGroupID)
		assert.Equal(t, group.ID, *issue.DuplicateGroupID)
		assert.Equal(t, group.IssueIDs[i], issue.ID)
		assert.Equal(t, 14, issue.Metrics.Lines)
		assert.Equal(t, 1.0, issue.Metrics.Similarity)
	}
	assert.Equal(t, "a.go", issues[0].FilePath)
	assert.Equal(t, "SumPositive", issues[0].FunctionName)
	assert.Equal(t, "b.go", issues[1].FilePath)
	assert.Equal(t, "Accumulate", issues[1].FunctionName)

	require.Len(t, group.Members, 2)
	assert.Equal(t, "a.go", group.Members[0].FilePath)
	assert.Equal(t, "b.go", group.Members[1].FilePath)
}

func TestFind_DistinctJSFunctionsNotGrouped(t *testing.T) {
	files := parseAll(t, map[string]string{
		"a.js": `function tally(items) {
    let total = 0;
    for (const item of items) {
        if (item > 0) {
            total += item;
        }
    }
    return total;
}
`,
		"b.js": `function describe(user) {
    if (!user) {
        return "unknown";
    }
    const name = user.name || "anonymous";
    const role = user.role || "guest";
    return name + " (" + role + ")";
}
`,
	})

	groups, issues := NewFinder().Find(files, testOptions())

	// Unrelated bodies must never collapse into one fragment signature.
	assert.Empty(t, groups)
	assert.Empty(t, issues)
}

func TestFind_TransitiveMembership(t *testing.T) {
	files := parseAll(t, map[string]string{
		"a.go": goFile("First", "items []int", sumBody),
		"b.go": goFile("Second", "items []int", sumBody),
		"c.go": goFile("Third", "items []int", sumBody),
	})

	groups, issues := NewFinder().Find(files, testOptions())

	require.Len(t, groups, 1)
	assert.Equal(t, 3, groups[0].Size())
	assert.Len(t, issues, 3)
	for _, issue := range issues {
		require.NotNil(t, issue.DuplicateGroupID)
		assert.Equal(t, groups[0].ID, *issue.DuplicateGroupID)
	}
}

func TestFind_RenamedCopyGroupsStructurally(t *testing.T) {
	files := parseAll(t, map[string]string{
		"a.go": goFile("SumPositive", "items []int", sumBody),
		"b.go": goFile("Merge", "values []int", mergeBody),
	})

	groups, issues := NewFinder().Find(files, testOptions())

	require.Len(t, groups, 1)
	assert.Equal(t, model.PassStructural, groups[0].Pass)
	assert.Equal(t, 1.0, groups[0].Similarity)

	require.Len(t, issues, 2)
	for _, issue := range issues {
		assert.Equal(t, 95, issue.Confidence, "identical shape scores the top of the structural band")
	}
}

func TestFind_StrongerPassWinsMemberConfidence(t *testing.T) {
	files := parseAll(t, map[string]string{
		"a.go": goFile("First", "items []int", sumBody),
		"b.go": goFile("Second", "items []int", sumBody),
		"c.go": goFile("Renamed", "values []int", mergeBody),
	})

	groups, issues := NewFinder().Find(files, testOptions())

	require.Len(t, groups, 1)
	assert.Equal(t, 3, groups[0].Size())
	assert.Equal(t, model.PassExact, groups[0].Pass, "strongest pass labels the group")

	require.Len(t, issues, 3)
	assert.Equal(t, 100, issues[0].Confidence)
	assert.Equal(t, 100, issues[1].Confidence)
	assert.Equal(t, 95, issues[2].Confidence, "the renamed copy only has structural evidence")
}

func TestFind_SameFileDuplicates(t *testing.T) {
	src := "package p\n\nfunc First(items []int) int {\n" + sumBody + "\n}\n\nfunc Second(items []int) int {\n" + sumBody + "\n}\n"
	files := parseAll(t, map[string]string{"a.go": src})

	groups, issues := NewFinder().Find(files, testOptions())

	require.Len(t, groups, 1)
	require.Len(t, issues, 2)
	assert.Equal(t, "First", issues[0].FunctionName)
	assert.Equal(t, "Second", issues[1].FunctionName)
	assert.Less(t, issues[0].LineStart, issues[1].LineStart)
}

func TestFind_PythonExactDuplicates(t *testing.T) {
	body := `    data = []
    with open(path) as fh:
        for line in fh:
            if line.strip():
                data.append(line)
    return data`
	files := parseAll(t, map[string]string{
		"load.py": "def load(path):\n" + body + "\n",
		"read.py": "def read(path):\n" + body + "\n",
	})

	groups, issues := NewFinder().Find(files, testOptions())

	require.Len(t, groups, 1)
	assert.Equal(t, model.PassExact, groups[0].Pass)
	require.Len(t, issues, 2)
	assert.Equal(t, 100, issues[0].Confidence)
	assert.Equal(t, 100, issues[1].Confidence)
}

func TestFind_ShortFunctionsIgnored(t *testing.T) {
	short := "package p\n\nfunc Tiny() int {\n\treturn 1\n}\n"
	files := parseAll(t, map[string]string{"a.go": short, "b.go": short})

	groups, issues := NewFinder().Find(files, testOptions())
	assert.Empty(t, groups)
	assert.Empty(t, issues)
}

func TestFind_MinLinesOption(t *testing.T) {
	files := parseAll(t, map[string]string{
		"a.go": goFile("SumPositive", "items []int", sumBody),
		"b.go": goFile("Accumulate", "items []int", sumBody),
	})

	opts := testOptions()
	opts.DuplicateMinLines = 20

	groups, issues := NewFinder().Find(files, opts)
	assert.Empty(t, groups)
	assert.Empty(t, issues)
}

func TestSemanticPass_JoinsExistingGroup(t *testing.T) {
	tokens := []string{"{", "VAR_1", ":=", "LIT", "for", "VAR_2", ":=", "range", "VAR_3",
		"{", "VAR_1", "+=", "VAR_2", "}", "return", "VAR_1", "}"}
	sig := func() *signature { return newSignature(shingle(tokens, shingleSize)) }

	frags := []fragment{
		{path: "a.go", startLine: 1, endLine: 10, tokenSig: sig()},
		{path: "b.go", startLine: 1, endLine: 10, tokenSig: sig()},
		{path: "c.go", startLine: 1, endLine: 10, tokenSig: sig()},
	}
	uf := newUnionFind(3)
	uf.union(0, 1)
	best := make([]match, 3)

	links := semanticPass(frags, uf, best, nil, 0.75)

	require.Len(t, links, 1, "pairs inside the settled group are not rescored")
	assert.Equal(t, model.PassSemantic, links[0].pass)
	assert.InDelta(t, 1.0, links[0].similarity, 1e-9)
	assert.Equal(t, uf.find(0), uf.find(2), "the ungrouped fragment joins the existing group")
}

func TestTokenize_CanonicalStream(t *testing.T) {
	files := parseAll(t, map[string]string{
		"add.go": "package p\n\nfunc Add(a, b int) int {\n\tc := a + b\n\treturn c\n}\n",
	})
	require.Len(t, files[0].Functions, 1)

	body := bodyNode(files[0].Functions[0].Node)
	raw, canonical := tokenize(body, files[0].Source)

	assert.Equal(t, []string{"{", "c", ":=", "a", "+", "b", "return", "c", "}"}, raw)
	assert.Equal(t, []string{"{", "VAR_1", ":=", "VAR_2", "+", "VAR_3", "return", "VAR_1", "}"}, canonical)
}

func TestTokenize_LiteralsCollapse(t *testing.T) {
	files := parseAll(t, map[string]string{
		"lit.go": "package p\n\nfunc Greet() string {\n\tname := \"world\"\n\treturn name\n}\n",
	})
	require.Len(t, files[0].Functions, 1)

	body := bodyNode(files[0].Functions[0].Node)
	raw, canonical := tokenize(body, files[0].Source)

	assert.Contains(t, raw, `"world"`)
	assert.Contains(t, canonical, "LIT")
	assert.NotContains(t, canonical, `"world"`)
}

func TestStructuralConfidence(t *testing.T) {
	tests := []struct {
		sim       float64
		threshold float64
		want      int
	}{
		{0.90, 0.90, 85},
		{0.92, 0.90, 87},
		{0.95, 0.90, 90},
		{1.0, 0.90, 95},
		{1.0, 1.0, 95},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, structuralConfidence(tt.sim, tt.threshold), "sim=%v threshold=%v", tt.sim, tt.threshold)
	}
}

func TestMemberConfidence(t *testing.T) {
	opts := testOptions()

	assert.Equal(t, 100, memberConfidence(match{pass: model.PassExact, similarity: 1.0}, opts))
	assert.Equal(t, 76, memberConfidence(match{pass: model.PassSemantic, similarity: 0.76}, opts))
	assert.Equal(t, 83, memberConfidence(match{pass: model.PassSemantic, similarity: 0.829}, opts))
}

func TestUnionFind(t *testing.T) {
	uf := newUnionFind(5)
	uf.union(0, 1)
	uf.union(1, 2)

	assert.Equal(t, uf.find(0), uf.find(2))
	assert.NotEqual(t, uf.find(0), uf.find(3))
	assert.Equal(t, 3, uf.size[uf.find(0)])
	assert.Equal(t, 1, uf.size[uf.find(4)])
}

func TestJaccard(t *testing.T) {
	a := newSignature(shingle([]string{"x", "y", "z", "w", "v"}, shingleSize))
	b := newSignature(shingle([]string{"x", "y", "z", "w", "v"}, shingleSize))
	c := newSignature(shingle([]string{"p", "q", "r", "s", "t"}, shingleSize))

	assert.Equal(t, 1.0, a.jaccard(b))
	assert.Less(t, a.jaccard(c), 0.5)
	assert.Equal(t, 0.0, a.jaccard(nil))

	var empty *signature
	assert.Equal(t, 0.0, empty.jaccard(a))
}

func TestCandidatePairs_IdenticalSignaturesCollide(t *testing.T) {
	sig := newSignature(shingle([]string{"a", "b", "c", "d", "e", "f"}, shingleSize))
	other := newSignature(shingle([]string{"q", "r", "s", "t", "u", "v"}, shingleSize))

	pairs := candidatePairs([]*signature{sig, sig, nil, other})

	assert.Contains(t, pairs, [2]int{0, 1})
	for _, p := range pairs {
		assert.NotEqual(t, 2, p[0], "nil signatures never become candidates")
		assert.NotEqual(t, 2, p[1], "nil signatures never become candidates")
	}
}

package detect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refacto-hq/refacto/internal/analyzer"
	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/pkg/model"
)

func parse(t *testing.T, path, src string) *parser.ParsedFile {
	t.Helper()
	p := parser.NewParser()
	file, err := p.ParseContent(context.Background(), path, src, parser.DetectLanguage(path))
	require.NoError(t, err)
	return file
}

func testOptions() *analyzer.Options {
	return analyzer.DefaultOptions()
}

func TestAll_RegistersEveryDetector(t *testing.T) {
	detectors := All()
	require.Len(t, detectors, 10)

	names := make(map[string]bool)
	for _, d := range detectors {
		assert.NotEmpty(t, d.Name())
		assert.False(t, names[d.Name()], "duplicate detector name %q", d.Name())
		names[d.Name()] = true
	}
}

func TestSeverityForRatio(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		threshold int
		want      model.Severity
	}{
		{"just above", 11, 10, model.SeverityMedium},
		{"at 1.5x", 15, 10, model.SeverityMedium},
		{"above 1.5x", 16, 10, model.SeverityHigh},
		{"at 2x", 20, 10, model.SeverityHigh},
		{"above 2x", 21, 10, model.SeverityCritical},
		{"zero threshold", 5, 0, model.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, severityForRatio(tt.value, tt.threshold))
		})
	}
}

func TestStripQuotes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"hello"`, "hello"},
		{`'hello'`, "hello"},
		{"`raw value`", "raw value"},
		{`f"name={x}"`, "name={x}"},
		{`r'\d+'`, `\d+`},
		{`"""doc"""`, "doc"},
		{`""`, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, stripQuotes(tt.in), "input %q", tt.in)
	}
}

func TestIsUpperSnake(t *testing.T) {
	assert.True(t, isUpperSnake("MAX_SIZE"))
	assert.True(t, isUpperSnake("TIMEOUT2"))
	assert.False(t, isUpperSnake("MaxSize"))
	assert.False(t, isUpperSnake("x"))
	assert.False(t, isUpperSnake("max_size"))
}

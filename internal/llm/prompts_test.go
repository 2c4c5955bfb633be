package llm

import (
	"strings"
	"testing"
)

func TestRefactoringPrompt(t *testing.T) {
	code := `def process(data):
    password = "hunter2"
    return data`
	prompt := RefactoringPrompt("hardcoded_credentials", "password assigned to a literal", "config.py", "python", code)

	if !strings.Contains(prompt, "hardcoded_credentials") {
		t.Error("prompt should contain issue type")
	}
	if !strings.Contains(prompt, "password assigned to a literal") {
		t.Error("prompt should contain issue description")
	}
	if !strings.Contains(prompt, "config.py") {
		t.Error("prompt should contain file path")
	}
	if !strings.Contains(prompt, "```python") {
		t.Error("prompt should contain python code block")
	}
	if !strings.Contains(prompt, code) {
		t.Error("prompt should contain the flagged code")
	}
	if !strings.Contains(prompt, "signatures identical") {
		t.Error("prompt should require unchanged signatures")
	}
}

func TestRefactoringPrompt_DifferentLanguages(t *testing.T) {
	tests := []struct {
		language string
		expected string
	}{
		{"go", "```go"},
		{"python", "```python"},
		{"javascript", "```javascript"},
		{"typescript", "```typescript"},
	}

	for _, tt := range tests {
		t.Run(tt.language, func(t *testing.T) {
			prompt := RefactoringPrompt("long_method", "too long", "file", tt.language, "code")
			if !strings.Contains(prompt, tt.expected) {
				t.Errorf("prompt should contain %s code block", tt.expected)
			}
		})
	}
}

func TestDeduplicationPrompt(t *testing.T) {
	snippets := []string{
		"def a():\n    return 1",
		"def b():\n    return 1",
	}
	prompt := DeduplicationPrompt("python", snippets, "two near-identical helpers")

	if !strings.Contains(prompt, "Occurrence 1:") {
		t.Error("prompt should label the first occurrence")
	}
	if !strings.Contains(prompt, "Occurrence 2:") {
		t.Error("prompt should label the second occurrence")
	}
	if !strings.Contains(prompt, "def a():") {
		t.Error("prompt should contain first snippet")
	}
	if !strings.Contains(prompt, "two near-identical helpers") {
		t.Error("prompt should contain context")
	}
	if !strings.Contains(prompt, "shared") {
		t.Error("prompt should ask for a shared helper")
	}
}

func TestDeduplicationPrompt_EmptyInputs(t *testing.T) {
	// Should not panic with empty inputs
	prompt := DeduplicationPrompt("go", nil, "")
	if prompt == "" {
		t.Error("prompt should not be empty")
	}
}

func TestParseCodeOutput(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantCode    string
		wantExplain string
	}{
		{
			name:        "plain code, no fence",
			input:       "func Add(a, b int) int { return a + b }",
			wantCode:    "func Add(a, b int) int { return a + b }",
			wantExplain: "",
		},
		{
			name:        "fenced with language tag",
			input:       "```go\nfunc Add() {}\n```",
			wantCode:    "func Add() {}",
			wantExplain: "",
		},
		{
			name:        "fenced without language tag",
			input:       "```\nfunc Add() {}\n```",
			wantCode:    "func Add() {}",
			wantExplain: "",
		},
		{
			name:        "fence followed by explanation",
			input:       "```python\ndef f():\n    pass\n```\nExtracted the helper.",
			wantCode:    "def f():\n    pass",
			wantExplain: "Extracted the helper.",
		},
		{
			name:        "preamble before fence",
			input:       "Here is the refactoring:\n```go\nfunc F() {}\n```",
			wantCode:    "func F() {}",
			wantExplain: "Here is the refactoring:",
		},
		{
			name:        "unterminated fence",
			input:       "```go\nfunc F() {}",
			wantCode:    "func F() {}",
			wantExplain: "",
		},
		{
			name:        "empty input",
			input:       "",
			wantCode:    "",
			wantExplain: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, explain := ParseCodeOutput(tt.input)
			if code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if explain != tt.wantExplain {
				t.Errorf("explanation = %q, want %q", explain, tt.wantExplain)
			}
		})
	}
}

func TestSystemPromptConstants(t *testing.T) {
	if SystemPromptRefactoring == "" {
		t.Error("SystemPromptRefactoring should not be empty")
	}
	if SystemPromptExplanation == "" {
		t.Error("SystemPromptExplanation should not be empty")
	}

	if !strings.Contains(SystemPromptRefactoring, "behavior") {
		t.Error("SystemPromptRefactoring should mention behavior preservation")
	}
	if !strings.Contains(SystemPromptRefactoring, "signature") {
		t.Error("SystemPromptRefactoring should mention signatures")
	}

	// Verify JSON format instruction in explanation prompt
	if !strings.Contains(SystemPromptExplanation, "JSON") {
		t.Error("SystemPromptExplanation should mention JSON output format")
	}
}

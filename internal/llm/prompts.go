package llm

import (
	"fmt"
	"strings"
)

// Prompt templates for refactoring generation

const SystemPromptRefactoring = `You are an expert software engineer specializing in code refactoring.
Your task is to produce refactorings that:
1. Preserve the exact observable behavior of the original code
2. Address the specific issue described, nothing more
3. Keep every public function and method signature unchanged
4. Follow the conventions already present in the surrounding code

IMPORTANT:
- Never remove error handling, input validation, or security checks
- Never introduce new dependencies or imports unless strictly required
- Keep the change minimal - large rewrites are rejected
- Preserve comments that document behavior

Output ONLY the refactored code in a fenced code block, followed by a
one-paragraph explanation of what changed and why it is safe.`

const SystemPromptExplanation = `You are a code reviewer. Given an original snippet and its refactored
version, explain in 2-3 sentences what changed and why the change preserves behavior.
Respond with JSON: {"explanation": "...", "confidence": 0-100}`

// RefactoringPrompt creates a prompt for refactoring a flagged code region
func RefactoringPrompt(issueType, description, filePath, language, code string) string {
	codeBlock := "```" + language + "\n" + code + "\n```"
	return fmt.Sprintf("Refactor the following %s code to fix this issue:\n\n"+
		"Issue: %s\n"+
		"Detail: %s\n"+
		"File: %s\n\n"+
		"%s\n\n"+
		"Requirements:\n"+
		"- Fix only the described issue\n"+
		"- Keep all function signatures identical\n"+
		"- Preserve behavior exactly\n\n"+
		"Output the complete refactored code in a single fenced code block, "+
		"then a short explanation.", language, issueType, description, filePath, codeBlock)
}

// DeduplicationPrompt creates a prompt for extracting duplicated code into a shared helper
func DeduplicationPrompt(language string, snippets []string, description string) string {
	var b strings.Builder
	for i, s := range snippets {
		fmt.Fprintf(&b, "Occurrence %d:\n```%s\n%s\n```\n\n", i+1, language, s)
	}
	return fmt.Sprintf(`The following %s code fragments are duplicates of each other:

%s
Context: %s

Extract the shared logic into a single well-named helper and show each call site
updated to use it. Keep all existing function signatures unchanged.

Output the refactored code in a single fenced code block, then a short explanation.`,
		language, b.String(), description)
}

// ParseCodeOutput extracts the first fenced code block from an LLM response.
// Returns the code and the remaining text (explanation), or the whole trimmed
// response when no fence is present.
func ParseCodeOutput(response string) (code string, explanation string) {
	response = strings.TrimSpace(response)

	start := strings.Index(response, "```")
	if start == -1 {
		return response, ""
	}

	// Skip the opening fence and optional language tag
	rest := response[start+3:]
	if nl := strings.Index(rest, "\n"); nl != -1 {
		rest = rest[nl+1:]
	}

	end := strings.Index(rest, "```")
	if end == -1 {
		return strings.TrimSpace(rest), strings.TrimSpace(response[:start])
	}

	code = strings.TrimSpace(rest[:end])
	explanation = strings.TrimSpace(response[:start] + rest[end+3:])
	return code, explanation
}

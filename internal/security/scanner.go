// Package security implements the hybrid secret and weak-crypto scanner.
// Literal rules run over raw lines of every file, parsed or not, so secrets
// in config files are caught alongside source code. AST-aware checks run only
// on parsed files.
package security

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/refacto-hq/refacto/internal/analyzer"
	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/pkg/model"
)

// Scanner detects hardcoded credentials, leaked keys, weak cryptography,
// sensitive files and credential-leaking log calls.
type Scanner struct {
	rules []compiledRule
}

// NewScanner compiles the rule table once for reuse across files.
func NewScanner() *Scanner {
	return &Scanner{rules: compileRules()}
}

func (s *Scanner) Name() string { return "security" }

// Detect runs the literal rules and the AST checks over a parsed file.
func (s *Scanner) Detect(file *parser.ParsedFile, opts *analyzer.Options) []model.Issue {
	issues := s.scanLines(file.Path, string(file.Source), opts)
	if issue := s.checkFilename(file.Path, opts); issue != nil {
		issues = append(issues, *issue)
	}
	issues = append(issues, s.scanLogging(file, opts)...)
	return issues
}

// DetectText runs the literal rules over a file no parser adapter exists
// for. Config files carry credentials too.
func (s *Scanner) DetectText(file parser.SourceFile, opts *analyzer.Options) []model.Issue {
	issues := s.scanLines(file.Path, file.Content, opts)
	if issue := s.checkFilename(file.Path, opts); issue != nil {
		issues = append(issues, *issue)
	}
	return issues
}

func (s *Scanner) scanLines(path, content string, opts *analyzer.Options) []model.Issue {
	var issues []model.Issue

	lines := strings.Split(content, "\n")
	for lineNum, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		comment := isCommentLine(trimmed)

		for i := range s.rules {
			r := &s.rules[i]
			if comment && r.SkipComments {
				continue
			}

			match := r.re.FindStringIndex(line)
			if match == nil {
				continue
			}

			value := extractValue(line[match[0]:match[1]])
			if isPlaceholder(value) {
				continue
			}

			entropy := 0.0
			if r.EntropyGated {
				gate := r.MinEntropy
				if gate == 0 {
					gate = opts.MinEntropy
				}
				entropy = shannonEntropy(value)
				if entropy < gate {
					continue
				}
			}

			issues = append(issues, model.Issue{
				Type:           r.Type,
				Severity:       r.Severity,
				Confidence:     opts.RuleConfidence(r.ID, r.Confidence),
				FilePath:       path,
				LineStart:      lineNum + 1,
				LineEnd:        lineNum + 1,
				Description:    r.Message,
				Recommendation: r.Recommendation,
				CodeSnippet:    redact(line, match[0], match[1]),
				Metrics: model.Metrics{
					RuleID:  r.ID,
					Entropy: entropy,
				},
			})
		}
	}

	return issues
}

// sensitiveBasenames are committed-by-accident files flagged regardless of
// content.
var sensitiveBasenames = map[string]bool{
	"id_rsa":      true,
	"id_dsa":      true,
	"id_ecdsa":    true,
	"id_ed25519":  true,
	"credentials": true,
	".htpasswd":   true,
	".netrc":      true,
}

func (s *Scanner) checkFilename(path string, opts *analyzer.Options) *model.Issue {
	base := strings.ToLower(filepath.Base(path))

	sensitive := sensitiveBasenames[base] ||
		base == ".env" || strings.HasPrefix(base, ".env.") ||
		strings.HasSuffix(base, ".pem") ||
		strings.Contains(base, "credentials")
	if !sensitive {
		return nil
	}

	return &model.Issue{
		Type:           model.IssueSensitiveFile,
		Severity:       model.SeverityHigh,
		Confidence:     opts.RuleConfidence("sensitive-file", 100),
		FilePath:       path,
		LineStart:      1,
		LineEnd:        1,
		Description:    fmt.Sprintf("File '%s' looks like it holds credentials and should not be committed", filepath.Base(path)),
		Recommendation: "Remove the file from version control and rotate anything it contains",
		Metrics:        model.Metrics{RuleID: "sensitive-file"},
	}
}

// shannonEntropy measures the randomness of a value in bits per character.
// Real secrets score high; words and simple patterns score low.
func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}

	freq := make(map[rune]int)
	for _, r := range s {
		freq[r]++
	}

	var entropy float64
	length := float64(len(s))
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// extractValue pulls the likely secret out of a matched segment, handling
// key=value, key: value and bare-token shapes.
func extractValue(match string) string {
	for _, sep := range []string{"=", ":", " "} {
		if idx := strings.Index(match, sep); idx > 0 {
			value := strings.TrimSpace(match[idx+1:])
			return strings.Trim(value, `"'`)
		}
	}
	return match
}

// isPlaceholder filters template values that only look like secrets.
func isPlaceholder(value string) bool {
	if strings.Contains(value, "${") || strings.Contains(value, "{{") ||
		strings.Contains(value, "%s") || strings.Contains(value, "<") {
		return true
	}
	switch strings.ToLower(value) {
	case "password", "changeme", "change-me", "example", "placeholder", "dummy", "xxxxxxxx":
		return true
	}
	return false
}

func isCommentLine(line string) bool {
	return strings.HasPrefix(line, "//") ||
		strings.HasPrefix(line, "#") ||
		strings.HasPrefix(line, "/*") ||
		strings.HasPrefix(line, "*") ||
		strings.HasPrefix(line, "'''") ||
		strings.HasPrefix(line, `"""`)
}

// redact replaces the matched region of a line so findings never echo the
// secret itself.
func redact(line string, start, end int) string {
	if start < 0 || end > len(line) || start >= end {
		return strings.TrimSpace(line)
	}
	keep := 8
	if end-start < keep {
		keep = end - start
	}
	return strings.TrimSpace(line[:start+keep] + "****" + line[end:])
}

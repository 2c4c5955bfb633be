package security

import (
	"regexp"

	"github.com/refacto-hq/refacto/pkg/model"
)

// rule is one literal-pattern security rule applied per source line.
type rule struct {
	ID         string
	Type       model.IssueType
	Severity   model.Severity
	Confidence int
	Pattern    string

	// EntropyGated rules only fire when the extracted value's Shannon
	// entropy reaches MinEntropy, or the project minimum when zero.
	EntropyGated bool
	MinEntropy   float64

	// SkipComments marks assignment and call shaped rules that should not
	// match commented-out code. Raw token rules still scan comments: a real
	// key pasted into a comment is still a leak.
	SkipComments bool

	Message        string
	Recommendation string
}

type compiledRule struct {
	rule
	re *regexp.Regexp
}

const recommendSecretManager = "Move the secret to an environment variable or a secret manager"

func literalRules() []rule {
	return []rule{
		{
			ID:             "aws-access-key",
			Type:           model.IssueHardcodedSecrets,
			Severity:       model.SeverityCritical,
			Confidence:     95,
			Pattern:        `AKIA[0-9A-Z]{16}`,
			Message:        "AWS access key ID detected",
			Recommendation: recommendSecretManager,
		},
		{
			ID:             "github-token",
			Type:           model.IssueHardcodedSecrets,
			Severity:       model.SeverityCritical,
			Confidence:     95,
			Pattern:        `gh[pousr]_[A-Za-z0-9_]{36,}`,
			Message:        "GitHub token detected",
			Recommendation: recommendSecretManager,
		},
		{
			ID:             "google-api-key",
			Type:           model.IssueHardcodedSecrets,
			Severity:       model.SeverityCritical,
			Confidence:     95,
			Pattern:        `AIza[0-9A-Za-z_-]{35}`,
			Message:        "Google API key detected",
			Recommendation: recommendSecretManager,
		},
		{
			ID:             "slack-token",
			Type:           model.IssueHardcodedSecrets,
			Severity:       model.SeverityCritical,
			Confidence:     95,
			Pattern:        `xox[baprs]-[0-9A-Za-z-]{10,}`,
			Message:        "Slack token detected",
			Recommendation: recommendSecretManager,
		},
		{
			ID:             "stripe-api-key",
			Type:           model.IssueHardcodedSecrets,
			Severity:       model.SeverityCritical,
			Confidence:     95,
			Pattern:        `sk_live_[0-9a-zA-Z]{24,}`,
			Message:        "Stripe live API key detected",
			Recommendation: recommendSecretManager,
		},
		{
			ID:             "openai-api-key",
			Type:           model.IssueHardcodedSecrets,
			Severity:       model.SeverityCritical,
			Confidence:     90,
			Pattern:        `\bsk-[a-zA-Z0-9]{32,}`,
			Message:        "Secret key with sk- prefix detected",
			Recommendation: recommendSecretManager,
		},
		{
			ID:             "private-key",
			Type:           model.IssueHardcodedSecrets,
			Severity:       model.SeverityCritical,
			Confidence:     100,
			Pattern:        `-----BEGIN (RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY`,
			Message:        "Private key material detected",
			Recommendation: "Remove the key from the repository and rotate it",
		},
		{
			ID:             "password-assignment",
			Type:           model.IssueHardcodedCredentials,
			Severity:       model.SeverityCritical,
			Confidence:     95,
			Pattern:        `(?i)(password|passwd|pwd)\s*[=:]\s*['"]([^'"]{8,})['"]`,
			EntropyGated:   true,
			MinEntropy:     3.0,
			SkipComments:   true,
			Message:        "Hardcoded password detected",
			Recommendation: recommendSecretManager,
		},
		{
			ID:             "api-key-assignment",
			Type:           model.IssueHardcodedCredentials,
			Severity:       model.SeverityCritical,
			Confidence:     90,
			Pattern:        `(?i)(api[_-]?key|apikey|auth[_-]?token|access[_-]?token)\s*[=:]\s*['"]([A-Za-z0-9+/=_-]{16,})['"]`,
			EntropyGated:   true,
			SkipComments:   true,
			Message:        "Hardcoded API key detected",
			Recommendation: recommendSecretManager,
		},
		{
			ID:             "jwt-secret",
			Type:           model.IssueHardcodedSecrets,
			Severity:       model.SeverityCritical,
			Confidence:     90,
			Pattern:        `(?i)(jwt[_-]?secret|secret[_-]?key|signing[_-]?key)\s*[=:]\s*['"]([A-Za-z0-9+/=_-]{16,})['"]`,
			EntropyGated:   true,
			SkipComments:   true,
			Message:        "Hardcoded signing secret detected",
			Recommendation: recommendSecretManager,
		},
		{
			ID:             "connection-string",
			Type:           model.IssueHardcodedCredentials,
			Severity:       model.SeverityCritical,
			Confidence:     90,
			Pattern:        `(?i)(postgres|postgresql|mysql|mongodb|redis|amqp)://[^\s'"]+:[^\s'"@]+@`,
			Message:        "Connection string with embedded credentials detected",
			Recommendation: recommendSecretManager,
		},
		{
			ID:             "weak-hash-md5",
			Type:           model.IssueWeakEncryption,
			Severity:       model.SeverityMedium,
			Confidence:     80,
			Pattern:        `(?i)(\bmd5\s*\(|\bmd5\.|hashlib\.md5|crypto/md5|createhash\(\s*['"]md5['"])`,
			SkipComments:   true,
			Message:        "MD5 is cryptographically broken",
			Recommendation: "Use SHA-256 or a stronger hash",
		},
		{
			ID:             "weak-hash-sha1",
			Type:           model.IssueWeakEncryption,
			Severity:       model.SeverityMedium,
			Confidence:     80,
			Pattern:        `(?i)(\bsha1\s*\(|\bsha1\.|hashlib\.sha1|crypto/sha1|createhash\(\s*['"]sha1['"])`,
			SkipComments:   true,
			Message:        "SHA-1 is no longer collision resistant",
			Recommendation: "Use SHA-256 or a stronger hash",
		},
		{
			ID:             "weak-cipher-des",
			Type:           model.IssueWeakEncryption,
			Severity:       model.SeverityMedium,
			Confidence:     80,
			Pattern:        `(?i)(\bdes\.new|crypto/des|createcipheriv\(\s*['"]des)`,
			SkipComments:   true,
			Message:        "DES provides no meaningful security",
			Recommendation: "Use AES-GCM or another modern cipher",
		},
		{
			ID:             "weak-cipher-rc4",
			Type:           model.IssueWeakEncryption,
			Severity:       model.SeverityMedium,
			Confidence:     80,
			Pattern:        `(?i)(\brc4\.new|crypto/rc4|\barc4\b|createcipheriv\(\s*['"]rc4)`,
			SkipComments:   true,
			Message:        "RC4 is a broken stream cipher",
			Recommendation: "Use AES-GCM or another modern cipher",
		},
	}
}

func compileRules() []compiledRule {
	rules := literalRules()
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		compiled = append(compiled, compiledRule{rule: r, re: regexp.MustCompile(r.Pattern)})
	}
	return compiled
}

// tokenRuleIDs are the rules whose match alone proves a value is a secret,
// independent of where it appears. The unsafe-logging pass uses them to mark
// variables as credential-derived.
var tokenRuleIDs = map[string]bool{
	"aws-access-key": true,
	"github-token":   true,
	"google-api-key": true,
	"slack-token":    true,
	"stripe-api-key": true,
	"openai-api-key": true,
	"private-key":    true,
}

var credentialNameRe = regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token|api[_-]?key|apikey|credential|private[_-]?key)`)

// credentialName reports whether an identifier looks like it holds a secret.
func credentialName(name string) bool {
	return credentialNameRe.MatchString(name)
}

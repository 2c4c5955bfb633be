// Package githost handles repository ingestion and the review surface: cloning
// repositories for analysis and opening pull requests for accepted suggestions.
package githost

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/rs/zerolog/log"

	"github.com/refacto-hq/refacto/internal/config"
	"github.com/refacto-hq/refacto/internal/parser"
)

// maxSourceFileBytes caps individual file reads during collection. Anything
// larger is generated or vendored and not worth analyzing.
const maxSourceFileBytes = 1 << 20

// RepoService handles repository operations
type RepoService struct {
	baseDir string
	token   string
}

// NewRepoService creates a new repository service
func NewRepoService(baseDir, token string) *RepoService {
	return &RepoService{
		baseDir: baseDir,
		token:   token,
	}
}

// RepoInfo contains parsed repository information
type RepoInfo struct {
	Owner    string
	Name     string
	URL      string
	CloneURL string
	Branch   string
}

// CloneResult contains the result of a clone operation
type CloneResult struct {
	Path      string
	CommitSHA string
	Branch    string
}

// ParseRepoURL parses a GitHub URL and returns repo info
func ParseRepoURL(rawURL string) (*RepoInfo, error) {
	// Handle git@github.com:owner/repo.git format
	if strings.HasPrefix(rawURL, "git@") {
		parts := strings.Split(rawURL, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid SSH URL format: %s", rawURL)
		}
		pathParts := strings.Split(strings.TrimSuffix(parts[1], ".git"), "/")
		if len(pathParts) != 2 {
			return nil, fmt.Errorf("invalid repo path: %s", parts[1])
		}
		return &RepoInfo{
			Owner:    pathParts[0],
			Name:     pathParts[1],
			URL:      rawURL,
			CloneURL: fmt.Sprintf("https://github.com/%s/%s.git", pathParts[0], pathParts[1]),
			Branch:   "main",
		}, nil
	}

	// Parse HTTPS URL
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	if parsed.Host != "github.com" {
		return nil, fmt.Errorf("only github.com URLs are supported, got: %s", parsed.Host)
	}

	pathParts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(pathParts) < 2 {
		return nil, fmt.Errorf("invalid repo path: %s", parsed.Path)
	}

	owner := pathParts[0]
	name := strings.TrimSuffix(pathParts[1], ".git")

	return &RepoInfo{
		Owner:    owner,
		Name:     name,
		URL:      rawURL,
		CloneURL: fmt.Sprintf("https://github.com/%s/%s.git", owner, name),
		Branch:   "main",
	}, nil
}

// Clone clones a repository to local storage
func (s *RepoService) Clone(ctx context.Context, info *RepoInfo) (*CloneResult, error) {
	// Create directory for this repo
	repoDir := filepath.Join(s.baseDir, info.Owner, info.Name)

	// Remove existing directory if it exists
	if _, err := os.Stat(repoDir); err == nil {
		log.Debug().Str("path", repoDir).Msg("removing existing repo directory")
		if err := os.RemoveAll(repoDir); err != nil {
			return nil, fmt.Errorf("failed to remove existing directory: %w", err)
		}
	}

	// Create parent directories
	if err := os.MkdirAll(filepath.Dir(repoDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	log.Info().
		Str("url", info.CloneURL).
		Str("path", repoDir).
		Msg("cloning repository")

	// Shallow clone for faster download
	cloneOpts := &git.CloneOptions{
		URL:      info.CloneURL,
		Progress: nil,
		Depth:    1,
	}

	// Add authentication if token is available
	if s.token != "" {
		cloneOpts.Auth = &http.BasicAuth{
			Username: "git", // Can be anything for token auth
			Password: s.token,
		}
	}

	// Try specific branch first, fall back to default
	if info.Branch != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(info.Branch)
		cloneOpts.SingleBranch = true
	}

	repo, err := git.PlainCloneContext(ctx, repoDir, false, cloneOpts)
	if err != nil {
		// If branch doesn't exist, try without specifying branch
		if strings.Contains(err.Error(), "reference not found") && info.Branch != "" {
			log.Debug().Str("branch", info.Branch).Msg("branch not found, trying default")
			cloneOpts.ReferenceName = ""
			cloneOpts.SingleBranch = false
			repo, err = git.PlainCloneContext(ctx, repoDir, false, cloneOpts)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to clone: %w", err)
		}
	}

	// Get HEAD commit
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	result := &CloneResult{
		Path:      repoDir,
		CommitSHA: head.Hash().String(),
		Branch:    head.Name().Short(),
	}

	log.Info().
		Str("commit", result.CommitSHA[:8]).
		Str("branch", result.Branch).
		Msg("clone complete")

	return result, nil
}

// Pull updates an existing repository
func (s *RepoService) Pull(ctx context.Context, repoPath string) (*CloneResult, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	pullOpts := &git.PullOptions{
		Progress: nil,
	}

	if s.token != "" {
		pullOpts.Auth = &http.BasicAuth{
			Username: "git",
			Password: s.token,
		}
	}

	err = worktree.PullContext(ctx, pullOpts)
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return nil, fmt.Errorf("failed to pull: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	return &CloneResult{
		Path:      repoPath,
		CommitSHA: head.Hash().String(),
		Branch:    head.Name().Short(),
	}, nil
}

// CollectSources walks a checked-out tree and loads every file matching the
// project's include globs (minus excludes) as a parser.SourceFile. Unsupported
// languages still come back tagged so the run can count them.
func CollectSources(root string, cfg *config.ProjectConfig) ([]parser.SourceFile, error) {
	if cfg == nil {
		cfg = config.DefaultProjectConfig()
	}

	var files []parser.SourceFile

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			name := info.Name()
			if strings.HasPrefix(name, ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if !matchAny(cfg.Include, rel) || matchAny(cfg.Exclude, rel) {
			return nil
		}

		if info.Size() > maxSourceFileBytes {
			log.Debug().Str("file", rel).Int64("size", info.Size()).Msg("skipping oversized file")
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", rel).Msg("failed to read file, skipping")
			return nil
		}

		files = append(files, parser.NewSourceFile(rel, string(content)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk repository: %w", err)
	}

	log.Debug().Int("files", len(files)).Str("root", root).Msg("collected source files")
	return files, nil
}

// matchAny reports whether any pattern matches the slash-separated path.
func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if matchGlob(p, path) {
			return true
		}
	}
	return false
}

// matchGlob matches a glob supporting ** across path separators. Patterns and
// paths are slash-separated.
func matchGlob(pattern, path string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(path, "/"))
}

func matchSegments(pat, parts []string) bool {
	if len(pat) == 0 {
		return len(parts) == 0
	}
	if pat[0] == "**" {
		if matchSegments(pat[1:], parts) {
			return true
		}
		if len(parts) > 0 {
			return matchSegments(pat, parts[1:])
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	ok, _ := filepath.Match(pat[0], parts[0])
	return ok && matchSegments(pat[1:], parts[1:])
}

// DetectPrimaryLanguage returns the most common supported language among the
// collected files, or empty when none are supported.
func DetectPrimaryLanguage(files []parser.SourceFile) string {
	counts := make(map[parser.Language]int)
	for _, f := range files {
		if f.Supported {
			counts[f.Language]++
		}
	}

	var best parser.Language
	bestCount := 0
	for lang, n := range counts {
		if n > bestCount {
			best = lang
			bestCount = n
		}
	}

	if bestCount == 0 {
		return ""
	}
	return string(best)
}

// Package astcache caches parsed files per (project, file) key so unchanged
// files are not re-parsed across analysis runs.
package astcache

import (
	"fmt"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/refacto-hq/refacto/internal/parser"
)

const defaultSize = 4096

type entry struct {
	hash uint64
	file *parser.ParsedFile
}

// Store is an LRU cache of normalized ASTs. Entries are validated by content
// hash: a hit whose stored hash no longer matches the content is a miss.
// Writes are last-writer-wins, which is safe because re-parsing identical
// content is idempotent; reads are concurrent.
type Store struct {
	cache  *lru.Cache[string, entry]
	hits   atomic.Int64
	misses atomic.Int64
}

// Stats holds cache counters.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

// New creates a store holding up to size entries.
func New(size int) (*Store, error) {
	if size <= 0 {
		size = defaultSize
	}
	cache, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create ast cache: %w", err)
	}
	return &Store{cache: cache}, nil
}

// Get returns the cached parse for the file if its content is unchanged.
func (s *Store) Get(project, path, content string) (*parser.ParsedFile, bool) {
	e, ok := s.cache.Get(key(project, path))
	if !ok || e.hash != xxhash.Sum64String(content) {
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return e.file, true
}

// Put stores a parse result keyed by the content it was parsed from.
func (s *Store) Put(project, path, content string, file *parser.ParsedFile) {
	s.cache.Add(key(project, path), entry{
		hash: xxhash.Sum64String(content),
		file: file,
	})
}

// Invalidate drops one file from the cache.
func (s *Store) Invalidate(project, path string) {
	s.cache.Remove(key(project, path))
}

// InvalidateProject drops every cached file of a project and returns how
// many entries were removed.
func (s *Store) InvalidateProject(project string) int {
	prefix := project + "\x00"
	removed := 0
	for _, k := range s.cache.Keys() {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			s.cache.Remove(k)
			removed++
		}
	}
	return removed
}

// Stats returns hit/miss counters and the current size.
func (s *Store) Stats() Stats {
	return Stats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
		Size:   s.cache.Len(),
	}
}

func key(project, path string) string {
	return project + "\x00" + path
}

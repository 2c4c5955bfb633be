// Package report renders completed analysis runs into exchange formats.
package report

import (
	"fmt"
	"io"

	"github.com/refacto-hq/refacto/pkg/model"
)

// Input is everything an emitter needs to render one analysis run.
type Input struct {
	ProjectName string                 `json:"project_name"`
	RepoURL     string                 `json:"repo_url,omitempty"`
	CommitSHA   string                 `json:"commit_sha,omitempty"`
	Summary     model.Summary          `json:"summary"`
	Issues      []model.Issue          `json:"issues"`
	Groups      []model.DuplicateGroup `json:"duplicate_groups"`
}

// Emitter renders an analysis run into a specific output format
type Emitter interface {
	// Name returns the format name (e.g., "sarif", "json")
	Name() string

	// FileExtension returns the output file extension (e.g., ".sarif", ".json")
	FileExtension() string

	// Emit writes the rendered report
	Emit(w io.Writer, in *Input) error
}

// Registry holds all available emitters
type Registry struct {
	emitters map[string]Emitter
}

// NewRegistry creates a new emitter registry with all built-in emitters
func NewRegistry() *Registry {
	r := &Registry{
		emitters: make(map[string]Emitter),
	}

	r.Register(&SARIFEmitter{})
	r.Register(&JSONEmitter{})

	return r
}

// Register adds an emitter to the registry
func (r *Registry) Register(e Emitter) {
	r.emitters[e.Name()] = e
}

// Get returns an emitter by name
func (r *Registry) Get(name string) (Emitter, error) {
	e, ok := r.emitters[name]
	if !ok {
		return nil, fmt.Errorf("emitter not found: %s", name)
	}
	return e, nil
}

// List returns all registered emitter names
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.emitters))
	for name := range r.emitters {
		names = append(names, name)
	}
	return names
}

package modeldef

import (
	"fmt"
	"sort"

	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
	"github.com/ironlayer/ironlayer/internal/sqltoolkit"
)

// Repository holds every loaded model definition for a tenant's snapshot,
// keyed by canonical model name.
type Repository struct {
	models map[string]*Model
	schema string // target schema models resolve into, e.g. "analytics"
}

// NewRepository constructs an empty Repository targeting the given schema.
func NewRepository(schema string) *Repository {
	return &Repository{models: make(map[string]*Model), schema: schema}
}

// Add registers a parsed model, returning an error if the name collides.
func (r *Repository) Add(m *Model) error {
	if _, exists := r.models[m.Name]; exists {
		return ironerrors.Conflict(fmt.Sprintf("model %q already loaded", m.Name))
	}
	r.models[m.Name] = m
	return nil
}

// Get returns a model by name.
func (r *Repository) Get(name string) (*Model, bool) {
	m, ok := r.models[name]
	return m, ok
}

// Names returns every loaded model name, sorted for deterministic iteration.
func (r *Repository) Names() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveRefs validates that every ref() macro in every model points at a
// model that exists in the repository, returning a ServiceError naming the
// first unresolved reference found (in deterministic, sorted model order).
func (r *Repository) ResolveRefs() error {
	for _, name := range r.Names() {
		m := r.models[name]
		for _, ref := range m.Refs {
			if _, ok := r.models[ref]; !ok {
				return ironerrors.UnresolvedRef(ref).WithDetails("referenced_by", name)
			}
		}
	}
	return nil
}

// QualifiedTableName returns the fully-qualified warehouse table name a
// model resolves to.
func (r *Repository) QualifiedTableName(modelName string) string {
	return fmt.Sprintf("%s.%s", r.schema, modelName)
}

// CompiledSQL resolves every ref() macro in m's SQL to its fully qualified
// table name.
func (r *Repository) CompiledSQL(m *Model) (string, error) {
	return sqltoolkit.ResolveRefs(m.SQL, func(name string) (string, error) {
		if _, ok := r.models[name]; !ok {
			return "", ironerrors.UnresolvedRef(name).WithDetails("referenced_by", m.Name)
		}
		return r.QualifiedTableName(name), nil
	})
}

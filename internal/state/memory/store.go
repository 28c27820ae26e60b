// Package memory is an in-process CRUDStore implementation for local
// development and tests: a mutex-guarded map per entity kind. Values are
// stored as given and returned as stored, without copying, so when T is a
// pointer type the caller and the store share the same object.
package memory

import (
	"sort"
	"sync"
	"time"

	"context"

	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
	"github.com/ironlayer/ironlayer/internal/state"
)

// Store is a generic tenant-scoped in-memory CRUDStore[T]. entityName
// appears in NotFound errors so multiple Store[T] instances in one
// process produce distinguishable error messages.
type Store[T state.Entity] struct {
	mu         sync.RWMutex
	entityName string
	rows       map[string]T // keyed by tenantID + "\x00" + id
}

// New constructs an empty Store for the given entity kind name (used only
// for error messages, e.g. "plan", "approval_workflow").
func New[T state.Entity](entityName string) *Store[T] {
	return &Store[T]{entityName: entityName, rows: make(map[string]T)}
}

func rowKey(tenantID, id string) string {
	return tenantID + "\x00" + id
}

// Create inserts entity, rejecting a duplicate (tenantID, id) pair.
func (s *Store[T]) Create(_ context.Context, entity T) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rowKey(entity.GetTenantID(), entity.GetID())
	if _, exists := s.rows[key]; exists {
		var zero T
		return zero, ironerrors.Conflict(s.entityName + " already exists")
	}
	now := time.Now().UTC()
	entity.SetCreatedAt(now)
	entity.SetUpdatedAt(now)
	s.rows[key] = entity
	return entity, nil
}

// Get returns the entity for (tenantID, id).
func (s *Store[T]) Get(_ context.Context, tenantID, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[rowKey(tenantID, id)]
	if !ok {
		var zero T
		return zero, ironerrors.NotFound(s.entityName, id)
	}
	return row, nil
}

// Update replaces an existing entity and stamps UpdatedAt. CreatedAt is
// stored as entity carries it; the stored row's CreatedAt is not copied
// over.
func (s *Store[T]) Update(_ context.Context, entity T) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rowKey(entity.GetTenantID(), entity.GetID())
	existing, ok := s.rows[key]
	if !ok {
		var zero T
		return zero, ironerrors.NotFound(s.entityName, entity.GetID())
	}
	_ = existing
	entity.SetUpdatedAt(time.Now().UTC())
	s.rows[key] = entity
	return entity, nil
}

// Delete removes the entity for (tenantID, id).
func (s *Store[T]) Delete(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rowKey(tenantID, id)
	if _, ok := s.rows[key]; !ok {
		return ironerrors.NotFound(s.entityName, id)
	}
	delete(s.rows, key)
	return nil
}

// List returns a tenant's rows ordered by ID, paginated.
func (s *Store[T]) List(_ context.Context, tenantID string, page state.Pagination) (state.ListResult[T], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page = page.Normalize(500)

	var all []T
	prefix := tenantID + "\x00"
	for key, row := range s.rows {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			all = append(all, row)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].GetID() < all[j].GetID() })

	total := int64(len(all))
	start := page.Offset
	if start > len(all) {
		start = len(all)
	}
	end := start + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return state.NewListResult(all[start:end], total, page.Limit, page.Offset), nil
}

// Count returns the number of rows stored for tenantID.
func (s *Store[T]) Count(_ context.Context, tenantID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	prefix := tenantID + "\x00"
	for key := range s.rows {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			count++
		}
	}
	return count, nil
}

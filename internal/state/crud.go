// Package state provides the multi-tenant persistence layer: generic
// CRUD interfaces, the in-memory CRUDStore in state/memory for local
// development and tests, and Postgres building blocks (BaseStore,
// SelectBuilder, migrations) in state/postgres, which has no CRUDStore
// implementation.
package state

import (
	"context"
	"database/sql"
	"time"
)

// Entity is a storable row scoped to a tenant. WorkflowRecord and
// SubscriptionRecord implement it.
type Entity interface {
	GetID() string
	GetTenantID() string
	SetCreatedAt(time.Time)
	SetUpdatedAt(time.Time)
}

// CRUDStore defines generic tenant-scoped CRUD operations for an Entity
// type. Embedding this in a service-specific store interface avoids
// reimplementing List/Count/Delete boilerplate per entity.
type CRUDStore[T Entity] interface {
	Create(ctx context.Context, entity T) (T, error)
	Get(ctx context.Context, tenantID, id string) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, tenantID, id string) error
	List(ctx context.Context, tenantID string, page Pagination) (ListResult[T], error)
	Count(ctx context.Context, tenantID string) (int64, error)
}

// TxStore provides transaction support for stores built over *sql.DB.
type TxStore interface {
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Querier abstracts database/sql's query execution surface so the same
// store code runs against either *sql.DB or an in-flight *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Pagination holds list-query paging parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// DefaultPagination returns the default page size.
func DefaultPagination() Pagination {
	return Pagination{Limit: 50}
}

// Normalize clamps Limit/Offset into sane, non-negative bounds.
func (p Pagination) Normalize(maxLimit int) Pagination {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// ListResult wraps a page of items with pagination metadata.
type ListResult[T any] struct {
	Items   []T
	Total   int64
	Limit   int
	Offset  int
	HasMore bool
}

// NewListResult builds a ListResult, deriving HasMore from total vs. the
// page just returned.
func NewListResult[T any](items []T, total int64, limit, offset int) ListResult[T] {
	return ListResult[T]{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+len(items)) < total,
	}
}

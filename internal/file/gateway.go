package file

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// SortKey orders query results.
type SortKey string

const (
	SortNameAsc     SortKey = "name-asc"
	SortNameDesc    SortKey = "name-desc"
	SortSizeAsc     SortKey = "size-asc"
	SortSizeDesc    SortKey = "size-desc"
	SortCreatedAsc  SortKey = "created-asc"
	SortCreatedDesc SortKey = "created-desc"
)

// OwnerScope identifies the caller; queries return records the caller owns
// or records shared with the caller's address.
type OwnerScope struct {
	UserID uuid.UUID
	Email  string
}

// Filters parameterize a file query. An empty Types set matches every
// type and an empty SearchText matches every name.
type Filters struct {
	Types      []FileType
	SearchText string
	Sort       SortKey
	Owner      OwnerScope
	Limit      int
}

// Page is one slice of gateway query results.
type Page struct {
	Documents []Record
	Total     int
}

// List is an aggregated, ordered query result. Total counts matches
// before any pagination.
type List struct {
	Documents []Record
	Total     int
}

// Patch carries the mutable fields of a record; nil fields are untouched.
type Patch struct {
	Name       *string
	SharedWith *[]string
}

// MetadataGateway is the metadata half of the persistence boundary.
type MetadataGateway interface {
	Query(ctx context.Context, filters Filters, offset, limit int) (Page, error)
	GetByID(ctx context.Context, id uuid.UUID) (Record, error)
	Create(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) (Record, error)
	DeleteRecord(ctx context.Context, id uuid.UUID) error
}

// BlobGateway is the binary half of the persistence boundary.
type BlobGateway interface {
	PutBlob(ctx context.Context, ref string, r io.Reader, size int64, contentType string) error
	DeleteBlob(ctx context.Context, ref string) error
	BuildRetrievalURL(ctx context.Context, ref string) (string, error)
}

package zoun

import (
	"context"
)

// PageRequest selects one page of records from a storage handle.
type PageRequest struct {
	Index     int
	Size      int
	SortField string
	Ascending bool
	// Search is passed through untouched; interpreting it is up to the storage handle.
	Search string
}

// Offset returns the number of records that precede the requested page.
func (p PageRequest) Offset() int {
	if p.Index <= 0 || p.Size <= 0 {
		return 0
	}
	return p.Index * p.Size
}

// Repository is the storage handle of one model. Records are pointers to the model's struct type.
type Repository interface {
	// FindByID returns the record with the given identifier; ok is false when it does not exist.
	FindByID(ctx context.Context, id any) (record any, ok bool, err error)
	FindAllPaginated(ctx context.Context, page PageRequest) (records []any, total int64, err error)
	FindAll(ctx context.Context) ([]any, error)
	Save(ctx context.Context, record any) (any, error)
	// DeleteByID removes the record; a missing identifier is not an error.
	DeleteByID(ctx context.Context, id any) error
}

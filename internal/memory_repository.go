package internal

import (
	"context"
	"reflect"
	"slices"
	"sync"

	"github.com/xcodebn/zoun"
	"go.uber.org/zap"
)

// MemoryRepository keeps the records of one model as encoded documents in memory.
// Numeric identifiers are assigned from a per-repository sequence; string and UUID
// identifiers receive a UUIDv7 when saved blank.
type MemoryRepository struct {
	mu    sync.RWMutex
	codec *documentCodec
	docs  map[string][]byte
	order []string
	seq   int64
}

// NewMemoryRepository creates an empty repository for the record type.
func NewMemoryRepository(recordType reflect.Type, introspector *Introspector) (*MemoryRepository, error) {
	codec, err := newDocumentCodec(recordType, introspector)
	if err != nil {
		return nil, err
	}
	return &MemoryRepository{
		codec: codec,
		docs:  make(map[string][]byte),
	}, nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id any) (any, bool, error) {
	key, err := r.codec.key(id)
	if err != nil {
		return nil, false, err
	}

	r.mu.RLock()
	payload, ok := r.docs[key]
	r.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	record, err := r.codec.decode(payload)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (r *MemoryRepository) FindAllPaginated(ctx context.Context, page zoun.PageRequest) ([]any, int64, error) {
	records, err := r.FindAll(ctx)
	if err != nil {
		return nil, 0, err
	}

	if page.Search != "" {
		filtered := records[:0]
		for _, rec := range records {
			if r.codec.matches(rec, page.Search) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	if page.SortField != "" {
		field, ok := r.codec.field(page.SortField)
		if !ok {
			return nil, 0, zoun.NewFieldNotFoundError(r.codec.recordType.Name(), page.SortField)
		}
		slices.SortStableFunc(records, func(a, b any) int {
			av, _ := FieldValue(a, field)
			bv, _ := FieldValue(b, field)
			c := compareFieldValues(av, bv)
			if !page.Ascending {
				return -c
			}
			return c
		})
	}

	total := int64(len(records))
	if page.Size <= 0 {
		return records, total, nil
	}
	offset := page.Offset()
	if offset >= len(records) {
		return []any{}, total, nil
	}
	end := min(offset+page.Size, len(records))
	return records[offset:end], total, nil
}

// FindAll returns every record in insertion order.
func (r *MemoryRepository) FindAll(ctx context.Context) ([]any, error) {
	r.mu.RLock()
	payloads := make([][]byte, 0, len(r.order))
	for _, key := range r.order {
		payloads = append(payloads, r.docs[key])
	}
	r.mu.RUnlock()

	records := make([]any, 0, len(payloads))
	for _, payload := range payloads {
		record, err := r.codec.decode(payload)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *MemoryRepository) Save(ctx context.Context, record any) (any, error) {
	record, err := r.codec.normalize(record)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.codec.id(record)
	if IsZeroID(id) {
		if r.codec.numericIDs() {
			r.seq++
			id = r.codec.sequenceID(r.seq)
		} else if id, err = r.codec.newUUID(); err != nil {
			return nil, err
		}
		if err := r.codec.setID(record, id); err != nil {
			return nil, err
		}
	} else if r.codec.numericIDs() {
		r.seq = max(r.seq, sequenceValue(id))
	}

	key, err := r.codec.key(id)
	if err != nil {
		return nil, err
	}
	payload, err := r.codec.encode(record)
	if err != nil {
		return nil, err
	}

	if _, exists := r.docs[key]; !exists {
		r.order = append(r.order, key)
	}
	r.docs[key] = payload

	zap.S().Debugw("stored record in memory", "type", r.codec.recordType.Name(), "id", key)
	return r.codec.decode(payload)
}

func (r *MemoryRepository) DeleteByID(ctx context.Context, id any) error {
	key, err := r.codec.key(id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[key]; !ok {
		return nil
	}
	delete(r.docs, key)
	r.order = slices.DeleteFunc(r.order, func(k string) bool { return k == key })
	return nil
}

// Count returns the number of stored records.
func (r *MemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

package internal

import (
	"context"
	"fmt"
	"reflect"

	"github.com/xcodebn/zoun"
	"go.uber.org/zap"
)

// blobRepository moves binary field payloads into a BlobStore. Documents are stored with
// binary fields cleared; FindByID restores them, list reads leave them empty.
type blobRepository struct {
	model  string
	prefix string
	inner  zoun.Repository
	store  BlobStore
	codec  *documentCodec
	binary []zoun.FieldDescriptor
}

// NewBlobRepository wraps a storage handle so that binary fields of the record type are offloaded.
// The handle is returned unchanged when the record type declares no binary field.
func NewBlobRepository(model, prefix string, inner zoun.Repository, store BlobStore, recordType reflect.Type, introspector *Introspector) (zoun.Repository, error) {
	codec, err := newDocumentCodec(recordType, introspector)
	if err != nil {
		return nil, err
	}
	var binary []zoun.FieldDescriptor
	for _, f := range codec.fields {
		if f.IsBinary && !f.IsRelationship() && indirectType(f.DeclaredType) == bytesType {
			binary = append(binary, f)
		}
	}
	if len(binary) == 0 {
		return inner, nil
	}
	return &blobRepository{
		model:  model,
		prefix: prefix,
		inner:  inner,
		store:  store,
		codec:  codec,
		binary: binary,
	}, nil
}

func (b *blobRepository) key(id any, field zoun.FieldDescriptor) (string, error) {
	idKey, err := b.codec.key(id)
	if err != nil {
		return "", err
	}
	return blobKey(b.prefix, b.model, idKey, field.Name), nil
}

func (b *blobRepository) FindByID(ctx context.Context, id any) (any, bool, error) {
	record, ok, err := b.inner.FindByID(ctx, id)
	if err != nil || !ok {
		return record, ok, err
	}
	if err := b.hydrate(ctx, record); err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (b *blobRepository) FindAllPaginated(ctx context.Context, page zoun.PageRequest) ([]any, int64, error) {
	return b.inner.FindAllPaginated(ctx, page)
}

func (b *blobRepository) FindAll(ctx context.Context) ([]any, error) {
	return b.inner.FindAll(ctx)
}

// Save stores the record without its payloads first so that a generated identifier is known,
// then writes each payload. A nil payload removes the stored object.
func (b *blobRepository) Save(ctx context.Context, record any) (any, error) {
	record, err := b.codec.normalize(record)
	if err != nil {
		return nil, err
	}
	// Clear payloads on a shallow copy so the caller's record keeps them.
	stripped := reflect.New(b.codec.recordType)
	stripped.Elem().Set(reflect.ValueOf(record).Elem())
	record = stripped.Interface()

	payloads := make(map[string][]byte, len(b.binary))
	for _, f := range b.binary {
		v, _ := FieldValue(record, f)
		data, _ := v.([]byte)
		payloads[f.Name] = data
		if err := SetFieldValue(record, f, nil); err != nil {
			return nil, err
		}
	}

	saved, err := b.inner.Save(ctx, record)
	if err != nil {
		return nil, err
	}
	id := b.codec.id(saved)

	for _, f := range b.binary {
		key, err := b.key(id, f)
		if err != nil {
			return nil, err
		}
		data := payloads[f.Name]
		if len(data) == 0 {
			if err := b.store.Delete(ctx, key); err != nil {
				return nil, fmt.Errorf("failed to remove %s payload: %w", f.Name, err)
			}
			continue
		}
		if err := b.store.Put(ctx, key, data); err != nil {
			return nil, fmt.Errorf("failed to store %s payload: %w", f.Name, err)
		}
		if err := SetFieldValue(saved, f, data); err != nil {
			return nil, err
		}
	}

	zap.S().Debugw("offloaded binary fields", "model", b.model, "fields", len(b.binary))
	return saved, nil
}

func (b *blobRepository) DeleteByID(ctx context.Context, id any) error {
	if err := b.inner.DeleteByID(ctx, id); err != nil {
		return err
	}
	for _, f := range b.binary {
		key, err := b.key(id, f)
		if err != nil {
			return err
		}
		if err := b.store.Delete(ctx, key); err != nil {
			zap.S().Warnw("failed to remove binary payload", "model", b.model, "key", key, "error", err)
		}
	}
	return nil
}

func (b *blobRepository) hydrate(ctx context.Context, record any) error {
	id := b.codec.id(record)
	for _, f := range b.binary {
		key, err := b.key(id, f)
		if err != nil {
			return err
		}
		data, ok, err := b.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to load %s payload: %w", f.Name, err)
		}
		if !ok {
			continue
		}
		if err := SetFieldValue(record, f, data); err != nil {
			return err
		}
	}
	return nil
}

package internal

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/xcodebn/zoun"
	"go.uber.org/zap"
)

// FormDataBinder populates records from submitted form data.
type FormDataBinder struct {
	converter *TypeConverter
	registry  zoun.ModelRegistry
}

// NewFormDataBinder creates a new FormDataBinder instance
func NewFormDataBinder(converter *TypeConverter, registry zoun.ModelRegistry) *FormDataBinder {
	return &FormDataBinder{
		converter: converter,
		registry:  registry,
	}
}

// Bind applies the form to existing, or to a fresh record of recordType when existing is nil,
// and returns the populated record pointer.
//
// Transient and hidden fields are skipped. A binary field takes the uploaded payload and is left
// untouched when nothing was uploaded. A to-one relationship is resolved through the target model's
// storage handle; to-many relationships are not bound. Any other field is converted from its text
// value when the form carries one.
func (b *FormDataBinder) Bind(ctx context.Context, form zoun.FormData, existing any, recordType reflect.Type, fields []zoun.FieldDescriptor) (any, error) {
	record, err := b.target(existing, recordType)
	if err != nil {
		return nil, err
	}

	for _, field := range fields {
		if field.IsTransient || field.IsHidden {
			continue
		}

		if field.IsBinary && !field.IsRelationship() {
			if data, ok := form.File(field.Name); ok && len(data) > 0 {
				if err := SetFieldValue(record, field, data); err != nil {
					return nil, zoun.NewBindingError(field.Name, err)
				}
			}
			continue
		}

		if field.IsRelationship() {
			if field.Relationship.IsToMany() {
				zap.S().Debugw("to-many relationship is not bound from forms", "field", field.Name,
					"target", field.Relationship.TargetModel)
				continue
			}
			if err := b.bindToOne(ctx, form, record, field); err != nil {
				return nil, zoun.NewBindingError(field.Name, err)
			}
			continue
		}

		text, ok := form.Value(field.Name)
		if !ok {
			continue
		}
		value, err := b.converter.Convert(text, field.DeclaredType)
		if err != nil {
			return nil, zoun.NewBindingError(field.Name, err)
		}
		if err := SetFieldValue(record, field, value); err != nil {
			return nil, zoun.NewBindingError(field.Name, err)
		}
	}

	return record, nil
}

func (b *FormDataBinder) target(existing any, recordType reflect.Type) (any, error) {
	if existing == nil {
		if recordType == nil {
			return nil, zoun.NewInternalError("record type is required to bind a new record", nil)
		}
		return NewRecord(recordType), nil
	}

	rv := reflect.ValueOf(existing)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct {
		return existing, nil
	}
	if rv.Kind() == reflect.Struct {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		return ptr.Interface(), nil
	}
	return nil, zoun.NewInternalError(fmt.Sprintf("cannot bind into %T", existing), nil)
}

// bindToOne resolves the submitted identifier against the target model. A blank value or an
// identifier with no record clears the association.
func (b *FormDataBinder) bindToOne(ctx context.Context, form zoun.FormData, record any, field zoun.FieldDescriptor) error {
	text, ok := form.Value(field.Name)
	if !ok || strings.TrimSpace(text) == "" {
		return SetFieldValue(record, field, nil)
	}

	target, ok := b.registry.Get(field.Relationship.TargetModel)
	if !ok {
		return zoun.NewModelNotFoundError(field.Relationship.TargetModel)
	}

	id, err := b.converter.Convert(text, target.IDType)
	if err != nil {
		return err
	}

	related, found, err := target.Repository.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load %s %v: %w", target.Name, id, err)
	}
	if !found {
		return SetFieldValue(record, field, nil)
	}
	return SetFieldValue(record, field, related)
}

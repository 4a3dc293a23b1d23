package internal

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/xcodebn/zoun"
)

// FieldValue reads a field of a record by descriptor; ok is false when the path crosses a nil embedded pointer.
func FieldValue(record any, field zoun.FieldDescriptor) (any, bool) {
	rv, ok := recordValue(record)
	if !ok {
		return nil, false
	}
	fv, ok := fieldByIndex(rv, field.Index, false)
	if !ok {
		return nil, false
	}
	return fv.Interface(), true
}

// SetFieldValue assigns value to a field of a record. A nil value stores the field's zero value.
func SetFieldValue(record any, field zoun.FieldDescriptor, value any) error {
	rv, ok := recordValue(record)
	if !ok {
		return fmt.Errorf("record must be a non-nil pointer to a struct, got %T", record)
	}
	fv, _ := fieldByIndex(rv, field.Index, true)
	if !fv.CanSet() {
		return fmt.Errorf("field %s cannot be set", field.Name)
	}
	return assignValue(fv, value)
}

// IdentifierValue returns the identifier of a record, or nil when the model declares none.
func IdentifierValue(entry *zoun.ModelEntry, record any) any {
	idField, ok := entry.Identifier()
	if !ok {
		return nil
	}
	v, _ := FieldValue(record, idField)
	return v
}

// IsZeroID reports whether an identifier value is unset.
func IsZeroID(id any) bool {
	if id == nil {
		return true
	}
	return reflect.ValueOf(id).IsZero()
}

// IDString renders an identifier as the text form used in paths and storage keys.
func IDString(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(id)
}

// NewRecord allocates a zero record of the struct type and returns a pointer to it.
func NewRecord(recordType reflect.Type) any {
	return reflect.New(indirectType(recordType)).Interface()
}

// recordValue dereferences a record pointer down to its struct value.
func recordValue(record any) (reflect.Value, bool) {
	if record == nil {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(record)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	return rv, rv.Kind() == reflect.Struct
}

// fieldByIndex follows an index path through embedded structs. With alloc set,
// nil embedded pointers on the way are allocated.
func fieldByIndex(v reflect.Value, index []int, alloc bool) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !alloc || !v.CanSet() {
					return reflect.Value{}, false
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}

// assignValue stores value into a settable field, adapting between T and *T.
func assignValue(field reflect.Value, value any) error {
	ft := field.Type()
	if value == nil {
		field.Set(reflect.Zero(ft))
		return nil
	}

	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(ft):
		field.Set(rv)
	case ft.Kind() == reflect.Pointer && rv.Type().AssignableTo(ft.Elem()):
		ptr := reflect.New(ft.Elem())
		ptr.Elem().Set(rv)
		field.Set(ptr)
	case rv.Kind() == reflect.Pointer && rv.Type().Elem().AssignableTo(ft):
		if rv.IsNil() {
			field.Set(reflect.Zero(ft))
			return nil
		}
		field.Set(rv.Elem())
	case rv.Kind() == ft.Kind() && rv.Type().ConvertibleTo(ft):
		field.Set(rv.Convert(ft))
	default:
		return fmt.Errorf("cannot assign %s to field of type %s", rv.Type(), ft)
	}
	return nil
}

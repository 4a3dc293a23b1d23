package internal

import (
	"cmp"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/xcodebn/zoun"
)

// documentCodec stores records as JSON documents keyed by identifier. Related records
// of to-one associations are embedded as they were at save time.
type documentCodec struct {
	recordType reflect.Type
	fields     []zoun.FieldDescriptor
	idField    zoun.FieldDescriptor
	hasID      bool
}

func newDocumentCodec(recordType reflect.Type, introspector *Introspector) (*documentCodec, error) {
	if introspector == nil {
		introspector = NewIntrospector()
	}
	t := indirectType(recordType)
	fields, err := introspector.Inspect(t)
	if err != nil {
		return nil, err
	}
	c := &documentCodec{recordType: t, fields: fields}
	for _, f := range fields {
		if f.IsIdentifier {
			c.idField = f
			c.hasID = true
			break
		}
	}
	if !c.hasID {
		return nil, fmt.Errorf("record type %s declares no identifier field", t)
	}
	return c, nil
}

// normalize returns the record as a pointer to the codec's struct type.
func (c *documentCodec) normalize(record any) (any, error) {
	if record == nil {
		return nil, fmt.Errorf("record is nil")
	}
	rv := reflect.ValueOf(record)
	switch {
	case rv.Type() == reflect.PointerTo(c.recordType):
		if rv.IsNil() {
			return nil, fmt.Errorf("record is nil")
		}
		return record, nil
	case rv.Type() == c.recordType:
		ptr := reflect.New(c.recordType)
		ptr.Elem().Set(rv)
		return ptr.Interface(), nil
	}
	return nil, fmt.Errorf("expected %s record, got %T", c.recordType, record)
}

func (c *documentCodec) encode(record any) ([]byte, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s record: %w", c.recordType.Name(), err)
	}
	return payload, nil
}

func (c *documentCodec) decode(payload []byte) (any, error) {
	record := NewRecord(c.recordType)
	if err := json.Unmarshal(payload, record); err != nil {
		return nil, fmt.Errorf("failed to decode %s record: %w", c.recordType.Name(), err)
	}
	return record, nil
}

func (c *documentCodec) id(record any) any {
	v, _ := FieldValue(record, c.idField)
	return v
}

func (c *documentCodec) setID(record any, id any) error {
	return SetFieldValue(record, c.idField, id)
}

// key renders an identifier the way documents are keyed in storage.
func (c *documentCodec) key(id any) (string, error) {
	if id == nil {
		return "", fmt.Errorf("identifier is nil")
	}
	rv := reflect.ValueOf(id)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", fmt.Errorf("identifier is nil")
		}
		id = rv.Elem().Interface()
	}
	if indirectType(c.idField.DeclaredType) == uuidType {
		u, ok := toUUID(id)
		if !ok {
			return "", fmt.Errorf("identifier %v is not a UUID", id)
		}
		return u.String(), nil
	}
	return IDString(id), nil
}

// numericIDs reports whether new identifiers are sequential numbers rather than UUIDs.
func (c *documentCodec) numericIDs() bool {
	switch indirectType(c.idField.DeclaredType).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// newUUID returns a fresh identifier value for string and UUID identifier fields.
func (c *documentCodec) newUUID() (any, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	if indirectType(c.idField.DeclaredType) == uuidType {
		return id, nil
	}
	return id.String(), nil
}

func (c *documentCodec) field(name string) (zoun.FieldDescriptor, bool) {
	for _, f := range c.fields {
		if f.Name == name {
			return f, true
		}
	}
	return zoun.FieldDescriptor{}, false
}

// jsonKey returns the document key a field is encoded under.
func (c *documentCodec) jsonKey(field zoun.FieldDescriptor) string {
	sf := c.recordType.FieldByIndex(field.Index)
	if tag := sf.Tag.Get("json"); tag != "" {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return sf.Name
}

// searchable returns the visible scalar string-like fields a free-text search looks at.
func (c *documentCodec) searchable() []zoun.FieldDescriptor {
	var out []zoun.FieldDescriptor
	for _, f := range c.fields {
		if !f.IsVisible() || f.IsBinary || f.IsRelationship() {
			continue
		}
		switch f.Kind {
		case zoun.KindString, zoun.KindEnum:
			out = append(out, f)
		}
	}
	return out
}

// matches reports whether any searchable field contains the search text, ignoring case.
func (c *documentCodec) matches(record any, search string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	for _, f := range c.searchable() {
		v, ok := FieldValue(record, f)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(fmt.Sprint(derefValue(v))), search) {
			return true
		}
	}
	return false
}

func derefValue(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return ""
	}
	return rv.Interface()
}

// compareFieldValues orders two field values; absent values sort first.
func compareFieldValues(a, b any) int {
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	for av.IsValid() && av.Kind() == reflect.Pointer {
		if av.IsNil() {
			av = reflect.Value{}
			break
		}
		av = av.Elem()
	}
	for bv.IsValid() && bv.Kind() == reflect.Pointer {
		if bv.IsNil() {
			bv = reflect.Value{}
			break
		}
		bv = bv.Elem()
	}
	switch {
	case !av.IsValid() && !bv.IsValid():
		return 0
	case !av.IsValid():
		return -1
	case !bv.IsValid():
		return 1
	}

	switch x := av.Interface().(type) {
	case time.Time:
		if y, ok := bv.Interface().(time.Time); ok {
			return x.Compare(y)
		}
	case pgtype.Date:
		if y, ok := bv.Interface().(pgtype.Date); ok {
			return compareValid(x.Valid, y.Valid, func() int { return x.Time.Compare(y.Time) })
		}
	case pgtype.Timestamp:
		if y, ok := bv.Interface().(pgtype.Timestamp); ok {
			return compareValid(x.Valid, y.Valid, func() int { return x.Time.Compare(y.Time) })
		}
	case pgtype.Timestamptz:
		if y, ok := bv.Interface().(pgtype.Timestamptz); ok {
			return compareValid(x.Valid, y.Valid, func() int { return x.Time.Compare(y.Time) })
		}
	case pgtype.Numeric:
		if y, ok := bv.Interface().(pgtype.Numeric); ok {
			xf, _ := x.Float64Value()
			yf, _ := y.Float64Value()
			return compareValid(xf.Valid, yf.Valid, func() int { return cmp.Compare(xf.Float64, yf.Float64) })
		}
	case uuid.UUID:
		if y, ok := bv.Interface().(uuid.UUID); ok {
			return strings.Compare(x.String(), y.String())
		}
	}

	switch av.Kind() {
	case reflect.String:
		return strings.Compare(av.String(), bv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(av.Int(), bv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return cmp.Compare(av.Uint(), bv.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(av.Float(), bv.Float())
	case reflect.Bool:
		switch {
		case av.Bool() == bv.Bool():
			return 0
		case !av.Bool():
			return -1
		default:
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(av.Interface()), fmt.Sprint(bv.Interface()))
}

func compareValid(a, b bool, both func() int) int {
	switch {
	case a && b:
		return both()
	case a:
		return 1
	case b:
		return -1
	}
	return 0
}

// sequenceID converts a sequence number into a value of the identifier field's type.
func (c *documentCodec) sequenceID(n int64) any {
	t := indirectType(c.idField.DeclaredType)
	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v.SetUint(uint64(n))
	default:
		v.SetInt(n)
	}
	return v.Interface()
}

// sequenceValue returns the numeric value of a numeric identifier.
func sequenceValue(id any) int64 {
	rv := reflect.ValueOf(derefValue(id))
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	}
	return 0
}

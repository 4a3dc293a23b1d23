package internal

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/xcodebn/zoun"
)

const (
	// DateLayout is the ISO-8601 calendar date layout used for date-only values.
	DateLayout = "2006-01-02"
	// DateTimeLayout is the ISO-8601 local date-time layout used for timestamp values.
	DateTimeLayout = "2006-01-02T15:04:05"

	dateTimeMinuteLayout = "2006-01-02T15:04"
)

var (
	stringType      = reflect.TypeFor[string]()
	intType         = reflect.TypeFor[int]()
	int32Type       = reflect.TypeFor[int32]()
	int64Type       = reflect.TypeFor[int64]()
	float32Type     = reflect.TypeFor[float32]()
	float64Type     = reflect.TypeFor[float64]()
	boolType        = reflect.TypeFor[bool]()
	bytesType       = reflect.TypeFor[[]byte]()
	timeType        = reflect.TypeFor[time.Time]()
	dateType        = reflect.TypeFor[pgtype.Date]()
	timestampType   = reflect.TypeFor[pgtype.Timestamp]()
	timestamptzType = reflect.TypeFor[pgtype.Timestamptz]()
	numericType     = reflect.TypeFor[pgtype.Numeric]()
	uuidType        = reflect.TypeFor[uuid.UUID]()
	enumType        = reflect.TypeFor[zoun.Enum]()
)

var (
	errUnsupportedType = errors.New("unsupported target type")
	errUnknownConstant = errors.New("no such constant")
	errDateTimeToDate  = errors.New("a date-time value cannot be narrowed to a date")
)

// TypeConverter turns submitted text into typed field values and back into display text.
type TypeConverter struct{}

// NewTypeConverter creates a new TypeConverter instance
func NewTypeConverter() *TypeConverter {
	return &TypeConverter{}
}

// Convert parses text into a value of the target type.
// Blank text yields nil, which callers store as the target's zero value.
func (c *TypeConverter) Convert(text string, target reflect.Type) (any, error) {
	if target == nil {
		return nil, zoun.NewConversionError(text, nil, errUnsupportedType)
	}

	value := strings.TrimSpace(text)
	if value == "" {
		return nil, nil
	}

	if target.Kind() == reflect.Pointer {
		inner, err := c.Convert(value, target.Elem())
		if err != nil || inner == nil {
			return nil, err
		}
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(reflect.ValueOf(inner))
		return ptr.Interface(), nil
	}

	converted, err := c.convertValue(value, target)
	if err != nil {
		return nil, zoun.NewConversionError(value, target, err)
	}
	return converted.Interface(), nil
}

func (c *TypeConverter) convertValue(value string, target reflect.Type) (reflect.Value, error) {
	switch target {
	case timeType:
		t, err := parseDateTime(value)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(t), nil
	case dateType:
		if strings.Contains(value, "T") {
			return reflect.Value{}, errDateTimeToDate
		}
		t, err := time.ParseInLocation(DateLayout, value, time.UTC)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(pgtype.Date{Time: t, Valid: true}), nil
	case timestampType:
		t, err := parseDateTime(value)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(pgtype.Timestamp{Time: t, Valid: true}), nil
	case timestamptzType:
		t, err := parseDateTime(value)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(pgtype.Timestamptz{Time: t, Valid: true}), nil
	case numericType:
		var n pgtype.Numeric
		if err := n.Scan(value); err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n), nil
	case uuidType:
		id, err := uuid.Parse(value)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(id), nil
	}

	if isEnumType(target) {
		if !slices.Contains(enumValues(target), value) {
			return reflect.Value{}, errUnknownConstant
		}
		return reflect.ValueOf(value).Convert(target), nil
	}

	out := reflect.New(target).Elem()
	switch target.Kind() {
	case reflect.String:
		out.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, target.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, target.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, target.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetFloat(f)
	case reflect.Bool:
		out.SetBool(parseBool(value))
	default:
		return reflect.Value{}, errUnsupportedType
	}
	return out, nil
}

// CanConvert reports whether Convert supports the target type.
func (c *TypeConverter) CanConvert(target reflect.Type) bool {
	target = indirectType(target)
	if target == nil {
		return false
	}
	switch target {
	case timeType, dateType, timestampType, timestamptzType, numericType, uuidType:
		return true
	}
	if isEnumType(target) {
		return true
	}
	switch target.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// Format renders a field value the way Convert expects to read it back.
func (c *TypeConverter) Format(v any) string {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		rv = rv.Elem()
	}

	switch val := rv.Interface().(type) {
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format(DateTimeLayout)
	case pgtype.Date:
		if !val.Valid {
			return ""
		}
		return val.Time.Format(DateLayout)
	case pgtype.Timestamp:
		if !val.Valid {
			return ""
		}
		return val.Time.Format(DateTimeLayout)
	case pgtype.Timestamptz:
		if !val.Valid {
			return ""
		}
		return val.Time.UTC().Format(DateTimeLayout)
	case pgtype.Numeric:
		if !val.Valid {
			return ""
		}
		text, err := val.MarshalJSON()
		if err != nil {
			return ""
		}
		return strings.Trim(string(text), `"`)
	case uuid.UUID:
		return val.String()
	case []byte:
		return ""
	}

	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, rv.Type().Bits())
	}
	return fmt.Sprint(rv.Interface())
}

// ConvertID parses an identifier for one of the supported identifier types.
func (c *TypeConverter) ConvertID(text string, idType reflect.Type) (any, error) {
	if !IsSupportedIDType(idType) {
		return nil, zoun.NewUnsupportedIdentifierTypeError(idType)
	}
	id, err := c.Convert(text, idType)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, zoun.NewConversionError(text, idType, errors.New("identifier is blank"))
	}
	return id, nil
}

// IsSupportedIDType reports whether identifiers of the type can be parsed from a path segment.
func IsSupportedIDType(idType reflect.Type) bool {
	switch idType {
	case int64Type, intType, int32Type, stringType, uuidType:
		return true
	}
	return false
}

func parseDateTime(value string) (time.Time, error) {
	if t, err := time.ParseInLocation(DateTimeLayout, value, time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(dateTimeMinuteLayout, value, time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	// A date-only value widens to midnight.
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date-time %q", value)
	}
	return t, nil
}

func parseBool(value string) bool {
	return strings.EqualFold(value, "true") || strings.EqualFold(value, "on") || value == "1"
}

func isEnumType(t reflect.Type) bool {
	return t.Kind() == reflect.String && t.Implements(enumType)
}

func enumValues(t reflect.Type) []string {
	e, ok := reflect.Zero(t).Interface().(zoun.Enum)
	if !ok {
		return nil
	}
	return e.EnumValues()
}

func indirectType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

package internal

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/xcodebn/zoun"
	"go.uber.org/zap"
)

// TagName is the struct tag that carries admin metadata.
const TagName = "zoun"

// Tag options understood by the introspector.
const (
	tagManyToOne  = "manytoone"
	tagOneToMany  = "onetomany"
	tagManyToMany = "manytomany"
	tagOneToOne   = "onetoone"
	tagMappedBy   = "mappedby"
	tagLazy       = "lazy"
	tagEager      = "eager"
	tagBinary     = "binary"
	tagLob        = "lob"
	tagID         = "id"
	tagTransient  = "transient"
	tagHidden     = "hidden"
	tagReadOnly   = "readonly"
	tagLabel      = "label"
	tagOrder      = "order"
)

var pgTimeType = reflect.TypeFor[pgtype.Time]()

// Introspector derives field descriptors from record types and caches them per type.
type Introspector struct {
	cache sync.Map // map[reflect.Type][]zoun.FieldDescriptor
}

// NewIntrospector creates a new Introspector instance
func NewIntrospector() *Introspector {
	return &Introspector{}
}

// Inspect returns the ordered field descriptors of a struct type (or pointer to one).
// Fields with an explicit order come first by ascending order; the rest keep declaration order,
// own fields before those promoted from embedded structs.
func (in *Introspector) Inspect(t reflect.Type) ([]zoun.FieldDescriptor, error) {
	t = indirectType(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("record type must be a struct, got %v", t)
	}

	if cached, ok := in.cache.Load(t); ok {
		return cloneDescriptors(cached.([]zoun.FieldDescriptor)), nil
	}

	fields, err := buildDescriptors(t)
	if err != nil {
		return nil, err
	}

	actual, _ := in.cache.LoadOrStore(t, fields)
	zap.S().Debugw("inspected record type", "type", t.String(), "fields", len(fields))
	return cloneDescriptors(actual.([]zoun.FieldDescriptor)), nil
}

func cloneDescriptors(fields []zoun.FieldDescriptor) []zoun.FieldDescriptor {
	out := make([]zoun.FieldDescriptor, len(fields))
	copy(out, fields)
	return out
}

type embeddedStruct struct {
	typ   reflect.Type
	index []int
}

func buildDescriptors(t reflect.Type) ([]zoun.FieldDescriptor, error) {
	var fields []zoun.FieldDescriptor
	seen := make(map[string]bool)
	if err := collectFields(t, nil, seen, &fields); err != nil {
		return nil, err
	}

	hasIdentifier := false
	for _, f := range fields {
		if f.IsIdentifier {
			hasIdentifier = true
			break
		}
	}
	if !hasIdentifier {
		for i := range fields {
			if fields[i].GoName == "ID" || fields[i].GoName == "Id" {
				fields[i].IsIdentifier = true
				break
			}
		}
	}

	sort.SliceStable(fields, func(i, j int) bool {
		oi, oj := fields[i].Order, fields[j].Order
		switch {
		case oi != nil && oj != nil:
			return *oi < *oj
		case oi != nil:
			return true
		default:
			return false
		}
	})

	return fields, nil
}

// collectFields walks own fields first and then each embedded struct, so a promoted field
// never replaces a field of the same name declared closer to the record type.
func collectFields(t reflect.Type, prefix []int, seen map[string]bool, out *[]zoun.FieldDescriptor) error {
	var embedded []embeddedStruct

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, hasTag := sf.Tag.Lookup(TagName)
		if hasTag && tag == "-" {
			continue
		}

		index := append(append([]int(nil), prefix...), i)

		if sf.Anonymous {
			et := indirectType(sf.Type)
			if et.Kind() == reflect.Struct && !isValueStruct(et) {
				embedded = append(embedded, embeddedStruct{typ: et, index: index})
				continue
			}
		}

		if !sf.IsExported() {
			continue
		}

		name := fieldName(sf)
		if seen[name] {
			continue
		}
		seen[name] = true

		descriptor, err := describeField(sf, index, parseTagOptions(tag))
		if err != nil {
			return fmt.Errorf("field %s.%s: %w", t.Name(), sf.Name, err)
		}
		*out = append(*out, descriptor)
	}

	for _, e := range embedded {
		if err := collectFields(e.typ, e.index, seen, out); err != nil {
			return err
		}
	}
	return nil
}

func describeField(sf reflect.StructField, index []int, opts tagOptions) (zoun.FieldDescriptor, error) {
	descriptor := zoun.FieldDescriptor{
		Name:         fieldName(sf),
		GoName:       sf.Name,
		DeclaredType: sf.Type,
		Type:         sf.Type.String(),
		Index:        index,
		IsIdentifier: opts.has(tagID),
		IsTransient:  opts.has(tagTransient),
		IsHidden:     opts.has(tagHidden),
		IsReadOnly:   opts.has(tagReadOnly),
		IsBinary:     opts.has(tagBinary) || opts.has(tagLob),
		Label:        opts.value(tagLabel),
	}

	if raw := opts.value(tagOrder); raw != "" {
		order, err := strconv.Atoi(raw)
		if err != nil {
			return zoun.FieldDescriptor{}, fmt.Errorf("invalid order %q: %w", raw, err)
		}
		descriptor.Order = &order
	}

	descriptor.Kind, descriptor.Relationship = classifyField(sf.Type, opts)
	descriptor.Constraints = extractConstraints(sf)
	return descriptor, nil
}

// classifyField applies the kind precedence: relationship markers, then the binary marker,
// then the declared type.
func classifyField(declared reflect.Type, opts tagOptions) (zoun.SemanticKind, *zoun.RelationshipDescriptor) {
	switch {
	case opts.has(tagManyToOne):
		return zoun.KindManyToOne, describeRelationship(declared, zoun.CardinalityManyToOne, opts)
	case opts.has(tagOneToMany):
		return zoun.KindOneToMany, describeRelationship(declared, zoun.CardinalityOneToMany, opts)
	case opts.has(tagManyToMany):
		return zoun.KindManyToMany, describeRelationship(declared, zoun.CardinalityManyToMany, opts)
	case opts.has(tagOneToOne):
		return zoun.KindOneToOne, describeRelationship(declared, zoun.CardinalityOneToOne, opts)
	}

	if opts.has(tagBinary) || opts.has(tagLob) {
		return zoun.KindBinary, nil
	}

	return kindOfType(declared), nil
}

func kindOfType(declared reflect.Type) zoun.SemanticKind {
	t := indirectType(declared)
	if t == nil {
		return zoun.KindUnknown
	}

	switch t {
	case stringType:
		return zoun.KindString
	case intType, int32Type:
		return zoun.KindInteger
	case int64Type:
		return zoun.KindLong
	case float64Type:
		return zoun.KindDouble
	case float32Type:
		return zoun.KindFloat
	case boolType:
		return zoun.KindBoolean
	}

	if isEnumType(t) {
		return zoun.KindEnum
	}

	switch t {
	case dateType:
		return zoun.KindDate
	case timeType, timestampType, timestamptzType, pgTimeType:
		return zoun.KindTimestamp
	case numericType:
		return zoun.KindDouble
	}

	return zoun.KindUnknown
}

func describeRelationship(declared reflect.Type, cardinality zoun.Cardinality, opts tagOptions) *zoun.RelationshipDescriptor {
	rel := &zoun.RelationshipDescriptor{Cardinality: cardinality}

	target := indirectType(declared)
	if rel.IsToMany() {
		if target.Kind() == reflect.Slice || target.Kind() == reflect.Array {
			target = indirectType(target.Elem())
		}
		rel.Lazy = !opts.has(tagEager)
	} else {
		rel.Lazy = opts.has(tagLazy)
	}

	rel.TargetType = target
	rel.TargetModel = zoun.UnknownTargetModel
	if target != nil && target.Name() != "" {
		rel.TargetModel = target.Name()
	}

	if cardinality != zoun.CardinalityManyToOne {
		rel.MappedBy = opts.value(tagMappedBy)
	}
	return rel
}

// isValueStruct reports struct types that are treated as single values rather than walked for fields.
func isValueStruct(t reflect.Type) bool {
	switch t {
	case timeType, dateType, timestampType, timestamptzType, pgTimeType, numericType:
		return true
	}
	return false
}

// fieldName returns the json name of a field, or its Go name with a lower-cased first letter.
func fieldName(sf reflect.StructField) string {
	if tag := sf.Tag.Get("json"); tag != "" {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return lowerFirst(sf.Name)
}

func lowerFirst(s string) string {
	runes := []rune(s)
	upper := 0
	for upper < len(runes) && unicode.IsUpper(runes[upper]) {
		upper++
	}
	// Acronym prefixes lower-case as a whole: "ID" becomes "id", "URLPath" becomes "urlPath".
	if upper > 1 && upper < len(runes) {
		upper--
	}
	for i := 0; i < upper; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

type tagOptions struct {
	flags  map[string]bool
	values map[string]string
}

func parseTagOptions(tag string) tagOptions {
	opts := tagOptions{flags: map[string]bool{}, values: map[string]string{}}
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, hasValue := strings.Cut(part, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if hasValue {
			opts.values[key] = strings.TrimSpace(value)
			continue
		}
		opts.flags[key] = true
	}
	return opts
}

func (o tagOptions) has(flag string) bool {
	return o.flags[flag]
}

func (o tagOptions) value(key string) string {
	return o.values[key]
}

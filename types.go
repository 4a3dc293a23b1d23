package zoun

import (
	"reflect"
	"strings"
	"unicode"
)

// SemanticKind is the coarse category a field is classified into for rendering and conversion.
type SemanticKind string

const (
	KindString     SemanticKind = "string"
	KindInteger    SemanticKind = "integer"
	KindLong       SemanticKind = "long"
	KindDouble     SemanticKind = "double"
	KindFloat      SemanticKind = "float"
	KindBoolean    SemanticKind = "boolean"
	KindEnum       SemanticKind = "enum"
	KindDate       SemanticKind = "date"
	KindTimestamp  SemanticKind = "timestamp"
	KindBinary     SemanticKind = "binary"
	KindManyToOne  SemanticKind = "manyToOne"
	KindOneToMany  SemanticKind = "oneToMany"
	KindManyToMany SemanticKind = "manyToMany"
	KindOneToOne   SemanticKind = "oneToOne"
	KindUnknown    SemanticKind = "unknown"
)

// IsRelationship reports whether the kind is one of the four relationship kinds.
func (k SemanticKind) IsRelationship() bool {
	switch k {
	case KindManyToOne, KindOneToMany, KindManyToMany, KindOneToOne:
		return true
	}
	return false
}

// IsNumeric reports whether values of the kind order numerically.
func (k SemanticKind) IsNumeric() bool {
	switch k {
	case KindInteger, KindLong, KindDouble, KindFloat:
		return true
	}
	return false
}

// Cardinality describes the shape of a relationship between two models.
type Cardinality string

const (
	CardinalityManyToOne  Cardinality = "MANY_TO_ONE"
	CardinalityOneToMany  Cardinality = "ONE_TO_MANY"
	CardinalityManyToMany Cardinality = "MANY_TO_MANY"
	CardinalityOneToOne   Cardinality = "ONE_TO_ONE"
)

// UnknownTargetModel is the target model name used when a relationship target cannot be named.
const UnknownTargetModel = "Unknown"

// RelationshipDescriptor describes the association carried by a relationship field.
type RelationshipDescriptor struct {
	TargetType  reflect.Type `json:"-"`
	TargetModel string       `json:"targetModel"`
	Cardinality Cardinality  `json:"cardinality"`
	// MappedBy names the owning field on the target; empty means this side owns the relationship.
	MappedBy string `json:"mappedBy,omitempty"`
	Lazy     bool   `json:"lazy"`
}

// IsToOne reports whether the relationship resolves to a single record.
func (r *RelationshipDescriptor) IsToOne() bool {
	return r != nil && (r.Cardinality == CardinalityManyToOne || r.Cardinality == CardinalityOneToOne)
}

// IsToMany reports whether the relationship resolves to a collection.
func (r *RelationshipDescriptor) IsToMany() bool {
	return r != nil && (r.Cardinality == CardinalityOneToMany || r.Cardinality == CardinalityManyToMany)
}

// IsOwningSide reports whether this side of the relationship holds the foreign key.
func (r *RelationshipDescriptor) IsOwningSide() bool {
	return r != nil && r.MappedBy == ""
}

// ConstraintKind names one validation constraint from the closed supported set.
type ConstraintKind string

const (
	ConstraintNotNull         ConstraintKind = "NotNull"
	ConstraintNotBlank        ConstraintKind = "NotBlank"
	ConstraintNotEmpty        ConstraintKind = "NotEmpty"
	ConstraintSize            ConstraintKind = "Size"
	ConstraintMin             ConstraintKind = "Min"
	ConstraintMax             ConstraintKind = "Max"
	ConstraintEmail           ConstraintKind = "Email"
	ConstraintPattern         ConstraintKind = "Pattern"
	ConstraintPast            ConstraintKind = "Past"
	ConstraintFuture          ConstraintKind = "Future"
	ConstraintPastOrPresent   ConstraintKind = "PastOrPresent"
	ConstraintFutureOrPresent ConstraintKind = "FutureOrPresent"
	ConstraintPositive        ConstraintKind = "Positive"
	ConstraintPositiveOrZero  ConstraintKind = "PositiveOrZero"
	ConstraintNegative        ConstraintKind = "Negative"
	ConstraintNegativeOrZero  ConstraintKind = "NegativeOrZero"
)

// ConstraintKinds lists every supported constraint kind in extraction order.
var ConstraintKinds = []ConstraintKind{
	ConstraintNotNull,
	ConstraintNotBlank,
	ConstraintNotEmpty,
	ConstraintSize,
	ConstraintMin,
	ConstraintMax,
	ConstraintEmail,
	ConstraintPattern,
	ConstraintPast,
	ConstraintFuture,
	ConstraintPastOrPresent,
	ConstraintFutureOrPresent,
	ConstraintPositive,
	ConstraintPositiveOrZero,
	ConstraintNegative,
	ConstraintNegativeOrZero,
}

// Constraint is a validation constraint attached to a field together with its parameters.
type Constraint struct {
	Kind   ConstraintKind    `json:"kind"`
	Params map[string]string `json:"params,omitempty"`
}

// Param returns a constraint parameter, or an empty string when it is absent.
func (c Constraint) Param(name string) string {
	if c.Params == nil {
		return ""
	}
	return c.Params[name]
}

// FieldDescriptor is the derived per-field metadata that drives generic rendering and binding.
type FieldDescriptor struct {
	Name         string       `json:"name"`
	GoName       string       `json:"goName"`
	DeclaredType reflect.Type `json:"-"`
	Type         string       `json:"type"`
	// Index is the reflect index path, which crosses embedded structs.
	Index        []int                   `json:"-"`
	Kind         SemanticKind            `json:"kind"`
	IsIdentifier bool                    `json:"isIdentifier"`
	IsTransient  bool                    `json:"isTransient"`
	IsHidden     bool                    `json:"isHidden"`
	IsReadOnly   bool                    `json:"isReadOnly"`
	IsBinary     bool                    `json:"isBinary"`
	Label        string                  `json:"label,omitempty"`
	Order        *int                    `json:"order,omitempty"`
	Relationship *RelationshipDescriptor `json:"relationship,omitempty"`
	Constraints  []Constraint            `json:"constraints,omitempty"`
}

// DisplayLabel returns the explicit label, or the humanized field name.
func (f FieldDescriptor) DisplayLabel() string {
	if strings.TrimSpace(f.Label) != "" {
		return f.Label
	}
	return Humanize(f.Name)
}

// IsRelationship reports whether the field is an association to another model.
func (f FieldDescriptor) IsRelationship() bool {
	return f.Kind.IsRelationship()
}

// IsVisible reports whether the field is displayed. Read-only fields are visible but disabled.
func (f FieldDescriptor) IsVisible() bool {
	return !f.IsTransient && !f.IsHidden
}

// IsEditable reports whether the field is included in forms.
func (f FieldDescriptor) IsEditable() bool {
	return !f.IsIdentifier && !f.IsTransient && !f.IsHidden && !f.IsReadOnly
}

// HasConstraint reports whether a constraint of the given kind is attached to the field.
func (f FieldDescriptor) HasConstraint(kind ConstraintKind) bool {
	_, ok := f.Constraint(kind)
	return ok
}

// Constraint returns the attached constraint of the given kind.
func (f FieldDescriptor) Constraint(kind ConstraintKind) (Constraint, bool) {
	for _, c := range f.Constraints {
		if c.Kind == kind {
			return c, true
		}
	}
	return Constraint{}, false
}

// Humanize converts a camelCase name into a Title Case label: "firstName" becomes "First Name".
func Humanize(name string) string {
	if name == "" {
		return ""
	}
	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i, r := range runes {
		if i > 0 && unicode.IsLower(runes[i-1]) && unicode.IsUpper(r) {
			b.WriteRune(' ')
		}
		if i == 0 {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Enum is implemented by named string types whose values form a closed set of constants.
type Enum interface {
	EnumValues() []string
}

// ModelEntry is one registered model: a record type, its identifier type and its storage handle.
type ModelEntry struct {
	Name       string       `json:"name"`
	RecordType reflect.Type `json:"-"`
	IDType     reflect.Type `json:"-"`
	Repository Repository   `json:"-"`
	// Fields is built once at registration and shared read-only.
	Fields  []FieldDescriptor `json:"fields"`
	IDField string            `json:"idField,omitempty"`
}

// Field returns the descriptor with the given name.
func (m *ModelEntry) Field(name string) (FieldDescriptor, bool) {
	if m == nil {
		return FieldDescriptor{}, false
	}
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Identifier returns the identifier descriptor, if the record type declares one.
func (m *ModelEntry) Identifier() (FieldDescriptor, bool) {
	if m == nil || m.IDField == "" {
		return FieldDescriptor{}, false
	}
	return m.Field(m.IDField)
}

package zoun

import (
	"reflect"
)

// ModelRegistry is the read-only inventory of registered models.
// Implementations are built once at startup and never mutated afterwards.
type ModelRegistry interface {
	Get(name string) (*ModelEntry, bool)
	// All returns the entries in registration order.
	All() []*ModelEntry
	Names() []string
	Contains(name string) bool
	Count() int
}

// Registration supplies one model to the registry: its record type, identifier type and storage handle.
type Registration struct {
	// Name overrides the model name; the record type's simple name is used when empty.
	Name       string
	RecordType reflect.Type
	IDType     reflect.Type
	Repository Repository
}

// Register builds a Registration for record type T with identifier type ID.
//
//	zoun.Register[Employee, int64](employeeRepo)
func Register[T any, ID any](repo Repository) Registration {
	return Registration{
		RecordType: reflect.TypeFor[T](),
		IDType:     reflect.TypeFor[ID](),
		Repository: repo,
	}
}

// Named returns a copy of the registration using an explicit model name.
func (r Registration) Named(name string) Registration {
	r.Name = name
	return r
}

// ModelName returns the name the registration is keyed under.
func (r Registration) ModelName() string {
	if r.Name != "" {
		return r.Name
	}
	t := r.RecordType
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}

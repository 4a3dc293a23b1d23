package internal

import (
	"fmt"
	"reflect"

	"github.com/xcodebn/zoun"
	"go.uber.org/zap"
)

// RegistryOptions controls how registrations are turned into model entries.
type RegistryOptions struct {
	// StrictNames fails the build on a duplicate model name instead of letting the later registration win.
	StrictNames  bool
	Introspector *Introspector
}

// ModelRegistry is an immutable snapshot of the registered models.
type ModelRegistry struct {
	entries map[string]*zoun.ModelEntry
	order   []string
}

// NewModelRegistry builds the registry from the supplied registrations. Invalid registrations
// are skipped with a warning; a later registration under an existing name replaces the earlier
// one in place, unless StrictNames is set.
func NewModelRegistry(registrations []zoun.Registration, opts RegistryOptions) (*ModelRegistry, error) {
	introspector := opts.Introspector
	if introspector == nil {
		introspector = NewIntrospector()
	}

	r := &ModelRegistry{
		entries: make(map[string]*zoun.ModelEntry, len(registrations)),
	}

	for _, reg := range registrations {
		entry, err := newModelEntry(reg, introspector)
		if err != nil {
			zap.S().Warnw("skipping model registration", "model", reg.ModelName(), "error", err)
			continue
		}

		if _, exists := r.entries[entry.Name]; exists {
			if opts.StrictNames {
				return nil, zoun.NewDuplicateModelError(entry.Name)
			}
			zap.S().Warnw("model registered more than once, later registration wins", "model", entry.Name)
		} else {
			r.order = append(r.order, entry.Name)
		}
		r.entries[entry.Name] = entry
	}

	r.resolveTargets()

	zap.S().Infow("model registry initialized", "models", len(r.order), "names", r.order)
	return r, nil
}

// resolveTargets points relationship fields at the name their target type is registered under,
// so a model registered with an explicit name is still found from the other side.
func (r *ModelRegistry) resolveTargets() {
	byType := make(map[reflect.Type]string, len(r.entries))
	for _, name := range r.order {
		byType[r.entries[name].RecordType] = name
	}

	for _, entry := range r.entries {
		for i, f := range entry.Fields {
			if f.Relationship == nil || f.Relationship.TargetType == nil {
				continue
			}
			name, ok := byType[indirectType(f.Relationship.TargetType)]
			if !ok || name == f.Relationship.TargetModel {
				continue
			}
			rel := *f.Relationship
			rel.TargetModel = name
			entry.Fields[i].Relationship = &rel
		}
	}
}

func newModelEntry(reg zoun.Registration, introspector *Introspector) (*zoun.ModelEntry, error) {
	if reg.Repository == nil {
		return nil, zoun.NewZounError(zoun.ErrorTypeBadRequest, zoun.ErrCodeInvalidRegistration, "repository is required")
	}
	if reg.IDType == nil {
		return nil, zoun.NewZounError(zoun.ErrorTypeBadRequest, zoun.ErrCodeInvalidRegistration, "identifier type is required")
	}
	if reg.RecordType == nil || indirectType(reg.RecordType).Kind() != reflect.Struct {
		return nil, zoun.NewZounError(zoun.ErrorTypeBadRequest, zoun.ErrCodeInvalidRegistration,
			fmt.Sprintf("record type must be a struct, got %v", reg.RecordType))
	}
	name := reg.ModelName()
	if name == "" {
		return nil, zoun.NewZounError(zoun.ErrorTypeBadRequest, zoun.ErrCodeInvalidRegistration, "model name is empty")
	}

	fields, err := introspector.Inspect(reg.RecordType)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect record type: %w", err)
	}

	entry := &zoun.ModelEntry{
		Name:       name,
		RecordType: indirectType(reg.RecordType),
		IDType:     reg.IDType,
		Repository: reg.Repository,
		Fields:     fields,
	}
	for _, f := range fields {
		if f.IsIdentifier {
			entry.IDField = f.Name
			if indirectType(f.DeclaredType) != reg.IDType {
				zap.S().Warnw("identifier field type differs from the registered identifier type",
					"model", name, "field", f.Name, "fieldType", f.Type, "idType", reg.IDType.String())
			}
			break
		}
	}
	if !IsSupportedIDType(reg.IDType) {
		zap.S().Warnw("identifier type cannot be parsed from requests", "model", name, "idType", reg.IDType.String())
	}
	return entry, nil
}

// Get returns the entry registered under name.
func (r *ModelRegistry) Get(name string) (*zoun.ModelEntry, bool) {
	entry, ok := r.entries[name]
	return entry, ok
}

// All returns the entries in registration order.
func (r *ModelRegistry) All() []*zoun.ModelEntry {
	out := make([]*zoun.ModelEntry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// Names returns the model names in registration order.
func (r *ModelRegistry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *ModelRegistry) Contains(name string) bool {
	_, ok := r.entries[name]
	return ok
}

func (r *ModelRegistry) Count() int {
	return len(r.order)
}

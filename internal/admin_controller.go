package internal

import (
	"context"
	"errors"
	"time"

	"github.com/xcodebn/zoun"
)

// adminController implements zoun.Controller over a model registry.
type adminController struct {
	registry  zoun.ModelRegistry
	converter *TypeConverter
	binder    *FormDataBinder
	validator *RecordValidator
	config    zoun.AdminConfig
}

// NewAdminController creates the controller driving every admin operation.
// Bound records are validated before saving when config.ValidateOnSave is set.
func NewAdminController(registry zoun.ModelRegistry, config zoun.AdminConfig) zoun.Controller {
	converter := NewTypeConverter()
	c := &adminController{
		registry:  registry,
		converter: converter,
		binder:    NewFormDataBinder(converter, registry),
		config:    config,
	}
	if config.ValidateOnSave {
		c.validator = NewRecordValidator()
	}
	return c
}

func (c *adminController) entry(model string) (*zoun.ModelEntry, error) {
	entry, ok := c.registry.Get(model)
	if !ok {
		return nil, zoun.NewModelNotFoundError(model)
	}
	return entry, nil
}

// storageError keeps admin errors from the storage layer intact and wraps anything else as internal.
func storageError(model, action string, err error) error {
	var ze *zoun.ZounError
	if errors.As(err, &ze) {
		return err
	}
	return zoun.NewInternalError("failed to "+action, err).WithModel(model)
}

// observe emits the outcome of an operation started at start.
func observe(ctx context.Context, operation, model string, start time.Time, err error) {
	EmitOperation(ctx, operation, model, outcomeOf(err), time.Since(start))
}

// visibleColumns returns the list projection: visible, non-binary fields capped at limit.
func visibleColumns(fields []zoun.FieldDescriptor, limit int) []zoun.FieldDescriptor {
	out := make([]zoun.FieldDescriptor, 0, len(fields))
	for _, f := range fields {
		if !f.IsVisible() || f.IsBinary {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, f)
	}
	return out
}

package internal

import (
	"context"
	"strings"
	"time"

	"github.com/xcodebn/zoun"
	"go.uber.org/zap"
)

// identifierFormKey is the form value carrying the identifier of the record being edited.
const identifierFormKey = "id"

// Save creates or updates a record from the submitted form. Failures are reported in the result.
func (c *adminController) Save(ctx context.Context, model string, form zoun.FormData) *zoun.OperationResult {
	start := time.Now()

	saved, err := c.save(ctx, model, form)
	observe(ctx, "save", model, start, err)

	if err != nil {
		ze := zoun.AsZounError(err)
		if zoun.IsInternalError(err) {
			zap.S().Errorw("failed to save record", "model", model, "error", err)
		} else {
			zap.S().Warnw("record rejected", "model", model, "error", err)
		}
		return &zoun.OperationResult{
			Model:   model,
			Success: false,
			Message: "Failed to save: " + zoun.PublicMessage(err),
			Err:     ze,
			Next:    zoun.NextViewNewForm,
		}
	}

	zap.S().Infow("record saved", "model", model)
	return &zoun.OperationResult{
		Model:   model,
		Success: true,
		Message: "Successfully saved " + model,
		Record:  saved,
		Next:    zoun.NextViewList,
	}
}

func (c *adminController) save(ctx context.Context, model string, form zoun.FormData) (any, error) {
	entry, err := c.entry(model)
	if err != nil {
		return nil, err
	}

	var existing any
	if idText, ok := form.Value(identifierFormKey); ok && strings.TrimSpace(idText) != "" {
		id, err := c.converter.ConvertID(idText, entry.IDType)
		if err != nil {
			return nil, err
		}
		record, found, err := entry.Repository.FindByID(ctx, id)
		if err != nil {
			return nil, storageError(entry.Name, "load record", err)
		}
		if found {
			existing = record
		}
	}

	bound, err := c.binder.Bind(ctx, form, existing, entry.RecordType, entry.Fields)
	if err != nil {
		return nil, err
	}

	if c.validator != nil {
		if err := c.validator.Validate(bound); err != nil {
			return nil, err
		}
	}

	saved, err := entry.Repository.Save(ctx, bound)
	if err != nil {
		return nil, storageError(entry.Name, "save record", err)
	}
	return saved, nil
}

// Delete removes the record with the given identifier. Failures are reported in the result.
func (c *adminController) Delete(ctx context.Context, model, id string) *zoun.OperationResult {
	start := time.Now()

	err := c.delete(ctx, model, id)
	observe(ctx, "delete", model, start, err)

	if err != nil {
		if zoun.IsInternalError(err) {
			zap.S().Errorw("failed to delete record", "model", model, "id", id, "error", err)
		} else {
			zap.S().Warnw("delete rejected", "model", model, "id", id, "error", err)
		}
		return &zoun.OperationResult{
			Model:   model,
			Success: false,
			Message: "Failed to delete: " + zoun.PublicMessage(err),
			Err:     zoun.AsZounError(err),
			Next:    zoun.NextViewList,
		}
	}

	zap.S().Infow("record deleted", "model", model, "id", id)
	return &zoun.OperationResult{
		Model:   model,
		Success: true,
		Message: "Successfully deleted " + model,
		Next:    zoun.NextViewList,
	}
}

func (c *adminController) delete(ctx context.Context, model, idText string) error {
	entry, err := c.entry(model)
	if err != nil {
		return err
	}
	id, err := c.converter.ConvertID(idText, entry.IDType)
	if err != nil {
		return err
	}
	if err := entry.Repository.DeleteByID(ctx, id); err != nil {
		return storageError(entry.Name, "delete record", err)
	}
	return nil
}

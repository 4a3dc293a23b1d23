package zoun

import (
	"context"
)

// Controller drives the generic list/create/edit/save/delete/download sequence over every registered model.
type Controller interface {
	Dashboard(ctx context.Context) *Dashboard
	List(ctx context.Context, req ListRequest) (*ListView, error)
	NewForm(ctx context.Context, model string) (*FormView, error)
	EditForm(ctx context.Context, model, id string) (*FormView, error)

	// Save and Delete report failures in the returned result instead of an error.
	Save(ctx context.Context, model string, form FormData) *OperationResult
	Delete(ctx context.Context, model, id string) *OperationResult

	DownloadBinary(ctx context.Context, model, id, field string) (*BinaryContent, error)
	Schema(ctx context.Context, model string) ([]byte, error)
}

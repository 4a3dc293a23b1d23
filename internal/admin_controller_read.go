package internal

import (
	"context"
	"strings"
	"time"

	"github.com/xcodebn/zoun"
	"go.uber.org/zap"
)

// Dashboard lists every registered model in registration order.
func (c *adminController) Dashboard(ctx context.Context) *zoun.Dashboard {
	start := time.Now()
	entries := c.registry.All()

	dashboard := &zoun.Dashboard{
		AppTitle: c.config.AppTitle,
		DarkMode: c.config.DarkMode,
		Models:   make([]zoun.ModelSummary, 0, len(entries)),
	}
	for _, e := range entries {
		summary := zoun.ModelSummary{
			Name:       e.Name,
			RecordType: e.RecordType.String(),
			FieldCount: len(e.Fields),
		}
		if e.IDType != nil {
			summary.IDType = e.IDType.String()
		}
		dashboard.Models = append(dashboard.Models, summary)
	}

	observe(ctx, "dashboard", "", start, nil)
	return dashboard
}

// List returns one page of records together with the visible column projection.
func (c *adminController) List(ctx context.Context, req zoun.ListRequest) (view *zoun.ListView, err error) {
	start := time.Now()
	defer func() { observe(ctx, "list", req.Model, start, err) }()

	entry, err := c.entry(req.Model)
	if err != nil {
		return nil, err
	}

	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = entry.IDField
	}
	if sortBy != "" {
		if _, ok := entry.Field(sortBy); !ok {
			return nil, zoun.NewFieldNotFoundError(entry.Name, sortBy)
		}
	}

	descending := strings.EqualFold(req.SortDir, "desc")
	sortDir := "asc"
	if descending {
		sortDir = "desc"
	}

	page := zoun.PageRequest{
		Index:     max(req.Page, 0),
		Size:      c.config.PageSize,
		SortField: sortBy,
		Ascending: !descending,
		Search:    req.Search,
	}

	zap.S().Debugw("listing records", "model", entry.Name, "page", page.Index, "sortBy", sortBy, "sortDir", sortDir)

	records, total, err := entry.Repository.FindAllPaginated(ctx, page)
	if err != nil {
		return nil, storageError(entry.Name, "list records", err)
	}
	if records == nil {
		records = []any{}
	}

	totalPages := 0
	if page.Size > 0 {
		totalPages = int((total + int64(page.Size) - 1) / int64(page.Size))
	}

	return &zoun.ListView{
		Model:   entry.Name,
		Fields:  visibleColumns(entry.Fields, c.config.ListColumnLimit),
		Records: records,
		Page: zoun.PageInfo{
			Index:        page.Index,
			Size:         page.Size,
			TotalRecords: total,
			TotalPages:   totalPages,
		},
		SortBy:  sortBy,
		SortDir: sortDir,
		Search:  req.Search,
	}, nil
}

// NewForm returns the data for an empty create form.
func (c *adminController) NewForm(ctx context.Context, model string) (view *zoun.FormView, err error) {
	start := time.Now()
	defer func() { observe(ctx, "new", model, start, err) }()

	entry, err := c.entry(model)
	if err != nil {
		return nil, err
	}

	options, err := c.relationshipOptions(ctx, entry.Fields)
	if err != nil {
		return nil, err
	}

	return &zoun.FormView{
		Model:               entry.Name,
		Fields:              entry.Fields,
		IsEdit:              false,
		RelationshipOptions: options,
	}, nil
}

// EditForm returns the data for an edit form populated from the stored record.
func (c *adminController) EditForm(ctx context.Context, model, id string) (view *zoun.FormView, err error) {
	start := time.Now()
	defer func() { observe(ctx, "edit", model, start, err) }()

	entry, err := c.entry(model)
	if err != nil {
		return nil, err
	}

	record, err := c.load(ctx, entry, id)
	if err != nil {
		return nil, err
	}

	options, err := c.relationshipOptions(ctx, entry.Fields)
	if err != nil {
		return nil, err
	}

	return &zoun.FormView{
		Model:               entry.Name,
		Fields:              entry.Fields,
		Record:              record,
		IsEdit:              true,
		RelationshipOptions: options,
	}, nil
}

// DownloadBinary returns the raw payload of a binary field; NoContent is set when the field is empty.
func (c *adminController) DownloadBinary(ctx context.Context, model, id, fieldName string) (content *zoun.BinaryContent, err error) {
	start := time.Now()
	defer func() { observe(ctx, "download", model, start, err) }()

	entry, err := c.entry(model)
	if err != nil {
		return nil, err
	}

	record, err := c.load(ctx, entry, id)
	if err != nil {
		return nil, err
	}

	field, ok := entry.Field(fieldName)
	if !ok {
		return nil, zoun.NewFieldNotFoundError(entry.Name, fieldName)
	}

	value, _ := FieldValue(record, field)
	if value == nil {
		return &zoun.BinaryContent{Model: entry.Name, Field: field.Name, NoContent: true}, nil
	}
	data, ok := value.([]byte)
	if !ok {
		return nil, zoun.NewZounError(zoun.ErrorTypeBadRequest, zoun.ErrCodeFieldNotBinary,
			"Field is not binary: "+field.Name).WithModel(entry.Name).WithField(field.Name)
	}

	return &zoun.BinaryContent{
		Model:     entry.Name,
		Field:     field.Name,
		Data:      data,
		NoContent: len(data) == 0,
	}, nil
}

// Schema returns the JSON Schema document of a model.
func (c *adminController) Schema(ctx context.Context, model string) (out []byte, err error) {
	start := time.Now()
	defer func() { observe(ctx, "schema", model, start, err) }()

	entry, err := c.entry(model)
	if err != nil {
		return nil, err
	}
	out, err = MarshalJSONSchema(entry, c.registry)
	if err != nil {
		return nil, zoun.NewInternalError("failed to build schema", err).WithModel(entry.Name)
	}
	return out, nil
}

// load converts the path identifier and fetches the record, reporting a missing record as not found.
func (c *adminController) load(ctx context.Context, entry *zoun.ModelEntry, idText string) (any, error) {
	id, err := c.converter.ConvertID(idText, entry.IDType)
	if err != nil {
		return nil, err
	}

	record, found, err := entry.Repository.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(entry.Name, "load record", err)
	}
	if !found {
		return nil, zoun.NewRecordNotFoundError(entry.Name, idText)
	}
	return record, nil
}

// relationshipOptions loads every record of each to-one target, keyed by field name.
// Targets that are not registered get an empty option list.
func (c *adminController) relationshipOptions(ctx context.Context, fields []zoun.FieldDescriptor) (map[string][]any, error) {
	options := make(map[string][]any)
	for _, f := range fields {
		if !f.IsRelationship() || !f.Relationship.IsToOne() {
			continue
		}

		target, ok := c.registry.Get(f.Relationship.TargetModel)
		if !ok {
			zap.S().Debugw("relationship target is not registered", "field", f.Name, "target", f.Relationship.TargetModel)
			options[f.Name] = []any{}
			continue
		}

		records, err := target.Repository.FindAll(ctx)
		if err != nil {
			return nil, storageError(target.Name, "load relationship options", err)
		}
		if records == nil {
			records = []any{}
		}
		options[f.Name] = records
	}
	return options, nil
}

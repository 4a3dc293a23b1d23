package internal

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcodebn/zoun"
)

func testAdminConfig() zoun.AdminConfig {
	return zoun.AdminConfig{
		AppTitle:        "Test Admin",
		PageSize:        2,
		ListColumnLimit: 10,
		ValidateOnSave:  true,
	}
}

func newTestController(t *testing.T) (zoun.Controller, *MemoryRepository, *MemoryRepository) {
	t.Helper()
	registry, departments, employees := seededRegistry(t)
	return NewAdminController(registry, testAdminConfig()), departments, employees
}

func recordIDs(t *testing.T, records []any) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		e, ok := r.(*employee)
		require.True(t, ok, "unexpected record %T", r)
		ids = append(ids, e.ID)
	}
	return ids
}

func TestAdminController_Dashboard(t *testing.T) {
	controller, _, _ := newTestController(t)

	dashboard := controller.Dashboard(context.Background())
	assert.Equal(t, "Test Admin", dashboard.AppTitle)
	require.Len(t, dashboard.Models, 2)
	assert.Equal(t, zoun.ModelSummary{
		Name:       "Employee",
		RecordType: "internal.employee",
		IDType:     "int64",
		FieldCount: 14,
	}, dashboard.Models[1])
}

func TestAdminController_List(t *testing.T) {
	controller, _, _ := newTestController(t)
	ctx := context.Background()

	view, err := controller.List(ctx, zoun.ListRequest{Model: "Employee", Page: 0, SortBy: "id", SortDir: "desc"})
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 2}, recordIDs(t, view.Records))
	assert.Equal(t, zoun.PageInfo{Index: 0, Size: 2, TotalRecords: 3, TotalPages: 2}, view.Page)
	assert.True(t, view.Page.HasNext())
	assert.Equal(t, "desc", view.SortDir)
	assert.Len(t, view.Fields, 10)
	for _, f := range view.Fields {
		assert.False(t, f.IsBinary, "binary column %s listed", f.Name)
		assert.True(t, f.IsVisible(), "hidden column %s listed", f.Name)
	}

	view, err = controller.List(ctx, zoun.ListRequest{Model: "Employee", Page: 1, SortBy: "id", SortDir: "desc"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, recordIDs(t, view.Records))
	assert.False(t, view.Page.HasNext())
	assert.True(t, view.Page.HasPrevious())
}

func TestAdminController_ListDefaults(t *testing.T) {
	controller, _, _ := newTestController(t)

	view, err := controller.List(context.Background(), zoun.ListRequest{Model: "Employee", Page: -4, SortDir: "sideways"})
	require.NoError(t, err)
	assert.Equal(t, "id", view.SortBy)
	assert.Equal(t, "asc", view.SortDir)
	assert.Equal(t, 0, view.Page.Index)
	assert.Equal(t, []int64{1, 2}, recordIDs(t, view.Records))
}

func TestAdminController_ListSearchAndSort(t *testing.T) {
	controller, _, _ := newTestController(t)
	ctx := context.Background()

	view, err := controller.List(ctx, zoun.ListRequest{Model: "Employee", Search: "JANE"})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, recordIDs(t, view.Records))
	assert.Equal(t, int64(1), view.Page.TotalRecords)
	assert.Equal(t, "JANE", view.Search)

	view, err = controller.List(ctx, zoun.ListRequest{Model: "Employee", SortBy: "salary", SortDir: "DESC"})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, recordIDs(t, view.Records))
}

func TestAdminController_ListColumnLimit(t *testing.T) {
	registry, _, _ := seededRegistry(t)
	ctx := context.Background()

	cfg := testAdminConfig()
	cfg.ListColumnLimit = 3
	view, err := NewAdminController(registry, cfg).List(ctx, zoun.ListRequest{Model: "Employee"})
	require.NoError(t, err)
	assert.Equal(t, []string{"firstName", "lastName", "id"}, fieldNames(view.Fields))

	cfg.ListColumnLimit = 0
	view, err = NewAdminController(registry, cfg).List(ctx, zoun.ListRequest{Model: "Employee"})
	require.NoError(t, err)
	assert.Len(t, view.Fields, 11)
}

func TestAdminController_ListErrors(t *testing.T) {
	controller, _, _ := newTestController(t)
	ctx := context.Background()

	_, err := controller.List(ctx, zoun.ListRequest{Model: "Ghost"})
	require.Error(t, err)
	assert.True(t, zoun.HasCode(err, zoun.ErrCodeModelNotFound))
	assert.Equal(t, 404, zoun.HTTPStatus(err))

	_, err = controller.List(ctx, zoun.ListRequest{Model: "Employee", SortBy: "nickname"})
	require.Error(t, err)
	assert.True(t, zoun.HasCode(err, zoun.ErrCodeFieldNotFound))
}

func TestAdminController_Forms(t *testing.T) {
	controller, _, _ := newTestController(t)
	ctx := context.Background()

	form, err := controller.NewForm(ctx, "Employee")
	require.NoError(t, err)
	assert.False(t, form.IsEdit)
	assert.Nil(t, form.Record)
	assert.Len(t, form.RelationshipOptions["department"], 3)
	assert.Len(t, form.Fields, 14, "forms carry every descriptor")
	assert.Contains(t, fieldNames(form.Fields), "password")
	assert.Contains(t, fieldNames(form.Fields), "scratch")
	assert.Contains(t, fieldNames(form.Fields), "profilePicture")

	form, err = controller.EditForm(ctx, "Employee", "2")
	require.NoError(t, err)
	assert.True(t, form.IsEdit)
	assert.Len(t, form.Fields, 14)
	require.IsType(t, &employee{}, form.Record)
	assert.Equal(t, "Jane", form.Record.(*employee).FirstName)

	deptForm, err := controller.NewForm(ctx, "Department")
	require.NoError(t, err)
	assert.Empty(t, deptForm.RelationshipOptions, "to-many fields carry no options")
}

type ticket struct {
	ID    int64       `json:"id"`
	Title string      `json:"title"`
	Owner *department `json:"owner,omitempty" zoun:"manyToOne,hidden"`
}

func TestAdminController_HiddenRelationshipOptions(t *testing.T) {
	_, departments, _ := seededRegistry(t)
	tickets := newMemoryStore(t, reflect.TypeFor[ticket]())
	registry, err := NewModelRegistry([]zoun.Registration{
		zoun.Register[department, int64](departments).Named("Department"),
		zoun.Register[ticket, int64](tickets).Named("Ticket"),
	}, RegistryOptions{})
	require.NoError(t, err)
	controller := NewAdminController(registry, testAdminConfig())

	form, err := controller.NewForm(context.Background(), "Ticket")
	require.NoError(t, err)
	assert.Contains(t, fieldNames(form.Fields), "owner")
	assert.Len(t, form.RelationshipOptions["owner"], 3)
}

func TestAdminController_EditFormErrors(t *testing.T) {
	controller, _, _ := newTestController(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		model string
		id    string
		code  string
	}{
		{name: "missing record", model: "Employee", id: "999", code: zoun.ErrCodeRecordNotFound},
		{name: "malformed identifier", model: "Employee", id: "two", code: zoun.ErrCodeConversionFailed},
		{name: "unknown model", model: "Ghost", id: "1", code: zoun.ErrCodeModelNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := controller.EditForm(ctx, tt.model, tt.id)
			require.Error(t, err)
			assert.True(t, zoun.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestAdminController_UnsupportedIdentifierType(t *testing.T) {
	registry, err := NewModelRegistry([]zoun.Registration{
		zoun.Register[department, float64](newMemoryStore(t, departmentType)).Named("Department"),
	}, RegistryOptions{})
	require.NoError(t, err)
	controller := NewAdminController(registry, testAdminConfig())

	_, err = controller.EditForm(context.Background(), "Department", "1.5")
	require.Error(t, err)
	assert.True(t, zoun.HasCode(err, zoun.ErrCodeUnsupportedIDType))
	assert.Contains(t, err.Error(), "Unsupported ID type: float64")

	result := controller.Delete(context.Background(), "Department", "1")
	assert.False(t, result.Success)
	assert.Equal(t, zoun.ErrCodeUnsupportedIDType, result.Err.Code)
}

func TestAdminController_SaveCreatesRecord(t *testing.T) {
	controller, _, employees := newTestController(t)

	result := controller.Save(context.Background(), "Employee", zoun.FormData{Values: map[string]string{
		"firstName":  "Alice",
		"lastName":   "Brown",
		"salary":     "3000",
		"department": "3",
	}})

	require.True(t, result.Success, result.Message)
	assert.Equal(t, "Successfully saved Employee", result.Message)
	assert.Equal(t, zoun.NextViewList, result.Next)
	saved := result.Record.(*employee)
	assert.Equal(t, int64(4), saved.ID)
	require.NotNil(t, saved.Department)
	assert.Equal(t, "Marketing", saved.Department.Name)
	assert.Equal(t, 4, employees.Count())
}

func TestAdminController_SaveUpdatesRecord(t *testing.T) {
	controller, _, employees := newTestController(t)
	ctx := context.Background()

	result := controller.Save(ctx, "Employee", zoun.FormData{Values: map[string]string{
		"id":        "2",
		"firstName": "Janet",
		"lastName":  "Smith",
	}})
	require.True(t, result.Success, result.Message)

	stored, found, err := employees.FindByID(ctx, int64(2))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Janet", stored.(*employee).FirstName)
	assert.Equal(t, "jane@example.com", stored.(*employee).Email)
	assert.Equal(t, 3, employees.Count())
}

func TestAdminController_SaveValidationFailure(t *testing.T) {
	controller, _, employees := newTestController(t)

	result := controller.Save(context.Background(), "Employee", zoun.FormData{Values: map[string]string{
		"firstName": "A",
		"lastName":  "Brown",
	}})

	assert.False(t, result.Success)
	assert.Equal(t, zoun.NextViewNewForm, result.Next)
	require.NotNil(t, result.Err)
	assert.Equal(t, zoun.ErrorTypeValidation, result.Err.Type)
	assert.Contains(t, result.Message, "Failed to save: ")
	assert.Contains(t, result.Message, "firstName")
	assert.Equal(t, 3, employees.Count())
}

func TestAdminController_SaveWithoutValidation(t *testing.T) {
	registry, _, employees := seededRegistry(t)
	cfg := testAdminConfig()
	cfg.ValidateOnSave = false

	result := NewAdminController(registry, cfg).Save(context.Background(), "Employee", zoun.FormData{Values: map[string]string{
		"firstName": "A",
	}})
	assert.True(t, result.Success, result.Message)
	assert.Equal(t, 4, employees.Count())
}

func TestAdminController_SaveBindingFailure(t *testing.T) {
	controller, _, _ := newTestController(t)

	result := controller.Save(context.Background(), "Employee", zoun.FormData{Values: map[string]string{
		"firstName": "Alice",
		"lastName":  "Brown",
		"salary":    "a lot",
	}})
	assert.False(t, result.Success)
	assert.Equal(t, zoun.ErrCodeBindingFailed, result.Err.Code)
	assert.Equal(t, "salary", result.Err.Field)
}

func TestAdminController_SaveStorageFailureIsMasked(t *testing.T) {
	failing := &failingRepository{err: errStorageDown}
	registry, err := NewModelRegistry([]zoun.Registration{
		zoun.Register[skill, string](failing).Named("Skill"),
	}, RegistryOptions{})
	require.NoError(t, err)
	controller := NewAdminController(registry, testAdminConfig())

	result := controller.Save(context.Background(), "Skill", zoun.FormData{Values: map[string]string{"label": "Go"}})

	assert.False(t, result.Success)
	assert.Equal(t, "Failed to save: "+zoun.GenericErrorMessage, result.Message)
	assert.NotContains(t, result.Message, "connection refused")
	require.NotNil(t, result.Err)
	assert.Equal(t, zoun.ErrCodeInternalError, result.Err.Code)
	assert.ErrorIs(t, result.Err, errStorageDown)
	assert.Equal(t, 1, failing.calls)

	_, err = controller.List(context.Background(), zoun.ListRequest{Model: "Skill"})
	require.Error(t, err)
	assert.True(t, zoun.IsInternalError(err))
	assert.Equal(t, zoun.GenericErrorMessage, zoun.PublicMessage(err))
}

func TestAdminController_Delete(t *testing.T) {
	controller, _, employees := newTestController(t)
	ctx := context.Background()

	result := controller.Delete(ctx, "Employee", "2")
	require.True(t, result.Success, result.Message)
	assert.Equal(t, "Successfully deleted Employee", result.Message)
	assert.Equal(t, zoun.NextViewList, result.Next)
	assert.Equal(t, 2, employees.Count())

	_, err := controller.EditForm(ctx, "Employee", "2")
	assert.True(t, zoun.HasCode(err, zoun.ErrCodeRecordNotFound))

	result = controller.Delete(ctx, "Employee", "2")
	assert.True(t, result.Success, "deleting an absent record succeeds")

	result = controller.Delete(ctx, "Employee", "abc")
	assert.False(t, result.Success)
	assert.Equal(t, zoun.ErrCodeConversionFailed, result.Err.Code)
	assert.Contains(t, result.Message, "Failed to delete: Cannot convert value 'abc'")

	result = controller.Delete(ctx, "Ghost", "1")
	assert.False(t, result.Success)
	assert.Equal(t, zoun.ErrCodeModelNotFound, result.Err.Code)
}

func TestAdminController_DownloadBinary(t *testing.T) {
	controller, _, employees := newTestController(t)
	ctx := context.Background()

	stored, _, err := employees.FindByID(ctx, int64(1))
	require.NoError(t, err)
	e := stored.(*employee)
	e.ProfilePicture = []byte{0xFF, 0xD8, 0xFF}
	_, err = employees.Save(ctx, e)
	require.NoError(t, err)

	content, err := controller.DownloadBinary(ctx, "Employee", "1", "profilePicture")
	require.NoError(t, err)
	assert.False(t, content.NoContent)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, content.Data)
	assert.Equal(t, "profilePicture", content.Field)

	content, err = controller.DownloadBinary(ctx, "Employee", "2", "profilePicture")
	require.NoError(t, err)
	assert.True(t, content.NoContent)
	assert.Empty(t, content.Data)

	_, err = controller.DownloadBinary(ctx, "Employee", "1", "firstName")
	require.Error(t, err)
	assert.True(t, zoun.HasCode(err, zoun.ErrCodeFieldNotBinary))
	assert.Equal(t, 400, zoun.HTTPStatus(err))

	_, err = controller.DownloadBinary(ctx, "Employee", "1", "avatar")
	assert.True(t, zoun.HasCode(err, zoun.ErrCodeFieldNotFound))

	_, err = controller.DownloadBinary(ctx, "Employee", "42", "profilePicture")
	assert.True(t, zoun.HasCode(err, zoun.ErrCodeRecordNotFound))

	// The record is resolved before the field.
	_, err = controller.DownloadBinary(ctx, "Employee", "42", "avatar")
	assert.True(t, zoun.HasCode(err, zoun.ErrCodeRecordNotFound), "got %v", err)
}

func TestAdminController_Schema(t *testing.T) {
	controller, _, _ := newTestController(t)

	out, err := controller.Schema(context.Background(), "Employee")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "Employee", doc["title"])
	props := doc["properties"].(map[string]any)
	assert.Contains(t, props, "department")
	assert.NotContains(t, props, "password")

	_, err = controller.Schema(context.Background(), "Ghost")
	assert.True(t, zoun.HasCode(err, zoun.ErrCodeModelNotFound))
}

func TestAdminController_Telemetry(t *testing.T) {
	metrics := captureTelemetry(t)
	controller, _, _ := newTestController(t)
	ctx := context.Background()

	_, _ = controller.List(ctx, zoun.ListRequest{Model: "Employee"})
	_, _ = controller.EditForm(ctx, "Employee", "999")
	_ = controller.Save(ctx, "Employee", zoun.FormData{Values: map[string]string{"firstName": ""}})

	require.Len(t, *metrics, 3)
	outcomes := make([]string, 0, 3)
	for _, m := range *metrics {
		assert.Equal(t, MetricOperation, m.name)
		assert.Equal(t, "Employee", m.labels["model"])
		assert.IsType(t, time.Duration(0), m.value)
		outcomes = append(outcomes, m.labels["operation"]+":"+m.labels["outcome"])
	}
	assert.Equal(t, []string{"list:success", "edit:not_found", "save:invalid"}, outcomes)
}

package internal

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
	"github.com/xcodebn/zoun"
)

type employmentType string

const (
	fullTime   employmentType = "FULL_TIME"
	partTime   employmentType = "PART_TIME"
	contractor employmentType = "CONTRACTOR"
)

func (employmentType) EnumValues() []string {
	return []string{string(fullTime), string(partTime), string(contractor)}
}

type department struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name" validate:"required,notblank,max=100"`
	Code      string      `json:"code,omitempty" validate:"omitempty,pattern=[A-Z]+"`
	Budget    float64     `json:"budget" validate:"gte=0"`
	Employees []*employee `json:"employees,omitempty" zoun:"oneToMany,mappedBy=department"`
}

type Auditable struct {
	CreatedAt time.Time `json:"createdAt" zoun:"readonly"`
	Notes     string    `json:"notes,omitempty"`
}

type employee struct {
	ID             int64          `json:"id"`
	FirstName      string         `json:"firstName" validate:"required,notblank,min=2,max=50" zoun:"label=Given name,order=1"`
	LastName       string         `json:"lastName" validate:"required,notblank" zoun:"order=2"`
	Email          string         `json:"email,omitempty" validate:"omitempty,email"`
	Salary         float64        `json:"salary" validate:"gte=0"`
	Active         bool           `json:"active"`
	HireDate       pgtype.Date    `json:"hireDate" validate:"omitempty,past"`
	EmploymentType employmentType `json:"employmentType"`
	Department     *department    `json:"department,omitempty" zoun:"manyToOne"`
	ProfilePicture []byte         `json:"profilePicture,omitempty" zoun:"binary"`
	Password       string         `json:"password,omitempty" zoun:"hidden"`
	Scratch        string         `json:"-" zoun:"transient"`
	Auditable
}

type skill struct {
	Code  string `json:"code" zoun:"id"`
	Label string `json:"label"`
}

type document struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	Body  []byte    `json:"body,omitempty" zoun:"lob"`
}

var (
	departmentType = reflect.TypeFor[department]()
	employeeType   = reflect.TypeFor[employee]()
	skillType      = reflect.TypeFor[skill]()
	documentType   = reflect.TypeFor[document]()
)

func newMemoryStore(t *testing.T, recordType reflect.Type) *MemoryRepository {
	t.Helper()
	repo, err := NewMemoryRepository(recordType, nil)
	require.NoError(t, err)
	return repo
}

// seededRegistry registers departments and employees on memory stores and seeds them.
func seededRegistry(t *testing.T) (*ModelRegistry, *MemoryRepository, *MemoryRepository) {
	t.Helper()
	departments := newMemoryStore(t, departmentType)
	employees := newMemoryStore(t, employeeType)

	ctx := context.Background()
	for _, name := range []string{"Engineering", "Sales", "Marketing"} {
		_, err := departments.Save(ctx, &department{Name: name})
		require.NoError(t, err)
	}
	eng, _, err := departments.FindByID(ctx, int64(1))
	require.NoError(t, err)

	for _, e := range []*employee{
		{FirstName: "John", LastName: "Doe", Email: "john@example.com", Salary: 5000, EmploymentType: fullTime},
		{FirstName: "Jane", LastName: "Smith", Email: "jane@example.com", Salary: 6500, EmploymentType: partTime},
		{FirstName: "Bob", LastName: "Jones", Salary: 4200, EmploymentType: contractor},
	} {
		e.Department = eng.(*department)
		_, err := employees.Save(ctx, e)
		require.NoError(t, err)
	}

	registry, err := NewModelRegistry([]zoun.Registration{
		zoun.Register[department, int64](departments).Named("Department"),
		zoun.Register[employee, int64](employees).Named("Employee"),
	}, RegistryOptions{})
	require.NoError(t, err)
	return registry, departments, employees
}

// failingRepository fails every call with err.
type failingRepository struct {
	err   error
	calls int
}

func (f *failingRepository) FindByID(ctx context.Context, id any) (any, bool, error) {
	f.calls++
	return nil, false, f.err
}

func (f *failingRepository) FindAllPaginated(ctx context.Context, page zoun.PageRequest) ([]any, int64, error) {
	f.calls++
	return nil, 0, f.err
}

func (f *failingRepository) FindAll(ctx context.Context) ([]any, error) {
	f.calls++
	return nil, f.err
}

func (f *failingRepository) Save(ctx context.Context, record any) (any, error) {
	f.calls++
	return nil, f.err
}

func (f *failingRepository) DeleteByID(ctx context.Context, id any) error {
	f.calls++
	return f.err
}

var errStorageDown = errors.New("connection refused")

// recordedMetric is one emission captured by captureTelemetry.
type recordedMetric struct {
	name   string
	labels map[string]string
	value  any
}

// captureTelemetry installs an emitter that records every emission until the test ends.
func captureTelemetry(t *testing.T) *[]recordedMetric {
	var got []recordedMetric
	RegisterTelemetryEmitter(func(ctx context.Context, name string, labels map[string]string, value any) {
		got = append(got, recordedMetric{name: name, labels: labels, value: value})
	})
	t.Cleanup(func() { RegisterTelemetryEmitter(nil) })
	return &got
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/xcodebn/zoun"
	"go.uber.org/zap"
)

// EmploymentType is the contract kind of an employee.
type EmploymentType string

const (
	FullTime   EmploymentType = "FULL_TIME"
	PartTime   EmploymentType = "PART_TIME"
	Contract   EmploymentType = "CONTRACT"
	Internship EmploymentType = "INTERNSHIP"
)

func (EmploymentType) EnumValues() []string {
	return []string{string(FullTime), string(PartTime), string(Contract), string(Internship)}
}

// EmployeeStatus is the current state of an employee.
type EmployeeStatus string

const (
	StatusActive     EmployeeStatus = "ACTIVE"
	StatusOnLeave    EmployeeStatus = "ON_LEAVE"
	StatusTerminated EmployeeStatus = "TERMINATED"
)

func (EmployeeStatus) EnumValues() []string {
	return []string{string(StatusActive), string(StatusOnLeave), string(StatusTerminated)}
}

type Department struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name" validate:"required,notblank,max=100"`
	Description string      `json:"description,omitempty" validate:"max=500"`
	Employees   []*Employee `json:"employees,omitempty" zoun:"oneToMany,mappedBy=department"`
}

type Employee struct {
	ID             int64            `json:"id"`
	FirstName      string           `json:"firstName" validate:"required,notblank,min=2,max=50" zoun:"order=1"`
	LastName       string           `json:"lastName" validate:"required,notblank,min=2,max=50" zoun:"order=2"`
	Email          string           `json:"email" validate:"required,notblank,email" zoun:"order=3"`
	BirthDate      pgtype.Date      `json:"birthDate" validate:"required,past"`
	Age            int              `json:"age,omitempty" validate:"omitempty,min=18,max=100"`
	Salary         pgtype.Numeric   `json:"salary" validate:"required,gt=0"`
	Department     *Department      `json:"department,omitempty" validate:"required" zoun:"manyToOne"`
	EmploymentType EmploymentType   `json:"employmentType" validate:"required"`
	Status         EmployeeStatus   `json:"status,omitempty"`
	HireDate       pgtype.Timestamp `json:"hireDate"`
	ProfilePicture []byte           `json:"profilePicture,omitempty" zoun:"lob"`
	Notes          string           `json:"notes,omitempty" validate:"max=1000"`
}

type Category struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name" validate:"required,notblank,max=100"`
	Description string     `json:"description,omitempty"`
	Products    []*Product `json:"products,omitempty" zoun:"oneToMany,mappedBy=category"`
}

type Product struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name" validate:"required,notblank,min=3,max=200" zoun:"order=1"`
	Description  string           `json:"description,omitempty" validate:"max=1000"`
	Price        pgtype.Numeric   `json:"price" validate:"required,gt=0"`
	Stock        int              `json:"stock" validate:"gte=0"`
	SKU          string           `json:"sku" validate:"required,notblank" zoun:"label=SKU"`
	Category     *Category        `json:"category,omitempty" zoun:"manyToOne"`
	Active       bool             `json:"active"`
	CreatedAt    pgtype.Timestamp `json:"createdAt" zoun:"readonly"`
	ProductImage []byte           `json:"productImage,omitempty" zoun:"lob"`
}

// demoRegistrations returns the demo models without storage handles; the factory supplies them.
func demoRegistrations() []zoun.Registration {
	return []zoun.Registration{
		zoun.Register[Department, int64](nil),
		zoun.Register[Employee, int64](nil),
		zoun.Register[Category, int64](nil),
		zoun.Register[Product, int64](nil),
	}
}

func numeric(s string) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		panic(fmt.Sprintf("invalid numeric literal %q: %v", s, err))
	}
	return n
}

func date(year int, month time.Month, day int) pgtype.Date {
	return pgtype.Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Valid: true}
}

// seedDemo stores the demo data set when the departments store is empty.
func seedDemo(ctx context.Context, registry zoun.ModelRegistry) error {
	repo := func(name string) (zoun.Repository, error) {
		entry, ok := registry.Get(name)
		if !ok {
			return nil, zoun.NewModelNotFoundError(name)
		}
		return entry.Repository, nil
	}
	departments, err := repo("Department")
	if err != nil {
		return err
	}
	employees, err := repo("Employee")
	if err != nil {
		return err
	}
	categories, err := repo("Category")
	if err != nil {
		return err
	}
	products, err := repo("Product")
	if err != nil {
		return err
	}

	existing, err := departments.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("check existing data: %w", err)
	}
	if len(existing) > 0 {
		zap.S().Infow("storage already holds data, skipping seed", "departments", len(existing))
		return nil
	}

	now := pgtype.Timestamp{Time: time.Now().UTC().Truncate(time.Second), Valid: true}

	dept := make(map[string]*Department)
	for _, d := range []*Department{
		{Name: "Engineering", Description: "Software development and IT infrastructure"},
		{Name: "Human Resources", Description: "Employee management and recruitment"},
		{Name: "Sales", Description: "Product sales and customer relations"},
		{Name: "Marketing", Description: "Brand promotion and advertising"},
	} {
		saved, err := departments.Save(ctx, d)
		if err != nil {
			return fmt.Errorf("seed department %s: %w", d.Name, err)
		}
		dept[d.Name] = saved.(*Department)
	}

	for _, e := range []*Employee{
		{FirstName: "John", LastName: "Doe", Email: "john.doe@example.com", BirthDate: date(1990, time.May, 15), Age: 33, Salary: numeric("85000.00"), Department: dept["Engineering"], EmploymentType: FullTime},
		{FirstName: "Jane", LastName: "Smith", Email: "jane.smith@example.com", BirthDate: date(1988, time.August, 22), Age: 35, Salary: numeric("92000.00"), Department: dept["Engineering"], EmploymentType: FullTime},
		{FirstName: "Mike", LastName: "Johnson", Email: "mike.johnson@example.com", BirthDate: date(1995, time.March, 10), Age: 28, Salary: numeric("65000.00"), Department: dept["Human Resources"], EmploymentType: FullTime},
		{FirstName: "Sarah", LastName: "Williams", Email: "sarah.williams@example.com", BirthDate: date(1992, time.November, 5), Age: 31, Salary: numeric("78000.00"), Department: dept["Sales"], EmploymentType: FullTime},
		{FirstName: "Tom", LastName: "Brown", Email: "tom.brown@example.com", BirthDate: date(2000, time.January, 20), Age: 24, Salary: numeric("45000.00"), Department: dept["Marketing"], EmploymentType: PartTime},
	} {
		e.Status = StatusActive
		e.HireDate = now
		if _, err := employees.Save(ctx, e); err != nil {
			return fmt.Errorf("seed employee %s: %w", e.Email, err)
		}
	}

	cat := make(map[string]*Category)
	for _, c := range []*Category{
		{Name: "Electronics", Description: "Electronic devices and accessories"},
		{Name: "Clothing", Description: "Apparel and fashion items"},
		{Name: "Books", Description: "Physical and digital books"},
		{Name: "Home & Garden", Description: "Home improvement and garden supplies"},
	} {
		saved, err := categories.Save(ctx, c)
		if err != nil {
			return fmt.Errorf("seed category %s: %w", c.Name, err)
		}
		cat[c.Name] = saved.(*Category)
	}

	for _, p := range []*Product{
		{Name: "Laptop Pro 15", Description: "High-performance laptop with 16GB RAM and 512GB SSD", Price: numeric("1299.99"), Stock: 25, SKU: "LAP-PRO-15", Category: cat["Electronics"]},
		{Name: "Wireless Mouse", Description: "Ergonomic wireless mouse with USB receiver", Price: numeric("29.99"), Stock: 150, SKU: "MOUSE-WL-01", Category: cat["Electronics"]},
		{Name: "T-Shirt Cotton", Description: "100% cotton t-shirt, available in multiple colors", Price: numeric("19.99"), Stock: 200, SKU: "TSHIRT-COT-M", Category: cat["Clothing"]},
		{Name: "Running Shoes", Description: "Lightweight running shoes with cushioned sole", Price: numeric("89.99"), Stock: 75, SKU: "SHOE-RUN-42", Category: cat["Clothing"]},
		{Name: "Go Programming Guide", Description: "Comprehensive guide to modern Go development", Price: numeric("49.99"), Stock: 50, SKU: "BOOK-GO-001", Category: cat["Books"]},
		{Name: "Garden Tool Set", Description: "Complete 10-piece garden tool set with carrying case", Price: numeric("79.99"), Stock: 30, SKU: "GARDEN-SET-10", Category: cat["Home & Garden"]},
	} {
		p.Active = true
		p.CreatedAt = now
		if _, err := products.Save(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.SKU, err)
		}
	}

	zap.S().Infow("sample data initialized", "departments", 4, "employees", 5, "categories", 4, "products", 6)
	return nil
}

package e2e_harness

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/xcodebn/zoun"
	"github.com/xcodebn/zoun/internal"
)

// Customer and Invoice are the records stored by the end-to-end tests.
type Customer struct {
	ID      int64  `json:"id" zoun:"id"`
	Name    string `json:"name" validate:"required"`
	Country string `json:"country"`
}

type Invoice struct {
	ID         int64     `json:"id" zoun:"id"`
	Number     string    `json:"number" validate:"required"`
	Amount     float64   `json:"amount"`
	IssuedAt   time.Time `json:"issuedAt"`
	Customer   *Customer `json:"customer,omitempty" zoun:"manyToOne"`
	Attachment []byte    `json:"attachment,omitempty" zoun:"binary"`
}

var (
	CustomerType = reflect.TypeFor[Customer]()
	InvoiceType  = reflect.TypeFor[Invoice]()
)

// SeedCustomers saves the given customer names and returns the stored records in order.
func SeedCustomers(ctx context.Context, repo zoun.Repository, names ...string) ([]*Customer, error) {
	out := make([]*Customer, 0, len(names))
	for _, name := range names {
		saved, err := repo.Save(ctx, &Customer{Name: name, Country: "NL"})
		if err != nil {
			return nil, fmt.Errorf("seed customer %q: %w", name, err)
		}
		out = append(out, saved.(*Customer))
	}
	return out, nil
}

// NewPostgresRepositories builds the customer and invoice handles on the pgx pool, both in one table.
func (h *TestHarness) NewPostgresRepositories(ctx context.Context, table string) (customers, invoices *internal.PostgresRepository, err error) {
	introspector := internal.NewIntrospector()
	customers, err = internal.NewPostgresRepository(h.PGPool, table, "Customer", CustomerType, introspector)
	if err != nil {
		return nil, nil, err
	}
	invoices, err = internal.NewPostgresRepository(h.PGPool, table, "Invoice", InvoiceType, introspector)
	if err != nil {
		return nil, nil, err
	}
	if err := customers.EnsureSchema(ctx); err != nil {
		return nil, nil, err
	}
	return customers, invoices, nil
}

// NewSQLRepository builds a customer handle through database/sql and lib/pq.
func (h *TestHarness) NewSQLRepository(ctx context.Context, table string) (*internal.SQLRepository, error) {
	repo, err := internal.NewSQLRepository(h.PGDB, internal.SQLDriverPostgres, table, "Customer", CustomerType, internal.NewIntrospector())
	if err != nil {
		return nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

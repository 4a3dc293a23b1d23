package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"time"

	_ "github.com/lib/pq"
	"github.com/xcodebn/zoun"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// database/sql driver names of the supported document stores.
const (
	SQLDriverSQLite   = "sqlite"
	SQLDriverPostgres = "postgres"
)

// SQLRepository stores the records of one model as JSON documents through database/sql.
// It serves sqlite databases and Postgres reached through lib/pq.
type SQLRepository struct {
	db      *sql.DB
	model   string
	codec   *documentCodec
	queries documentQueries
	nowFunc func() time.Time
}

// NewSQLRepository creates a repository for the model on an open database handle.
// driver selects the SQL dialect and is one of SQLDriverSQLite or SQLDriverPostgres.
func NewSQLRepository(db *sql.DB, driver, table, model string, recordType reflect.Type, introspector *Introspector) (*SQLRepository, error) {
	var dialect documentDialect
	switch driver {
	case SQLDriverSQLite:
		dialect = sqliteDialect
	case SQLDriverPostgres:
		dialect = postgresDialect
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	codec, err := newDocumentCodec(recordType, introspector)
	if err != nil {
		return nil, err
	}
	queries, err := newDocumentQueries(dialect, table)
	if err != nil {
		return nil, err
	}
	return &SQLRepository{
		db:      db,
		model:   model,
		codec:   codec,
		queries: queries,
		nowFunc: time.Now,
	}, nil
}

// OpenSQLite opens a sqlite database. An in-memory database is limited to one connection
// so that every statement sees the same data.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open(SQLDriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" || path == "" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

func (r *SQLRepository) rebind(query string) string {
	return r.queries.dialect.rebind(query)
}

// EnsureSchema creates the document and sequence tables when they do not exist.
func (r *SQLRepository) EnsureSchema(ctx context.Context) error {
	statements, err := r.queries.schemaStatements()
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create document tables: %w", err)
		}
	}
	return nil
}

func (r *SQLRepository) FindByID(ctx context.Context, id any) (any, bool, error) {
	key, err := r.codec.key(id)
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = r.db.QueryRowContext(ctx, r.rebind(r.queries.selectOne()), r.model, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query %s %s: %w", r.model, key, err)
	}

	record, err := r.codec.decode(payload)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (r *SQLRepository) FindAllPaginated(ctx context.Context, page zoun.PageRequest) ([]any, int64, error) {
	pq, err := buildPageQuery(r.codec, r.model, page)
	if err != nil {
		return nil, 0, err
	}

	countSQL, countArgs := r.queries.count(pq)
	var total int64
	if err := r.db.QueryRowContext(ctx, r.rebind(countSQL), countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s records: %w", r.model, err)
	}

	pageSQL, pageArgs := r.queries.pageSelect(pq)
	rows, err := r.db.QueryContext(ctx, r.rebind(pageSQL), pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query %s records: %w", r.model, err)
	}
	records, err := r.scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *SQLRepository) FindAll(ctx context.Context) ([]any, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(r.queries.selectAll()), r.model)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s records: %w", r.model, err)
	}
	return r.scanRecords(rows)
}

func (r *SQLRepository) scanRecords(rows *sql.Rows) ([]any, error) {
	defer rows.Close()

	records := make([]any, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan %s record: %w", r.model, err)
		}
		record, err := r.codec.decode(payload)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s records: %w", r.model, err)
	}
	return records, nil
}

func (r *SQLRepository) Save(ctx context.Context, record any) (any, error) {
	record, err := r.codec.normalize(record)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	id := r.codec.id(record)
	switch {
	case IsZeroID(id) && r.codec.numericIDs():
		var next int64
		if err := tx.QueryRowContext(ctx, r.rebind(r.queries.nextSequence()), r.model).Scan(&next); err != nil {
			return nil, fmt.Errorf("failed to allocate %s identifier: %w", r.model, err)
		}
		id = r.codec.sequenceID(next)
		if err := r.codec.setID(record, id); err != nil {
			return nil, err
		}
	case IsZeroID(id):
		if id, err = r.codec.newUUID(); err != nil {
			return nil, err
		}
		if err := r.codec.setID(record, id); err != nil {
			return nil, err
		}
	case r.codec.numericIDs():
		if _, err := tx.ExecContext(ctx, r.rebind(r.queries.bumpSequence()), r.model, sequenceValue(id)); err != nil {
			return nil, fmt.Errorf("failed to advance %s sequence: %w", r.model, err)
		}
	}

	key, err := r.codec.key(id)
	if err != nil {
		return nil, err
	}
	payload, err := r.codec.encode(record)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, r.rebind(r.queries.upsert()), r.model, key, string(payload), r.nowFunc().UnixMilli()); err != nil {
		return nil, fmt.Errorf("failed to store %s %s: %w", r.model, key, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.S().Debugw("stored record", "model", r.model, "id", key, "driver", r.queries.dialect.name)
	return record, nil
}

func (r *SQLRepository) DeleteByID(ctx context.Context, id any) error {
	key, err := r.codec.key(id)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, r.rebind(r.queries.delete()), r.model, key); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", r.model, key, err)
	}
	return nil
}

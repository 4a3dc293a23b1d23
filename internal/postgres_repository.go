package internal

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xcodebn/zoun"
	"go.uber.org/zap"
)

type documentPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PostgresRepository stores the records of one model as JSONB documents in a shared table.
type PostgresRepository struct {
	pool    documentPool
	model   string
	codec   *documentCodec
	queries documentQueries
	nowFunc func() time.Time
}

// NewPostgresRepository creates a repository for the model backed by the given pool.
func NewPostgresRepository(pool documentPool, table, model string, recordType reflect.Type, introspector *Introspector) (*PostgresRepository, error) {
	codec, err := newDocumentCodec(recordType, introspector)
	if err != nil {
		return nil, err
	}
	queries, err := newDocumentQueries(postgresDialect, table)
	if err != nil {
		return nil, err
	}
	return &PostgresRepository{
		pool:    pool,
		model:   model,
		codec:   codec,
		queries: queries,
		nowFunc: time.Now,
	}, nil
}

func (r *PostgresRepository) withClock(now func() time.Time) {
	if now == nil {
		return
	}
	r.nowFunc = now
}

func (r *PostgresRepository) nowMillis() int64 {
	if r.nowFunc == nil {
		return time.Now().UnixMilli()
	}
	return r.nowFunc().UnixMilli()
}

// EnsureSchema creates the document and sequence tables when they do not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	statements, err := r.queries.schemaStatements()
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create document tables: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id any) (any, bool, error) {
	key, err := r.codec.key(id)
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = r.pool.QueryRow(ctx, r.queries.selectOne(), r.model, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (r *PostgresRepository) FindAllPaginated(ctx context.Context, page zoun.PageRequest) ([]any, int64, error) {
	pq, err := buildPageQuery(r.codec, r.model, page)
	if err != nil {
		return nil, 0, err
	}

	countSQL, countArgs := r.queries.count(pq)
	var total int64
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s records: %w", r.model, err)
	}

	pageSQL, pageArgs := r.queries.pageSelect(pq)
	zap.S().Debugw("querying document page", "model", r.model, "sql", pageSQL)

	rows, err := r.pool.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query %s records: %w", r.model, err)
	}
	records, err := r.scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *PostgresRepository) FindAll(ctx context.Context) ([]any, error) {
	rows, err := r.pool.Query(ctx, r.queries.selectAll(), r.model)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s records: %w", r.model, err)
	}
	return r.scanRecords(rows)
}

func (r *PostgresRepository) scanRecords(rows pgx.Rows) ([]any, error) {
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

func (r *PostgresRepository) Save(ctx context.Context, record any) (any, error) {
	record, err := r.codec.normalize(record)
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	id := r.codec.id(record)
	switch {
	case IsZeroID(id) && r.codec.numericIDs():
		var next int64
		if err := tx.QueryRow(ctx, r.queries.nextSequence(), r.model).Scan(&next); err != nil {
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
		if _, err := tx.Exec(ctx, r.queries.bumpSequence(), r.model, sequenceValue(id)); err != nil {
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

	if _, err := tx.Exec(ctx, r.queries.upsert(), r.model, key, string(payload), r.nowMillis()); err != nil {
		return nil, fmt.Errorf("failed to store %s %s: %w", r.model, key, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.S().Debugw("stored record", "model", r.model, "id", key)
	return record, nil
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id any) error {
	key, err := r.codec.key(id)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, r.queries.delete(), r.model, key); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", r.model, key, err)
	}
	return nil
}

// buildPageQuery resolves the sort field and the searchable document keys for a page request.
func buildPageQuery(codec *documentCodec, model string, page zoun.PageRequest) (pageQuery, error) {
	pq := pageQuery{model: model, page: page}

	if page.SortField != "" {
		field, ok := codec.field(page.SortField)
		if !ok {
			return pageQuery{}, zoun.NewFieldNotFoundError(model, page.SortField)
		}
		pq.sortKey = codec.jsonKey(field)
		pq.numeric = field.Kind.IsNumeric()
	}

	for _, f := range codec.searchable() {
		pq.searchKeys = append(pq.searchKeys, codec.jsonKey(f))
	}
	return pq, nil
}

package internal

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/xcodebn/zoun"
)

func renderTemplate(tpl *template.Template, data any) (string, error) {
	var builder strings.Builder
	if err := tpl.Execute(&builder, data); err != nil {
		return "", err
	}
	return builder.String(), nil
}

// documentDialect captures the SQL differences between the document stores.
type documentDialect struct {
	name        string
	schema      *template.Template
	payloadType string
	// fieldExpr extracts a document field as text given the placeholder bound to the field path.
	fieldExpr func(placeholder string) string
	// numericExpr extracts a document field as a number.
	numericExpr func(placeholder string) string
	// fieldPath turns a document key into the bound path argument.
	fieldPath func(key string) string
	like      string
	// rebind rewrites numbered $N placeholders into the driver's syntax.
	rebind func(query string) string
}

var dollarPlaceholder = regexp.MustCompile(`\$(\d+)`)

var documentSchemaTemplate = template.Must(template.New("schema").Parse(
	`CREATE TABLE IF NOT EXISTS {{.Table}} (
	model TEXT NOT NULL,
	record_id TEXT NOT NULL,
	payload {{.PayloadType}} NOT NULL,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL,
	PRIMARY KEY (model, record_id)
);
CREATE TABLE IF NOT EXISTS {{.SequenceTable}} (
	model TEXT PRIMARY KEY,
	value BIGINT NOT NULL
)`))

var (
	postgresDialect = documentDialect{
		name:        "postgres",
		schema:      documentSchemaTemplate,
		payloadType: "JSONB",
		fieldExpr:   func(p string) string { return "payload->>(" + p + "::text)" },
		numericExpr: func(p string) string { return "(payload->>(" + p + "::text))::numeric" },
		fieldPath:   func(key string) string { return key },
		like:        "ILIKE",
		rebind:      func(query string) string { return query },
	}
	sqliteDialect = documentDialect{
		name:        "sqlite",
		schema:      documentSchemaTemplate,
		payloadType: "TEXT",
		fieldExpr:   func(p string) string { return "json_extract(payload, " + p + ")" },
		numericExpr: func(p string) string { return "json_extract(payload, " + p + ")" },
		fieldPath:   func(key string) string { return "$." + key },
		like:        "LIKE",
		rebind:      func(query string) string { return dollarPlaceholder.ReplaceAllString(query, "?$1") },
	}
)

// documentQueries renders the statements of a document table for one dialect.
// Statements are written with $N placeholders and rebound per dialect by the caller.
type documentQueries struct {
	dialect       documentDialect
	table         string
	sequenceTable string
}

func newDocumentQueries(dialect documentDialect, table string) (documentQueries, error) {
	if strings.TrimSpace(table) == "" {
		return documentQueries{}, fmt.Errorf("document table name cannot be empty")
	}
	return documentQueries{
		dialect:       dialect,
		table:         sanitizeIdentifier(table),
		sequenceTable: sanitizeIdentifier(table + "_seq"),
	}, nil
}

// schemaStatements returns the DDL statements that create the document and sequence tables.
func (q documentQueries) schemaStatements() ([]string, error) {
	ddl, err := renderTemplate(q.dialect.schema, map[string]string{
		"Table":         q.table,
		"SequenceTable": q.sequenceTable,
		"PayloadType":   q.dialect.payloadType,
	})
	if err != nil {
		return nil, fmt.Errorf("render schema: %w", err)
	}
	var statements []string
	for _, stmt := range strings.Split(ddl, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			statements = append(statements, s)
		}
	}
	return statements, nil
}

func (q documentQueries) selectOne() string {
	return fmt.Sprintf("SELECT payload FROM %s WHERE model = $1 AND record_id = $2", q.table)
}

func (q documentQueries) selectAll() string {
	return fmt.Sprintf("SELECT payload FROM %s WHERE model = $1 ORDER BY created_at, record_id", q.table)
}

func (q documentQueries) upsert() string {
	return fmt.Sprintf(
		`INSERT INTO %s (model, record_id, payload, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (model, record_id)
			DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		q.table,
	)
}

func (q documentQueries) delete() string {
	return fmt.Sprintf("DELETE FROM %s WHERE model = $1 AND record_id = $2", q.table)
}

func (q documentQueries) nextSequence() string {
	return fmt.Sprintf(
		`INSERT INTO %s AS s (model, value) VALUES ($1, 1)
			ON CONFLICT (model) DO UPDATE SET value = s.value + 1
			RETURNING value`,
		q.sequenceTable,
	)
}

func (q documentQueries) bumpSequence() string {
	return fmt.Sprintf(
		`INSERT INTO %s AS s (model, value) VALUES ($1, $2)
			ON CONFLICT (model) DO UPDATE SET value = CASE WHEN s.value > EXCLUDED.value THEN s.value ELSE EXCLUDED.value END`,
		q.sequenceTable,
	)
}

// pageQuery describes one paginated read against the document table.
type pageQuery struct {
	model      string
	page       zoun.PageRequest
	sortKey    string
	numeric    bool
	searchKeys []string
}

// where renders the filter shared by the count and page statements, appending its arguments.
func (q documentQueries) where(pq pageQuery, args *[]any) string {
	*args = append(*args, pq.model)
	clause := "model = $1"

	search := strings.TrimSpace(pq.page.Search)
	if search == "" || len(pq.searchKeys) == 0 {
		return clause
	}

	*args = append(*args, "%"+escapeLike(search)+"%")
	patternArg := fmt.Sprintf("$%d", len(*args))
	conditions := make([]string, 0, len(pq.searchKeys))
	for _, key := range pq.searchKeys {
		*args = append(*args, q.dialect.fieldPath(key))
		expr := q.dialect.fieldExpr(fmt.Sprintf("$%d", len(*args)))
		conditions = append(conditions, fmt.Sprintf("%s %s %s ESCAPE '\\'", expr, q.dialect.like, patternArg))
	}
	return clause + " AND (" + strings.Join(conditions, " OR ") + ")"
}

func (q documentQueries) count(pq pageQuery) (string, []any) {
	var args []any
	where := q.where(pq, &args)
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", q.table, where), args
}

func (q documentQueries) pageSelect(pq pageQuery) (string, []any) {
	var args []any
	where := q.where(pq, &args)

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT payload FROM %s WHERE %s ORDER BY ", q.table, where)
	if pq.sortKey != "" {
		args = append(args, q.dialect.fieldPath(pq.sortKey))
		placeholder := fmt.Sprintf("$%d", len(args))
		expr := q.dialect.fieldExpr(placeholder)
		if pq.numeric {
			expr = q.dialect.numericExpr(placeholder)
		}
		if pq.page.Ascending {
			fmt.Fprintf(&b, "%s ASC NULLS FIRST, ", expr)
		} else {
			fmt.Fprintf(&b, "%s DESC NULLS LAST, ", expr)
		}
	}
	b.WriteString("created_at, record_id")

	if pq.page.Size > 0 {
		args = append(args, pq.page.Size, pq.page.Offset())
		fmt.Fprintf(&b, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	return b.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

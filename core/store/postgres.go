package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/spinal-tech/spinal/core/csql"
	"github.com/spinal-tech/spinal/core/descriptor"
	"github.com/spinal-tech/spinal/core/logger"
)

// Postgres is the relational Store implementation. One table per mounted
// model, columns synthesized from the model descriptor.
type Postgres struct {
	db     *csql.DB
	tables map[string]*table
}

type table struct {
	desc     *descriptor.Descriptor
	relation string // schema-qualified, quoted
	columns  []string
	identity string
}

// NewPostgres creates a postgres store on the given database.
func NewPostgres(db *csql.DB) *Postgres {
	return &Postgres{db: db, tables: make(map[string]*table)}
}

func columnType(a descriptor.Attribute) string {
	if a.Identity || a.Reference {
		return "uuid"
	}
	switch a.Type {
	case "integer":
		return "integer"
	case "float":
		return "double precision"
	case "boolean":
		return "boolean"
	case "uuid":
		return "uuid"
	case "timestamp":
		return "timestamp"
	default:
		return "varchar"
	}
}

// Mount creates the table for the descriptor (if it does not exist yet) and
// makes the model available to the query methods.
func (p *Postgres) Mount(d *descriptor.Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	rlog := logger.Default()
	rlog.Debugln("mount model table:", d.Name)

	t := &table{
		desc:     d,
		relation: p.db.Schema + "." + pq.QuoteIdentifier(d.Name),
	}
	var createColumns []string
	for _, a := range d.Attributes {
		t.columns = append(t.columns, a.Name)
		column := pq.QuoteIdentifier(a.Name) + " " + columnType(a)
		switch {
		case a.Identity:
			t.identity = a.Name
			column += " NOT NULL DEFAULT uuid_generate_v4() PRIMARY KEY"
		case a.Timestamp:
			column += " NOT NULL DEFAULT now()"
		case !a.AllowNull:
			column += " NOT NULL"
		}
		createColumns = append(createColumns, column)
	}
	if t.identity == "" {
		return fmt.Errorf("model %s has no identity attribute", d.Name)
	}

	createQuery := "CREATE table IF NOT EXISTS " + t.relation +
		" (" + strings.Join(createColumns, ", ") + ");"
	if _, err := p.db.Exec(createQuery); err != nil {
		return wrapError("mount "+d.Name, err)
	}
	p.tables[d.Name] = t
	return nil
}

func (p *Postgres) table(model string) (*table, error) {
	t, ok := p.tables[model]
	if !ok {
		return nil, &StorageError{Op: "lookup " + model, Err: fmt.Errorf("model not mounted")}
	}
	return t, nil
}

// wrapError converts a database error into the typed store taxonomy.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if err == csql.ErrNoRows {
		return ErrNotFound
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Class() == "23" {
		fields := []string{}
		if pqErr.Column != "" {
			fields = append(fields, pqErr.Column)
		}
		if pqErr.Constraint != "" {
			fields = append(fields, pqErr.Constraint)
		}
		return &ConstraintError{Kind: pqErr.Code.Name(), Fields: fields}
	}
	return &StorageError{Op: op, Err: err}
}

// whereClause builds an AND-joined equality clause from the filter, with
// deterministic column order. Filter keys that are not attributes of the
// model, and values that are not storable scalars, are rejected.
func (t *table) whereClause(filter Filter, offset int) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var terms []string
	var args []any
	for _, key := range keys {
		if !t.desc.HasAttribute(key) {
			return "", nil, &ConstraintError{Kind: "invalid_filter", Fields: []string{key}}
		}
		value := filter[key]
		switch value.(type) {
		case nil, string, bool, float64, int, int64, time.Time:
		default:
			return "", nil, &ConstraintError{Kind: "invalid_filter", Fields: []string{key}}
		}
		terms = append(terms, pq.QuoteIdentifier(key)+" = $"+strconv.Itoa(offset+len(args)+1))
		args = append(args, value)
	}
	return " WHERE " + strings.Join(terms, " AND "), args, nil
}

// orderClause validates a caller-specified order expression: an attribute
// name optionally followed by ASC or DESC.
func (t *table) orderClause(order string) (string, error) {
	if order == "" {
		return "", nil
	}
	parts := strings.Fields(order)
	if len(parts) > 2 || !t.desc.HasAttribute(parts[0]) {
		return "", &ConstraintError{Kind: "invalid_order", Fields: []string{order}}
	}
	clause := " ORDER BY " + pq.QuoteIdentifier(parts[0])
	if len(parts) == 2 {
		switch strings.ToUpper(parts[1]) {
		case "ASC", "DESC":
			clause += " " + strings.ToUpper(parts[1])
		default:
			return "", &ConstraintError{Kind: "invalid_order", Fields: []string{order}}
		}
	}
	return clause, nil
}

func (t *table) columnList() string {
	quoted := make([]string, len(t.columns))
	for i, c := range t.columns {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

// scanRecord turns one result row into a Record. Byte slices become strings,
// everything else keeps its driver type.
func (t *table) scanRecord(scan func(...any) error) (Record, error) {
	values := make([]any, len(t.columns))
	for i := range values {
		values[i] = new(any)
	}
	if err := scan(values...); err != nil {
		return nil, err
	}
	record := Record{}
	for i, column := range t.columns {
		value := *(values[i].(*any))
		if b, ok := value.([]byte); ok {
			value = string(b)
		}
		record[column] = value
	}
	return record, nil
}

// payloadColumns filters the payload down to writable model attributes, in
// declaration order. Unknown keys are dropped silently; identity and
// timestamp columns are never written.
func (t *table) payloadColumns(payload Record) ([]string, []any) {
	var columns []string
	var args []any
	for _, a := range t.desc.Attributes {
		if a.Identity || a.Timestamp {
			continue
		}
		if value, ok := payload[a.Name]; ok {
			columns = append(columns, a.Name)
			args = append(args, value)
		}
	}
	return columns, args
}

// Create persists a new record.
func (p *Postgres) Create(ctx context.Context, model string, payload Record) (Record, error) {
	t, err := p.table(model)
	if err != nil {
		return nil, err
	}
	columns, args := t.payloadColumns(payload)
	query := "INSERT INTO " + t.relation
	if len(columns) == 0 {
		query += " DEFAULT VALUES"
	} else {
		quoted := make([]string, len(columns))
		placeholders := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = pq.QuoteIdentifier(c)
			placeholders[i] = "$" + strconv.Itoa(i+1)
		}
		query += " (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " RETURNING " + t.columnList() + ";"

	record, err := t.scanRecordRow(p.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, wrapError("create "+model, err)
	}
	return record, nil
}

func (t *table) scanRecordRow(row interface{ Scan(...any) error }) (Record, error) {
	return t.scanRecord(row.Scan)
}

// FindByID returns the record with the given identity.
func (p *Postgres) FindByID(ctx context.Context, model string, id string) (Record, error) {
	t, err := p.table(model)
	if err != nil {
		return nil, err
	}
	query := "SELECT " + t.columnList() + " FROM " + t.relation +
		" WHERE " + pq.QuoteIdentifier(t.identity) + " = $1;"
	record, err := t.scanRecordRow(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapError("find "+model, err)
	}
	return record, nil
}

// Find returns the first record matching the filter.
func (p *Postgres) Find(ctx context.Context, model string, filter Filter) (Record, error) {
	t, err := p.table(model)
	if err != nil {
		return nil, err
	}
	where, args, err := t.whereClause(filter, 0)
	if err != nil {
		return nil, err
	}
	query := "SELECT " + t.columnList() + " FROM " + t.relation + where + " LIMIT 1;"
	record, err := t.scanRecordRow(p.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, wrapError("find "+model, err)
	}
	return record, nil
}

// Update applies a partial update and returns the updated record.
func (p *Postgres) Update(ctx context.Context, model string, id string, payload Record) (Record, error) {
	t, err := p.table(model)
	if err != nil {
		return nil, err
	}
	columns, args := t.payloadColumns(payload)
	if len(columns) == 0 {
		// nothing to change, return current state
		return p.FindByID(ctx, model, id)
	}
	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = pq.QuoteIdentifier(c) + " = $" + strconv.Itoa(i+1)
	}
	args = append(args, id)
	query := "UPDATE " + t.relation + " SET " + strings.Join(sets, ", ") +
		" WHERE " + pq.QuoteIdentifier(t.identity) + " = $" + strconv.Itoa(len(args)) +
		" RETURNING " + t.columnList() + ";"
	record, err := t.scanRecordRow(p.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, wrapError("update "+model, err)
	}
	return record, nil
}

// Destroy deletes the record with the given identity and returns its prior
// state.
func (p *Postgres) Destroy(ctx context.Context, model string, id string) (Record, error) {
	t, err := p.table(model)
	if err != nil {
		return nil, err
	}
	query := "DELETE FROM " + t.relation +
		" WHERE " + pq.QuoteIdentifier(t.identity) + " = $1 RETURNING " + t.columnList() + ";"
	record, err := t.scanRecordRow(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapError("destroy "+model, err)
	}
	return record, nil
}

// Count returns the number of records matching the filter.
func (p *Postgres) Count(ctx context.Context, model string, filter Filter) (int, error) {
	t, err := p.table(model)
	if err != nil {
		return 0, err
	}
	where, args, err := t.whereClause(filter, 0)
	if err != nil {
		return 0, err
	}
	query := "SELECT count(*) FROM " + t.relation + where + ";"
	var count int
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, wrapError("count "+model, err)
	}
	return count, nil
}

// FindAndCountAll returns one page of matching records plus the total count.
func (p *Postgres) FindAndCountAll(ctx context.Context, model string, filter Filter, page Page) (*Result, error) {
	t, err := p.table(model)
	if err != nil {
		return nil, err
	}
	where, args, err := t.whereClause(filter, 0)
	if err != nil {
		return nil, err
	}
	order, err := t.orderClause(page.Order)
	if err != nil {
		return nil, err
	}
	query := "SELECT " + t.columnList() + ", count(*) OVER() AS full_count FROM " + t.relation +
		where + order +
		" LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2) + ";"
	args = append(args, page.Limit, page.Offset)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("list "+model, err)
	}
	defer rows.Close()

	result := &Result{Rows: []Record{}}
	for rows.Next() {
		var total int
		record, err := t.scanRecord(func(values ...any) error {
			values = append(values, &total)
			return rows.Scan(values...)
		})
		if err != nil {
			return nil, wrapError("list "+model, err)
		}
		result.Rows = append(result.Rows, record)
		result.Total = total
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("list "+model, err)
	}
	if result.Total == 0 && len(result.Rows) == 0 {
		// the window count is only present on returned rows; fall back for
		// pages past the end of the collection
		total, err := p.Count(ctx, model, filter)
		if err != nil {
			return nil, err
		}
		result.Total = total
	}
	return result, nil
}

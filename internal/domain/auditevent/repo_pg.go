package auditevent

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hakuto-dental/clinic-server/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const eventCols = `id, user_id, user_roles, resource, action, ip_address, user_agent, path, method,
	status_code, request_id, occurred_at, created_at`

func (r *repoPG) Insert(ctx context.Context, e *Event) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO audit_event (
			id, user_id, user_roles, resource, action, ip_address, user_agent, path, method,
			status_code, request_id, occurred_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		e.ID, e.UserID, e.UserRoles, e.Resource, e.Action, e.IPAddress, e.UserAgent,
		e.Path, e.Method, e.StatusCode, e.RequestID, e.OccurredAt,
	)
	return err
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Event, int, error) {
	where, args := buildFilter(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_event`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + eventCols + ` FROM audit_event` + where +
		` ORDER BY occurred_at DESC LIMIT $` + strconv.Itoa(len(args)+1) +
		` OFFSET $` + strconv.Itoa(len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserRoles, &e.Resource, &e.Action, &e.IPAddress,
			&e.UserAgent, &e.Path, &e.Method, &e.StatusCode, &e.RequestID, &e.OccurredAt,
			&e.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &e)
	}
	return out, total, rows.Err()
}

func buildFilter(f Filter) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		clauses = append(clauses, clause+"$"+strconv.Itoa(len(args)))
	}
	if f.UserID != "" {
		add("user_id = ", f.UserID)
	}
	if f.Resource != "" {
		add("resource = ", f.Resource)
	}
	if f.Action != "" {
		add("action = ", f.Action)
	}
	if !f.From.IsZero() {
		add("occurred_at >= ", f.From)
	}
	if !f.To.IsZero() {
		add("occurred_at < ", f.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

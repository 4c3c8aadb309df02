package procedure

import (
	"context"
	"strconv"

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

const codeCols = `id, official_code, name, category, points, kubun, sub_code, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, c *Code) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO procedure_code (id, official_code, name, category, points, kubun, sub_code)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.OfficialCode, c.Name, c.Category, c.Points, c.Kubun, c.SubCode,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Code, error) {
	return scanCode(r.conn(ctx).QueryRow(ctx, `SELECT `+codeCols+` FROM procedure_code WHERE id = $1`, id))
}

func (r *repoPG) GetByOfficialCode(ctx context.Context, code string) (*Code, error) {
	return scanCode(r.conn(ctx).QueryRow(ctx, `SELECT `+codeCols+` FROM procedure_code WHERE official_code = $1`, code))
}

func (r *repoPG) GetByKubunSub(ctx context.Context, kubun, subCode string) (*Code, error) {
	return scanCode(r.conn(ctx).QueryRow(ctx,
		`SELECT `+codeCols+` FROM procedure_code WHERE kubun = $1 AND sub_code = $2`, kubun, subCode))
}

func (r *repoPG) Update(ctx context.Context, c *Code) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE procedure_code SET
			official_code=$2, name=$3, category=$4, points=$5, kubun=$6, sub_code=$7, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.OfficialCode, c.Name, c.Category, c.Points, c.Kubun, c.SubCode,
	)
	return err
}

func (r *repoPG) List(ctx context.Context, category string, limit, offset int) ([]*Code, int, error) {
	where := ``
	args := []interface{}{}
	if category != "" {
		where = ` WHERE category = $1`
		args = append(args, category)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM procedure_code`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + codeCols + ` FROM procedure_code` + where +
		` ORDER BY official_code LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Code
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func scanCode(row pgx.Row) (*Code, error) {
	var c Code
	err := row.Scan(&c.ID, &c.OfficialCode, &c.Name, &c.Category, &c.Points, &c.Kubun, &c.SubCode, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

package patient

import (
	"context"

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

const patientCols = `id, number, family_name, given_name, family_kana, given_kana,
	birth_date, sex, phone, email, address,
	insurer_number, insurance_symbol, insurance_number, burden_ratio,
	notes, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (
			id, number, family_name, given_name, family_kana, given_kana,
			birth_date, sex, phone, email, address,
			insurer_number, insurance_symbol, insurance_number, burden_ratio, notes
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
		)`,
		p.ID, p.Number, p.FamilyName, p.GivenName, p.FamilyKana, p.GivenKana,
		p.BirthDate, p.Sex, p.Phone, p.Email, p.Address,
		p.InsurerNumber, p.InsuranceSymbol, p.InsuranceNumber, p.BurdenRatio, p.Notes,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) GetByNumber(ctx context.Context, number string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE number = $1`, number))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET
			number=$2, family_name=$3, given_name=$4, family_kana=$5, given_kana=$6,
			birth_date=$7, sex=$8, phone=$9, email=$10, address=$11,
			insurer_number=$12, insurance_symbol=$13, insurance_number=$14,
			burden_ratio=$15, notes=$16, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Number, p.FamilyName, p.GivenName, p.FamilyKana, p.GivenKana,
		p.BirthDate, p.Sex, p.Phone, p.Email, p.Address,
		p.InsurerNumber, p.InsuranceSymbol, p.InsuranceNumber, p.BurdenRatio, p.Notes,
	)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patient ORDER BY number LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectPatients(rows, total)
}

func (r *repoPG) SearchByName(ctx context.Context, q string, limit, offset int) ([]*Patient, int, error) {
	pattern := "%" + q + "%"
	where := `WHERE family_name || given_name LIKE $1
		OR COALESCE(family_kana, '') || COALESCE(given_kana, '') LIKE $1
		OR number LIKE $1`
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient `+where, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patient `+where+` ORDER BY number LIMIT $2 OFFSET $3`,
		pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectPatients(rows, total)
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.Number, &p.FamilyName, &p.GivenName, &p.FamilyKana, &p.GivenKana,
		&p.BirthDate, &p.Sex, &p.Phone, &p.Email, &p.Address,
		&p.InsurerNumber, &p.InsuranceSymbol, &p.InsuranceNumber, &p.BurdenRatio,
		&p.Notes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPatients(rows pgx.Rows, total int) ([]*Patient, int, error) {
	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

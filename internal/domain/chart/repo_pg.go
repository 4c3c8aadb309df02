package chart

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

const noteCols = `id, patient_id, author_id, visit_date, subjective, objective,
	assessment, plan, source, created_at, updated_at`

func (r *repoPG) CreateNote(ctx context.Context, n *Note) error {
	n.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO chart_note (
			id, patient_id, author_id, visit_date, subjective, objective, assessment, plan, source
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		n.ID, n.PatientID, n.AuthorID, n.VisitDate, n.Subjective, n.Objective, n.Assessment, n.Plan, n.Source,
	)
	return err
}

func (r *repoPG) GetNote(ctx context.Context, id uuid.UUID) (*Note, error) {
	return scanNote(r.conn(ctx).QueryRow(ctx, `SELECT `+noteCols+` FROM chart_note WHERE id = $1`, id))
}

func (r *repoPG) UpdateNote(ctx context.Context, n *Note) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE chart_note SET
			subjective=$2, objective=$3, assessment=$4, plan=$5, source=$6, updated_at=NOW()
		WHERE id = $1`,
		n.ID, n.Subjective, n.Objective, n.Assessment, n.Plan, n.Source,
	)
	return err
}

func (r *repoPG) DeleteNote(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM chart_note WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListNotesByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Note, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM chart_note WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+noteCols+` FROM chart_note WHERE patient_id = $1 ORDER BY visit_date DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

func scanNote(row pgx.Row) (*Note, error) {
	var n Note
	err := row.Scan(
		&n.ID, &n.PatientID, &n.AuthorID, &n.VisitDate, &n.Subjective, &n.Objective,
		&n.Assessment, &n.Plan, &n.Source, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

const diagCols = `id, patient_id, code, name, tooth_number, start_date, end_date, outcome, created_at`

func (r *repoPG) CreateDiagnosis(ctx context.Context, d *Diagnosis) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO diagnosis (id, patient_id, code, name, tooth_number, start_date, end_date, outcome)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		d.ID, d.PatientID, d.Code, d.Name, d.ToothNumber, d.StartDate, d.EndDate, d.Outcome,
	)
	return err
}

func (r *repoPG) GetDiagnosis(ctx context.Context, id uuid.UUID) (*Diagnosis, error) {
	return scanDiag(r.conn(ctx).QueryRow(ctx, `SELECT `+diagCols+` FROM diagnosis WHERE id = $1`, id))
}

func (r *repoPG) UpdateDiagnosis(ctx context.Context, d *Diagnosis) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE diagnosis SET code=$2, name=$3, tooth_number=$4, start_date=$5, end_date=$6, outcome=$7
		WHERE id = $1`,
		d.ID, d.Code, d.Name, d.ToothNumber, d.StartDate, d.EndDate, d.Outcome,
	)
	return err
}

func (r *repoPG) ListDiagnosesByPatient(ctx context.Context, patientID uuid.UUID) ([]*Diagnosis, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+diagCols+` FROM diagnosis WHERE patient_id = $1 ORDER BY start_date`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Diagnosis
	for rows.Next() {
		d, err := scanDiag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDiag(row pgx.Row) (*Diagnosis, error) {
	var d Diagnosis
	err := row.Scan(&d.ID, &d.PatientID, &d.Code, &d.Name, &d.ToothNumber, &d.StartDate, &d.EndDate, &d.Outcome, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

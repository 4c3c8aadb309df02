package billing

import (
	"context"
	"fmt"
	"time"

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

const recordCols = `id, patient_id, visit_date, total_points, patient_burden, burden_ratio,
	claim_status, ai_warnings, created_at, updated_at`

const itemCols = `id, billing_id, code, name, category, points, count, teeth`

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rec.ID = uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO billing_record (
			id, patient_id, visit_date, total_points, patient_burden, burden_ratio, claim_status, ai_warnings
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID, rec.PatientID, rec.VisitDate, rec.TotalPoints, rec.PatientBurden,
		rec.BurdenRatio, rec.ClaimStatus, rec.AIWarnings,
	)
	if err != nil {
		return err
	}
	for i := range rec.Items {
		item := &rec.Items[i]
		item.ID = uuid.New()
		item.BillingID = rec.ID
		_, err = tx.Exec(ctx, `
			INSERT INTO billing_line_item (id, billing_id, code, name, category, points, count, teeth)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			item.ID, item.BillingID, item.Code, item.Name, item.Category, item.Points, item.Count, item.Teeth,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM billing_record WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	items, err := r.loadItems(ctx, []uuid.UUID{rec.ID})
	if err != nil {
		return nil, err
	}
	rec.Items = items[rec.ID]
	return rec, nil
}

func (r *repoPG) Update(ctx context.Context, rec *Record) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE billing_record SET
			total_points=$2, patient_burden=$3, burden_ratio=$4, claim_status=$5, ai_warnings=$6, updated_at=NOW()
		WHERE id = $1`,
		rec.ID, rec.TotalPoints, rec.PatientBurden, rec.BurdenRatio, rec.ClaimStatus, rec.AIWarnings,
	)
	return err
}

func (r *repoPG) UpdateClaimStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE billing_record SET claim_status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("billing record %s not found", id)
	}
	return nil
}

func (r *repoPG) SetAIWarnings(ctx context.Context, id uuid.UUID, warnings []string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE billing_record SET ai_warnings=$2, updated_at=NOW() WHERE id = $1`, id, warnings)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM billing_record WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM billing_record WHERE patient_id = $1
		 ORDER BY visit_date DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	recs, err := r.collectWithItems(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func (r *repoPG) ListByVisitRange(ctx context.Context, from, to time.Time) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM billing_record
		 WHERE visit_date >= $1 AND visit_date < $2
		 ORDER BY visit_date, created_at`,
		from, to)
	if err != nil {
		return nil, err
	}
	return r.collectWithItems(ctx, rows)
}

func (r *repoPG) ListByPatientAndRange(ctx context.Context, patientID uuid.UUID, from, to time.Time) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM billing_record
		 WHERE patient_id = $1 AND visit_date >= $2 AND visit_date < $3
		 ORDER BY visit_date, created_at`,
		patientID, from, to)
	if err != nil {
		return nil, err
	}
	return r.collectWithItems(ctx, rows)
}

func (r *repoPG) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM billing_record WHERE id = ANY($1)
		 ORDER BY visit_date, created_at`, ids)
	if err != nil {
		return nil, err
	}
	return r.collectWithItems(ctx, rows)
}

func (r *repoPG) collectWithItems(ctx context.Context, rows pgx.Rows) ([]*Record, error) {
	var recs []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		recs = append(recs, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return recs, nil
	}

	ids := make([]uuid.UUID, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		rec.Items = items[rec.ID]
	}
	return recs, nil
}

func (r *repoPG) loadItems(ctx context.Context, billingIDs []uuid.UUID) (map[uuid.UUID][]LineItem, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemCols+` FROM billing_line_item WHERE billing_id = ANY($1) ORDER BY code`, billingIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]LineItem)
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.ID, &item.BillingID, &item.Code, &item.Name, &item.Category,
			&item.Points, &item.Count, &item.Teeth); err != nil {
			return nil, err
		}
		out[item.BillingID] = append(out[item.BillingID], item)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.PatientID, &rec.VisitDate, &rec.TotalPoints, &rec.PatientBurden,
		&rec.BurdenRatio, &rec.ClaimStatus, &rec.AIWarnings, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

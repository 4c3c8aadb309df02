package portal

import (
	"context"
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

const checkInCols = `id, patient_id, appointment_id, status, checked_in_at, called_at, completed_at`

func (r *repoPG) CreateCheckIn(ctx context.Context, ci *CheckIn) error {
	ci.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO check_in (id, patient_id, appointment_id, status, checked_in_at)
		VALUES ($1,$2,$3,$4,$5)`,
		ci.ID, ci.PatientID, ci.AppointmentID, ci.Status, ci.CheckedInAt,
	)
	return err
}

func (r *repoPG) GetCheckIn(ctx context.Context, id uuid.UUID) (*CheckIn, error) {
	return scanCheckIn(r.conn(ctx).QueryRow(ctx, `SELECT `+checkInCols+` FROM check_in WHERE id = $1`, id))
}

func (r *repoPG) UpdateCheckIn(ctx context.Context, ci *CheckIn) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE check_in SET status=$2, called_at=$3, completed_at=$4 WHERE id = $1`,
		ci.ID, ci.Status, ci.CalledAt, ci.CompletedAt,
	)
	return err
}

func (r *repoPG) ListQueue(ctx context.Context, day time.Time) ([]*CheckIn, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.Add(24 * time.Hour)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+checkInCols+` FROM check_in
		 WHERE checked_in_at >= $1 AND checked_in_at < $2 AND status <> $3
		 ORDER BY checked_in_at`,
		from, to, StatusDone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CheckIn
	for rows.Next() {
		ci, err := scanCheckIn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ci)
	}
	return out, rows.Err()
}

func (r *repoPG) FindOpenCheckIn(ctx context.Context, patientID uuid.UUID, day time.Time) (*CheckIn, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.Add(24 * time.Hour)
	return scanCheckIn(r.conn(ctx).QueryRow(ctx,
		`SELECT `+checkInCols+` FROM check_in
		 WHERE patient_id = $1 AND checked_in_at >= $2 AND checked_in_at < $3 AND status <> $4
		 ORDER BY checked_in_at DESC LIMIT 1`,
		patientID, from, to, StatusDone))
}

func scanCheckIn(row pgx.Row) (*CheckIn, error) {
	var ci CheckIn
	err := row.Scan(&ci.ID, &ci.PatientID, &ci.AppointmentID, &ci.Status, &ci.CheckedInAt, &ci.CalledAt, &ci.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &ci, nil
}

const templateCols = `id, title, items, active, created_at`

func (r *repoPG) CreateTemplate(ctx context.Context, t *QuestionnaireTemplate) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO questionnaire_template (id, title, items, active) VALUES ($1,$2,$3,$4)`,
		t.ID, t.Title, t.Items, t.Active,
	)
	return err
}

func (r *repoPG) GetTemplate(ctx context.Context, id uuid.UUID) (*QuestionnaireTemplate, error) {
	return scanTemplate(r.conn(ctx).QueryRow(ctx, `SELECT `+templateCols+` FROM questionnaire_template WHERE id = $1`, id))
}

func (r *repoPG) ListTemplates(ctx context.Context, activeOnly bool) ([]*QuestionnaireTemplate, error) {
	q := `SELECT ` + templateCols + ` FROM questionnaire_template`
	if activeOnly {
		q += ` WHERE active`
	}
	q += ` ORDER BY created_at`
	rows, err := r.conn(ctx).Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*QuestionnaireTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repoPG) UpdateTemplate(ctx context.Context, t *QuestionnaireTemplate) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE questionnaire_template SET title=$2, items=$3, active=$4 WHERE id = $1`,
		t.ID, t.Title, t.Items, t.Active,
	)
	return err
}

func scanTemplate(row pgx.Row) (*QuestionnaireTemplate, error) {
	var t QuestionnaireTemplate
	err := row.Scan(&t.ID, &t.Title, &t.Items, &t.Active, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const responseCols = `id, template_id, patient_id, answers, submitted_at`

func (r *repoPG) CreateResponse(ctx context.Context, resp *QuestionnaireResponse) error {
	resp.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO questionnaire_response (id, template_id, patient_id, answers, submitted_at)
		VALUES ($1,$2,$3,$4,$5)`,
		resp.ID, resp.TemplateID, resp.PatientID, resp.Answers, resp.SubmittedAt,
	)
	return err
}

func (r *repoPG) ListResponsesByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*QuestionnaireResponse, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM questionnaire_response WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+responseCols+` FROM questionnaire_response
		 WHERE patient_id = $1 ORDER BY submitted_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*QuestionnaireResponse
	for rows.Next() {
		var resp QuestionnaireResponse
		if err := rows.Scan(&resp.ID, &resp.TemplateID, &resp.PatientID, &resp.Answers, &resp.SubmittedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &resp)
	}
	return out, total, rows.Err()
}

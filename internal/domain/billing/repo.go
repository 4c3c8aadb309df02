package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Create stores the record and its line items atomically.
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, r *Record) error
	UpdateClaimStatus(ctx context.Context, id uuid.UUID, status string) error
	SetAIWarnings(ctx context.Context, id uuid.UUID, warnings []string) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error)
	// ListByVisitRange returns records with visit dates in [from, to),
	// line items included, ordered by visit date then creation time.
	ListByVisitRange(ctx context.Context, from, to time.Time) ([]*Record, error)
	ListByPatientAndRange(ctx context.Context, patientID uuid.UUID, from, to time.Time) ([]*Record, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Record, error)
}

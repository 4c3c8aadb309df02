package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Appointment, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	// FindConflicts returns booked appointments that overlap [start, end) on
	// the same chair or with the same dentist, excluding excludeID.
	FindConflicts(ctx context.Context, dentistID uuid.UUID, chair string, start, end time.Time, excludeID uuid.UUID) ([]*Appointment, error)
}

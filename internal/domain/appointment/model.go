package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Appointment maps to the appointment table.
type Appointment struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	PatientID  uuid.UUID  `db:"patient_id" json:"patient_id"`
	DentistID  uuid.UUID  `db:"dentist_id" json:"dentist_id"`
	Chair      string     `db:"chair" json:"chair"`
	Status     string     `db:"status" json:"status"`
	StartsAt   time.Time  `db:"starts_at" json:"starts_at"`
	EndsAt     time.Time  `db:"ends_at" json:"ends_at"`
	Reason     *string    `db:"reason" json:"reason,omitempty"`
	Notes      *string    `db:"notes" json:"notes,omitempty"`
	CanceledAt *time.Time `db:"canceled_at" json:"canceled_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Overlaps reports whether two half-open time ranges intersect.
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.StartsAt.Before(end) && start.Before(a.EndsAt)
}

package portal

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CheckIn maps to the check_in table. One row per patient visit, driving the
// waiting-room queue shown at reception.
type CheckIn struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Status        string     `db:"status" json:"status"`
	CheckedInAt   time.Time  `db:"checked_in_at" json:"checked_in_at"`
	CalledAt      *time.Time `db:"called_at" json:"called_at,omitempty"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Queue statuses, in visit order.
const (
	StatusWaiting = "waiting"
	StatusCalled  = "called"
	StatusInChair = "in_chair"
	StatusDone    = "done"
)

// QuestionnaireTemplate maps to the questionnaire_template table. Items is a
// JSON array of question definitions rendered by the patient portal.
type QuestionnaireTemplate struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	Title     string          `db:"title" json:"title"`
	Items     json.RawMessage `db:"items" json:"items"`
	Active    bool            `db:"active" json:"active"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// QuestionnaireResponse maps to the questionnaire_response table.
type QuestionnaireResponse struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	TemplateID  uuid.UUID       `db:"template_id" json:"template_id"`
	PatientID   uuid.UUID       `db:"patient_id" json:"patient_id"`
	Answers     json.RawMessage `db:"answers" json:"answers"`
	SubmittedAt time.Time       `db:"submitted_at" json:"submitted_at"`
}

package chart

import (
	"time"

	"github.com/google/uuid"
)

// Note maps to the chart_note table: one SOAP-structured clinical note per
// visit entry.
type Note struct {
	ID         uuid.UUID `db:"id" json:"id"`
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	AuthorID   string    `db:"author_id" json:"author_id"`
	VisitDate  time.Time `db:"visit_date" json:"visit_date"`
	Subjective string    `db:"subjective" json:"subjective"`
	Objective  string    `db:"objective" json:"objective"`
	Assessment string    `db:"assessment" json:"assessment"`
	Plan       string    `db:"plan" json:"plan"`
	Source     string    `db:"source" json:"source"` // manual or ai_draft
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Diagnosis maps to the diagnosis table.
type Diagnosis struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	Code        string     `db:"code" json:"code"` // ICD-10 or dental disease code
	Name        string     `db:"name" json:"name"`
	ToothNumber *string    `db:"tooth_number" json:"tooth_number,omitempty"`
	StartDate   time.Time  `db:"start_date" json:"start_date"`
	EndDate     *time.Time `db:"end_date" json:"end_date,omitempty"`
	Outcome     string     `db:"outcome" json:"outcome"` // active or cured
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

const (
	OutcomeActive = "active"
	OutcomeCured  = "cured"
)

// ActiveAt reports whether the diagnosis covers the given date.
func (d *Diagnosis) ActiveAt(date time.Time) bool {
	if date.Before(d.StartDate) {
		return false
	}
	return d.EndDate == nil || !date.After(*d.EndDate)
}

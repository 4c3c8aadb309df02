package billing

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Record maps to the billing_record table: one patient's claim entry for a
// visit, with its procedure line items and computed totals.
type Record struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	VisitDate     time.Time  `db:"visit_date" json:"visit_date"`
	TotalPoints   int        `db:"total_points" json:"total_points"`
	PatientBurden int        `db:"patient_burden" json:"patient_burden"` // yen
	BurdenRatio   float64    `db:"burden_ratio" json:"burden_ratio"`
	ClaimStatus   string     `db:"claim_status" json:"claim_status"`
	AIWarnings    []string   `db:"ai_warnings" json:"ai_warnings,omitempty"`
	Items         []LineItem `json:"items,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// LineItem maps to the billing_line_item table.
type LineItem struct {
	ID        uuid.UUID `db:"id" json:"id"`
	BillingID uuid.UUID `db:"billing_id" json:"billing_id"`
	Code      string    `db:"code" json:"code"` // legacy or official 9-digit
	Name      string    `db:"name" json:"name"`
	Category  string    `db:"category" json:"category"`
	Points    int       `db:"points" json:"points"`
	Count     int       `db:"count" json:"count"`
	Teeth     []string  `db:"teeth" json:"teeth,omitempty"`
}

const (
	StatusUnclaimed = "unclaimed"
	StatusClaimed   = "claimed"
	StatusPaid      = "paid"
)

// BurdenTolerance is the rounding slack allowed between the stored patient
// burden and the amount recomputed from points and ratio. One point is 10 yen
// and the window covers the 10-yen rounding applied at the till.
const BurdenTolerance = 10

// ExpectedBurden recomputes the patient burden in yen from the record's
// points and ratio.
func (r *Record) ExpectedBurden() int {
	return int(math.Round(float64(r.TotalPoints) * 10 * r.BurdenRatio))
}

// BurdenConsistent reports whether the stored burden matches the recomputed
// amount within BurdenTolerance. Inconsistency is flagged by the compliance
// checker, never corrected.
func (r *Record) BurdenConsistent() bool {
	diff := r.PatientBurden - r.ExpectedBurden()
	if diff < 0 {
		diff = -diff
	}
	return diff <= BurdenTolerance
}

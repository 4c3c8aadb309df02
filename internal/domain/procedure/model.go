package procedure

import (
	"time"

	"github.com/google/uuid"
)

// Code maps to the procedure_code master table. OfficialCode is the 9-digit
// government fee-schedule code; Kubun/SubCode is the clinic-internal
// decomposition used by legacy charting entries.
type Code struct {
	ID           uuid.UUID `db:"id" json:"id"`
	OfficialCode string    `db:"official_code" json:"official_code"`
	Name         string    `db:"name" json:"name"`
	Category     string    `db:"category" json:"category"`
	Points       int       `db:"points" json:"points"`
	Kubun        string    `db:"kubun" json:"kubun"`
	SubCode      string    `db:"sub_code" json:"sub_code"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Categories the compliance checks care about.
const (
	CategoryConsultation = "診察"
	CategoryMaterial     = "材料"
)

// IsOfficial reports whether a code is already in 9-digit official form.
func IsOfficial(code string) bool {
	if len(code) != 9 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

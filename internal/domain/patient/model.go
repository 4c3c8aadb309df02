package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table.
type Patient struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Number          string    `db:"number" json:"number"` // clinic chart number
	FamilyName      string    `db:"family_name" json:"family_name"`
	GivenName       string    `db:"given_name" json:"given_name"`
	FamilyKana      *string   `db:"family_kana" json:"family_kana,omitempty"`
	GivenKana       *string   `db:"given_kana" json:"given_kana,omitempty"`
	BirthDate       time.Time `db:"birth_date" json:"birth_date"`
	Sex             string    `db:"sex" json:"sex"` // 1 = male, 2 = female, per receipt convention
	Phone           *string   `db:"phone" json:"phone,omitempty"`
	Email           *string   `db:"email" json:"email,omitempty"`
	Address         *string   `db:"address" json:"address,omitempty"`
	InsurerNumber   *string   `db:"insurer_number" json:"insurer_number,omitempty"`
	InsuranceSymbol *string   `db:"insurance_symbol" json:"insurance_symbol,omitempty"`
	InsuranceNumber *string   `db:"insurance_number" json:"insurance_number,omitempty"`
	BurdenRatio     float64   `db:"burden_ratio" json:"burden_ratio"` // 0.1 / 0.2 / 0.3
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// AgeAt returns the patient's age in full elapsed years at the given date:
// the calendar-year difference minus one when the birthday has not yet been
// reached in that year.
func (p *Patient) AgeAt(date time.Time) int {
	age := date.Year() - p.BirthDate.Year()
	anniversary := time.Date(date.Year(), p.BirthDate.Month(), p.BirthDate.Day(), 0, 0, 0, 0, date.Location())
	if date.Before(anniversary) {
		age--
	}
	return age
}

// FullName joins family and given names in Japanese order.
func (p *Patient) FullName() string {
	return p.FamilyName + " " + p.GivenName
}

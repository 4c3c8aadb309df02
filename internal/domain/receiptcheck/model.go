// Package receiptcheck validates billing records against the insurance claim
// rules before a month's receipts are submitted. Rule reference tables are
// normalized into one in-memory RuleSet keyed by canonical 9-digit procedure
// code; verdicts are data, never HTTP errors.
package receiptcheck

import (
	"time"

	"github.com/google/uuid"
)

// FrequencyWindow is the span over which a frequency limit counts
// occurrences.
type FrequencyWindow string

const (
	WindowDay    FrequencyWindow = "day"
	WindowMonth  FrequencyWindow = "month"
	WindowPeriod FrequencyWindow = "period" // rolling PeriodMonths window
)

// ExclusionWindow is the span within which an exclusive pair may not both be
// billed.
type ExclusionWindow string

const (
	ExclusionSameDay   ExclusionWindow = "same_day"
	ExclusionSameMonth ExclusionWindow = "same_month"
)

// Rule severities for the diagnosis-requirement table.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// FrequencyRule caps how often a code may be billed within its window.
type FrequencyRule struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Code         string          `db:"code" json:"code"`
	Window       FrequencyWindow `db:"window" json:"window"`
	PeriodMonths int             `db:"period_months" json:"period_months"`
	MaxCount     int             `db:"max_count" json:"max_count"`
	Label        string          `db:"label" json:"label"`
}

// ExclusionRule forbids billing both codes of a pair within a window.
type ExclusionRule struct {
	ID     uuid.UUID       `db:"id" json:"id"`
	CodeA  string          `db:"code_a" json:"code_a"`
	CodeB  string          `db:"code_b" json:"code_b"`
	Window ExclusionWindow `db:"window" json:"window"`
	Label  string          `db:"label" json:"label"`
}

// AdditionRule marks a code as an addition requiring its base code in the
// same record.
type AdditionRule struct {
	ID               uuid.UUID `db:"id" json:"id"`
	AdditionCode     string    `db:"addition_code" json:"addition_code"`
	BaseCode         string    `db:"base_code" json:"base_code"`
	FacilityStandard bool      `db:"facility_standard" json:"facility_standard"`
	Label            string    `db:"label" json:"label"`
}

// MaterialRule expects a material line item to accompany a procedure.
type MaterialRule struct {
	ID               uuid.UUID `db:"id" json:"id"`
	ProcedureCode    string    `db:"procedure_code" json:"procedure_code"`
	MaterialCategory string    `db:"material_category" json:"material_category"`
	Label            string    `db:"label" json:"label"`
}

// AgeRule bounds the patient age for a code. Nil means unbounded.
type AgeRule struct {
	ID     uuid.UUID `db:"id" json:"id"`
	Code   string    `db:"code" json:"code"`
	MinAge *int      `db:"min_age" json:"min_age,omitempty"`
	MaxAge *int      `db:"max_age" json:"max_age,omitempty"`
	Label  string    `db:"label" json:"label"`
}

// IncrementalRule declares a base point value a billed code must not
// undercut.
type IncrementalRule struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Code       string    `db:"code" json:"code"`
	BasePoints int       `db:"base_points" json:"base_points"`
	Label      string    `db:"label" json:"label"`
}

// DiagnosisRule is the legacy diagnosis-requirement table: a billed code
// matching CodePrefix requires a diagnosis whose code starts with
// DiagnosisPrefix.
type DiagnosisRule struct {
	ID              uuid.UUID `db:"id" json:"id"`
	CodePrefix      string    `db:"code_prefix" json:"code_prefix"`
	DiagnosisPrefix string    `db:"diagnosis_prefix" json:"diagnosis_prefix"`
	Severity        string    `db:"severity" json:"severity"`
	Label           string    `db:"label" json:"label"`
}

// RuleSet is the normalized in-memory view of all six rule tables, keyed by
// canonical procedure code. Loaded once per check run; read-only afterwards.
type RuleSet struct {
	Frequency   map[string][]FrequencyRule
	Exclusive   map[string][]ExclusionRule // keyed by both codes of each pair
	Addition    map[string][]AdditionRule  // keyed by addition code
	Material    map[string][]MaterialRule
	Age         map[string][]AgeRule
	Incremental map[string][]IncrementalRule
	Diagnosis   []DiagnosisRule // prefix-matched, kept as a list
}

// NewRuleSet builds the keyed lookup maps from flat rule slices.
func NewRuleSet(
	freq []FrequencyRule,
	excl []ExclusionRule,
	add []AdditionRule,
	mat []MaterialRule,
	age []AgeRule,
	incr []IncrementalRule,
	diag []DiagnosisRule,
) *RuleSet {
	rs := &RuleSet{
		Frequency:   make(map[string][]FrequencyRule),
		Exclusive:   make(map[string][]ExclusionRule),
		Addition:    make(map[string][]AdditionRule),
		Material:    make(map[string][]MaterialRule),
		Age:         make(map[string][]AgeRule),
		Incremental: make(map[string][]IncrementalRule),
		Diagnosis:   diag,
	}
	for _, r := range freq {
		rs.Frequency[r.Code] = append(rs.Frequency[r.Code], r)
	}
	for _, r := range excl {
		rs.Exclusive[r.CodeA] = append(rs.Exclusive[r.CodeA], r)
		rs.Exclusive[r.CodeB] = append(rs.Exclusive[r.CodeB], r)
	}
	for _, r := range add {
		rs.Addition[r.AdditionCode] = append(rs.Addition[r.AdditionCode], r)
	}
	for _, r := range mat {
		rs.Material[r.ProcedureCode] = append(rs.Material[r.ProcedureCode], r)
	}
	for _, r := range age {
		rs.Age[r.Code] = append(rs.Age[r.Code], r)
	}
	for _, r := range incr {
		rs.Incremental[r.Code] = append(rs.Incremental[r.Code], r)
	}
	return rs
}

// Other returns the partner code of an exclusive pair.
func (r ExclusionRule) Other(code string) string {
	if code == r.CodeA {
		return r.CodeB
	}
	return r.CodeA
}

// Verdict is one billing record's compliance result.
type Verdict struct {
	BillingID uuid.UUID `json:"billing_id"`
	PatientID uuid.UUID `json:"patient_id"`
	VisitDate time.Time `json:"visit_date"`
	Status    string    `json:"status"` // ok, warn, or error
	Errors    []string  `json:"errors,omitempty"`
	Warnings  []string  `json:"warnings,omitempty"`
}

func (v *Verdict) addError(msg string) {
	v.Errors = append(v.Errors, msg)
}

func (v *Verdict) addWarning(msg string) {
	v.Warnings = append(v.Warnings, msg)
}

func (v *Verdict) finalize() {
	switch {
	case len(v.Errors) > 0:
		v.Status = "error"
	case len(v.Warnings) > 0:
		v.Status = "warn"
	default:
		v.Status = "ok"
	}
}

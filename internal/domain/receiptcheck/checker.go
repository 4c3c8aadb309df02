package receiptcheck

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hakuto-dental/clinic-server/internal/domain/billing"
	"github.com/hakuto-dental/clinic-server/internal/domain/chart"
	"github.com/hakuto-dental/clinic-server/internal/domain/patient"
	"github.com/hakuto-dental/clinic-server/internal/domain/procedure"
)

// CodeResolver canonicalizes billed codes to official 9-digit form.
// Unresolvable codes (ok=false with a nil error) are silently skipped by
// code-dependent checks; a non-nil error aborts the run.
type CodeResolver interface {
	Resolve(ctx context.Context, code string) (string, bool, error)
}

// Input is everything one check run reads. History must hold each scoped
// patient's billing records across the widest rule window, scoped records
// included; it is the basis for cross-record frequency and exclusivity
// checks.
type Input struct {
	Records   []*billing.Record
	History   map[uuid.UUID][]*billing.Record
	Diagnoses map[uuid.UUID][]*chart.Diagnosis
	Patients  map[uuid.UUID]*patient.Patient
}

// Checker evaluates billing records against a RuleSet. All checks accumulate
// independently; ordering between checks carries no meaning.
type Checker struct {
	rules    *RuleSet
	resolver CodeResolver

	// resolution memo for one run
	resolved map[string]string
	err      error
}

func NewChecker(rules *RuleSet, resolver CodeResolver) *Checker {
	return &Checker{
		rules:    rules,
		resolver: resolver,
		resolved: make(map[string]string),
	}
}

// Run produces one verdict per scoped billing record, in visit-date order.
// A code-resolution failure aborts the run rather than degrading the checks
// that depend on canonical codes.
func (c *Checker) Run(ctx context.Context, in Input) ([]*Verdict, error) {
	records := make([]*billing.Record, len(in.Records))
	copy(records, in.Records)
	sortRecords(records)

	verdicts := make(map[uuid.UUID]*Verdict, len(records))
	ordered := make([]*Verdict, 0, len(records))
	for _, rec := range records {
		v := &Verdict{BillingID: rec.ID, PatientID: rec.PatientID, VisitDate: rec.VisitDate}
		verdicts[rec.ID] = v
		ordered = append(ordered, v)
	}

	for _, rec := range records {
		v := verdicts[rec.ID]
		diags := in.Diagnoses[rec.PatientID]
		pat := in.Patients[rec.PatientID]

		c.checkSanity(rec, diags, v)
		c.checkSameRecordExclusion(ctx, rec, v)
		c.checkAge(ctx, rec, pat, v)
		c.checkAdditions(ctx, rec, v)
		c.checkMaterials(ctx, rec, v)
		c.checkIncremental(ctx, rec, v)
		c.checkDiagnosisRequirements(ctx, rec, diags, v)
		c.carryStoredWarnings(ctx, rec, v)
	}

	c.checkFrequency(ctx, in, verdicts)
	c.checkCrossRecordExclusion(ctx, in, verdicts)

	if c.err != nil {
		return nil, fmt.Errorf("resolve code: %w", c.err)
	}
	for _, v := range ordered {
		v.finalize()
	}
	return ordered, nil
}

// resolve memoizes code resolution for the run. Lookup failures are held on
// the checker and surfaced once by Run; they are never cached.
func (c *Checker) resolve(ctx context.Context, code string) (string, bool) {
	if official, ok := c.resolved[code]; ok {
		return official, official != ""
	}
	official, ok, err := c.resolver.Resolve(ctx, code)
	if err != nil {
		if c.err == nil {
			c.err = err
		}
		return "", false
	}
	if !ok {
		official = ""
	}
	c.resolved[code] = official
	return official, ok
}

// resolvedCodes returns the record's canonical codes with their line items.
func (c *Checker) resolvedCodes(ctx context.Context, rec *billing.Record) map[string][]billing.LineItem {
	out := make(map[string][]billing.LineItem)
	for _, item := range rec.Items {
		if official, ok := c.resolve(ctx, item.Code); ok {
			out[official] = append(out[official], item)
		}
	}
	return out
}

// checkSanity covers the basic record-level conditions: positive points,
// diagnosis presence, not-all-cured, consultation-only visits, and the
// burden-amount invariant.
func (c *Checker) checkSanity(rec *billing.Record, diags []*chart.Diagnosis, v *Verdict) {
	if rec.TotalPoints <= 0 {
		v.addError("合計点数が0以下です")
	}

	if len(diags) == 0 {
		v.addError("病名が登録されていません")
	} else if len(rec.Items) > 0 {
		allCured := true
		for _, d := range diags {
			if d.Outcome != chart.OutcomeCured {
				allCured = false
				break
			}
		}
		if allCured {
			v.addError("全ての病名が治癒済みのまま診療行為が算定されています")
		}
	}

	if len(rec.Items) > 0 {
		consultOnly := true
		for _, item := range rec.Items {
			if item.Category != procedure.CategoryConsultation {
				consultOnly = false
				break
			}
		}
		if consultOnly {
			v.addWarning("診察料のみの算定です: 処置内容を確認してください")
		}
	}

	if !rec.BurdenConsistent() {
		v.addWarning(fmt.Sprintf("窓口負担額 %d円 が点数から計算した %d円 と一致しません",
			rec.PatientBurden, rec.ExpectedBurden()))
	}
}

// checkSameRecordExclusion flags both codes of an exclusive pair billed in
// the same record.
func (c *Checker) checkSameRecordExclusion(ctx context.Context, rec *billing.Record, v *Verdict) {
	codes := c.resolvedCodes(ctx, rec)
	seen := make(map[uuid.UUID]bool)
	for code := range codes {
		for _, rule := range c.rules.Exclusive[code] {
			if seen[rule.ID] {
				continue
			}
			if _, ok := codes[rule.Other(code)]; ok {
				seen[rule.ID] = true
				v.addError(fmt.Sprintf("併算定不可: %s と %s は同時に算定できません (%s)",
					rule.CodeA, rule.CodeB, rule.Label))
			}
		}
	}
}

// checkAge verifies age-limited codes against the patient's age at the visit
// date, computed in full elapsed years. Reaching the exact minimum age on the
// visit date satisfies the bound.
func (c *Checker) checkAge(ctx context.Context, rec *billing.Record, pat *patient.Patient, v *Verdict) {
	if pat == nil {
		return
	}
	age := pat.AgeAt(rec.VisitDate)
	for code := range c.resolvedCodes(ctx, rec) {
		for _, rule := range c.rules.Age[code] {
			if rule.MinAge != nil && age < *rule.MinAge {
				v.addError(fmt.Sprintf("%s は%d歳以上が対象です (患者は%d歳): %s", code, *rule.MinAge, age, rule.Label))
			}
			if rule.MaxAge != nil && age > *rule.MaxAge {
				v.addError(fmt.Sprintf("%s は%d歳以下が対象です (患者は%d歳): %s", code, *rule.MaxAge, age, rule.Label))
			}
		}
	}
}

// checkAdditions warns when an addition code is billed without its base code
// in the same record.
func (c *Checker) checkAdditions(ctx context.Context, rec *billing.Record, v *Verdict) {
	codes := c.resolvedCodes(ctx, rec)
	for code := range codes {
		for _, rule := range c.rules.Addition[code] {
			if _, ok := codes[rule.BaseCode]; ok {
				continue
			}
			if rule.FacilityStandard {
				v.addWarning(fmt.Sprintf("加算 %s の基本項目 %s がありません (施設基準の届出も確認してください): %s",
					code, rule.BaseCode, rule.Label))
			} else {
				v.addWarning(fmt.Sprintf("加算 %s の基本項目 %s がありません: %s", code, rule.BaseCode, rule.Label))
			}
		}
	}
}

// checkMaterials warns once per rule-matched procedure when no line item of
// the required material category accompanies it.
func (c *Checker) checkMaterials(ctx context.Context, rec *billing.Record, v *Verdict) {
	categories := make(map[string]bool)
	for _, item := range rec.Items {
		categories[item.Category] = true
	}
	for code := range c.resolvedCodes(ctx, rec) {
		for _, rule := range c.rules.Material[code] {
			if categories[rule.MaterialCategory] {
				continue
			}
			v.addWarning(fmt.Sprintf("%s に必要な材料 (%s) が算定されていません: %s",
				code, rule.MaterialCategory, rule.Label))
		}
	}
}

// checkIncremental warns when a billed point value undercuts the rule's base
// points.
func (c *Checker) checkIncremental(ctx context.Context, rec *billing.Record, v *Verdict) {
	for code, items := range c.resolvedCodes(ctx, rec) {
		for _, rule := range c.rules.Incremental[code] {
			for _, item := range items {
				if item.Points < rule.BasePoints {
					v.addWarning(fmt.Sprintf("%s の算定点数 %d が基準点数 %d を下回っています: %s",
						code, item.Points, rule.BasePoints, rule.Label))
				}
			}
		}
	}
}

// checkDiagnosisRequirements applies the legacy diagnosis-requirement table:
// a billed code matching a rule prefix needs a diagnosis under the rule's
// diagnosis prefix.
func (c *Checker) checkDiagnosisRequirements(ctx context.Context, rec *billing.Record, diags []*chart.Diagnosis, v *Verdict) {
	codes := c.resolvedCodes(ctx, rec)
	emitted := make(map[uuid.UUID]bool)
	for code := range codes {
		for _, rule := range c.rules.Diagnosis {
			if emitted[rule.ID] || !strings.HasPrefix(code, rule.CodePrefix) {
				continue
			}
			found := false
			for _, d := range diags {
				if strings.HasPrefix(d.Code, rule.DiagnosisPrefix) {
					found = true
					break
				}
			}
			if found {
				continue
			}
			emitted[rule.ID] = true
			msg := fmt.Sprintf("%s の算定に必要な病名 (%s〜) がありません: %s", code, rule.DiagnosisPrefix, rule.Label)
			if rule.Severity == SeverityError {
				v.addError(msg)
			} else {
				v.addWarning(msg)
			}
		}
	}
}

// carryStoredWarnings copies previously stored AI warnings onto the verdict,
// suppressing an addition warning whose base code is now billed.
func (c *Checker) carryStoredWarnings(ctx context.Context, rec *billing.Record, v *Verdict) {
	if len(rec.AIWarnings) == 0 {
		return
	}
	codes := c.resolvedCodes(ctx, rec)

	satisfiedBases := make([]string, 0)
	for code := range codes {
		for _, rule := range c.rules.Addition[code] {
			if _, ok := codes[rule.BaseCode]; ok {
				satisfiedBases = append(satisfiedBases, rule.BaseCode)
			}
		}
	}

	for _, w := range rec.AIWarnings {
		suppressed := false
		for _, base := range satisfiedBases {
			if strings.Contains(w, base) {
				suppressed = true
				break
			}
		}
		if !suppressed {
			v.addWarning(w)
		}
	}
}

// checkFrequency walks each patient's history in visit order, accumulating
// occurrence counts per rule window. Day and month rules count within the
// calendar day or month; period rules count within a rolling window of the
// preceding PeriodMonths months ending at the record's visit month. The
// first scoped record at or past the point where the count exceeds the
// limit carries the single error; a crossing inside out-of-scope history
// never absorbs it.
func (c *Checker) checkFrequency(ctx context.Context, in Input, verdicts map[uuid.UUID]*Verdict) {
	for pid := range patientsInScope(in) {
		history := patientHistory(in, pid)
		running := make(map[string]int)
		periodHits := make(map[uuid.UUID][]periodHit)
		emitted := make(map[string]bool)

		for _, rec := range history {
			v := verdicts[rec.ID] // nil for history outside the check scope
			for code, items := range c.resolvedCodes(ctx, rec) {
				occ := 0
				for _, item := range items {
					occ += item.Count
				}
				if occ == 0 {
					continue
				}
				for _, rule := range c.rules.Frequency[code] {
					var key string
					var total int
					if rule.Window == WindowPeriod {
						month := monthIndex(rec.VisitDate)
						key = rule.ID.String()
						total = occ + countWithin(periodHits[rule.ID], month, rule.PeriodMonths)
						periodHits[rule.ID] = append(periodHits[rule.ID], periodHit{month: month, occ: occ})
					} else {
						key = rule.ID.String() + "|" + windowKey(rule, rec.VisitDate)
						running[key] += occ
						total = running[key]
					}
					if total > rule.MaxCount && !emitted[key] && v != nil {
						emitted[key] = true
						v.addError(fmt.Sprintf("%s の算定回数が上限 %d回 (%s) を超えています: %s",
							code, rule.MaxCount, windowLabel(rule), rule.Label))
					}
				}
			}
		}
	}
}

type periodHit struct {
	month int
	occ   int
}

func monthIndex(at time.Time) int {
	return at.Year()*12 + int(at.Month()) - 1
}

// countWithin sums earlier occurrences whose month falls inside the rolling
// window ending at month.
func countWithin(hits []periodHit, month, periodMonths int) int {
	if periodMonths < 1 {
		periodMonths = 1
	}
	total := 0
	for _, h := range hits {
		if month-h.month < periodMonths {
			total += h.occ
		}
	}
	return total
}

// checkCrossRecordExclusion warns on the later record when both codes of a
// same-month exclusive pair appear across different records of one patient's
// month.
func (c *Checker) checkCrossRecordExclusion(ctx context.Context, in Input, verdicts map[uuid.UUID]*Verdict) {
	for pid := range patientsInScope(in) {
		history := patientHistory(in, pid)
		seen := make(map[string]map[string]bool) // month -> codes billed earlier

		for _, rec := range history {
			month := rec.VisitDate.Format("2006-01")
			if seen[month] == nil {
				seen[month] = make(map[string]bool)
			}
			codes := c.resolvedCodes(ctx, rec)
			emitted := make(map[uuid.UUID]bool)
			for code := range codes {
				for _, rule := range c.rules.Exclusive[code] {
					if rule.Window != ExclusionSameMonth || emitted[rule.ID] {
						continue
					}
					if seen[month][rule.Other(code)] {
						emitted[rule.ID] = true
						if v, ok := verdicts[rec.ID]; ok {
							v.addWarning(fmt.Sprintf("同月内併算定: %s は同月の別レセプトで %s が算定済みです (%s)",
								code, rule.Other(code), rule.Label))
						}
					}
				}
			}
			for code := range codes {
				seen[month][code] = true
			}
		}
	}
}

func patientsInScope(in Input) map[uuid.UUID]bool {
	out := make(map[uuid.UUID]bool)
	for _, rec := range in.Records {
		out[rec.PatientID] = true
	}
	return out
}

// patientHistory returns the patient's records sorted by visit date, falling
// back to the scoped records when no wider history was loaded.
func patientHistory(in Input, pid uuid.UUID) []*billing.Record {
	history := in.History[pid]
	if history == nil {
		for _, rec := range in.Records {
			if rec.PatientID == pid {
				history = append(history, rec)
			}
		}
	}
	sorted := make([]*billing.Record, len(history))
	copy(sorted, history)
	sortRecords(sorted)
	return sorted
}

func sortRecords(recs []*billing.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].VisitDate.Equal(recs[j].VisitDate) {
			return recs[i].VisitDate.Before(recs[j].VisitDate)
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
}

// windowKey buckets a visit date into the rule's calendar counting window.
// Period rules roll over months and are keyed by rule alone.
func windowKey(rule FrequencyRule, at time.Time) string {
	if rule.Window == WindowDay {
		return at.Format("2006-01-02")
	}
	return at.Format("2006-01")
}

func windowLabel(rule FrequencyRule) string {
	switch rule.Window {
	case WindowDay:
		return "同日"
	case WindowPeriod:
		return fmt.Sprintf("%dか月", rule.PeriodMonths)
	default:
		return "同月"
	}
}

package receiptcheck

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hakuto-dental/clinic-server/internal/domain/billing"
	"github.com/hakuto-dental/clinic-server/internal/domain/chart"
	"github.com/hakuto-dental/clinic-server/internal/domain/patient"
	"github.com/hakuto-dental/clinic-server/internal/domain/procedure"
)

// stubResolver passes official 9-digit codes through and maps a small legacy
// alias table; everything else stays unresolved.
type stubResolver struct {
	aliases map[string]string
}

func (s *stubResolver) Resolve(ctx context.Context, code string) (string, bool, error) {
	if official, ok := s.aliases[code]; ok {
		return official, true, nil
	}
	if len(code) == 9 {
		for _, r := range code {
			if r < '0' || r > '9' {
				return "", false, nil
			}
		}
		return code, true, nil
	}
	return "", false, nil
}

func newResolver() *stubResolver {
	return &stubResolver{aliases: map[string]string{
		"SHOSHIN": "301000110",
		"PANO":    "313000310",
	}}
}

func day(d int) time.Time {
	return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
}

func testRecord(pid uuid.UUID, visit time.Time, items ...billing.LineItem) *billing.Record {
	rec := &billing.Record{
		ID:        uuid.New(),
		PatientID: pid,
		VisitDate: visit,
		CreatedAt: visit,
		Items:     items,
	}
	for i := range rec.Items {
		if rec.Items[i].Count == 0 {
			rec.Items[i].Count = 1
		}
		rec.TotalPoints += rec.Items[i].Points * rec.Items[i].Count
	}
	rec.BurdenRatio = 0.3
	rec.PatientBurden = rec.ExpectedBurden()
	return rec
}

func testInput(records ...*billing.Record) Input {
	in := Input{
		Records:   records,
		History:   make(map[uuid.UUID][]*billing.Record),
		Diagnoses: make(map[uuid.UUID][]*chart.Diagnosis),
		Patients:  make(map[uuid.UUID]*patient.Patient),
	}
	for _, rec := range records {
		in.History[rec.PatientID] = append(in.History[rec.PatientID], rec)
		if in.Diagnoses[rec.PatientID] == nil {
			in.Diagnoses[rec.PatientID] = []*chart.Diagnosis{
				{Code: "K02.1", Name: "う蝕", Outcome: chart.OutcomeActive, StartDate: day(1)},
			}
		}
	}
	return in
}

func runChecker(t *testing.T, rs *RuleSet, in Input) []*Verdict {
	t.Helper()
	verdicts, err := NewChecker(rs, newResolver()).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(verdicts) != len(in.Records) {
		t.Fatalf("expected %d verdicts, got %d", len(in.Records), len(verdicts))
	}
	return verdicts
}

func emptyRuleSet() *RuleSet {
	return NewRuleSet(nil, nil, nil, nil, nil, nil, nil)
}

func hasMessage(msgs []string, substr string) bool {
	for _, m := range msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func TestChecker_ZeroPoints(t *testing.T) {
	pid := uuid.New()
	rec := testRecord(pid, day(3), billing.LineItem{Code: "301000110", Points: 0})

	verdicts := runChecker(t, emptyRuleSet(), testInput(rec))
	if verdicts[0].Status != "error" {
		t.Fatalf("expected error verdict, got %s", verdicts[0].Status)
	}
	if !hasMessage(verdicts[0].Errors, "合計点数") {
		t.Errorf("expected zero-points error, got %v", verdicts[0].Errors)
	}
}

func TestChecker_MissingDiagnosis(t *testing.T) {
	pid := uuid.New()
	rec := testRecord(pid, day(3), billing.LineItem{Code: "301000110", Points: 267})

	in := testInput(rec)
	in.Diagnoses[pid] = nil

	verdicts := runChecker(t, emptyRuleSet(), in)
	if !hasMessage(verdicts[0].Errors, "病名が登録されていません") {
		t.Errorf("expected missing-diagnosis error, got %v", verdicts[0].Errors)
	}
}

func TestChecker_AllDiagnosesCured(t *testing.T) {
	pid := uuid.New()
	rec := testRecord(pid, day(10), billing.LineItem{Code: "301000210", Points: 58})

	in := testInput(rec)
	end := day(5)
	in.Diagnoses[pid] = []*chart.Diagnosis{
		{Code: "K02.1", Outcome: chart.OutcomeCured, StartDate: day(1), EndDate: &end},
	}

	verdicts := runChecker(t, emptyRuleSet(), in)
	if !hasMessage(verdicts[0].Errors, "治癒済み") {
		t.Errorf("expected all-cured error, got %v", verdicts[0].Errors)
	}
}

func TestChecker_ConsultationOnlyWarns(t *testing.T) {
	pid := uuid.New()
	rec := testRecord(pid, day(3),
		billing.LineItem{Code: "301000110", Points: 267, Category: procedure.CategoryConsultation})

	verdicts := runChecker(t, emptyRuleSet(), testInput(rec))
	if verdicts[0].Status != "warn" {
		t.Fatalf("expected warn verdict, got %s", verdicts[0].Status)
	}
	if !hasMessage(verdicts[0].Warnings, "診察料のみ") {
		t.Errorf("expected consultation-only warning, got %v", verdicts[0].Warnings)
	}
}

func TestChecker_BurdenMismatchWarns(t *testing.T) {
	pid := uuid.New()
	rec := testRecord(pid, day(3), billing.LineItem{Code: "302000110", Points: 200})
	rec.PatientBurden = 100 // expected 600

	verdicts := runChecker(t, emptyRuleSet(), testInput(rec))
	if !hasMessage(verdicts[0].Warnings, "窓口負担額") {
		t.Errorf("expected burden-mismatch warning, got %v", verdicts[0].Warnings)
	}
}

func TestChecker_SameRecordExclusion(t *testing.T) {
	pid := uuid.New()
	rec := testRecord(pid, day(3),
		billing.LineItem{Code: "SHOSHIN", Points: 267},
		billing.LineItem{Code: "301000210", Points: 58},
	)

	rs := NewRuleSet(nil, []ExclusionRule{
		{ID: uuid.New(), CodeA: "301000110", CodeB: "301000210", Window: ExclusionSameDay, Label: "初診料と再診料"},
	}, nil, nil, nil, nil, nil)

	verdicts := runChecker(t, rs, testInput(rec))
	if !hasMessage(verdicts[0].Errors, "併算定不可") {
		t.Errorf("expected same-record exclusion error, got %v", verdicts[0].Errors)
	}
	count := 0
	for _, e := range verdicts[0].Errors {
		if strings.Contains(e, "併算定不可") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one exclusion error, got %d", count)
	}
}

func TestChecker_SameMonthExclusionWarnsLaterRecord(t *testing.T) {
	pid := uuid.New()
	first := testRecord(pid, day(3), billing.LineItem{Code: "309000110", Points: 80})
	later := testRecord(pid, day(17), billing.LineItem{Code: "309000210", Points: 120})

	rs := NewRuleSet(nil, []ExclusionRule{
		{ID: uuid.New(), CodeA: "309000110", CodeB: "309000210", Window: ExclusionSameMonth, Label: "スケーリング区分"},
	}, nil, nil, nil, nil, nil)

	verdicts := runChecker(t, rs, testInput(first, later))
	if hasMessage(verdicts[0].Warnings, "同月内併算定") {
		t.Errorf("earlier record must not carry the warning: %v", verdicts[0].Warnings)
	}
	if !hasMessage(verdicts[1].Warnings, "同月内併算定") {
		t.Errorf("expected same-month warning on the later record, got %v", verdicts[1].Warnings)
	}
	if len(verdicts[1].Errors) != 0 {
		t.Errorf("cross-record exclusion must warn, not error: %v", verdicts[1].Errors)
	}
}

func TestChecker_FrequencyDayLimitFlagsFirstExceeding(t *testing.T) {
	pid := uuid.New()
	first := testRecord(pid, day(3), billing.LineItem{Code: "PANO", Points: 317})
	second := testRecord(pid, day(3), billing.LineItem{Code: "313000310", Points: 317})
	second.CreatedAt = first.CreatedAt.Add(time.Hour)

	rs := NewRuleSet([]FrequencyRule{
		{ID: uuid.New(), Code: "313000310", Window: WindowDay, MaxCount: 1, Label: "パノラマ撮影"},
	}, nil, nil, nil, nil, nil, nil)

	verdicts := runChecker(t, rs, testInput(first, second))
	if hasMessage(verdicts[0].Errors, "算定回数") {
		t.Errorf("first record within the limit must not error: %v", verdicts[0].Errors)
	}
	if !hasMessage(verdicts[1].Errors, "算定回数") {
		t.Errorf("expected frequency error on the exceeding record, got %v", verdicts[1].Errors)
	}
	total := 0
	for _, v := range verdicts {
		for _, e := range v.Errors {
			if strings.Contains(e, "算定回数") {
				total++
			}
		}
	}
	if total != 1 {
		t.Errorf("expected exactly one frequency error across the day, got %d", total)
	}
}

func TestChecker_FrequencyCountsLineItemCount(t *testing.T) {
	pid := uuid.New()
	rec := testRecord(pid, day(3), billing.LineItem{Code: "310000110", Points: 60, Count: 3})

	rs := NewRuleSet([]FrequencyRule{
		{ID: uuid.New(), Code: "310000110", Window: WindowMonth, MaxCount: 2, Label: "月2回まで"},
	}, nil, nil, nil, nil, nil, nil)

	verdicts := runChecker(t, rs, testInput(rec))
	if !hasMessage(verdicts[0].Errors, "算定回数") {
		t.Errorf("count=3 against max 2 must error, got %v", verdicts[0].Errors)
	}
}

func TestChecker_FrequencyPeriodUsesHistory(t *testing.T) {
	pid := uuid.New()
	past := testRecord(pid, time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC),
		billing.LineItem{Code: "311000110", Points: 200})
	scoped := testRecord(pid, day(12), billing.LineItem{Code: "311000110", Points: 200})

	rs := NewRuleSet([]FrequencyRule{
		{ID: uuid.New(), Code: "311000110", Window: WindowPeriod, PeriodMonths: 6, MaxCount: 1, Label: "6か月に1回"},
	}, nil, nil, nil, nil, nil, nil)

	in := testInput(scoped)
	in.History[pid] = []*billing.Record{past, scoped}

	verdicts := runChecker(t, rs, in)
	if !hasMessage(verdicts[0].Errors, "算定回数") {
		t.Errorf("expected period-frequency error against history, got %v", verdicts[0].Errors)
	}
}

func TestChecker_FrequencyPeriodWindowRolls(t *testing.T) {
	rs := NewRuleSet([]FrequencyRule{
		{ID: uuid.New(), Code: "311000110", Window: WindowPeriod, PeriodMonths: 6, MaxCount: 1, Label: "6か月に1回"},
	}, nil, nil, nil, nil, nil, nil)

	cases := []struct {
		name string
		past time.Time
		flag bool
	}{
		{"five months back", time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC), true},
		{"exactly the window length back", time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC), false},
		{"seven months back", time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pid := uuid.New()
			past := testRecord(pid, tc.past, billing.LineItem{Code: "311000110", Points: 200})
			scoped := testRecord(pid, day(12), billing.LineItem{Code: "311000110", Points: 200})

			in := testInput(scoped)
			in.History[pid] = []*billing.Record{past, scoped}

			verdicts := runChecker(t, rs, in)
			got := hasMessage(verdicts[0].Errors, "算定回数")
			if got != tc.flag {
				t.Errorf("period error = %v, want %v (errors %v)", got, tc.flag, verdicts[0].Errors)
			}
		})
	}
}

func TestChecker_FrequencyErrorLandsOnScopedRecord(t *testing.T) {
	pid := uuid.New()
	h1 := testRecord(pid, day(2), billing.LineItem{Code: "310000110", Points: 60})
	h2 := testRecord(pid, day(9), billing.LineItem{Code: "310000110", Points: 60})
	h3 := testRecord(pid, day(16), billing.LineItem{Code: "310000110", Points: 60})
	scoped := testRecord(pid, day(23), billing.LineItem{Code: "310000110", Points: 60})

	rs := NewRuleSet([]FrequencyRule{
		{ID: uuid.New(), Code: "310000110", Window: WindowMonth, MaxCount: 2, Label: "月2回まで"},
	}, nil, nil, nil, nil, nil, nil)

	// The limit is already crossed inside history that is not part of the
	// check scope; the scoped record must still carry the error.
	in := testInput(scoped)
	in.History[pid] = []*billing.Record{h1, h2, h3, scoped}

	verdicts := runChecker(t, rs, in)
	if !hasMessage(verdicts[0].Errors, "算定回数") {
		t.Errorf("record over the window limit must carry the error, got %v", verdicts[0].Errors)
	}
}

func TestChecker_AgeBounds(t *testing.T) {
	min := 6
	rs := NewRuleSet(nil, nil, nil, nil, []AgeRule{
		{ID: uuid.New(), Code: "308000110", MinAge: &min, Label: "6歳以上"},
	}, nil, nil)

	cases := []struct {
		name  string
		birth time.Time
		flag  bool
	}{
		{"exact minimum on birthday", time.Date(2020, 8, 3, 0, 0, 0, 0, time.UTC), false},
		{"one day short", time.Date(2020, 8, 4, 0, 0, 0, 0, time.UTC), true},
		{"well above", time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pid := uuid.New()
			rec := testRecord(pid, day(3), billing.LineItem{Code: "308000110", Points: 100})
			in := testInput(rec)
			in.Patients[pid] = &patient.Patient{ID: pid, BirthDate: tc.birth}

			verdicts := runChecker(t, rs, in)
			got := hasMessage(verdicts[0].Errors, "歳以上")
			if got != tc.flag {
				t.Errorf("age error = %v, want %v (errors %v)", got, tc.flag, verdicts[0].Errors)
			}
		})
	}
}

func TestChecker_AdditionWithoutBase(t *testing.T) {
	rs := NewRuleSet(nil, nil, []AdditionRule{
		{ID: uuid.New(), AdditionCode: "301000310", BaseCode: "301000110", Label: "初診時加算"},
	}, nil, nil, nil, nil)

	pid := uuid.New()
	bare := testRecord(pid, day(3), billing.LineItem{Code: "301000310", Points: 50})
	verdicts := runChecker(t, rs, testInput(bare))
	if !hasMessage(verdicts[0].Warnings, "基本項目") {
		t.Errorf("expected addition warning, got %v", verdicts[0].Warnings)
	}

	paired := testRecord(pid, day(4),
		billing.LineItem{Code: "301000310", Points: 50},
		billing.LineItem{Code: "301000110", Points: 267},
	)
	verdicts = runChecker(t, rs, testInput(paired))
	if hasMessage(verdicts[0].Warnings, "基本項目") {
		t.Errorf("addition with its base must not warn: %v", verdicts[0].Warnings)
	}
}

func TestChecker_FacilityStandardAddition(t *testing.T) {
	rs := NewRuleSet(nil, nil, []AdditionRule{
		{ID: uuid.New(), AdditionCode: "305000310", BaseCode: "305000110", FacilityStandard: true, Label: "外来環加算"},
	}, nil, nil, nil, nil)

	pid := uuid.New()
	rec := testRecord(pid, day(3), billing.LineItem{Code: "305000310", Points: 25})
	verdicts := runChecker(t, rs, testInput(rec))
	if !hasMessage(verdicts[0].Warnings, "施設基準") {
		t.Errorf("expected facility-standard wording, got %v", verdicts[0].Warnings)
	}
}

func TestChecker_MaterialRequirement(t *testing.T) {
	rs := NewRuleSet(nil, nil, nil, []MaterialRule{
		{ID: uuid.New(), ProcedureCode: "312000110", MaterialCategory: procedure.CategoryMaterial, Label: "充填材料"},
	}, nil, nil, nil)

	pid := uuid.New()
	without := testRecord(pid, day(3), billing.LineItem{Code: "312000110", Points: 150})
	verdicts := runChecker(t, rs, testInput(without))
	if !hasMessage(verdicts[0].Warnings, "必要な材料") {
		t.Errorf("expected material warning, got %v", verdicts[0].Warnings)
	}

	with := testRecord(pid, day(4),
		billing.LineItem{Code: "312000110", Points: 150},
		billing.LineItem{Code: "399000110", Points: 11, Category: procedure.CategoryMaterial},
	)
	verdicts = runChecker(t, rs, testInput(with))
	if hasMessage(verdicts[0].Warnings, "必要な材料") {
		t.Errorf("material present, must not warn: %v", verdicts[0].Warnings)
	}
}

func TestChecker_IncrementalUndercut(t *testing.T) {
	rs := NewRuleSet(nil, nil, nil, nil, nil, []IncrementalRule{
		{ID: uuid.New(), Code: "304000110", BasePoints: 100, Label: "基準点数"},
	}, nil)

	pid := uuid.New()
	rec := testRecord(pid, day(3), billing.LineItem{Code: "304000110", Points: 60})
	verdicts := runChecker(t, rs, testInput(rec))
	if !hasMessage(verdicts[0].Warnings, "下回っています") {
		t.Errorf("expected incremental warning, got %v", verdicts[0].Warnings)
	}
}

func TestChecker_DiagnosisRequirement(t *testing.T) {
	rs := NewRuleSet(nil, nil, nil, nil, nil, nil, []DiagnosisRule{
		{ID: uuid.New(), CodePrefix: "306", DiagnosisPrefix: "K05", Severity: SeverityError, Label: "歯周病名"},
		{ID: uuid.New(), CodePrefix: "307", DiagnosisPrefix: "K04", Severity: SeverityWarning, Label: "歯髄病名"},
	})

	pid := uuid.New()
	rec := testRecord(pid, day(3),
		billing.LineItem{Code: "306000110", Points: 72},
		billing.LineItem{Code: "307000110", Points: 40},
	)
	in := testInput(rec)
	in.Diagnoses[pid] = []*chart.Diagnosis{
		{Code: "K02.1", Outcome: chart.OutcomeActive, StartDate: day(1)},
	}

	verdicts := runChecker(t, rs, in)
	if !hasMessage(verdicts[0].Errors, "K05") {
		t.Errorf("expected error-severity diagnosis requirement, got %v", verdicts[0].Errors)
	}
	if !hasMessage(verdicts[0].Warnings, "K04") {
		t.Errorf("expected warning-severity diagnosis requirement, got %v", verdicts[0].Warnings)
	}

	in.Diagnoses[pid] = append(in.Diagnoses[pid],
		&chart.Diagnosis{Code: "K05.3", Outcome: chart.OutcomeActive, StartDate: day(1)})
	verdicts = runChecker(t, rs, in)
	if hasMessage(verdicts[0].Errors, "K05") {
		t.Errorf("matching diagnosis present, must not error: %v", verdicts[0].Errors)
	}
}

func TestChecker_StoredWarningCarryover(t *testing.T) {
	rs := NewRuleSet(nil, nil, []AdditionRule{
		{ID: uuid.New(), AdditionCode: "301000310", BaseCode: "301000110", Label: "初診時加算"},
	}, nil, nil, nil, nil)

	pid := uuid.New()
	stored := "加算の算定には基本項目 301000110 が必要です"

	carried := testRecord(pid, day(3), billing.LineItem{Code: "302000110", Points: 48})
	carried.AIWarnings = []string{stored}
	verdicts := runChecker(t, rs, testInput(carried))
	if !hasMessage(verdicts[0].Warnings, "301000110") {
		t.Errorf("stored warning must carry over, got %v", verdicts[0].Warnings)
	}

	resolved := testRecord(pid, day(4),
		billing.LineItem{Code: "301000310", Points: 50},
		billing.LineItem{Code: "301000110", Points: 267},
	)
	resolved.AIWarnings = []string{stored}
	verdicts = runChecker(t, rs, testInput(resolved))
	if hasMessage(verdicts[0].Warnings, "301000110") {
		t.Errorf("warning about a now-satisfied base must be suppressed: %v", verdicts[0].Warnings)
	}
}

func TestChecker_UnresolvedCodesSkipped(t *testing.T) {
	rs := NewRuleSet([]FrequencyRule{
		{ID: uuid.New(), Code: "313000310", Window: WindowDay, MaxCount: 1, Label: "パノラマ撮影"},
	}, nil, nil, nil, nil, nil, nil)

	pid := uuid.New()
	rec := testRecord(pid, day(3),
		billing.LineItem{Code: "UNKNOWN-XX", Points: 317},
		billing.LineItem{Code: "NO-SUCH", Points: 317},
	)
	verdicts := runChecker(t, rs, testInput(rec))
	if len(verdicts[0].Errors) != 0 {
		t.Errorf("unresolved codes must not trigger code checks: %v", verdicts[0].Errors)
	}
}

type failingResolver struct{}

func (failingResolver) Resolve(ctx context.Context, code string) (string, bool, error) {
	return "", false, fmt.Errorf("connection refused")
}

func TestChecker_ResolverFailureAbortsRun(t *testing.T) {
	pid := uuid.New()
	rec := testRecord(pid, day(3), billing.LineItem{Code: "301000110", Points: 267})

	if _, err := NewChecker(emptyRuleSet(), failingResolver{}).Run(context.Background(), testInput(rec)); err == nil {
		t.Fatal("expected resolver failure to abort the run")
	}
}

func TestChecker_CleanRecordIsOK(t *testing.T) {
	pid := uuid.New()
	rec := testRecord(pid, day(3),
		billing.LineItem{Code: "301000110", Points: 267, Category: procedure.CategoryConsultation},
		billing.LineItem{Code: "302000110", Points: 48, Category: "検査"},
	)
	verdicts := runChecker(t, emptyRuleSet(), testInput(rec))
	if verdicts[0].Status != "ok" {
		t.Fatalf("expected ok verdict, got %s (errors %v warnings %v)",
			verdicts[0].Status, verdicts[0].Errors, verdicts[0].Warnings)
	}
}

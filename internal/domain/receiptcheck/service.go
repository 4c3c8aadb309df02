package receiptcheck

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hakuto-dental/clinic-server/internal/domain/billing"
	"github.com/hakuto-dental/clinic-server/internal/domain/chart"
	"github.com/hakuto-dental/clinic-server/internal/domain/patient"
)

// ErrInvalidInput marks caller mistakes (bad month, empty or unknown id set)
// apart from reference-data load failures.
var ErrInvalidInput = errors.New("invalid input")

// BillingSource is the slice of the billing service a check run reads.
type BillingSource interface {
	ListMonth(ctx context.Context, month string) ([]*billing.Record, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*billing.Record, error)
	ListPatientRange(ctx context.Context, patientID uuid.UUID, from, to time.Time) ([]*billing.Record, error)
}

// DiagnosisSource provides each patient's diagnosis records.
type DiagnosisSource interface {
	ListDiagnoses(ctx context.Context, patientID uuid.UUID) ([]*chart.Diagnosis, error)
}

// PatientSource provides patient demographics for age checks.
type PatientSource interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	rules    RuleRepository
	billing  BillingSource
	charts   DiagnosisSource
	patients PatientSource
	resolver CodeResolver
}

func NewService(rules RuleRepository, b BillingSource, c DiagnosisSource, p PatientSource, r CodeResolver) *Service {
	return &Service{rules: rules, billing: b, charts: c, patients: p, resolver: r}
}

// CheckMonth validates every billing record of a claim month ("2006-01").
func (s *Service) CheckMonth(ctx context.Context, month string) ([]*Verdict, error) {
	if _, _, err := billing.MonthRange(month); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	records, err := s.billing.ListMonth(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("load billing month: %w", err)
	}
	return s.check(ctx, records)
}

// CheckRecords validates an explicit set of billing records.
func (s *Service) CheckRecords(ctx context.Context, ids []uuid.UUID) ([]*Verdict, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one billing id is required", ErrInvalidInput)
	}
	records, err := s.billing.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load billing records: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no billing records found", ErrInvalidInput)
	}
	return s.check(ctx, records)
}

func (s *Service) check(ctx context.Context, records []*billing.Record) ([]*Verdict, error) {
	ruleSet, err := s.rules.LoadRuleSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rule set: %w", err)
	}
	if len(records) == 0 {
		return []*Verdict{}, nil
	}

	from, to := historyWindow(records, maxPeriodMonths(ruleSet))
	in := Input{
		Records:   records,
		History:   make(map[uuid.UUID][]*billing.Record),
		Diagnoses: make(map[uuid.UUID][]*chart.Diagnosis),
		Patients:  make(map[uuid.UUID]*patient.Patient),
	}

	// The per-patient reference reads are independent; issue them together
	// before computation begins.
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for pid := range patientsInScope(in) {
		wg.Add(1)
		go func(pid uuid.UUID) {
			defer wg.Done()

			history, err := s.billing.ListPatientRange(ctx, pid, from, to)
			if err == nil {
				var diags []*chart.Diagnosis
				diags, err = s.charts.ListDiagnoses(ctx, pid)
				if err == nil {
					var pat *patient.Patient
					pat, err = s.patients.GetPatient(ctx, pid)
					if err == nil {
						mu.Lock()
						in.History[pid] = history
						in.Diagnoses[pid] = diags
						in.Patients[pid] = pat
						mu.Unlock()
						return
					}
				}
			}
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("load reference data for patient %s: %w", pid, err)
			}
			mu.Unlock()
		}(pid)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	verdicts, err := NewChecker(ruleSet, s.resolver).Run(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("run checks: %w", err)
	}
	return verdicts, nil
}

// historyWindow widens the scoped records' date range far enough back to
// cover the longest period-frequency rule.
func historyWindow(records []*billing.Record, periodMonths int) (time.Time, time.Time) {
	min, max := records[0].VisitDate, records[0].VisitDate
	for _, rec := range records[1:] {
		if rec.VisitDate.Before(min) {
			min = rec.VisitDate
		}
		if rec.VisitDate.After(max) {
			max = rec.VisitDate
		}
	}
	if periodMonths < 1 {
		periodMonths = 1
	}
	from := time.Date(min.Year(), min.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(periodMonths - 1), 0)
	to := time.Date(max.Year(), max.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return from, to
}

func maxPeriodMonths(rs *RuleSet) int {
	max := 1
	for _, rules := range rs.Frequency {
		for _, r := range rules {
			if r.Window == WindowPeriod && r.PeriodMonths > max {
				max = r.PeriodMonths
			}
		}
	}
	return max
}

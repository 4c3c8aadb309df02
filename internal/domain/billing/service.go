package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var validStatuses = map[string]bool{
	StatusUnclaimed: true,
	StatusClaimed:   true,
	StatusPaid:      true,
}

func (s *Service) CreateRecord(ctx context.Context, rec *Record) error {
	if rec.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if rec.VisitDate.IsZero() {
		return fmt.Errorf("visit_date is required")
	}
	if len(rec.Items) == 0 {
		return fmt.Errorf("at least one line item is required")
	}
	for i := range rec.Items {
		item := &rec.Items[i]
		if item.Code == "" {
			return fmt.Errorf("item %d: code is required", i)
		}
		if item.Count <= 0 {
			item.Count = 1
		}
	}
	if rec.TotalPoints == 0 {
		for _, item := range rec.Items {
			rec.TotalPoints += item.Points * item.Count
		}
	}
	if rec.BurdenRatio == 0 {
		rec.BurdenRatio = 0.3
	}
	if rec.PatientBurden == 0 {
		rec.PatientBurden = rec.ExpectedBurden()
	}
	if rec.ClaimStatus == "" {
		rec.ClaimStatus = StatusUnclaimed
	}
	if !validStatuses[rec.ClaimStatus] {
		return fmt.Errorf("invalid claim_status: %s", rec.ClaimStatus)
	}
	return s.repo.Create(ctx, rec)
}

func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateClaimStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !validStatuses[status] {
		return fmt.Errorf("invalid claim_status: %s", status)
	}
	return s.repo.UpdateClaimStatus(ctx, id, status)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// ListMonth returns every billing record whose visit date falls in the given
// calendar month ("2006-01" form).
func (s *Service) ListMonth(ctx context.Context, month string) ([]*Record, error) {
	from, to, err := MonthRange(month)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByVisitRange(ctx, from, to)
}

// ListPatientRange returns one patient's records with visit dates in
// [from, to), oldest first.
func (s *Service) ListPatientRange(ctx context.Context, patientID uuid.UUID, from, to time.Time) ([]*Record, error) {
	return s.repo.ListByPatientAndRange(ctx, patientID, from, to)
}

func (s *Service) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Record, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one id is required")
	}
	return s.repo.ListByIDs(ctx, ids)
}

// MonthRange converts a "YYYY-MM" month into its [from, to) UTC bounds.
func MonthRange(month string) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q: expected YYYY-MM", month)
	}
	return from, from.AddDate(0, 1, 0), nil
}

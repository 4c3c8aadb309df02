package appointment

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
	"booked":    true,
	"done":      true,
	"cancelled": true,
	"no_show":   true,
}

// ErrConflict is returned when a requested slot overlaps an existing booking
// on the same chair or with the same dentist.
type ErrConflict struct {
	With []*Appointment
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("slot conflicts with %d existing appointment(s)", len(e.With))
}

func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a.DentistID == uuid.Nil {
		return fmt.Errorf("dentist_id is required")
	}
	if a.Chair == "" {
		return fmt.Errorf("chair is required")
	}
	if a.StartsAt.IsZero() || a.EndsAt.IsZero() {
		return fmt.Errorf("starts_at and ends_at are required")
	}
	if !a.StartsAt.Before(a.EndsAt) {
		return fmt.Errorf("starts_at must be before ends_at")
	}
	if a.Status == "" {
		a.Status = "booked"
	}
	if !validStatuses[a.Status] {
		return fmt.Errorf("invalid status: %s", a.Status)
	}

	conflicts, err := s.repo.FindConflicts(ctx, a.DentistID, a.Chair, a.StartsAt, a.EndsAt, uuid.Nil)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &ErrConflict{With: conflicts}
	}
	return s.repo.Create(ctx, a)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Reschedule moves a booked appointment to a new slot, re-running conflict
// detection with the appointment itself excluded.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, start, end time.Time, chair string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("appointment not found: %w", err)
	}
	if a.Status != "booked" {
		return nil, fmt.Errorf("cannot reschedule a %s appointment", a.Status)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("starts_at must be before ends_at")
	}
	if chair == "" {
		chair = a.Chair
	}

	conflicts, err := s.repo.FindConflicts(ctx, a.DentistID, chair, start, end, a.ID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, &ErrConflict{With: conflicts}
	}

	a.StartsAt = start
	a.EndsAt = end
	a.Chair = chair
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("appointment not found: %w", err)
	}
	if a.Status == "cancelled" {
		return a, nil
	}
	if a.Status == "done" {
		return nil, fmt.Errorf("cannot cancel a completed appointment")
	}
	now := time.Now().UTC()
	a.Status = "cancelled"
	a.CanceledAt = &now
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	if !validStatuses[status] {
		return nil, fmt.Errorf("invalid status: %s", status)
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("appointment not found: %w", err)
	}
	a.Status = status
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListDay returns the appointments that touch the given clinic day.
func (s *Service) ListDay(ctx context.Context, day time.Time, limit, offset int) ([]*Appointment, int, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.Add(24 * time.Hour)
	return s.repo.ListByRange(ctx, from, to, limit, offset)
}

func (s *Service) ListRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Appointment, int, error) {
	if !from.Before(to) {
		return nil, 0, fmt.Errorf("from must be before to")
	}
	return s.repo.ListByRange(ctx, from, to, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

package portal

import (
	"context"
	"encoding/json"
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

// Allowed queue transitions. Reception can walk a visit forward or send a
// called patient back to waiting.
var allowedTransitions = map[string][]string{
	StatusWaiting: {StatusCalled},
	StatusCalled:  {StatusInChair, StatusWaiting},
	StatusInChair: {StatusDone},
}

// CheckInPatient opens a check-in for today. A patient with an open check-in
// cannot check in again.
func (s *Service) CheckInPatient(ctx context.Context, patientID uuid.UUID, appointmentID *uuid.UUID) (*CheckIn, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	now := time.Now().UTC()
	if existing, err := s.repo.FindOpenCheckIn(ctx, patientID, now); err == nil && existing != nil {
		return nil, fmt.Errorf("patient already checked in")
	}

	ci := &CheckIn{
		PatientID:     patientID,
		AppointmentID: appointmentID,
		Status:        StatusWaiting,
		CheckedInAt:   now,
	}
	if err := s.repo.CreateCheckIn(ctx, ci); err != nil {
		return nil, err
	}
	return ci, nil
}

// AdvanceCheckIn moves a check-in to the next queue status, stamping the
// called/completed times.
func (s *Service) AdvanceCheckIn(ctx context.Context, id uuid.UUID, to string) (*CheckIn, error) {
	ci, err := s.repo.GetCheckIn(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("check-in not found: %w", err)
	}

	ok := false
	for _, next := range allowedTransitions[ci.Status] {
		if next == to {
			ok = true
			break
		}
	}
	if !ok {
		return nil, fmt.Errorf("cannot move check-in from %s to %s", ci.Status, to)
	}

	now := time.Now().UTC()
	ci.Status = to
	switch to {
	case StatusCalled:
		ci.CalledAt = &now
	case StatusDone:
		ci.CompletedAt = &now
	}
	if err := s.repo.UpdateCheckIn(ctx, ci); err != nil {
		return nil, err
	}
	return ci, nil
}

func (s *Service) Queue(ctx context.Context, day time.Time) ([]*CheckIn, error) {
	return s.repo.ListQueue(ctx, day)
}

func (s *Service) CreateTemplate(ctx context.Context, t *QuestionnaireTemplate) error {
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(t.Items) == 0 || !json.Valid(t.Items) {
		return fmt.Errorf("items must be valid JSON")
	}
	return s.repo.CreateTemplate(ctx, t)
}

func (s *Service) GetTemplate(ctx context.Context, id uuid.UUID) (*QuestionnaireTemplate, error) {
	return s.repo.GetTemplate(ctx, id)
}

func (s *Service) ListTemplates(ctx context.Context, activeOnly bool) ([]*QuestionnaireTemplate, error) {
	return s.repo.ListTemplates(ctx, activeOnly)
}

func (s *Service) UpdateTemplate(ctx context.Context, t *QuestionnaireTemplate) error {
	if t.Items != nil && !json.Valid(t.Items) {
		return fmt.Errorf("items must be valid JSON")
	}
	return s.repo.UpdateTemplate(ctx, t)
}

func (s *Service) SubmitResponse(ctx context.Context, r *QuestionnaireResponse) error {
	if r.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if _, err := s.repo.GetTemplate(ctx, r.TemplateID); err != nil {
		return fmt.Errorf("template not found: %w", err)
	}
	if len(r.Answers) == 0 || !json.Valid(r.Answers) {
		return fmt.Errorf("answers must be valid JSON")
	}
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = time.Now().UTC()
	}
	return s.repo.CreateResponse(ctx, r)
}

func (s *Service) ListResponses(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*QuestionnaireResponse, int, error) {
	return s.repo.ListResponsesByPatient(ctx, patientID, limit, offset)
}

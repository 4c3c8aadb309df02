package chart

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

var validSources = map[string]bool{
	"manual":   true,
	"ai_draft": true,
}

var validOutcomes = map[string]bool{
	OutcomeActive: true,
	OutcomeCured:  true,
}

func (s *Service) CreateNote(ctx context.Context, n *Note) error {
	if n.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if n.AuthorID == "" {
		return fmt.Errorf("author_id is required")
	}
	if n.Subjective == "" && n.Objective == "" && n.Assessment == "" && n.Plan == "" {
		return fmt.Errorf("note must have at least one SOAP section")
	}
	if n.Source == "" {
		n.Source = "manual"
	}
	if !validSources[n.Source] {
		return fmt.Errorf("invalid source: %s", n.Source)
	}
	if n.VisitDate.IsZero() {
		n.VisitDate = time.Now().UTC()
	}
	return s.repo.CreateNote(ctx, n)
}

func (s *Service) GetNote(ctx context.Context, id uuid.UUID) (*Note, error) {
	return s.repo.GetNote(ctx, id)
}

func (s *Service) UpdateNote(ctx context.Context, n *Note) error {
	if n.Source != "" && !validSources[n.Source] {
		return fmt.Errorf("invalid source: %s", n.Source)
	}
	return s.repo.UpdateNote(ctx, n)
}

func (s *Service) DeleteNote(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteNote(ctx, id)
}

func (s *Service) ListNotes(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Note, int, error) {
	return s.repo.ListNotesByPatient(ctx, patientID, limit, offset)
}

func (s *Service) CreateDiagnosis(ctx context.Context, d *Diagnosis) error {
	if d.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if d.Code == "" || d.Name == "" {
		return fmt.Errorf("code and name are required")
	}
	if d.Outcome == "" {
		d.Outcome = OutcomeActive
	}
	if !validOutcomes[d.Outcome] {
		return fmt.Errorf("invalid outcome: %s", d.Outcome)
	}
	if d.StartDate.IsZero() {
		d.StartDate = time.Now().UTC()
	}
	if d.EndDate != nil && d.EndDate.Before(d.StartDate) {
		return fmt.Errorf("end_date must not precede start_date")
	}
	return s.repo.CreateDiagnosis(ctx, d)
}

// ResolveDiagnosis marks a diagnosis cured, closing its validity period.
func (s *Service) ResolveDiagnosis(ctx context.Context, id uuid.UUID) (*Diagnosis, error) {
	d, err := s.repo.GetDiagnosis(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("diagnosis not found: %w", err)
	}
	if d.Outcome == OutcomeCured {
		return d, nil
	}
	now := time.Now().UTC()
	d.Outcome = OutcomeCured
	d.EndDate = &now
	if err := s.repo.UpdateDiagnosis(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListDiagnoses(ctx context.Context, patientID uuid.UUID) ([]*Diagnosis, error) {
	return s.repo.ListDiagnosesByPatient(ctx, patientID)
}

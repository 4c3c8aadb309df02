package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Insurance burden ratios accepted for Japanese public health insurance.
var validBurdenRatios = map[float64]bool{
	0.1: true,
	0.2: true,
	0.3: true,
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.FamilyName == "" || p.GivenName == "" {
		return fmt.Errorf("family_name and given_name are required")
	}
	if p.BirthDate.IsZero() {
		return fmt.Errorf("birth_date is required")
	}
	if p.Sex != "1" && p.Sex != "2" {
		return fmt.Errorf("invalid sex: %s", p.Sex)
	}
	if p.BurdenRatio == 0 {
		p.BurdenRatio = 0.3
	}
	if !validBurdenRatios[p.BurdenRatio] {
		return fmt.Errorf("invalid burden_ratio: %v", p.BurdenRatio)
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetPatientByNumber(ctx context.Context, number string) (*Patient, error) {
	return s.repo.GetByNumber(ctx, number)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if p.BurdenRatio != 0 && !validBurdenRatios[p.BurdenRatio] {
		return fmt.Errorf("invalid burden_ratio: %v", p.BurdenRatio)
	}
	if p.Sex != "" && p.Sex != "1" && p.Sex != "2" {
		return fmt.Errorf("invalid sex: %s", p.Sex)
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) SearchPatients(ctx context.Context, q string, limit, offset int) ([]*Patient, int, error) {
	if q == "" {
		return s.repo.List(ctx, limit, offset)
	}
	return s.repo.SearchByName(ctx, q, limit, offset)
}

package procedure

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve canonicalizes a billed procedure code to official 9-digit form:
// static legacy translation first, then the kubun/sub-code master lookup,
// then pass-through for codes already official. Resolution is idempotent for
// official codes. Unresolvable codes return ok=false with a nil error and
// are skipped by code-dependent compliance checks; a failing master lookup
// returns the error instead of downgrading the code to unresolved.
func (s *Service) Resolve(ctx context.Context, code string) (string, bool, error) {
	if code == "" {
		return "", false, nil
	}
	if official, ok := legacyCodeMap[code]; ok {
		return official, true, nil
	}
	if kubun, sub, ok := splitLegacy(code); ok {
		c, err := s.repo.GetByKubunSub(ctx, kubun, sub)
		switch {
		case err == nil:
			return c.OfficialCode, true, nil
		case !errors.Is(err, pgx.ErrNoRows):
			return "", false, fmt.Errorf("lookup %s: %w", code, err)
		}
	}
	if IsOfficial(code) {
		return code, true, nil
	}
	return "", false, nil
}

// splitLegacy decomposes a "kubun-subcode" legacy entry.
func splitLegacy(code string) (kubun, sub string, ok bool) {
	idx := strings.IndexByte(code, '-')
	if idx <= 0 || idx == len(code)-1 {
		return "", "", false
	}
	return code[:idx], code[idx+1:], true
}

func (s *Service) CreateCode(ctx context.Context, c *Code) error {
	if !IsOfficial(c.OfficialCode) {
		return fmt.Errorf("official_code must be 9 digits")
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Points < 0 {
		return fmt.Errorf("points must not be negative")
	}
	return s.repo.Create(ctx, c)
}

func (s *Service) GetCode(ctx context.Context, id uuid.UUID) (*Code, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByOfficialCode(ctx context.Context, code string) (*Code, error) {
	return s.repo.GetByOfficialCode(ctx, code)
}

func (s *Service) UpdateCode(ctx context.Context, c *Code) error {
	if c.OfficialCode != "" && !IsOfficial(c.OfficialCode) {
		return fmt.Errorf("official_code must be 9 digits")
	}
	return s.repo.Update(ctx, c)
}

func (s *Service) ListCodes(ctx context.Context, category string, limit, offset int) ([]*Code, int, error) {
	return s.repo.List(ctx, category, limit, offset)
}

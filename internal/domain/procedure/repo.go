package procedure

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Code) error
	GetByID(ctx context.Context, id uuid.UUID) (*Code, error)
	GetByOfficialCode(ctx context.Context, code string) (*Code, error)
	GetByKubunSub(ctx context.Context, kubun, subCode string) (*Code, error)
	Update(ctx context.Context, c *Code) error
	List(ctx context.Context, category string, limit, offset int) ([]*Code, int, error)
}

package portal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	CreateCheckIn(ctx context.Context, ci *CheckIn) error
	GetCheckIn(ctx context.Context, id uuid.UUID) (*CheckIn, error)
	UpdateCheckIn(ctx context.Context, ci *CheckIn) error
	// ListQueue returns non-done check-ins for the given day in arrival order.
	ListQueue(ctx context.Context, day time.Time) ([]*CheckIn, error)
	FindOpenCheckIn(ctx context.Context, patientID uuid.UUID, day time.Time) (*CheckIn, error)

	CreateTemplate(ctx context.Context, t *QuestionnaireTemplate) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*QuestionnaireTemplate, error)
	ListTemplates(ctx context.Context, activeOnly bool) ([]*QuestionnaireTemplate, error)
	UpdateTemplate(ctx context.Context, t *QuestionnaireTemplate) error

	CreateResponse(ctx context.Context, r *QuestionnaireResponse) error
	ListResponsesByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*QuestionnaireResponse, int, error)
}

package auditevent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hakuto-dental/clinic-server/internal/platform/middleware"
)

const recordTimeout = 5 * time.Second

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// RecordAccess implements middleware.AuditRecorder. The middleware calls it
// after the response is written, so it runs on its own deadline rather than
// the request context.
func (s *Service) RecordAccess(entry middleware.AuditEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	event := &Event{
		UserID:     entry.UserID,
		UserRoles:  entry.UserRoles,
		Resource:   entry.Resource,
		Action:     entry.Action,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
		Path:       entry.Path,
		Method:     entry.Method,
		StatusCode: entry.StatusCode,
		RequestID:  entry.RequestID,
		OccurredAt: entry.Timestamp,
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := s.repo.Insert(ctx, event); err != nil {
		// The request already succeeded; losing one audit row must not fail it.
		s.logger.Error().Err(err).Str("path", entry.Path).Msg("audit event insert failed")
		return err
	}
	return nil
}

var validActions = map[string]bool{
	"read":   true,
	"create": true,
	"update": true,
	"delete": true,
	"search": true,
}

// Search lists audit events newest first.
func (s *Service) Search(ctx context.Context, f Filter, limit, offset int) ([]*Event, int, error) {
	if f.Action != "" && !validActions[f.Action] {
		return nil, 0, fmt.Errorf("invalid action: %s", f.Action)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, 0, fmt.Errorf("to must not precede from")
	}
	return s.repo.List(ctx, f, limit, offset)
}

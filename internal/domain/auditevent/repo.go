package auditevent

import "context"

type Repository interface {
	Insert(ctx context.Context, e *Event) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Event, int, error)
}

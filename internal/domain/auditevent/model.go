// Package auditevent keeps the append-only access log. Events are written by
// the audit middleware for every /api/v1 request and are never updated or
// deleted; the admin viewer only searches them.
package auditevent

import (
	"time"

	"github.com/google/uuid"
)

// Event maps to the audit_event table.
type Event struct {
	ID         uuid.UUID `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	UserRoles  []string  `db:"user_roles" json:"user_roles"`
	Resource   string    `db:"resource" json:"resource"`
	Action     string    `db:"action" json:"action"` // read, create, update, delete, search
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	Path       string    `db:"path" json:"path"`
	Method     string    `db:"method" json:"method"`
	StatusCode int       `db:"status_code" json:"status_code"`
	RequestID  string    `db:"request_id" json:"request_id"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Filter narrows an audit log search. Zero values match everything.
type Filter struct {
	UserID   string
	Resource string
	Action   string
	From     time.Time
	To       time.Time
}

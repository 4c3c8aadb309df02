package receiptcheck

import "context"

// RuleRepository loads the six reference rule tables. Rules are read-only;
// the checking process never mutates them.
type RuleRepository interface {
	LoadRuleSet(ctx context.Context) (*RuleSet, error)
}

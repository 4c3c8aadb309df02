package receiptcheck

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) RuleRepository {
	return &repoPG{pool: pool}
}

func (r *repoPG) LoadRuleSet(ctx context.Context) (*RuleSet, error) {
	freq, err := loadRules(ctx, r.pool,
		`SELECT id, code, "window", period_months, max_count, label FROM rule_frequency`,
		func(row pgx.Rows) (FrequencyRule, error) {
			var rule FrequencyRule
			err := row.Scan(&rule.ID, &rule.Code, &rule.Window, &rule.PeriodMonths, &rule.MaxCount, &rule.Label)
			return rule, err
		})
	if err != nil {
		return nil, err
	}

	excl, err := loadRules(ctx, r.pool,
		`SELECT id, code_a, code_b, "window", label FROM rule_exclusion`,
		func(row pgx.Rows) (ExclusionRule, error) {
			var rule ExclusionRule
			err := row.Scan(&rule.ID, &rule.CodeA, &rule.CodeB, &rule.Window, &rule.Label)
			return rule, err
		})
	if err != nil {
		return nil, err
	}

	add, err := loadRules(ctx, r.pool,
		`SELECT id, addition_code, base_code, facility_standard, label FROM rule_addition`,
		func(row pgx.Rows) (AdditionRule, error) {
			var rule AdditionRule
			err := row.Scan(&rule.ID, &rule.AdditionCode, &rule.BaseCode, &rule.FacilityStandard, &rule.Label)
			return rule, err
		})
	if err != nil {
		return nil, err
	}

	mat, err := loadRules(ctx, r.pool,
		`SELECT id, procedure_code, material_category, label FROM rule_material`,
		func(row pgx.Rows) (MaterialRule, error) {
			var rule MaterialRule
			err := row.Scan(&rule.ID, &rule.ProcedureCode, &rule.MaterialCategory, &rule.Label)
			return rule, err
		})
	if err != nil {
		return nil, err
	}

	age, err := loadRules(ctx, r.pool,
		`SELECT id, code, min_age, max_age, label FROM rule_age`,
		func(row pgx.Rows) (AgeRule, error) {
			var rule AgeRule
			err := row.Scan(&rule.ID, &rule.Code, &rule.MinAge, &rule.MaxAge, &rule.Label)
			return rule, err
		})
	if err != nil {
		return nil, err
	}

	incr, err := loadRules(ctx, r.pool,
		`SELECT id, code, base_points, label FROM rule_incremental`,
		func(row pgx.Rows) (IncrementalRule, error) {
			var rule IncrementalRule
			err := row.Scan(&rule.ID, &rule.Code, &rule.BasePoints, &rule.Label)
			return rule, err
		})
	if err != nil {
		return nil, err
	}

	diag, err := loadRules(ctx, r.pool,
		`SELECT id, code_prefix, diagnosis_prefix, severity, label FROM rule_diagnosis`,
		func(row pgx.Rows) (DiagnosisRule, error) {
			var rule DiagnosisRule
			err := row.Scan(&rule.ID, &rule.CodePrefix, &rule.DiagnosisPrefix, &rule.Severity, &rule.Label)
			return rule, err
		})
	if err != nil {
		return nil, err
	}

	return NewRuleSet(freq, excl, add, mat, age, incr, diag), nil
}

func loadRules[T any](ctx context.Context, pool *pgxpool.Pool, query string, scan func(pgx.Rows) (T, error)) ([]T, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		rule, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

package tiers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Find(ctx context.Context, tier Tier) (*Policy, error)
	Upsert(ctx context.Context, policy *Policy) error
	List(ctx context.Context) ([]Policy, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Find(ctx context.Context, tier Tier) (*Policy, error) {
	query := `
		SELECT tier, max_activities, max_generations, max_followup_generations,
		       include_followups_in_activity_count, updated_at
		FROM tier_policies WHERE tier = $1`

	var (
		p                                 Policy
		maxActivities, maxGens, maxFollow int32
	)
	err := r.pool.QueryRow(ctx, query, string(tier)).Scan(
		&p.Tier, &maxActivities, &maxGens, &maxFollow,
		&p.IncludeFollowupsInCount, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying tier policy: %w", err)
	}

	p.MaxActivities = LimitFromStored(maxActivities)
	p.MaxGenerations = LimitFromStored(maxGens)
	p.MaxFollowupGenerations = LimitFromStored(maxFollow)
	return &p, nil
}

func (r *postgresRepository) Upsert(ctx context.Context, policy *Policy) error {
	query := `
		INSERT INTO tier_policies
			(tier, max_activities, max_generations, max_followup_generations,
			 include_followups_in_activity_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tier) DO UPDATE SET
			max_activities = EXCLUDED.max_activities,
			max_generations = EXCLUDED.max_generations,
			max_followup_generations = EXCLUDED.max_followup_generations,
			include_followups_in_activity_count = EXCLUDED.include_followups_in_activity_count,
			updated_at = EXCLUDED.updated_at`

	policy.UpdatedAt = time.Now()
	_, err := r.pool.Exec(ctx, query,
		string(policy.Tier),
		policy.MaxActivities.Stored(),
		policy.MaxGenerations.Stored(),
		policy.MaxFollowupGenerations.Stored(),
		policy.IncludeFollowupsInCount,
		policy.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting tier policy: %w", err)
	}
	return nil
}

func (r *postgresRepository) List(ctx context.Context) ([]Policy, error) {
	query := `
		SELECT tier, max_activities, max_generations, max_followup_generations,
		       include_followups_in_activity_count, updated_at
		FROM tier_policies ORDER BY tier`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing tier policies: %w", err)
	}
	defer rows.Close()

	var policies []Policy
	for rows.Next() {
		var (
			p                                 Policy
			maxActivities, maxGens, maxFollow int32
		)
		if err := rows.Scan(&p.Tier, &maxActivities, &maxGens, &maxFollow,
			&p.IncludeFollowupsInCount, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning tier policy: %w", err)
		}
		p.MaxActivities = LimitFromStored(maxActivities)
		p.MaxGenerations = LimitFromStored(maxGens)
		p.MaxFollowupGenerations = LimitFromStored(maxFollow)
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

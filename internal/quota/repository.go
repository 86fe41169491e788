package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists user_usage rows. Counter mutations are atomic
// in-place updates; the engine never does read-modify-write on counters.
type Repository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*Usage, error)
	// ApplyRoll zeroes all counters and moves the window anchor from
	// `from` to `to`, but only if the stored anchor still equals `from`.
	// Returns false when another caller already rolled the window.
	ApplyRoll(ctx context.Context, userID uuid.UUID, from, to time.Time) (bool, error)
	IncrementGeneration(ctx context.Context, userID uuid.UUID, followup bool) error
	IncrementActivity(ctx context.Context, userID uuid.UUID) error
	// ListExpired returns usage rows whose window has elapsed as of `asOf`.
	ListExpired(ctx context.Context, asOf time.Time) ([]Usage, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*Usage, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_usage (user_id, monthly_reset_at) VALUES ($1, NOW())
		 ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return nil, fmt.Errorf("ensuring user usage: %w", err)
	}

	var u Usage
	err = r.pool.QueryRow(ctx,
		`SELECT user_id, generation_count, followup_generation_count, activity_count,
		        monthly_reset_at, updated_at
		 FROM user_usage WHERE user_id = $1`, userID,
	).Scan(&u.UserID, &u.GenerationCount, &u.FollowupGenerationCount, &u.ActivityCount,
		&u.MonthlyResetAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("fetching user usage: %w", err)
	}
	return &u, nil
}

func (r *postgresRepository) ApplyRoll(ctx context.Context, userID uuid.UUID, from, to time.Time) (bool, error) {
	// The anchor guard makes concurrent rolls idempotent: only one caller's
	// update matches, the rest see zero rows affected.
	tag, err := r.pool.Exec(ctx,
		`UPDATE user_usage
		 SET generation_count = 0,
		     followup_generation_count = 0,
		     activity_count = 0,
		     monthly_reset_at = $3,
		     updated_at = NOW()
		 WHERE user_id = $1 AND monthly_reset_at = $2`, userID, from, to)
	if err != nil {
		return false, fmt.Errorf("rolling usage window: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *postgresRepository) IncrementGeneration(ctx context.Context, userID uuid.UUID, followup bool) error {
	column := "generation_count"
	if followup {
		column = "followup_generation_count"
	}

	_, err := r.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE user_usage
		 SET %s = %s + 1, updated_at = NOW()
		 WHERE user_id = $1`, column, column), userID)
	if err != nil {
		return fmt.Errorf("incrementing %s: %w", column, err)
	}
	return nil
}

func (r *postgresRepository) IncrementActivity(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE user_usage
		 SET activity_count = activity_count + 1, updated_at = NOW()
		 WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("incrementing activity_count: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListExpired(ctx context.Context, asOf time.Time) ([]Usage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, generation_count, followup_generation_count, activity_count,
		        monthly_reset_at, updated_at
		 FROM user_usage WHERE monthly_reset_at <= $1`, asOf.Add(-Window))
	if err != nil {
		return nil, fmt.Errorf("listing expired usage windows: %w", err)
	}
	defer rows.Close()

	var usages []Usage
	for rows.Next() {
		var u Usage
		if err := rows.Scan(&u.UserID, &u.GenerationCount, &u.FollowupGenerationCount,
			&u.ActivityCount, &u.MonthlyResetAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning usage row: %w", err)
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}

package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/discount-agent/internal/domain"
)

// InteractionsRepository handles database operations for interaction rows.
type InteractionsRepository struct {
	db *sqlx.DB
}

// NewInteractionsRepository creates a new interactions repository.
func NewInteractionsRepository(db *sqlx.DB) *InteractionsRepository {
	return &InteractionsRepository{db: db}
}

// Create inserts a new interaction row.
func (r *InteractionsRepository) Create(ctx context.Context, row *domain.InteractionRow) error {
	query := `
		INSERT INTO interactions (
			id, user_id, platform, ts, raw_incoming_message,
			identified_creator, discount_code_sent, conversation_status,
			follower_count, is_potential_influencer
		)
		VALUES (:id, :user_id, :platform, :ts, :raw_incoming_message,
			:identified_creator, :discount_code_sent, :conversation_status,
			:follower_count, :is_potential_influencer)
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

// List returns all interaction rows, oldest first.
func (r *InteractionsRepository) List(ctx context.Context) ([]domain.InteractionRow, error) {
	var rows []domain.InteractionRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM interactions ORDER BY ts ASC`)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	return rows, nil
}

// CanIssueCode reports whether the user may receive a new discount code:
// one code per user per platform per campaign.
func (r *InteractionsRepository) CanIssueCode(ctx context.Context, platform domain.Platform, userID string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM interactions
		WHERE platform = ? AND user_id = ?
		  AND conversation_status = ?
		  AND discount_code_sent != ''
	`, string(platform), userID, string(domain.StatusCompleted))
	if err != nil {
		return false, fmt.Errorf("count issued codes: %w", err)
	}
	return count == 0, nil
}

// creatorAggRow is the per-(creator, platform) aggregation row.
type creatorAggRow struct {
	Creator   string `db:"creator"`
	Platform  string `db:"platform"`
	Requests  int    `db:"requests"`
	Completed int    `db:"completed"`
}

// Analytics aggregates stored interactions into the campaign summary.
func (r *InteractionsRepository) Analytics(ctx context.Context) (*domain.AnalyticsSummary, error) {
	var rows []creatorAggRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT
			CASE WHEN identified_creator = '' THEN 'unknown'
			     ELSE identified_creator END AS creator,
			platform,
			COUNT(*) AS requests,
			SUM(CASE WHEN conversation_status = ? THEN 1 ELSE 0 END) AS completed
		FROM interactions
		GROUP BY creator, platform
	`, string(domain.StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("aggregate analytics: %w", err)
	}

	summary := &domain.AnalyticsSummary{
		Creators: make(map[string]domain.CreatorStats),
	}
	for _, row := range rows {
		stats, ok := summary.Creators[row.Creator]
		if !ok {
			stats = domain.CreatorStats{
				CreatorHandle:     row.Creator,
				PlatformBreakdown: make(map[string]domain.PlatformStats),
			}
		}
		stats.TotalRequests += row.Requests
		stats.TotalCompleted += row.Completed
		stats.PlatformBreakdown[row.Platform] = domain.PlatformStats{
			Requests:  row.Requests,
			Completed: row.Completed,
		}
		summary.Creators[row.Creator] = stats

		summary.TotalRequests += row.Requests
		summary.TotalCompleted += row.Completed
	}
	summary.TotalCreators = len(summary.Creators)
	return summary, nil
}

// Clear removes all stored interactions. Intended for tests and demos.
func (r *InteractionsRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM interactions`); err != nil {
		return fmt.Errorf("clear interactions: %w", err)
	}
	return nil
}

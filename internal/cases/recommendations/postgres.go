package recommendations

import (
	"context"
	"fmt"

	"lexmatch_backend/internal/cases/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists rankings in case_recommendations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Replace swaps the ranking inside one transaction so readers never see a
// mix of two passes.
func (s *PostgresStore) Replace(ctx context.Context, caseID uuid.UUID, results []domain.MatchResult) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM case_recommendations WHERE case_id = $1`, caseID); err != nil {
		return fmt.Errorf("clear recommendations: %w", err)
	}

	batch := &pgx.Batch{}
	for i, r := range results {
		batch.Queue(`
			INSERT INTO case_recommendations (case_id, position, advocate_id, match_score, reason, recommended_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, caseID, i, r.AdvocateID, r.MatchScore, r.Reason, r.RecommendedAt)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert recommendations: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) Latest(ctx context.Context, caseID uuid.UUID) ([]domain.MatchResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT advocate_id, match_score, reason, recommended_at
		FROM case_recommendations
		WHERE case_id = $1
		ORDER BY match_score DESC, recommended_at DESC, position ASC
	`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.MatchResult, 0)
	for rows.Next() {
		var item domain.MatchResult
		if err := rows.Scan(&item.AdvocateID, &item.MatchScore, &item.Reason, &item.RecommendedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

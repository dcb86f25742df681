package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lexmatch_backend/internal/cases/domain"
	"lexmatch_backend/platform/ai"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements CaseRepository, AdvocateReader and CallLogWriter on
// a pgx pool. Analysis, timeline, recommendations and outcome are JSONB.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ CaseRepository = (*Postgres)(nil)
	_ AdvocateReader = (*Postgres)(nil)
	_ CallLogWriter  = (*Postgres)(nil)
)

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const caseColumns = `
	id, case_number, client_id, client_email, title, description, category,
	status, priority, ai_analysis, timeline, recommended_advocates,
	advocate_id, assigned_at, resolved_at, closed_date, outcome,
	version, created_at, updated_at`

type caseJSON struct {
	analysis        []byte
	timeline        []byte
	recommendations []byte
	outcome         []byte
}

func encodeCase(rec domain.CaseRecord) (caseJSON, error) {
	var out caseJSON
	var err error
	if rec.AIAnalysis != nil {
		if out.analysis, err = json.Marshal(rec.AIAnalysis); err != nil {
			return out, fmt.Errorf("encode analysis: %w", err)
		}
	}
	timeline := rec.Timeline
	if timeline == nil {
		timeline = []domain.TimelineEvent{}
	}
	if out.timeline, err = json.Marshal(timeline); err != nil {
		return out, fmt.Errorf("encode timeline: %w", err)
	}
	recommendations := rec.RecommendedAdvocates
	if recommendations == nil {
		recommendations = []domain.MatchResult{}
	}
	if out.recommendations, err = json.Marshal(recommendations); err != nil {
		return out, fmt.Errorf("encode recommendations: %w", err)
	}
	if rec.Outcome != nil {
		if out.outcome, err = json.Marshal(rec.Outcome); err != nil {
			return out, fmt.Errorf("encode outcome: %w", err)
		}
	}
	return out, nil
}

func scanCase(row pgx.Row) (domain.CaseRecord, error) {
	var (
		rec                 domain.CaseRecord
		status, priority    string
		raw                 caseJSON
		assignedAt, resolve *time.Time
		closed              *time.Time
	)
	err := row.Scan(
		&rec.ID, &rec.CaseNumber, &rec.ClientID, &rec.ClientEmail, &rec.Title, &rec.Description, &rec.Category,
		&status, &priority, &raw.analysis, &raw.timeline, &raw.recommendations,
		&rec.AdvocateID, &assignedAt, &resolve, &closed, &raw.outcome,
		&rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return domain.CaseRecord{}, err
	}
	rec.Status = domain.Status(status)
	rec.Priority = domain.Priority(priority)
	rec.AssignedAt, rec.ResolvedAt, rec.ClosedDate = assignedAt, resolve, closed

	if len(raw.analysis) > 0 {
		rec.AIAnalysis = &domain.AIAnalysis{}
		if err := json.Unmarshal(raw.analysis, rec.AIAnalysis); err != nil {
			return domain.CaseRecord{}, fmt.Errorf("decode analysis: %w", err)
		}
	}
	if err := json.Unmarshal(raw.timeline, &rec.Timeline); err != nil {
		return domain.CaseRecord{}, fmt.Errorf("decode timeline: %w", err)
	}
	rec.RecommendedAdvocates = []domain.MatchResult{}
	if len(raw.recommendations) > 0 {
		if err := json.Unmarshal(raw.recommendations, &rec.RecommendedAdvocates); err != nil {
			return domain.CaseRecord{}, fmt.Errorf("decode recommendations: %w", err)
		}
	}
	if len(raw.outcome) > 0 {
		rec.Outcome = &domain.Outcome{}
		if err := json.Unmarshal(raw.outcome, rec.Outcome); err != nil {
			return domain.CaseRecord{}, fmt.Errorf("decode outcome: %w", err)
		}
	}
	return rec, nil
}

func (r *Postgres) Create(ctx context.Context, rec domain.CaseRecord) (domain.CaseRecord, error) {
	raw, err := encodeCase(rec)
	if err != nil {
		return domain.CaseRecord{}, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO cases (`+caseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 1, $18, $19)
		RETURNING `+caseColumns,
		rec.ID, rec.CaseNumber, rec.ClientID, rec.ClientEmail, rec.Title, rec.Description, rec.Category,
		string(rec.Status), string(rec.Priority), raw.analysis, raw.timeline, raw.recommendations,
		rec.AdvocateID, rec.AssignedAt, rec.ResolvedAt, rec.ClosedDate, raw.outcome,
		rec.CreatedAt, rec.UpdatedAt,
	)
	return scanCase(row)
}

func (r *Postgres) Get(ctx context.Context, id uuid.UUID) (domain.CaseRecord, error) {
	rec, err := scanCase(r.pool.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CaseRecord{}, ErrNotFound
	}
	return rec, err
}

func (r *Postgres) Update(ctx context.Context, rec domain.CaseRecord, expectedVersion int) (domain.CaseRecord, error) {
	raw, err := encodeCase(rec)
	if err != nil {
		return domain.CaseRecord{}, err
	}

	// case_number, client_id and created_at are never rewritten.
	row := r.pool.QueryRow(ctx, `
		UPDATE cases SET
			title = $3,
			description = $4,
			category = $5,
			status = $6,
			priority = $7,
			ai_analysis = $8,
			timeline = $9,
			recommended_advocates = $10,
			advocate_id = $11,
			assigned_at = $12,
			resolved_at = $13,
			closed_date = $14,
			outcome = $15,
			updated_at = $16,
			version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING `+caseColumns,
		rec.ID, expectedVersion, rec.Title, rec.Description, rec.Category,
		string(rec.Status), string(rec.Priority), raw.analysis, raw.timeline, raw.recommendations,
		rec.AdvocateID, rec.AssignedAt, rec.ResolvedAt, rec.ClosedDate, raw.outcome, rec.UpdatedAt,
	)
	updated, err := scanCase(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cases WHERE id = $1)`, rec.ID).Scan(&exists); err != nil {
			return domain.CaseRecord{}, err
		}
		if exists {
			return domain.CaseRecord{}, ErrVersionConflict
		}
		return domain.CaseRecord{}, ErrNotFound
	}
	return updated, err
}

func (r *Postgres) ListByClient(ctx context.Context, clientID uuid.UUID, params ListParams) ([]domain.CaseRecord, error) {
	params = params.normalized()
	var status *string
	if params.Status != "" {
		s := string(params.Status)
		status = &s
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+caseColumns+`
		FROM cases
		WHERE client_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC, id ASC
		LIMIT $3 OFFSET $4
	`, clientID, status, params.Limit, params.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.CaseRecord, 0)
	for rows.Next() {
		rec, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (r *Postgres) NextCaseSequence(ctx context.Context, year int) (int, error) {
	var seq int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO case_number_sequences (year, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_seq = case_number_sequences.last_seq + 1
		RETURNING last_seq
	`, year).Scan(&seq)
	return seq, err
}

const advocateColumns = `
	id, name, email, specializations, years_of_experience, success_rate,
	rating, accepting_new_cases, verification_status`

func scanAdvocate(row pgx.Row) (domain.AdvocateCandidate, error) {
	var a domain.AdvocateCandidate
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Specializations, &a.YearsOfExperience, &a.SuccessRate,
		&a.Rating, &a.AcceptingNewCases, &a.VerificationStatus)
	return a, err
}

func (r *Postgres) ListEligible(ctx context.Context) ([]domain.AdvocateCandidate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+advocateColumns+`
		FROM advocates
		WHERE accepting_new_cases AND verification_status = $1
		ORDER BY rating DESC, success_rate DESC, years_of_experience DESC, id ASC
	`, domain.VerificationVerified)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.AdvocateCandidate, 0)
	for rows.Next() {
		a, err := scanAdvocate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (r *Postgres) GetByID(ctx context.Context, id uuid.UUID) (domain.AdvocateCandidate, error) {
	a, err := scanAdvocate(r.pool.QueryRow(ctx, `SELECT `+advocateColumns+` FROM advocates WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AdvocateCandidate{}, ErrAdvocateNotFound
	}
	return a, err
}

func (r *Postgres) InsertAICall(ctx context.Context, caseID uuid.UUID, rec ai.CallRecord) error {
	createdAt := rec.StartedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ai_call_logs (id, case_id, operation, status, provenance, input, output, latency_ms, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, uuid.New(), caseID, rec.Operation, string(rec.Status), provenanceOf(rec), rec.Input, rec.Output,
		rec.Latency.Milliseconds(), rec.Error, createdAt)
	return err
}

// DeleteAICallsBefore prunes call logs older than before.
func (r *Postgres) DeleteAICallsBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ai_call_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

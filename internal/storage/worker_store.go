package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/events"
)

// IsProcessed implements WorkerStore.
func (s *PostgresStore) IsProcessed(ctx context.Context, eventID uuid.UUID) (bool, error) {
	const query = `SELECT 1 FROM processed_events WHERE event_id = $1`

	var exists int

	err := s.conn.QueryRowContext(ctx, query, eventID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, classify(err)
	}

	return true, nil
}

// InsertProcessedIfAbsent implements WorkerStore. A unique constraint on
// event_id makes the insert the race's single winner: whichever worker
// instance's INSERT lands first claims terminal responsibility.
func (s *PostgresStore) InsertProcessedIfAbsent(
	ctx context.Context,
	eventID uuid.UUID,
	status events.ProcessedStatus,
) (bool, error) {
	const query = `
		INSERT INTO processed_events (event_id, processed_at, status)
		VALUES ($1, NOW(), $2)
		ON CONFLICT (event_id) DO NOTHING
	`

	res, err := s.conn.ExecContext(ctx, query, eventID, string(status))
	if err != nil {
		return false, classify(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	return n == 1, nil
}

// AppendScoreAndMarkProcessed implements WorkerStore's co-atomic write: the
// processed marker and the score insert share one transaction, so a crash
// between them can never leave an orphaned score with no processed marker,
// or vice versa.
func (s *PostgresStore) AppendScoreAndMarkProcessed(
	ctx context.Context,
	score *events.RiskScore,
	eventID uuid.UUID,
) (bool, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: begin transaction: %w", ErrTransient, err)
	}

	defer func() {
		_ = tx.Rollback() // no-op once committed
	}()

	const markQuery = `
		INSERT INTO processed_events (event_id, processed_at, status)
		VALUES ($1, NOW(), $2)
		ON CONFLICT (event_id) DO NOTHING
	`

	res, err := tx.ExecContext(ctx, markQuery, eventID, string(events.StatusSuccess))
	if err != nil {
		return false, classify(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	if n != 1 {
		// Lost the race: another worker already claimed this event. Commit
		// the empty transaction (nothing to roll back) and report the loss.
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("%w: %w", ErrStoreFailed, err)
		}

		return false, nil
	}

	topFeaturesJSON, err := json.Marshal(score.TopFeatures)
	if err != nil {
		return false, fmt.Errorf("%w: marshal top_features: %w", ErrFatal, err)
	}

	const scoreQuery = `
		INSERT INTO risk_scores (user_id, score, band, computed_at, top_features, model_version)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	if err := tx.QueryRowContext(ctx, scoreQuery,
		score.UserID, score.Score, string(score.Band), score.ComputedAt.UTC(),
		topFeaturesJSON, score.ModelVersion,
	).Scan(&score.ID); err != nil {
		return false, classify(err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	return true, nil
}

// AppendDLQ implements WorkerStore.
func (s *PostgresStore) AppendDLQ(ctx context.Context, entry *events.DLQEntry) error {
	const query = `
		INSERT INTO dlq_events (event_id, raw_payload, failure_reason, created_at, retry_count)
		VALUES ($1, $2, $3, NOW(), $4)
		RETURNING id
	`

	var eventID any
	if entry.EventID != nil {
		eventID = *entry.EventID
	}

	if err := s.conn.QueryRowContext(ctx, query,
		eventID, entry.RawPayload, entry.FailureReason, entry.RetryCount,
	).Scan(&entry.ID); err != nil {
		return classify(err)
	}

	return nil
}

// InsertModelVersionIfAbsent implements WorkerStore.
func (s *PostgresStore) InsertModelVersionIfAbsent(ctx context.Context, mv *events.ModelVersion) error {
	const query = `
		INSERT INTO model_versions (model_version, created_at, params_hash, metadata_json)
		VALUES ($1, NOW(), $2, $3)
		ON CONFLICT (model_version) DO NOTHING
	`

	if _, err := s.conn.ExecContext(ctx, query, mv.ModelVersion, mv.ParamsHash, mv.MetadataJSON); err != nil {
		return classify(err)
	}

	return nil
}

// LatestScore implements QueryStore.
func (s *PostgresStore) LatestScore(ctx context.Context, userID string) (*events.RiskScore, error) {
	const query = `
		SELECT id, user_id, score, band, computed_at, top_features, model_version
		FROM risk_scores WHERE user_id = $1
		ORDER BY computed_at DESC, id DESC
		LIMIT 1
	`

	return scanScore(s.conn.QueryRowContext(ctx, query, userID))
}

// ScoreHistory implements QueryStore.
func (s *PostgresStore) ScoreHistory(ctx context.Context, userID string, limit int) ([]*events.RiskScore, error) {
	const query = `
		SELECT id, user_id, score, band, computed_at, top_features, model_version
		FROM risk_scores WHERE user_id = $1
		ORDER BY computed_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.conn.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, classify(err)
	}

	defer rows.Close()

	var out []*events.RiskScore

	for rows.Next() {
		score, err := scanScoreRows(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, score)
	}

	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	return out, nil
}

// DLQList implements QueryStore.
func (s *PostgresStore) DLQList(ctx context.Context, limit, offset int) ([]*events.DLQEntry, error) {
	const query = `
		SELECT id, event_id, raw_payload, failure_reason, created_at, retry_count
		FROM dlq_events
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.conn.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, classify(err)
	}

	defer rows.Close()

	var out []*events.DLQEntry

	for rows.Next() {
		entry, err := scanDLQRows(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	return out, nil
}

// DLQGet implements QueryStore.
func (s *PostgresStore) DLQGet(ctx context.Context, id int64) (*events.DLQEntry, error) {
	const query = `
		SELECT id, event_id, raw_payload, failure_reason, created_at, retry_count
		FROM dlq_events WHERE id = $1
	`

	var (
		entry   events.DLQEntry
		eventID uuid.NullUUID
	)

	err := s.conn.QueryRowContext(ctx, query, id).Scan(
		&entry.ID, &eventID, &entry.RawPayload, &entry.FailureReason, &entry.CreatedAt, &entry.RetryCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, classify(err)
	}

	if eventID.Valid {
		entry.EventID = &eventID.UUID
	}

	return &entry, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScore(row rowScanner) (*events.RiskScore, error) {
	score, err := scanScoreRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	return score, err
}

func scanScoreRows(row rowScanner) (*events.RiskScore, error) {
	var (
		score           events.RiskScore
		band            string
		topFeaturesJSON []byte
	)

	err := row.Scan(
		&score.ID, &score.UserID, &score.Score, &band, &score.ComputedAt, &topFeaturesJSON, &score.ModelVersion,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, classify(err)
	}

	score.Band = events.Band(band)

	if len(topFeaturesJSON) > 0 {
		if err := json.Unmarshal(topFeaturesJSON, &score.TopFeatures); err != nil {
			return nil, fmt.Errorf("%w: decode top_features: %w", ErrStoreFailed, err)
		}
	}

	return &score, nil
}

func scanDLQRows(row rowScanner) (*events.DLQEntry, error) {
	var (
		entry   events.DLQEntry
		eventID uuid.NullUUID
	)

	if err := row.Scan(
		&entry.ID, &eventID, &entry.RawPayload, &entry.FailureReason, &entry.CreatedAt, &entry.RetryCount,
	); err != nil {
		return nil, classify(err)
	}

	if eventID.Valid {
		entry.EventID = &eventID.UUID
	}

	return &entry, nil
}

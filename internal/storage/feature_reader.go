package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/events"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/features"
)

var _ features.Reader = (*PostgresStore)(nil)

// TransactionsInWindow implements features.Reader.
func (s *PostgresStore) TransactionsInWindow(
	ctx context.Context, userID string, start, asOf time.Time,
) ([]*events.Event, error) {
	return s.eventsInWindow(ctx, userID, []string{string(events.TypeTransaction)}, start, asOf)
}

// LoginsInWindow implements features.Reader.
func (s *PostgresStore) LoginsInWindow(
	ctx context.Context, userID string, start, asOf time.Time,
) ([]*events.Event, error) {
	return s.eventsInWindow(ctx, userID, []string{string(events.TypeLogin)}, start, asOf)
}

// SignupsAndTransactionsInWindow implements features.Reader.
func (s *PostgresStore) SignupsAndTransactionsInWindow(
	ctx context.Context, userID string, start, asOf time.Time,
) ([]*events.Event, error) {
	return s.eventsInWindow(
		ctx, userID, []string{string(events.TypeSignup), string(events.TypeTransaction)}, start, asOf,
	)
}

func (s *PostgresStore) eventsInWindow(
	ctx context.Context, userID string, eventTypes []string, start, asOf time.Time,
) ([]*events.Event, error) {
	const query = `
		SELECT event_id, user_id, event_type, ts, schema_version,
		       payload, raw_payload_hash, accepted_at, published_at
		FROM events
		WHERE user_id = $1 AND event_type = ANY($2) AND ts >= $3 AND ts <= $4
		ORDER BY ts ASC
	`

	rows, err := s.conn.QueryContext(ctx, query, userID, pq.Array(eventTypes), start.UTC(), asOf.UTC())
	if err != nil {
		return nil, classify(err)
	}

	defer rows.Close()

	var out []*events.Event

	for rows.Next() {
		evt, err := scanEventRows(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, evt)
	}

	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	return out, nil
}

// FirstEventTimestamp implements features.Reader.
func (s *PostgresStore) FirstEventTimestamp(ctx context.Context, userID string) (time.Time, bool, error) {
	const query = `SELECT ts FROM events WHERE user_id = $1 ORDER BY ts ASC LIMIT 1`

	var ts time.Time

	err := s.conn.QueryRowContext(ctx, query, userID).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}

	if err != nil {
		return time.Time{}, false, classify(err)
	}

	return ts, true, nil
}

func scanEventRows(row rowScanner) (*events.Event, error) {
	var (
		evt         events.Event
		eventType   string
		payloadJSON []byte
		publishedAt sql.NullTime
	)

	if err := row.Scan(
		&evt.EventID, &evt.UserID, &eventType, &evt.Timestamp, &evt.SchemaVersion,
		&payloadJSON, &evt.RawPayloadHash, &evt.AcceptedAt, &publishedAt,
	); err != nil {
		return nil, classify(err)
	}

	evt.EventType = events.Type(eventType)
	if publishedAt.Valid {
		t := publishedAt.Time
		evt.PublishedAt = &t
	}

	if err := unmarshalPayload(&evt, payloadJSON); err != nil {
		return nil, err
	}

	return &evt, nil
}

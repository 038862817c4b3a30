package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/events"
)

// Sentinel errors for event/score/DLQ storage operations.
var (
	// ErrStoreFailed wraps a failed storage operation that isn't a
	// not-found or idempotent-duplicate outcome.
	ErrStoreFailed = errors.New("event store operation failed")

	// ErrNotFound is returned when a lookup by primary key finds no row.
	ErrNotFound = errors.New("not found")

	// ErrTransient marks an error the caller should retry: connection loss,
	// serialization conflict, or deadlock. ErrFatal marks one it should
	// not: a constraint violation not covered by an idempotent upsert.
	ErrTransient = errors.New("transient storage error")
	ErrFatal     = errors.New("fatal storage error")
)

// PostgresStore implements EventStore, WorkerStore, and QueryStore over a
// single PostgreSQL connection pool. Compile-time assertions below ensure
// all three interface contracts stay satisfied as either side changes.
type PostgresStore struct {
	conn *Connection
}

var (
	_ EventStore  = (*PostgresStore)(nil)
	_ WorkerStore = (*PostgresStore)(nil)
	_ QueryStore  = (*PostgresStore)(nil)
)

// NewPostgresStore wraps an already-opened, health-checked Connection.
func NewPostgresStore(conn *Connection) (*PostgresStore, error) {
	if conn == nil {
		return nil, errors.New("storage: nil connection")
	}

	return &PostgresStore{conn: conn}, nil
}

// HealthCheck delegates to the underlying connection's health check.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.conn.HealthCheck(ctx)
}

// InsertEventIfAbsent implements EventStore.
func (s *PostgresStore) InsertEventIfAbsent(ctx context.Context, evt *events.Event) (bool, error) {
	payload, err := marshalPayload(evt)
	if err != nil {
		return false, fmt.Errorf("%w: marshal payload: %w", ErrFatal, err)
	}

	const query = `
		INSERT INTO events (
			event_id, user_id, event_type, ts, schema_version,
			payload, raw_payload_hash, accepted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING
	`

	res, err := s.conn.ExecContext(ctx, query,
		evt.EventID, evt.UserID, string(evt.EventType), evt.Timestamp.UTC(), evt.SchemaVersion,
		payload, evt.RawPayloadHash, evt.AcceptedAt.UTC(),
	)
	if err != nil {
		return false, classify(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	return n == 1, nil
}

// MarkPublished implements EventStore.
func (s *PostgresStore) MarkPublished(ctx context.Context, eventID uuid.UUID, publishedAt time.Time) error {
	const query = `
		UPDATE events SET published_at = $2
		WHERE event_id = $1 AND published_at IS NULL
	`

	if _, err := s.conn.ExecContext(ctx, query, eventID, publishedAt.UTC()); err != nil {
		return classify(err)
	}

	return nil
}

// GetEvent implements both EventStore and WorkerStore.
func (s *PostgresStore) GetEvent(ctx context.Context, eventID uuid.UUID) (*events.Event, error) {
	const query = `
		SELECT event_id, user_id, event_type, ts, schema_version,
		       payload, raw_payload_hash, accepted_at, published_at
		FROM events WHERE event_id = $1
	`

	row := s.conn.QueryRowContext(ctx, query, eventID)

	evt, err := scanEventRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	return evt, err
}

func marshalPayload(evt *events.Event) ([]byte, error) {
	switch evt.EventType {
	case events.TypeSignup:
		return json.Marshal(evt.Signup)
	case events.TypeLogin:
		return json.Marshal(evt.Login)
	case events.TypeTransaction:
		return json.Marshal(evt.Transaction)
	default:
		return nil, fmt.Errorf("unknown event type %q", evt.EventType)
	}
}

func unmarshalPayload(evt *events.Event, raw []byte) error {
	switch evt.EventType {
	case events.TypeSignup:
		var p events.SignupPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}

		evt.Signup = &p
	case events.TypeLogin:
		var p events.LoginPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}

		evt.Login = &p
	case events.TypeTransaction:
		var p events.TransactionPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}

		evt.Transaction = &p
	default:
		return fmt.Errorf("unknown event type %q", evt.EventType)
	}

	return nil
}

// classify wraps err as ErrTransient or ErrFatal based on the underlying
// PostgreSQL error class: Class 08 (connection exception) and Class 40
// (serialization failure/deadlock) are retryable, everything else is not.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if isDatabaseConnectionError(err) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && strings.HasPrefix(string(pqErr.Code), "40") {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}

	return fmt.Errorf("%w: %w", ErrFatal, err)
}

// isDatabaseConnectionError checks PostgreSQL Class 08 (connection
// exception) codes and standard database/sql connection errors.
func isDatabaseConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return strings.HasPrefix(string(pqErr.Code), "08")
	}

	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn)
}

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ecomarket/ecobot/internal/db"
)

// Store persists audit events in sqlite.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// Log inserts a new event. If event.ID is empty a UUID is generated, and a
// zero Timestamp is set to the current time.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO return_events (
			id, timestamp, type, channel, conversation_id,
			return_id, order_id, customer_id, code, success, detail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Timestamp.UTC().Format(time.DateTime),
		string(event.Type),
		event.Channel,
		event.ConversationID,
		nullString(event.ReturnID),
		nullString(event.OrderID),
		nullString(event.CustomerID),
		event.Code,
		event.Success,
		event.Detail,
	)
	if err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}
	return nil
}

// GetByID retrieves a single event.
func (s *Store) GetByID(ctx context.Context, id string) (*Event, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	return scanInto(row)
}

// QueryFilter controls which events are returned by Query.
type QueryFilter struct {
	Type           EventType
	Channel        string
	ConversationID string
	ReturnID       string
	OrderID        string
	CustomerID     string
	Since          *time.Time
	Until          *time.Time
	Limit          int
	Offset         int
}

const selectColumns = `SELECT id, timestamp, type, channel, conversation_id,
	return_id, order_id, customer_id, code, success, detail FROM return_events`

// Query returns events matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Channel != "" {
		clauses = append(clauses, "channel = ?")
		args = append(args, filter.Channel)
	}
	if filter.ConversationID != "" {
		clauses = append(clauses, "conversation_id = ?")
		args = append(args, filter.ConversationID)
	}
	if filter.ReturnID != "" {
		clauses = append(clauses, "return_id = ?")
		args = append(args, filter.ReturnID)
	}
	if filter.OrderID != "" {
		clauses = append(clauses, "order_id = ?")
		args = append(args, filter.OrderID)
	}
	if filter.CustomerID != "" {
		clauses = append(clauses, "customer_id = ?")
		args = append(args, filter.CustomerID)
	}
	if filter.Since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, filter.Since.UTC().Format(time.DateTime))
	}
	if filter.Until != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, filter.Until.UTC().Format(time.DateTime))
	}

	query := selectColumns
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		e, err := scanInto(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// DeleteBefore removes all events older than the given time.
// Returns the number of deleted rows.
func (s *Store) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM return_events WHERE timestamp < ?",
		before.UTC().Format(time.DateTime),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting old audit events: %w", err)
	}
	return res.RowsAffected()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner) (*Event, error) {
	var (
		e                             Event
		ts, eventType                 string
		returnID, orderID, customerID sql.NullString
	)

	err := sc.Scan(
		&e.ID, &ts, &eventType, &e.Channel, &e.ConversationID,
		&returnID, &orderID, &customerID, &e.Code, &e.Success, &e.Detail,
	)
	if err != nil {
		return nil, err
	}

	e.Type = EventType(eventType)
	if t, parseErr := time.Parse(time.DateTime, ts); parseErr == nil {
		e.Timestamp = t
	} else if t, parseErr := time.Parse(time.RFC3339, ts); parseErr == nil {
		e.Timestamp = t
	}
	e.ReturnID = returnID.String
	e.OrderID = orderID.String
	e.CustomerID = customerID.String

	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Package audit records every command accepted over the control
// surface (§6) to a durable trail, grounded on cryptofunk's
// internal/audit/audit.go event-log shape, generalized from web-session
// login/order/strategy events to control-plane bot lifecycle events.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/solarb/engine/internal/store"
)

// EventType names one kind of control-surface action.
type EventType string

const (
	EventBotCreated     EventType = "BOT_CREATED"
	EventBotStarted     EventType = "BOT_STARTED"
	EventBotStopped     EventType = "BOT_STOPPED"
	EventAllBotsStarted EventType = "ALL_BOTS_STARTED"
	EventAllBotsStopped EventType = "ALL_BOTS_STOPPED"
	EventBackupCreated  EventType = "BACKUP_CREATED"
	EventForceSave      EventType = "FORCE_SAVE"
)

// Severity is the audit event's log level.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARNING"
	SeverityError Severity = "ERROR"
)

// Event is a single recorded control-surface action.
type Event struct {
	ID         uuid.UUID              `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	EventType  EventType              `json:"event_type"`
	Severity   Severity               `json:"severity"`
	BotID      string                 `json:"bot_id,omitempty"`
	RemoteAddr string                 `json:"remote_addr,omitempty"`
	Resource   string                 `json:"resource,omitempty"`
	Action     string                 `json:"action"`
	Success    bool                   `json:"success"`
	ErrorMsg   string                 `json:"error_message,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Duration   time.Duration          `json:"duration_ms,omitempty"`
}

// Logger records control-surface events to structured logs and, when a
// pool is supplied, to the durable audit_logs table.
type Logger struct {
	pool store.Pool
	log  zerolog.Logger
}

// NewLogger builds a Logger. pool may be nil, in which case events are
// only logged, not persisted — matching how the rest of the engine
// degrades gracefully without a configured store.
func NewLogger(pool store.Pool, log zerolog.Logger) *Logger {
	return &Logger{pool: pool, log: log.With().Str("component", "audit").Logger()}
}

// Log records one event.
func (l *Logger) Log(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	entry := l.log.With().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.EventType)).
		Str("bot_id", event.BotID).
		Str("remote_addr", event.RemoteAddr).
		Str("action", event.Action).
		Bool("success", event.Success).
		Logger()
	if event.ErrorMsg != "" {
		entry = entry.With().Str("error", event.ErrorMsg).Logger()
	}

	switch event.Severity {
	case SeverityError:
		entry.Error().Msg("control event")
	case SeverityWarn:
		entry.Warn().Msg("control event")
	default:
		entry.Info().Msg("control event")
	}

	if l.pool == nil {
		return nil
	}
	return l.persist(ctx, event)
}

func (l *Logger) persist(ctx context.Context, event Event) error {
	var metadataJSON []byte
	if event.Metadata != nil {
		b, err := json.Marshal(event.Metadata)
		if err != nil {
			l.log.Warn().Err(err).Msg("failed to marshal audit event metadata")
		} else {
			metadataJSON = b
		}
	}

	_, err := l.pool.Exec(ctx, `
		INSERT INTO audit_logs (
			id, timestamp, event_type, severity, bot_id, remote_addr,
			resource, action, success, error_message, metadata, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		event.ID, event.Timestamp, event.EventType, event.Severity, event.BotID, event.RemoteAddr,
		event.Resource, event.Action, event.Success, event.ErrorMsg, metadataJSON, event.Duration.Milliseconds(),
	)
	if err != nil {
		l.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to persist audit event")
		return err
	}
	return nil
}

// QueryFilters narrows Query's result set.
type QueryFilters struct {
	EventType EventType
	BotID     string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// Query retrieves past events, newest first. Returns an empty slice
// (not an error) when no store is configured.
func (l *Logger) Query(ctx context.Context, filters QueryFilters) ([]Event, error) {
	if l.pool == nil {
		return nil, nil
	}

	query := `
		SELECT id, timestamp, event_type, severity, bot_id, remote_addr,
		       resource, action, success, error_message, metadata, duration_ms
		FROM audit_logs WHERE 1=1
	`
	var args []interface{}
	if filters.EventType != "" {
		args = append(args, filters.EventType)
		query += argClause("event_type", len(args))
	}
	if filters.BotID != "" {
		args = append(args, filters.BotID)
		query += argClause("bot_id", len(args))
	}
	if !filters.StartTime.IsZero() {
		args = append(args, filters.StartTime)
		query += argClause("timestamp >=", len(args))
	}
	if !filters.EndTime.IsZero() {
		args = append(args, filters.EndTime)
		query += argClause("timestamp <=", len(args))
	}
	query += " ORDER BY timestamp DESC"
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += argClause("LIMIT", len(args))
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var metadataJSON []byte
		var durationMs int64
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.EventType, &e.Severity, &e.BotID, &e.RemoteAddr,
			&e.Resource, &e.Action, &e.Success, &e.ErrorMsg, &metadataJSON, &durationMs); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				l.log.Warn().Err(err).Msg("failed to unmarshal audit event metadata")
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func argClause(col string, pos int) string {
	if col == "LIMIT" {
		return " LIMIT $" + itoa(pos)
	}
	if col == "timestamp >=" || col == "timestamp <=" {
		return " AND " + col + " $" + itoa(pos)
	}
	return " AND " + col + " = $" + itoa(pos)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

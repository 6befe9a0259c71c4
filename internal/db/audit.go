package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/stupiduntilnot/toolhost/internal/tool"
)

// AuditLog records every tool invocation into the tool_events table.
// Recording failures are logged, never surfaced to the invocation.
type AuditLog struct {
	db  *sql.DB
	log *logrus.Entry
}

func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{
		db:  db,
		log: logrus.WithField("component", "audit"),
	}
}

func (a *AuditLog) CallStarted(call tool.Call) {
	payload := map[string]any{"arguments": json.RawMessage(call.Arguments)}
	if len(call.Arguments) == 0 {
		payload = nil
	}
	a.record(call.ID, call.Name, EventToolCallStarted, payload)
}

func (a *AuditLog) CallFinished(res tool.Result) {
	eventType := EventToolCallCompleted
	var payload map[string]any
	if !res.OK() {
		eventType = EventToolCallFailed
		payload = map[string]any{"error": res.ErrorText}
		if res.ErrorDetail != nil {
			payload["code"] = res.ErrorDetail.Code
			payload["retryable"] = res.ErrorDetail.Retryable
		}
	} else if res.Value != nil {
		payload = map[string]any{"title": res.Value.Title}
	}
	a.record(res.CallID, res.Name, eventType, payload)
}

func (a *AuditLog) record(callID, toolName, eventType string, payload map[string]any) {
	var payloadText sql.NullString
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			payloadText = sql.NullString{String: string(b), Valid: true}
		}
	}
	_, err := a.db.Exec(
		`INSERT INTO tool_events (call_id, tool, event_type, payload) VALUES (?, ?, ?, ?)`,
		callID, toolName, eventType, payloadText,
	)
	if err != nil {
		a.log.WithError(err).Warn("failed to record tool event")
	}
}

// Entry is one row of the audit log.
type Entry struct {
	ID        int64
	Timestamp int64
	CallID    string
	Tool      string
	EventType string
	Payload   sql.NullString
}

// Recent returns the newest audit entries, newest first.
func (a *AuditLog) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.Query(
		`SELECT id, timestamp, call_id, tool, event_type, payload
		 FROM tool_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.CallID, &e.Tool, &e.EventType, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan tool event: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

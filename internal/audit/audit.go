// Package audit appends a sanitized record of every mutating ledger action.
// Writes are best-effort: the primary workflow never fails because the audit
// trail is unavailable, but every dropped record is counted and logged.
package audit

import (
	"context"
	"time"

	"grootboek.dev/internal/ids"
	"grootboek.dev/internal/obs"
)

// Actor is the explicit request-scoped identity passed to every mutating
// call. No ambient context values: the core stays testable without a
// framework.
type Actor struct {
	UserID    string `json:"user_id"`
	TenantID  string `json:"tenant_id"`
	IP        string `json:"ip,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Event is one audit record.
type Event struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Action     string         `json:"action"`
	Actor      Actor          `json:"actor"`
	OldValue   map[string]any `json:"old_value,omitempty"`
	NewValue   map[string]any `json:"new_value,omitempty"`
	At         time.Time      `json:"at"`
}

// Sink persists audit events.
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

// Record sanitizes and writes an event through the sink, swallowing any
// failure. Availability of the primary workflow outranks audit
// completeness; the loss itself stays observable via metric and error log.
func Record(ctx context.Context, sink Sink, ev Event) {
	if sink == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = ids.NewRecord()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	ev.OldValue = SanitizeMap(ev.OldValue)
	ev.NewValue = SanitizeMap(ev.NewValue)

	if err := sink.Record(ctx, ev); err != nil {
		obs.CountAuditFailure()
		obs.LogError("audit write failed", map[string]any{
			"action":      ev.Action,
			"entity_type": ev.EntityType,
			"entity_id":   ev.EntityID,
			"tenant_id":   ev.TenantID,
			"err":         err.Error(),
		})
	}
}

// LogSink writes audit events as JSON lines through the shared logger.
type LogSink struct{}

func (LogSink) Record(ctx context.Context, ev Event) error {
	entry := map[string]any{
		"ts":          ev.At.Format(time.RFC3339Nano),
		"type":        "audit",
		"id":          ev.ID,
		"tenant_id":   ev.TenantID,
		"entity_type": ev.EntityType,
		"entity_id":   ev.EntityID,
		"action":      ev.Action,
		"actor":       ev.Actor,
	}
	if len(ev.OldValue) > 0 {
		entry["old_value"] = ev.OldValue
	}
	if len(ev.NewValue) > 0 {
		entry["new_value"] = ev.NewValue
	}
	obs.LogEvent(entry)
	return nil
}

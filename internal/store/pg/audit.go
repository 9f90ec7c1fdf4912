package pg

import (
	"context"
	"database/sql"
	"encoding/json"

	"grootboek.dev/internal/audit"
)

// AuditSink persists audit events in the audit_log table. Writes happen
// after the primary transaction committed; audit.Record swallows and counts
// any failure here, so an unavailable audit table never rolls back a posting.
type AuditSink struct {
	db *sql.DB
}

func NewAuditSink(db *sql.DB) *AuditSink { return &AuditSink{db: db} }

var _ audit.Sink = (*AuditSink)(nil)

func (s *AuditSink) Record(ctx context.Context, ev audit.Event) error {
	actor, err := json.Marshal(ev.Actor)
	if err != nil {
		return err
	}
	oldValue, err := marshalNullable(ev.OldValue)
	if err != nil {
		return err
	}
	newValue, err := marshalNullable(ev.NewValue)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into audit_log(id, tenant_id, entity_type, entity_id, action, actor, old_value, new_value, at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, ev.ID, ev.TenantID, ev.EntityType, ev.EntityID, ev.Action, actor, oldValue, newValue, ev.At)
	return err
}

func marshalNullable(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

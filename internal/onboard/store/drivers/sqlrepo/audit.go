package sqlrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
)

type auditRepo struct {
	q *queries
}

func (r *auditRepo) AppendAudit(ctx context.Context, e domain.AuditEntry) error {
	details := "{}"
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		details = string(raw)
	}

	ts := now()
	if !e.CreatedAt.IsZero() {
		ts = e.CreatedAt.UTC()
	}

	_, err := r.q.exec(ctx, `
		INSERT INTO audit_log (id, actor, action, resource_type, resource_id, details, ip, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Actor, e.Action, e.ResourceType, e.ResourceID, details, e.IP, e.UserAgent, ts,
	)
	return err
}

func (r *auditRepo) ListAuditByResource(
	ctx context.Context,
	resourceType, resourceID string,
	limit int,
) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, actor, action, resource_type, resource_id, details, ip, user_agent, created_at
		FROM audit_log WHERE resource_id = ?`
	args := []any{resourceID}
	if resourceType != "" {
		query += ` AND resource_type = ?`
		args = append(args, resourceType)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var details string
		if err := rows.Scan(
			&e.ID, &e.Actor, &e.Action, &e.ResourceType, &e.ResourceID,
			&details, &e.IP, &e.UserAgent, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				return nil, fmt.Errorf("decode audit details %s: %w", e.ID, err)
			}
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

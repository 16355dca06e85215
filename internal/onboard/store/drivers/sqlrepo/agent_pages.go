package sqlrepo

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
)

type agentPagesRepo struct {
	q *queries
}

func (r *agentPagesRepo) CreateAgentPage(ctx context.Context, p domain.AgentPage) error {
	ts := now()
	if !p.CreatedAt.IsZero() {
		ts = p.CreatedAt.UTC()
	}

	_, err := r.q.exec(ctx, `
		INSERT INTO agent_pages (id, user_id, slug, crm_contact_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Slug, mapOptionalString(p.CRMContactID), ts,
	)
	return err
}

func (r *agentPagesRepo) GetAgentPageByUserID(ctx context.Context, userID string) (domain.AgentPage, error) {
	var p domain.AgentPage
	var contactID sql.NullString

	err := r.q.queryRow(ctx, `
		SELECT id, user_id, slug, crm_contact_id, created_at
		FROM agent_pages WHERE user_id = ?`,
		userID,
	).Scan(&p.ID, &p.UserID, &p.Slug, &contactID, &p.CreatedAt)
	if err != nil {
		return domain.AgentPage{}, mapNotFound(err)
	}

	p.CRMContactID = mapNullStringPtr(contactID)
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func (r *agentPagesRepo) DeleteAgentPagesForUser(ctx context.Context, userID string) error {
	_, err := r.q.exec(ctx, `DELETE FROM agent_pages WHERE user_id = ?`, userID)
	return err
}

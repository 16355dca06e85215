package sqlrepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
)

const invitationColumns = `id, user_id, email, token_hash, status, expires_at,
	email_message_id, email_provider, email_attempts, email_last_error, email_sent_at,
	accepted_at, cancelled_at, created_at, updated_at`

type invitationsRepo struct {
	q *queries
}

func (r *invitationsRepo) CreateInvitation(ctx context.Context, inv domain.Invitation) error {
	ts := now()
	if !inv.CreatedAt.IsZero() {
		ts = inv.CreatedAt.UTC()
	}

	_, err := r.q.exec(ctx, `
		INSERT INTO user_invitations (`+invitationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		inv.UserID,
		inv.Email,
		inv.TokenHash,
		string(inv.Status),
		inv.ExpiresAt.UTC(),
		mapOptionalString(inv.EmailMessageID),
		mapOptionalString(inv.EmailProvider),
		inv.EmailAttempts,
		mapOptionalString(inv.EmailLastError),
		mapOptionalTime(inv.EmailSentAt),
		mapOptionalTime(inv.AcceptedAt),
		mapOptionalTime(inv.CancelledAt),
		ts,
		ts,
	)
	return err
}

func (r *invitationsRepo) GetInvitationByID(ctx context.Context, id string) (domain.Invitation, error) {
	return r.getOne(ctx, `SELECT `+invitationColumns+` FROM user_invitations WHERE id = ?`, id)
}

func (r *invitationsRepo) GetInvitationByTokenHash(ctx context.Context, hash string) (domain.Invitation, error) {
	return r.getOne(ctx, `SELECT `+invitationColumns+` FROM user_invitations WHERE token_hash = ?`, hash)
}

func (r *invitationsRepo) GetOpenInvitationForUser(ctx context.Context, userID string) (domain.Invitation, error) {
	args := append([]any{userID}, statusArgs(domain.OpenInvitationStatuses)...)
	return r.getOne(ctx, `
		SELECT `+invitationColumns+` FROM user_invitations
		WHERE user_id = ? AND status IN (`+placeholders(len(domain.OpenInvitationStatuses))+`)`,
		args...,
	)
}

func (r *invitationsRepo) ListInvitationsForUser(ctx context.Context, userID string) ([]domain.Invitation, error) {
	rows, err := r.q.query(ctx, `
		SELECT `+invitationColumns+` FROM user_invitations
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *invitationsRepo) RecordEmailOutcome(
	ctx context.Context,
	id string,
	from []domain.InvitationStatus,
	o domain.EmailOutcome,
) error {
	ts := now()
	var query string
	var args []any

	if o.Success {
		sentAt := o.Timestamp.UTC()
		if o.Timestamp.IsZero() {
			sentAt = ts
		}
		query = `
			UPDATE user_invitations
			SET status = ?, email_message_id = ?, email_provider = ?,
				email_attempts = email_attempts + ?, email_last_error = NULL,
				email_sent_at = ?, updated_at = ?
			WHERE id = ? AND status IN (` + placeholders(len(from)) + `)`
		args = []any{
			string(domain.InvitationSent),
			mapStringNull(o.MessageID),
			mapStringNull(o.Provider),
			o.Attempts,
			sentAt,
			ts,
			id,
		}
	} else {
		query = `
			UPDATE user_invitations
			SET status = ?, email_provider = ?,
				email_attempts = email_attempts + ?, email_last_error = ?,
				updated_at = ?
			WHERE id = ? AND status IN (` + placeholders(len(from)) + `)`
		args = []any{
			string(domain.InvitationFailed),
			mapStringNull(o.Provider),
			o.Attempts,
			mapStringNull(o.Error),
			ts,
			id,
		}
	}

	args = append(args, statusArgs(from)...)
	return r.q.execConditional(ctx, "user_invitations", id, query, args...)
}

func (r *invitationsRepo) TransitionInvitation(
	ctx context.Context,
	id string,
	from []domain.InvitationStatus,
	to domain.InvitationStatus,
	at time.Time,
) error {
	set := "status = ?, updated_at = ?"
	args := []any{string(to), now()}

	switch to {
	case domain.InvitationAccepted:
		set += ", accepted_at = ?"
		args = append(args, at.UTC())
	case domain.InvitationCancelled:
		set += ", cancelled_at = ?"
		args = append(args, at.UTC())
	}

	args = append(args, id)
	args = append(args, statusArgs(from)...)

	return r.q.execConditional(ctx, "user_invitations", id, `
		UPDATE user_invitations SET `+set+`
		WHERE id = ? AND status IN (`+placeholders(len(from))+`)`,
		args...,
	)
}

func (r *invitationsRepo) RotateToken(ctx context.Context, id, newHash string) error {
	args := []any{newHash, now(), id}
	args = append(args, statusArgs(domain.OpenInvitationStatuses)...)

	return r.q.execConditional(ctx, "user_invitations", id, `
		UPDATE user_invitations SET token_hash = ?, updated_at = ?
		WHERE id = ? AND status IN (`+placeholders(len(domain.OpenInvitationStatuses))+`)`,
		args...,
	)
}

func (r *invitationsRepo) DeleteInvitationsForUser(ctx context.Context, userID string) error {
	_, err := r.q.exec(ctx, `DELETE FROM user_invitations WHERE user_id = ?`, userID)
	return err
}

func (r *invitationsRepo) getOne(ctx context.Context, query string, args ...any) (domain.Invitation, error) {
	inv, err := scanInvitation(r.q.queryRow(ctx, query, args...))
	if err != nil {
		return domain.Invitation{}, mapNotFound(err)
	}
	return inv, nil
}

func scanInvitation(row scanner) (domain.Invitation, error) {
	var inv domain.Invitation
	var status string
	var messageID, provider, lastError sql.NullString
	var sentAt, acceptedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&inv.ID,
		&inv.UserID,
		&inv.Email,
		&inv.TokenHash,
		&status,
		&inv.ExpiresAt,
		&messageID,
		&provider,
		&inv.EmailAttempts,
		&lastError,
		&sentAt,
		&acceptedAt,
		&cancelledAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return domain.Invitation{}, err
	}

	inv.Status = domain.InvitationStatus(status)
	inv.ExpiresAt = inv.ExpiresAt.UTC()
	inv.EmailMessageID = mapNullStringPtr(messageID)
	inv.EmailProvider = mapNullStringPtr(provider)
	inv.EmailLastError = mapNullStringPtr(lastError)
	inv.EmailSentAt = mapNullTimePtr(sentAt)
	inv.AcceptedAt = mapNullTimePtr(acceptedAt)
	inv.CancelledAt = mapNullTimePtr(cancelledAt)
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.UpdatedAt = inv.UpdatedAt.UTC()
	return inv, nil
}

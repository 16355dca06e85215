package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/aussiebroadwan/onboard/pkg/slogx"
)

type AcceptRequest struct {
	Token    string
	FullName string
	Username string
	Password string
}

// AcceptInvitation redeems an invitation token, activating the account.
func (o *Orchestrator) AcceptInvitation(ctx context.Context, req AcceptRequest) (domain.User, error) {
	log := slogx.FromContext(ctx)

	// 1. Cheap checks before the expensive hash
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if !usernamePattern.MatchString(username) {
		return domain.User{}, ErrInvalidUsername
	}
	if utf8.RuneCountInString(req.Password) < MinPasswordLength {
		return domain.User{}, ErrWeakPassword
	}

	// 2. Reject unknown, expired and used tokens without hashing
	inv, err := o.Invitations.Lookup(ctx, req.Token)
	if err != nil {
		return domain.User{}, err
	}

	// 3. Hash
	hash, err := o.Hasher.Hash(req.Password)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return domain.User{}, domain.ErrInternal
	}

	// 4. Flip invitation then user
	u, err := o.Invitations.Accept(ctx, req.Token, Activation{
		Username:     username,
		FullName:     strings.Join(strings.Fields(req.FullName), " "),
		PasswordHash: hash,
	})
	if err != nil {
		return domain.User{}, err
	}

	ctx = context.WithoutCancel(ctx)
	o.Audit.Record(ctx, domain.AuditEntry{
		Action:       ActionInvitationAccept,
		ResourceType: domain.ResourceInvitation,
		ResourceID:   inv.ID,
		Details:      map[string]any{"user_id": u.ID},
	})
	o.Audit.Record(ctx, domain.AuditEntry{
		Action:       ActionUserActivated,
		ResourceType: domain.ResourceUser,
		ResourceID:   u.ID,
		Details:      map[string]any{"username": username},
	})

	if u.CRMContactID != nil {
		o.addNote(ctx, *u.CRMContactID, "Account activated as "+username+".")
	}
	return u, nil
}

// ResendInvitation issues a fresh token for an unsent or failed invitation
// and emails it again.
func (o *Orchestrator) ResendInvitation(ctx context.Context, id string) (domain.Invitation, EmailStatus, error) {
	inv, token, err := o.Invitations.PrepareResend(ctx, id)
	if err != nil {
		return domain.Invitation{}, EmailStatus{}, err
	}

	u, err := o.Invitations.GetUser(ctx, inv.UserID)
	if err != nil {
		return domain.Invitation{}, EmailStatus{}, err
	}

	// The old token is already dead, so the new one has to be recorded
	ctx = context.WithoutCancel(ctx)
	o.Audit.Record(ctx, domain.AuditEntry{
		Action:       ActionInvitationResent,
		ResourceType: domain.ResourceInvitation,
		ResourceID:   inv.ID,
		Details:      map[string]any{"previous_attempts": inv.EmailAttempts},
	})

	inv, status := o.sendInvitation(ctx, u, inv, token)
	return inv, status, nil
}

func (o *Orchestrator) CancelInvitation(ctx context.Context, id string) (domain.Invitation, error) {
	inv, err := o.Invitations.Cancel(ctx, id)
	if err != nil {
		return domain.Invitation{}, err
	}

	o.Audit.Record(ctx, domain.AuditEntry{
		Action:       ActionInvitationCancel,
		ResourceType: domain.ResourceInvitation,
		ResourceID:   inv.ID,
		Details:      map[string]any{"user_id": inv.UserID},
	})
	return inv, nil
}

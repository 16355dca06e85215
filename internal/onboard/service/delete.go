package service

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/aussiebroadwan/onboard/internal/onboard/crm"
	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/aussiebroadwan/onboard/pkg/slogx"
)

// ImageStore holds user profile images outside the database.
type ImageStore interface {
	// DeleteUserImages removes every object belonging to userID, including
	// key when it is set, and reports how many were removed.
	DeleteUserImages(ctx context.Context, userID, key string) (int, error)
}

const (
	CleanupOK      = "ok"
	CleanupFailed  = "failed"
	CleanupSkipped = "skipped"
)

// CleanupStatus reports one post-commit cleanup step.
type CleanupStatus struct {
	Status string
	Error  string
}

type DeleteResult struct {
	UserID       string
	Email        string
	ProfileImage CleanupStatus
	CRMContact   CleanupStatus
}

// DeleteUser removes the user and its dependents, then cleans up the
// profile image store and the CRM contact. Cleanup failures are reported in
// the result; the deletion stands regardless.
func (o *Orchestrator) DeleteUser(ctx context.Context, id string) (DeleteResult, error) {
	u, err := o.Invitations.DeleteUserCascade(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}

	ctx = context.WithoutCancel(ctx)
	o.Audit.Record(ctx, domain.AuditEntry{
		Action:       ActionUserDeleted,
		ResourceType: domain.ResourceUser,
		ResourceID:   u.ID,
		Details:      map[string]any{"email": u.Email},
	})

	res := DeleteResult{UserID: u.ID, Email: u.Email}

	cctx, cancel := context.WithTimeout(ctx, durationOr(o.CleanupTimeout, defaultCleanupTimeout))
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		res.ProfileImage = o.cleanupImages(cctx, u)
		return nil
	})
	g.Go(func() error {
		res.CRMContact = o.cleanupContact(cctx, u)
		return nil
	})
	_ = g.Wait()

	slogx.FromContext(ctx).Info("user deleted",
		slog.String("user_id", u.ID),
		slog.String("profile_image", res.ProfileImage.Status),
		slog.String("crm_contact", res.CRMContact.Status),
	)
	return res, nil
}

func (o *Orchestrator) cleanupImages(ctx context.Context, u domain.User) CleanupStatus {
	if o.Images == nil {
		return CleanupStatus{Status: CleanupSkipped}
	}

	var key string
	if u.ProfileImageKey != nil {
		key = *u.ProfileImageKey
	}

	n, err := o.Images.DeleteUserImages(ctx, u.ID, key)
	st := CleanupStatus{Status: CleanupOK}
	details := map[string]any{"removed": n}
	if err != nil {
		slogx.FromContext(ctx).Warn("profile image cleanup failed", slog.String("user_id", u.ID), slog.Any("error", err))
		st = CleanupStatus{Status: CleanupFailed, Error: err.Error()}
		details["error"] = err.Error()
	}

	o.Audit.Record(ctx, domain.AuditEntry{
		Action:       ActionCleanupImage,
		ResourceType: domain.ResourceUser,
		ResourceID:   u.ID,
		Details:      details,
	})
	return st
}

func (o *Orchestrator) cleanupContact(ctx context.Context, u domain.User) CleanupStatus {
	if u.CRMContactID == nil {
		return CleanupStatus{Status: CleanupSkipped}
	}

	err := o.CRM.DeleteContact(ctx, *u.CRMContactID)
	if errors.Is(err, crm.ErrDisabled) {
		return CleanupStatus{Status: CleanupSkipped}
	}

	st := CleanupStatus{Status: CleanupOK}
	details := map[string]any{"user_id": u.ID}
	if err != nil {
		slogx.FromContext(ctx).Warn("crm contact cleanup failed", slog.String("user_id", u.ID), slog.Any("error", err))
		st = CleanupStatus{Status: CleanupFailed, Error: err.Error()}
		details["error"] = err.Error()
	}

	o.Audit.Record(ctx, domain.AuditEntry{
		Action:       ActionCRMDelete,
		ResourceType: domain.ResourceContact,
		ResourceID:   *u.CRMContactID,
		Details:      details,
	})
	return st
}

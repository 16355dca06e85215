package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/aussiebroadwan/onboard/internal/onboard/metrics"
	"github.com/aussiebroadwan/onboard/internal/onboard/store"
	"github.com/aussiebroadwan/onboard/pkg/cryptox"
	"github.com/aussiebroadwan/onboard/pkg/idx"
	"github.com/aussiebroadwan/onboard/pkg/slogx"
)

const MinPasswordLength = 10

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{2,31}$`)

// InvitationService owns every write to users and invitations.
type InvitationService struct {
	Store store.Store

	// TTL is how long a new or reissued invitation stays valid. Resends
	// rotate the token but keep the original expiry.
	TTL time.Duration

	// Now is overridable in tests.
	Now func() time.Time
}

func (s *InvitationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *InvitationService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return domain.DefaultInvitationTTL
}

// NewUser is the input to CreateUserWithInvitation.
type NewUser struct {
	Email     string
	FirstName string
	LastName  string
	FullName  string
	Role      domain.Role

	// CRMContactID links the user straight away when the trigger came from the CRM.
	CRMContactID string
}

// Activation is the input to Accept.
type Activation struct {
	Username     string
	FullName     string
	PasswordHash string
}

// CreateUserWithInvitation inserts an invited user and a pending invitation
// and returns the raw token, which is never stored.
//
// Both rows go in one transaction. For stores that cannot do that the user
// row is deleted again if the invitation insert fails, so the caller sees
// either both rows or neither.
func (s *InvitationService) CreateUserWithInvitation(
	ctx context.Context,
	in NewUser,
) (domain.User, domain.Invitation, string, error) {
	log := slogx.FromContext(ctx)

	// 1. Validate and normalize
	u, err := buildUser(in)
	if err != nil {
		return domain.User{}, domain.Invitation{}, "", err
	}

	// 2. Issue the token; only its fingerprint is persisted
	token, err := cryptox.GenerateInvitationToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("failed to generate invitation token", slog.Any("error", err))
		return domain.User{}, domain.Invitation{}, "", errors.Join(domain.ErrInternal, err)
	}

	now := s.now()
	u.CreatedAt = now
	u.UpdatedAt = now

	inv := domain.Invitation{
		ID:        idx.New().String(),
		UserID:    u.ID,
		Email:     u.Email,
		TokenHash: cryptox.FingerprintToken(token),
		Status:    domain.InvitationPending,
		ExpiresAt: now.Add(s.ttl()),
		CreatedAt: now,
		UpdatedAt: now,
	}

	// 3. Insert both rows
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			return err
		}
		return tx.Invitations().CreateInvitation(ctx, inv)
	})
	if errors.Is(err, store.ErrTxUnsupported) {
		err = s.createCompensating(ctx, u, inv)
	}
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			log.Info("invite rejected, email already registered", slog.String("email", u.Email))
			return domain.User{}, domain.Invitation{}, "", ErrEmailTaken
		}
		log.Error("failed to create user with invitation",
			slog.String("email", u.Email),
			slog.Any("error", err),
		)
		return domain.User{}, domain.Invitation{}, "", storeError("create user", err)
	}

	metrics.InvitationTransitions.WithLabelValues(string(domain.InvitationPending)).Inc()
	log.Info("user invited",
		slog.String("user_id", u.ID),
		slog.String("invitation_id", inv.ID),
		slog.Time("expires_at", inv.ExpiresAt),
	)
	return u, inv, token, nil
}

func (s *InvitationService) createCompensating(ctx context.Context, u domain.User, inv domain.Invitation) error {
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		return err
	}

	err := s.Store.Invitations().CreateInvitation(ctx, inv)
	if err == nil {
		return nil
	}

	// Best effort and not retried: re-running the invite is safe, it will
	// hit the email uniqueness check and surface a clean conflict.
	if derr := s.Store.Users().DeleteUser(context.WithoutCancel(ctx), u.ID); derr != nil {
		slogx.FromContext(ctx).Error("compensating user delete failed",
			slog.String("user_id", u.ID),
			slog.Any("error", derr),
		)
	}
	return err
}

// Reissue gives an invited user, whose earlier invitations were cancelled or
// have expired, a new invitation with a fresh token and expiry. An expired
// invitation still stored as open is cancelled first, so the one open
// invitation per user rule holds.
//
// ErrInvitationOpen when the user still has a usable invitation, including
// when a concurrent reissue got there first. ErrEmailTaken when the user is
// no longer invited.
func (s *InvitationService) Reissue(ctx context.Context, userID string) (domain.Invitation, string, error) {
	log := slogx.FromContext(ctx)

	token, err := cryptox.GenerateInvitationToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("failed to generate invitation token", slog.Any("error", err))
		return domain.Invitation{}, "", errors.Join(domain.ErrInternal, err)
	}

	now := s.now()
	var inv domain.Invitation
	err = s.inTx(ctx, func(st store.Store) error {
		u, err := st.Users().GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if u.Status != domain.UserInvited {
			return ErrEmailTaken
		}

		open, err := st.Invitations().GetOpenInvitationForUser(ctx, userID)
		switch {
		case err == nil:
			if !open.IsExpired(now) {
				return ErrInvitationOpen
			}
			if err := st.Invitations().TransitionInvitation(
				ctx, open.ID, domain.OpenInvitationStatuses, domain.InvitationCancelled, now,
			); err != nil {
				if errors.Is(err, store.ErrStale) {
					return ErrInvitationOpen
				}
				return err
			}
			log.Info("expired invitation superseded", slog.String("invitation_id", open.ID))
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		inv = domain.Invitation{
			ID:        idx.New().String(),
			UserID:    u.ID,
			Email:     u.Email,
			TokenHash: cryptox.FingerprintToken(token),
			Status:    domain.InvitationPending,
			ExpiresAt: now.Add(s.ttl()),
			CreatedAt: now,
			UpdatedAt: now,
		}
		err = st.Invitations().CreateInvitation(ctx, inv)
		if errors.Is(err, store.ErrAlreadyExists) {
			return ErrInvitationOpen
		}
		return err
	})
	if err != nil {
		if domain.IsExpected(err) {
			return domain.Invitation{}, "", err
		}
		if errors.Is(err, store.ErrNotFound) {
			return domain.Invitation{}, "", ErrUserNotFound
		}
		log.Error("failed to reissue invitation", slog.String("user_id", userID), slog.Any("error", err))
		return domain.Invitation{}, "", storeError("reissue invitation", err)
	}

	metrics.InvitationTransitions.WithLabelValues(string(domain.InvitationPending)).Inc()
	log.Info("invitation reissued",
		slog.String("user_id", userID),
		slog.String("invitation_id", inv.ID),
		slog.Time("expires_at", inv.ExpiresAt),
	)
	return inv, token, nil
}

// MarkEmailOutcome records a dispatch result against the invitation for
// token: sent on success, failed otherwise. Attempts accumulate. It never
// accepts or cancels.
func (s *InvitationService) MarkEmailOutcome(
	ctx context.Context,
	token string,
	o domain.EmailOutcome,
) (domain.Invitation, error) {
	inv, err := s.byToken(ctx, token)
	if err != nil {
		return domain.Invitation{}, err
	}

	from := []domain.InvitationStatus{domain.InvitationPending, domain.InvitationFailed}
	if err := s.Store.Invitations().RecordEmailOutcome(ctx, inv.ID, from, o); err != nil {
		if errors.Is(err, store.ErrStale) {
			return domain.Invitation{}, ErrInvitationMoved
		}
		return domain.Invitation{}, storeError("record email outcome", err)
	}

	next := domain.InvitationFailed
	if o.Success {
		next = domain.InvitationSent
	}
	metrics.InvitationTransitions.WithLabelValues(string(next)).Inc()

	return s.Get(ctx, inv.ID)
}

// Lookup resolves a raw token without changing anything, applying the same
// checks Accept does.
func (s *InvitationService) Lookup(ctx context.Context, token string) (domain.Invitation, error) {
	inv, err := s.byToken(ctx, token)
	if err != nil {
		return domain.Invitation{}, err
	}
	return inv, checkAcceptable(inv, s.now())
}

// checkAcceptable orders the checks: expiry first, whatever the stored
// status says.
func checkAcceptable(inv domain.Invitation, now time.Time) error {
	if inv.IsExpired(now) {
		return ErrInvitationExpired
	}
	switch inv.Status {
	case domain.InvitationAccepted:
		return ErrInvitationUsed
	case domain.InvitationCancelled:
		return ErrInvitationCancelled
	}
	return nil
}

// Accept redeems token: the invitation becomes accepted and then the user
// becomes active, in one transaction. A second call with the same token
// gets ErrInvitationUsed.
func (s *InvitationService) Accept(ctx context.Context, token string, a Activation) (domain.User, error) {
	log := slogx.FromContext(ctx)

	if !usernamePattern.MatchString(a.Username) {
		return domain.User{}, ErrInvalidUsername
	}

	inv, err := s.Lookup(ctx, token)
	if err != nil {
		return domain.User{}, err
	}

	now := s.now()
	err = s.inTx(ctx, func(st store.Store) error {
		if a.FullName == "" {
			u, err := st.Users().GetUserByID(ctx, inv.UserID)
			if err != nil {
				return err
			}
			a.FullName = u.FullName
		}

		if err := st.Invitations().TransitionInvitation(
			ctx, inv.ID, domain.OpenInvitationStatuses, domain.InvitationAccepted, now,
		); err != nil {
			if errors.Is(err, store.ErrStale) {
				return ErrInvitationUsed
			}
			return err
		}

		err := st.Users().ActivateUser(ctx, inv.UserID, store.Activation{
			Username:     a.Username,
			FullName:     a.FullName,
			PasswordHash: a.PasswordHash,
		})
		switch {
		case errors.Is(err, store.ErrStale):
			return ErrInvitationUsed
		case errors.Is(err, store.ErrAlreadyExists):
			return ErrUsernameTaken
		}
		return err
	})
	if err != nil {
		if domain.IsExpected(err) {
			log.Info("invitation acceptance refused",
				slog.String("invitation_id", inv.ID),
				slog.Any("reason", err),
			)
			return domain.User{}, err
		}
		log.Error("failed to accept invitation", slog.String("invitation_id", inv.ID), slog.Any("error", err))
		return domain.User{}, storeError("accept invitation", err)
	}

	metrics.InvitationTransitions.WithLabelValues(string(domain.InvitationAccepted)).Inc()

	u, err := s.GetUser(ctx, inv.UserID)
	if err != nil {
		return domain.User{}, err
	}
	log.Info("invitation accepted",
		slog.String("invitation_id", inv.ID),
		slog.String("user_id", u.ID),
	)
	return u, nil
}

// Cancel closes an open invitation.
func (s *InvitationService) Cancel(ctx context.Context, id string) (domain.Invitation, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return domain.Invitation{}, err
	}

	if inv.EffectiveStatus(s.now()) == domain.InvitationExpired {
		return domain.Invitation{}, ErrInvitationExpired
	}
	if !inv.Status.CanTransitionTo(domain.InvitationCancelled) {
		return domain.Invitation{}, ErrInvitationClosed
	}

	err = s.Store.Invitations().TransitionInvitation(
		ctx, id, domain.OpenInvitationStatuses, domain.InvitationCancelled, s.now(),
	)
	if err != nil {
		if errors.Is(err, store.ErrStale) {
			return domain.Invitation{}, ErrInvitationMoved
		}
		return domain.Invitation{}, storeError("cancel invitation", err)
	}

	metrics.InvitationTransitions.WithLabelValues(string(domain.InvitationCancelled)).Inc()
	return s.Get(ctx, id)
}

// PrepareResend validates that invitation id may be emailed again and
// rotates its token, so the previous link stops working. It returns the new
// raw token.
func (s *InvitationService) PrepareResend(ctx context.Context, id string) (domain.Invitation, string, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return domain.Invitation{}, "", err
	}

	if inv.IsExpired(s.now()) && inv.Status.IsOpen() {
		return domain.Invitation{}, "", ErrInvitationExpired
	}
	if inv.Status != domain.InvitationPending && inv.Status != domain.InvitationFailed {
		return domain.Invitation{}, "", ErrInvitationClosed
	}

	token, err := cryptox.GenerateInvitationToken(cryptox.TokenSize256)
	if err != nil {
		return domain.Invitation{}, "", errors.Join(domain.ErrInternal, err)
	}
	hash := cryptox.FingerprintToken(token)

	if err := s.Store.Invitations().RotateToken(ctx, id, hash); err != nil {
		if errors.Is(err, store.ErrStale) {
			return domain.Invitation{}, "", ErrInvitationMoved
		}
		return domain.Invitation{}, "", storeError("rotate token", err)
	}

	inv.TokenHash = hash
	return inv, token, nil
}

func (s *InvitationService) Get(ctx context.Context, id string) (domain.Invitation, error) {
	inv, err := s.Store.Invitations().GetInvitationByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Invitation{}, ErrInvitationNotFound
	}
	return inv, storeError("get invitation", err)
}

func (s *InvitationService) ListForUser(ctx context.Context, userID string) ([]domain.Invitation, error) {
	list, err := s.Store.Invitations().ListInvitationsForUser(ctx, userID)
	return list, storeError("list invitations", err)
}

func (s *InvitationService) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, storeError("get user", err)
}

// LinkContact records the CRM contact id on first sight. A user that is
// already linked keeps its id.
func (s *InvitationService) LinkContact(ctx context.Context, userID, contactID string) error {
	if contactID == "" {
		return nil
	}
	return storeError("link crm contact", s.Store.Users().LinkCRMContact(ctx, userID, contactID))
}

// Suspend moves an active user to suspended. It reports false, without
// error, when the user was not active.
func (s *InvitationService) Suspend(ctx context.Context, userID string) (bool, error) {
	err := s.Store.Users().UpdateUserStatus(ctx, userID,
		[]domain.UserStatus{domain.UserActive}, domain.UserSuspended)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrStale):
		return false, nil
	case errors.Is(err, store.ErrNotFound):
		return false, ErrUserNotFound
	}
	return false, storeError("suspend user", err)
}

// DeleteUserCascade removes the user's invitations, then its agent pages,
// then the user, in one transaction. It returns the deleted row so the
// caller can clean up external resources.
func (s *InvitationService) DeleteUserCascade(ctx context.Context, id string) (domain.User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	err = s.inTx(ctx, func(st store.Store) error {
		if err := st.Invitations().DeleteInvitationsForUser(ctx, id); err != nil {
			return err
		}
		if err := st.AgentPages().DeleteAgentPagesForUser(ctx, id); err != nil {
			return err
		}
		return st.Users().DeleteUser(ctx, id)
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		slogx.FromContext(ctx).Error("failed to delete user", slog.String("user_id", id), slog.Any("error", err))
		return domain.User{}, storeError("delete user", err)
	}
	return u, nil
}

// inTx runs fn in a transaction, or directly against the store when the
// store cannot do transactions.
func (s *InvitationService) inTx(ctx context.Context, fn func(st store.Store) error) error {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error { return fn(tx) })
	if errors.Is(err, store.ErrTxUnsupported) {
		return fn(s.Store)
	}
	return err
}

func (s *InvitationService) byToken(ctx context.Context, token string) (domain.Invitation, error) {
	if token == "" {
		return domain.Invitation{}, ErrInvitationNotFound
	}
	inv, err := s.Store.Invitations().GetInvitationByTokenHash(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Invitation{}, ErrInvitationNotFound
	}
	return inv, storeError("get invitation by token", err)
}

// buildUser validates in and turns it into an invited user row.
func buildUser(in NewUser) (domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return domain.User{}, ErrInvalidEmail
	}

	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	full := strings.Join(strings.Fields(in.FullName), " ")
	switch {
	case first == "" && last == "" && full != "":
		first, last = domain.SplitName(full)
	case full == "":
		full = domain.JoinName(first, last)
	}
	if first == "" || full == "" {
		return domain.User{}, ErrInvalidName
	}

	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return domain.User{}, ErrInvalidRole
	}

	u := domain.User{
		ID:        idx.New().String(),
		Email:     email,
		FirstName: first,
		LastName:  last,
		FullName:  full,
		Role:      role,
		Status:    domain.UserInvited,
	}
	if id := strings.TrimSpace(in.CRMContactID); id != "" {
		u.CRMContactID = &id
	}
	return u, nil
}

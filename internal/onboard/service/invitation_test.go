package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/aussiebroadwan/onboard/internal/onboard/store"
	"github.com/aussiebroadwan/onboard/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func ada() NewUser {
	return NewUser{Email: "  Ada@Example.com ", FirstName: "Ada", LastName: "Lovelace"}
}

func TestCreateUserWithInvitation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates invited user and pending invitation", func(t *testing.T) {
		s := &InvitationService{Store: newStore(t)}

		u, inv, token, err := s.CreateUserWithInvitation(ctx, ada())
		require.NoError(t, err)
		require.Equal(t, "ada@example.com", u.Email)
		require.Equal(t, "Ada Lovelace", u.FullName)
		require.Equal(t, domain.UserInvited, u.Status)
		require.Equal(t, domain.RoleUser, u.Role)

		require.Equal(t, domain.InvitationPending, inv.Status)
		require.Equal(t, u.ID, inv.UserID)
		require.Equal(t, cryptox.FingerprintToken(token), inv.TokenHash)
		require.NotContains(t, token, u.ID)
		require.WithinDuration(t, time.Now().Add(domain.DefaultInvitationTTL), inv.ExpiresAt, time.Minute)
	})

	t.Run("splits a lone full name", func(t *testing.T) {
		s := &InvitationService{Store: newStore(t)}
		u, _, _, err := s.CreateUserWithInvitation(ctx, NewUser{Email: "grace@example.com", FullName: " Grace  Brewster Hopper "})
		require.NoError(t, err)
		require.Equal(t, "Grace", u.FirstName)
		require.Equal(t, "Brewster Hopper", u.LastName)
		require.Equal(t, "Grace Brewster Hopper", u.FullName)
	})

	t.Run("validation", func(t *testing.T) {
		s := &InvitationService{Store: newStore(t)}

		_, _, _, err := s.CreateUserWithInvitation(ctx, NewUser{Email: "not-an-email", FullName: "X Y"})
		require.ErrorIs(t, err, ErrInvalidEmail)

		_, _, _, err = s.CreateUserWithInvitation(ctx, NewUser{Email: "x@example.com"})
		require.ErrorIs(t, err, ErrInvalidName)

		_, _, _, err = s.CreateUserWithInvitation(ctx, NewUser{Email: "x@example.com", FullName: "X Y", Role: "root"})
		require.ErrorIs(t, err, ErrInvalidRole)
		require.ErrorIs(t, err, domain.ErrInvalid)
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		s := &InvitationService{Store: newStore(t)}
		_, _, _, err := s.CreateUserWithInvitation(ctx, ada())
		require.NoError(t, err)

		_, _, _, err = s.CreateUserWithInvitation(ctx, NewUser{Email: "ADA@example.com", FullName: "Ada L"})
		require.ErrorIs(t, err, ErrEmailTaken)
		require.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("failed invitation insert rolls back the user", func(t *testing.T) {
		st := newStore(t)
		s := &InvitationService{Store: failingTxStore{st}}

		_, _, _, err := s.CreateUserWithInvitation(ctx, ada())
		require.ErrorIs(t, err, domain.ErrUnavailable)

		_, err = st.Users().GetUserByEmail(ctx, "ada@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("without transactions the user is compensated", func(t *testing.T) {
		st := newStore(t)
		s := &InvitationService{Store: noTxStore{Store: st, failInvites: true}}

		_, _, _, err := s.CreateUserWithInvitation(ctx, ada())
		require.ErrorIs(t, err, domain.ErrUnavailable)

		_, err = st.Users().GetUserByEmail(ctx, "ada@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)

		// and the happy path still works without transactions
		s.Store = noTxStore{Store: st}
		_, inv, _, err := s.CreateUserWithInvitation(ctx, ada())
		require.NoError(t, err)
		require.Equal(t, domain.InvitationPending, inv.Status)
	})
}

func TestMarkEmailOutcome(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := &InvitationService{Store: newStore(t)}

	_, inv, token, err := s.CreateUserWithInvitation(ctx, ada())
	require.NoError(t, err)

	got, err := s.MarkEmailOutcome(ctx, token, domain.EmailOutcome{Error: "timeout", Attempts: 2, Provider: "primary"})
	require.NoError(t, err)
	require.Equal(t, domain.InvitationFailed, got.Status)
	require.Equal(t, 2, got.EmailAttempts)
	require.NotNil(t, got.EmailLastError)
	require.Equal(t, "timeout", *got.EmailLastError)

	got, err = s.MarkEmailOutcome(ctx, token, domain.EmailOutcome{Success: true, MessageID: "m1", Attempts: 1, Provider: "fallback"})
	require.NoError(t, err)
	require.Equal(t, domain.InvitationSent, got.Status)
	require.Equal(t, 3, got.EmailAttempts)
	require.Equal(t, inv.ID, got.ID)

	// sent is not a source state for another outcome
	_, err = s.MarkEmailOutcome(ctx, token, domain.EmailOutcome{Success: true})
	require.ErrorIs(t, err, ErrInvitationMoved)

	_, err = s.MarkEmailOutcome(ctx, "bogus", domain.EmailOutcome{Success: true})
	require.ErrorIs(t, err, ErrInvitationNotFound)
}

func TestAccept(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	activation := Activation{Username: "ada", PasswordHash: "argon2id$fake"}

	t.Run("single use", func(t *testing.T) {
		s := &InvitationService{Store: newStore(t)}
		_, _, token, err := s.CreateUserWithInvitation(ctx, ada())
		require.NoError(t, err)

		u, err := s.Accept(ctx, token, activation)
		require.NoError(t, err)
		require.Equal(t, domain.UserActive, u.Status)
		require.NotNil(t, u.Username)
		require.Equal(t, "ada", *u.Username)
		require.Equal(t, "Ada Lovelace", u.FullName)

		_, err = s.Accept(ctx, token, activation)
		require.ErrorIs(t, err, ErrInvitationUsed)
		require.ErrorIs(t, err, domain.ErrAlreadyUsed)
	})

	t.Run("unknown token", func(t *testing.T) {
		s := &InvitationService{Store: newStore(t)}
		_, err := s.Accept(ctx, "nope", activation)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("expiry is checked before status", func(t *testing.T) {
		s := &InvitationService{Store: newStore(t), TTL: time.Hour}
		_, _, token, err := s.CreateUserWithInvitation(ctx, ada())
		require.NoError(t, err)
		_, err = s.Accept(ctx, token, activation)
		require.NoError(t, err)

		s.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err = s.Accept(ctx, token, activation)
		require.ErrorIs(t, err, domain.ErrExpired)
	})

	t.Run("expired invitation cannot be accepted", func(t *testing.T) {
		s := &InvitationService{Store: newStore(t), TTL: time.Hour}
		_, _, token, err := s.CreateUserWithInvitation(ctx, ada())
		require.NoError(t, err)

		s.Now = func() time.Time { return time.Now().Add(61 * time.Minute) }
		_, err = s.Accept(ctx, token, activation)
		require.ErrorIs(t, err, ErrInvitationExpired)
	})

	t.Run("cancelled invitation is invalid", func(t *testing.T) {
		s := &InvitationService{Store: newStore(t)}
		_, inv, token, err := s.CreateUserWithInvitation(ctx, ada())
		require.NoError(t, err)
		_, err = s.Cancel(ctx, inv.ID)
		require.NoError(t, err)

		_, err = s.Accept(ctx, token, activation)
		require.ErrorIs(t, err, ErrInvitationCancelled)
	})

	t.Run("username collision is a conflict and leaves the invitation open", func(t *testing.T) {
		s := &InvitationService{Store: newStore(t)}
		_, _, t1, err := s.CreateUserWithInvitation(ctx, ada())
		require.NoError(t, err)
		_, inv2, t2, err := s.CreateUserWithInvitation(ctx, NewUser{Email: "grace@example.com", FullName: "Grace Hopper"})
		require.NoError(t, err)

		_, err = s.Accept(ctx, t1, activation)
		require.NoError(t, err)

		_, err = s.Accept(ctx, t2, activation)
		require.ErrorIs(t, err, ErrUsernameTaken)

		got, err := s.Get(ctx, inv2.ID)
		require.NoError(t, err)
		require.Equal(t, domain.InvitationPending, got.Status)
	})

	t.Run("bad username", func(t *testing.T) {
		s := &InvitationService{Store: newStore(t)}
		_, err := s.Accept(ctx, "whatever", Activation{Username: "A!"})
		require.ErrorIs(t, err, ErrInvalidUsername)
	})
}

func TestCancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := &InvitationService{Store: newStore(t)}

	_, inv, token, err := s.CreateUserWithInvitation(ctx, ada())
	require.NoError(t, err)
	_, err = s.MarkEmailOutcome(ctx, token, domain.EmailOutcome{Success: true, Attempts: 1})
	require.NoError(t, err)

	got, err := s.Cancel(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InvitationCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)

	_, err = s.Cancel(ctx, inv.ID)
	require.ErrorIs(t, err, ErrInvitationClosed)

	_, err = s.Cancel(ctx, "missing")
	require.ErrorIs(t, err, ErrInvitationNotFound)
}

func TestPrepareResend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rotates the token", func(t *testing.T) {
		s := &InvitationService{Store: newStore(t)}
		_, inv, old, err := s.CreateUserWithInvitation(ctx, ada())
		require.NoError(t, err)

		got, fresh, err := s.PrepareResend(ctx, inv.ID)
		require.NoError(t, err)
		require.NotEqual(t, old, fresh)
		require.Equal(t, cryptox.FingerprintToken(fresh), got.TokenHash)

		_, err = s.Lookup(ctx, old)
		require.ErrorIs(t, err, ErrInvitationNotFound)
		_, err = s.Lookup(ctx, fresh)
		require.NoError(t, err)
	})

	t.Run("only pending or failed", func(t *testing.T) {
		s := &InvitationService{Store: newStore(t)}
		_, inv, token, err := s.CreateUserWithInvitation(ctx, ada())
		require.NoError(t, err)
		_, err = s.MarkEmailOutcome(ctx, token, domain.EmailOutcome{Success: true})
		require.NoError(t, err)

		_, _, err = s.PrepareResend(ctx, inv.ID)
		require.ErrorIs(t, err, ErrInvitationClosed)
	})

	t.Run("expired", func(t *testing.T) {
		s := &InvitationService{Store: newStore(t), TTL: time.Minute}
		_, inv, _, err := s.CreateUserWithInvitation(ctx, ada())
		require.NoError(t, err)

		s.Now = func() time.Time { return time.Now().Add(time.Hour) }
		_, _, err = s.PrepareResend(ctx, inv.ID)
		require.ErrorIs(t, err, ErrInvitationExpired)
	})
}

func TestSuspend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := &InvitationService{Store: newStore(t)}

	u, _, token, err := s.CreateUserWithInvitation(ctx, ada())
	require.NoError(t, err)

	changed, err := s.Suspend(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, changed, "invited users are not suspended")

	_, err = s.Accept(ctx, token, Activation{Username: "ada", PasswordHash: "h"})
	require.NoError(t, err)

	changed, err = s.Suspend(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = s.Suspend(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, changed)

	_, err = s.Suspend(ctx, "missing")
	require.ErrorIs(t, err, ErrUserNotFound)
}

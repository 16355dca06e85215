package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/aussiebroadwan/onboard/internal/onboard/crm"
	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/aussiebroadwan/onboard/internal/onboard/email"
	"github.com/aussiebroadwan/onboard/internal/onboard/store"
	"github.com/aussiebroadwan/onboard/pkg/cryptox"
	"github.com/aussiebroadwan/onboard/pkg/idx"
	"github.com/aussiebroadwan/onboard/pkg/slogx"
)

const (
	defaultCRMTimeout     = 8 * time.Second
	defaultCleanupTimeout = 15 * time.Second
)

// Orchestrator coordinates the database, the email dispatcher and the CRM
// for both entry points: admin invites and CRM webhooks.
//
// Only writes to users and invitations can fail an operation. Email and CRM
// outcomes are recorded and reported next to the result.
type Orchestrator struct {
	Store       store.Store
	Invitations *InvitationService
	Resolver    *IdempotencyResolver
	Audit       *AuditService

	CRM    crm.Client
	Email  email.Sender
	Images ImageStore

	// Tasks runs best-effort follow ups. Nil runs them inline.
	Tasks  *TaskRunner
	Hasher *cryptox.PasswordHasher

	AppName   string
	AcceptURL string

	CRMTimeout     time.Duration
	CleanupTimeout time.Duration
}

type InviteRequest struct {
	Email     string
	FirstName string
	LastName  string
	FullName  string
	Role      domain.Role
}

// EmailStatus is the best-effort half of an invite response.
type EmailStatus struct {
	Sent      bool
	MessageID string
	Error     string
	Attempts  int
	Provider  string
}

type CRMStatus struct {
	Synced    bool
	ContactID string
	Created   bool
	Error     string
}

type InviteResult struct {
	User       domain.User
	Invitation domain.Invitation
	Email      EmailStatus
	CRM        CRMStatus
}

// InviteUser is the admin flow: create the user and invitation, email the
// link, then mirror the contact into the CRM.
//
// An existing email is a conflict unless the user is still invited and
// holds no usable invitation (the last one was cancelled or has expired).
// Such a user gets a new invitation through the same pipeline.
func (o *Orchestrator) InviteUser(ctx context.Context, req InviteRequest) (InviteResult, error) {
	log := slogx.FromContext(ctx)

	// 1. The only step allowed to fail the request
	u, inv, token, reissued, err := o.inviteOrReissue(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			log.Info("invite rejected", slog.String("email", domain.NormalizeEmail(req.Email)), slog.Any("reason", err))
		}
		return InviteResult{}, err
	}

	// The rows are committed; a client that hangs up from here on must not
	// leave the email outcome unrecorded.
	ctx = context.WithoutCancel(ctx)

	o.Audit.Record(ctx, domain.AuditEntry{
		Action:       ActionUserInvited,
		ResourceType: domain.ResourceUser,
		ResourceID:   u.ID,
		Details: map[string]any{
			"email":         u.Email,
			"role":          string(u.Role),
			"invitation_id": inv.ID,
			"source":        "admin",
			"reissued":      reissued,
		},
	})

	// 2. Email
	inv, status := o.sendInvitation(ctx, u, inv, token)

	// 3. CRM
	u, crmStatus := o.syncContact(ctx, u)
	if crmStatus.Synced {
		o.addNote(ctx, crmStatus.ContactID, invitationNote(inv, status))
	}

	return InviteResult{User: u, Invitation: inv, Email: status, CRM: crmStatus}, nil
}

// inviteOrReissue creates a new invited user, or reissues an invitation to
// an existing invited user who has none left to use.
func (o *Orchestrator) inviteOrReissue(
	ctx context.Context,
	req InviteRequest,
) (domain.User, domain.Invitation, string, bool, error) {
	existing, ok, err := o.Resolver.Resolve(ctx, KeyForEmail(req.Email))
	if err != nil {
		return domain.User{}, domain.Invitation{}, "", false, err
	}

	if !ok {
		u, inv, token, err := o.Invitations.CreateUserWithInvitation(ctx, NewUser{
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			FullName:  req.FullName,
			Role:      req.Role,
		})
		return u, inv, token, false, err
	}

	if existing.Status != domain.UserInvited {
		return domain.User{}, domain.Invitation{}, "", false, ErrEmailTaken
	}
	inv, token, err := o.Invitations.Reissue(ctx, existing.ID)
	switch {
	case errors.Is(err, ErrInvitationOpen):
		return domain.User{}, domain.Invitation{}, "", false, ErrEmailTaken
	case errors.Is(err, ErrUserNotFound):
		// Deleted between the lookup and the reissue
		return domain.User{}, domain.Invitation{}, "", false, ErrInvitationMoved
	case err != nil:
		return domain.User{}, domain.Invitation{}, "", false, err
	}
	return existing, inv, token, true, nil
}

// HandleContactEvent applies a verified CRM webhook. Re-deliveries of the
// same event converge on the same state without a second email.
func (o *Orchestrator) HandleContactEvent(ctx context.Context, ev domain.ContactEvent) (domain.ContactOutcome, error) {
	// The CRM re-delivers on timeout, so there is nobody to cancel for
	ctx = context.WithoutCancel(ctx)
	ctx = slogx.With(ctx,
		slog.String("provider", ev.Provider),
		slog.String("contact_id", ev.ContactID),
		slog.String("action", string(ev.Action)),
	)

	resourceID := ev.ContactID
	if resourceID == "" {
		resourceID = ev.Email
	}
	o.Audit.Record(ctx, domain.AuditEntry{
		Actor:        "webhook:" + ev.Provider,
		Action:       ActionWebhookReceived,
		ResourceType: domain.ResourceContact,
		ResourceID:   resourceID,
		Details: map[string]any{
			"webhook_id": ev.WebhookID,
			"email":      ev.Email,
			"tags":       ev.Tags,
			"action":     string(ev.Action),
		},
	})

	switch ev.Action {
	case domain.ActionOnboard:
		return o.onboardContact(ctx, ev)
	case domain.ActionSuspend:
		return o.suspendContact(ctx, ev)
	case domain.ActionIgnore:
		o.Audit.Record(ctx, domain.AuditEntry{
			Actor:        "webhook:" + ev.Provider,
			Action:       ActionWebhookIgnored,
			ResourceType: domain.ResourceContact,
			ResourceID:   resourceID,
			Details:      map[string]any{"tags": ev.Tags},
		})
		return domain.OutcomeIgnored, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", domain.ErrInvalid, ev.Action)
}

func (o *Orchestrator) onboardContact(ctx context.Context, ev domain.ContactEvent) (domain.ContactOutcome, error) {
	log := slogx.FromContext(ctx)

	u, ok, err := o.Resolver.ResolveContact(ctx, ev.ContactID, ev.Email)
	if err != nil {
		return "", err
	}

	if !ok {
		u, inv, token, err := o.Invitations.CreateUserWithInvitation(ctx, NewUser{
			Email:        ev.Email,
			FirstName:    ev.FirstName,
			LastName:     ev.LastName,
			FullName:     ev.FullName,
			Role:         domain.RoleUser,
			CRMContactID: ev.ContactID,
		})
		if errors.Is(err, domain.ErrConflict) {
			// A concurrent delivery or admin invite created the row first
			log.Info("contact already being invited", slog.String("email", ev.Email))
			return domain.OutcomeAlreadyInvited, nil
		}
		if err != nil {
			return "", err
		}

		o.Audit.Record(ctx, domain.AuditEntry{
			Actor:        "webhook:" + ev.Provider,
			Action:       ActionUserInvited,
			ResourceType: domain.ResourceUser,
			ResourceID:   u.ID,
			Details: map[string]any{
				"email":          u.Email,
				"invitation_id":  inv.ID,
				"crm_contact_id": ev.ContactID,
				"source":         "webhook",
			},
		})

		inv, status := o.sendInvitation(ctx, u, inv, token)
		o.addNote(ctx, ev.ContactID, invitationNote(inv, status))
		return domain.OutcomeInvited, nil
	}

	if u.CRMContactID == nil && ev.ContactID != "" {
		if err := o.Invitations.LinkContact(ctx, u.ID, ev.ContactID); err != nil {
			log.Warn("failed to link crm contact", slog.String("user_id", u.ID), slog.Any("error", err))
		} else {
			u.CRMContactID = &ev.ContactID
		}
	}

	switch u.Status {
	case domain.UserActive:
		return o.ensureAgentPage(ctx, u)
	case domain.UserInvited:
		return o.reinviteContact(ctx, ev, u)
	}
	log.Info("onboard tag on suspended user ignored", slog.String("user_id", u.ID))
	return domain.OutcomeNoop, nil
}

// reinviteContact handles an onboard tag for a user who is already invited.
// While an invitation is still usable that is a no-op; otherwise a new one
// goes out.
func (o *Orchestrator) reinviteContact(ctx context.Context, ev domain.ContactEvent, u domain.User) (domain.ContactOutcome, error) {
	inv, token, err := o.Invitations.Reissue(ctx, u.ID)
	switch {
	case errors.Is(err, ErrInvitationOpen), errors.Is(err, ErrEmailTaken):
		return domain.OutcomeAlreadyInvited, nil
	case errors.Is(err, ErrUserNotFound):
		return domain.OutcomeNoop, nil
	case err != nil:
		return "", err
	}

	o.Audit.Record(ctx, domain.AuditEntry{
		Actor:        "webhook:" + ev.Provider,
		Action:       ActionUserInvited,
		ResourceType: domain.ResourceUser,
		ResourceID:   u.ID,
		Details: map[string]any{
			"email":          u.Email,
			"invitation_id":  inv.ID,
			"crm_contact_id": ev.ContactID,
			"source":         "webhook",
			"reissued":       true,
		},
	})

	inv, status := o.sendInvitation(ctx, u, inv, token)
	o.addNote(ctx, ev.ContactID, invitationNote(inv, status))
	return domain.OutcomeInvited, nil
}

func (o *Orchestrator) suspendContact(ctx context.Context, ev domain.ContactEvent) (domain.ContactOutcome, error) {
	u, ok, err := o.Resolver.ResolveContact(ctx, ev.ContactID, ev.Email)
	if err != nil {
		return "", err
	}
	if !ok {
		return domain.OutcomeNoop, nil
	}

	changed, err := o.Invitations.Suspend(ctx, u.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.OutcomeNoop, nil
	}
	if err != nil {
		return "", err
	}
	if !changed {
		return domain.OutcomeNoop, nil
	}

	o.Audit.Record(ctx, domain.AuditEntry{
		Actor:        "webhook:" + ev.Provider,
		Action:       ActionUserSuspended,
		ResourceType: domain.ResourceUser,
		ResourceID:   u.ID,
		Details:      map[string]any{"crm_contact_id": ev.ContactID},
	})
	o.addNote(ctx, ev.ContactID, "Account suspended.")
	return domain.OutcomeSuspended, nil
}

func (o *Orchestrator) ensureAgentPage(ctx context.Context, u domain.User) (domain.ContactOutcome, error) {
	_, err := o.Store.AgentPages().GetAgentPageByUserID(ctx, u.ID)
	if err == nil {
		return domain.OutcomeAgentPageExists, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", storeError("get agent page", err)
	}

	id := idx.New()
	page := domain.AgentPage{
		ID:           id.String(),
		UserID:       u.ID,
		Slug:         agentSlug(u.FullName, id),
		CRMContactID: u.CRMContactID,
		CreatedAt:    time.Now().UTC(),
	}
	err = o.Store.AgentPages().CreateAgentPage(ctx, page)
	if errors.Is(err, store.ErrAlreadyExists) {
		return domain.OutcomeAgentPageExists, nil
	}
	if err != nil {
		return "", storeError("create agent page", err)
	}

	o.Audit.Record(ctx, domain.AuditEntry{
		Action:       ActionAgentPageCreated,
		ResourceType: domain.ResourceAgentPage,
		ResourceID:   page.ID,
		Details:      map[string]any{"user_id": u.ID, "slug": page.Slug},
	})
	slogx.FromContext(ctx).Info("agent page created", slog.String("user_id", u.ID), slog.String("slug", page.Slug))
	return domain.OutcomeAgentPageCreated, nil
}

// agentSlug is the lower-cased name with runs of anything else collapsed to
// '-', plus a random suffix from the page id.
func agentSlug(name string, id idx.ID) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	base := strings.TrimSuffix(b.String(), "-")
	if base == "" {
		base = "agent"
	}
	return base + "-" + id.Suffix(6)
}

// sendInvitation renders and dispatches the invitation email and records
// the outcome. It never fails; the returned status says what happened.
func (o *Orchestrator) sendInvitation(
	ctx context.Context,
	u domain.User,
	inv domain.Invitation,
	token string,
) (domain.Invitation, EmailStatus) {
	log := slogx.FromContext(ctx)

	var res email.Result
	msg, err := email.RenderInvitation(u.Email, email.InvitationVars{
		AppName:   o.AppName,
		FirstName: u.FirstName,
		FullName:  u.FullName,
		AcceptURL: o.acceptLink(token),
		ExpiresAt: inv.ExpiresAt,
	})
	if err != nil {
		log.Error("failed to render invitation email", slog.Any("error", err))
		res = email.Result{Error: err.Error(), Timestamp: time.Now().UTC()}
	} else {
		msg.IdempotencyKey = EmailDedupKey(inv.ID, inv.TokenHash)
		res = o.Email.Send(ctx, msg)
	}

	if updated, err := o.Invitations.MarkEmailOutcome(ctx, token, res.Outcome()); err != nil {
		log.Warn("failed to record email outcome",
			slog.String("invitation_id", inv.ID),
			slog.Any("error", err),
		)
	} else {
		inv = updated
	}

	action := ActionEmailSent
	if !res.Success {
		action = ActionEmailFailed
		log.Warn("invitation email not delivered",
			slog.String("invitation_id", inv.ID),
			slog.Int("attempts", res.Attempts),
			slog.String("error", res.Error),
		)
	}
	o.Audit.Record(ctx, domain.AuditEntry{
		Action:       action,
		ResourceType: domain.ResourceInvitation,
		ResourceID:   inv.ID,
		Details: map[string]any{
			"message_id": res.MessageID,
			"provider":   res.ServiceProvider,
			"attempts":   res.Attempts,
			"error":      res.Error,
		},
	})

	return inv, EmailStatus{
		Sent:      res.Success,
		MessageID: res.MessageID,
		Error:     res.Error,
		Attempts:  res.Attempts,
		Provider:  res.ServiceProvider,
	}
}

func (o *Orchestrator) acceptLink(token string) string {
	u, err := url.Parse(o.AcceptURL)
	if err != nil || o.AcceptURL == "" {
		return o.AcceptURL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// syncContact upserts u into the CRM under its own timeout and links the
// contact id on success. The returned user reflects the stored link.
func (o *Orchestrator) syncContact(ctx context.Context, u domain.User) (domain.User, CRMStatus) {
	log := slogx.FromContext(ctx)

	cctx, cancel := context.WithTimeout(ctx, durationOr(o.CRMTimeout, defaultCRMTimeout))
	defer cancel()

	res, err := o.CRM.Upsert(cctx, crm.Contact{
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Name:      u.FullName,
	})
	if errors.Is(err, crm.ErrDisabled) {
		return u, CRMStatus{Error: err.Error()}
	}
	if err != nil {
		log.Warn("crm upsert failed", slog.String("user_id", u.ID), slog.Any("error", err))
		o.Audit.Record(ctx, domain.AuditEntry{
			Action:       ActionCRMUpsert,
			ResourceType: domain.ResourceUser,
			ResourceID:   u.ID,
			Details:      map[string]any{"success": false, "error": err.Error()},
		})
		return u, CRMStatus{Error: err.Error()}
	}

	if err := o.Invitations.LinkContact(ctx, u.ID, res.Contact.ID); err != nil {
		log.Warn("failed to link crm contact", slog.String("user_id", u.ID), slog.Any("error", err))
	} else if stored, err := o.Invitations.GetUser(ctx, u.ID); err == nil {
		u = stored
	} else if u.CRMContactID == nil {
		// Linking only fills an empty column
		u.CRMContactID = &res.Contact.ID
	}

	o.Audit.Record(ctx, domain.AuditEntry{
		Action:       ActionCRMUpsert,
		ResourceType: domain.ResourceUser,
		ResourceID:   u.ID,
		Details: map[string]any{
			"success":    true,
			"contact_id": res.Contact.ID,
			"created":    res.Created,
			"attempts":   res.Attempts,
		},
	})
	return u, CRMStatus{Synced: true, ContactID: res.Contact.ID, Created: res.Created}
}

// addNote queues a CRM note. Nothing waits for it.
func (o *Orchestrator) addNote(ctx context.Context, contactID, body string) {
	if contactID == "" {
		return
	}
	o.background(ctx, "crm.note", func(ctx context.Context) error {
		err := o.CRM.AddNote(ctx, contactID, body)
		if errors.Is(err, crm.ErrDisabled) {
			return nil
		}
		details := map[string]any{"success": err == nil}
		if err != nil {
			details["error"] = err.Error()
		}
		o.Audit.Record(ctx, domain.AuditEntry{
			Action:       ActionCRMNote,
			ResourceType: domain.ResourceContact,
			ResourceID:   contactID,
			Details:      details,
		})
		return err
	})
}

func (o *Orchestrator) background(ctx context.Context, name string, fn Task) {
	if o.Tasks != nil {
		o.Tasks.Submit(ctx, name, fn)
		return
	}
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		slogx.FromContext(ctx).Warn("task failed", slog.String("task", name), slog.Any("error", err))
	}
}

func invitationNote(inv domain.Invitation, s EmailStatus) string {
	if s.Sent {
		return fmt.Sprintf("Invitation sent to %s (expires %s).", inv.Email, inv.ExpiresAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("Invitation created for %s but the email failed: %s", inv.Email, s.Error)
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/onboard/internal/onboard/crm"
	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/aussiebroadwan/onboard/internal/onboard/email"
	"github.com/aussiebroadwan/onboard/internal/onboard/store"
	"github.com/aussiebroadwan/onboard/internal/onboard/store/drivers/sqlite"
	"github.com/aussiebroadwan/onboard/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

type fakeCRM struct {
	mu        sync.Mutex
	upserts   []crm.Contact
	notes     map[string][]string
	deleted   []string
	upsertErr error
	deleteErr error
}

func (f *fakeCRM) Lookup(context.Context, string) (crm.Contact, error) {
	return crm.Contact{}, domain.ErrNotFound
}

func (f *fakeCRM) Upsert(_ context.Context, c crm.Contact) (crm.UpsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return crm.UpsertResult{}, f.upsertErr
	}
	f.upserts = append(f.upserts, c)
	c.ID = "contact-" + c.Email
	return crm.UpsertResult{Contact: c, Created: true, Attempts: 1}, nil
}

func (f *fakeCRM) AddNote(_ context.Context, id, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notes == nil {
		f.notes = map[string][]string{}
	}
	f.notes[id] = append(f.notes[id], body)
	return nil
}

func (f *fakeCRM) DeleteContact(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeCRM) notesFor(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.notes[id]...)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.Message
	fail bool
}

func (f *fakeMailer) Send(_ context.Context, msg email.Message) email.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if f.fail {
		return email.Result{Error: "mailbox unavailable", Attempts: 4, Timestamp: time.Now(), ServiceProvider: "fake"}
	}
	return email.Result{
		Success:         true,
		MessageID:       "msg-" + msg.IdempotencyKey,
		Attempts:        1,
		Timestamp:       time.Now(),
		ServiceProvider: "fake",
	}
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// lastToken pulls the token out of the accept link in the latest email.
func (f *fakeMailer) lastToken(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)

	text := f.sent[len(f.sent)-1].Text
	for _, line := range strings.Split(text, "\n") {
		if !strings.HasPrefix(line, "https://") {
			continue
		}
		u, err := url.Parse(strings.TrimSpace(line))
		require.NoError(t, err)
		return u.Query().Get("token")
	}
	t.Fatal("no accept link in email")
	return ""
}

type fakeImages struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeImages) DeleteUserImages(_ context.Context, userID, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	if f.err != nil {
		return 0, f.err
	}
	return 2, nil
}

type harness struct {
	store  store.Store
	crm    *fakeCRM
	mailer *fakeMailer
	images *fakeImages
	orch   *Orchestrator
}

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st := newStore(t)
	h := &harness{
		store:  st,
		crm:    &fakeCRM{},
		mailer: &fakeMailer{},
		images: &fakeImages{},
	}
	h.orch = &Orchestrator{
		Store:       st,
		Invitations: &InvitationService{Store: st},
		Resolver:    &IdempotencyResolver{Store: st},
		Audit:       &AuditService{Store: st},
		CRM:         h.crm,
		Email:       h.mailer,
		Images:      h.images,
		Hasher:      cryptox.NewPasswordHasher("test-pepper"),
		AppName:     "Onboard",
		AcceptURL:   "https://app.example.com/accept",
	}
	return h
}

func (h *harness) auditActions(t *testing.T, resourceID string) []string {
	t.Helper()
	entries, err := h.store.AuditLog().ListAuditByResource(context.Background(), "", resourceID, 100)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

var errDiskFull = errors.New("disk full")

type failingInvitations struct{ store.Invitations }

func (failingInvitations) CreateInvitation(context.Context, domain.Invitation) error {
	return errDiskFull
}

// failingTxStore hands out transactions whose invitation inserts fail.
type failingTxStore struct{ store.Store }

func (s failingTxStore) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error { return fn(failingTx{tx}) })
}

// txBase keeps the embedded field from being named Tx, which would hide the
// Tx method every store.Tx carries.
type txBase = store.Tx

type failingTx struct{ txBase }

func (t failingTx) Invitations() store.Invitations { return failingInvitations{t.txBase.Invitations()} }

// noTxStore cannot do transactions, like a REST backed data layer.
type noTxStore struct {
	store.Store
	failInvites bool
}

func (s noTxStore) WithTx(context.Context, func(store.Tx) error) error { return store.ErrTxUnsupported }

func (s noTxStore) Invitations() store.Invitations {
	if s.failInvites {
		return failingInvitations{s.Store.Invitations()}
	}
	return s.Store.Invitations()
}

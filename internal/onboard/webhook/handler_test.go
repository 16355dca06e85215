package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/stretchr/testify/require"
)

type fakeEvents struct {
	mu      sync.Mutex
	events  []domain.ContactEvent
	outcome domain.ContactOutcome
	err     error
}

func (f *fakeEvents) HandleContactEvent(ctx context.Context, ev domain.ContactEvent) (domain.ContactOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	if f.outcome == "" {
		return domain.OutcomeInvited, f.err
	}
	return f.outcome, f.err
}

func (f *fakeEvents) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func newTestHandler(t *testing.T, events EventHandler) http.Handler {
	t.Helper()

	v, err := NewVerifier(publicPEM(t, testKey), true)
	require.NoError(t, err)

	h := NewHandler(events, Provider{
		Name:     "ghl",
		Verifier: v,
		Router:   NewRouter([]string{DefaultOnboardTag}, []string{DefaultSuspendTag}),
	})

	mux := http.NewServeMux()
	mux.Handle("POST /webhooks/{provider}", h)
	return mux
}

func deliver(t *testing.T, h http.Handler, provider string, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+provider, bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerProcessesSignedDelivery(t *testing.T) {
	events := &fakeEvents{}
	h := newTestHandler(t, events)

	body := []byte(`{"contact":{"id":"c1","email":"A@B.com","firstName":"A","lastName":"B"},"tags":["active downline"]}`)
	rec := deliver(t, h, "ghl", body, sign(t, testKey, body))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, Response{Status: "processed", Action: "onboard", Outcome: "invited"}, resp)

	require.Equal(t, 1, events.count())
	ev := events.events[0]
	require.Equal(t, "ghl", ev.Provider)
	require.Equal(t, "a@b.com", ev.Email)
	require.Equal(t, domain.ActionOnboard, ev.Action)
}

func TestHandlerRejections(t *testing.T) {
	events := &fakeEvents{}
	h := newTestHandler(t, events)
	good := []byte(`{"email":"a@b.com","first_name":"A","last_name":"B","tags":"active downline"}`)

	t.Run("unknown provider", func(t *testing.T) {
		rec := deliver(t, h, "stripe", good, sign(t, testKey, good))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unsigned", func(t *testing.T) {
		rec := deliver(t, h, "ghl", good, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("tampered", func(t *testing.T) {
		tampered := bytes.Replace(good, []byte("a@b.com"), []byte("evil@b.com"), 1)
		rec := deliver(t, h, "ghl", tampered, sign(t, testKey, good))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		bad := []byte(`{"email":`)
		rec := deliver(t, h, "ghl", bad, sign(t, testKey, bad))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing fields lists keys present", func(t *testing.T) {
		partial := []byte(`{"contact":{"email":"a@b.com"},"tags":"active downline","type":"ContactTagUpdate"}`)
		rec := deliver(t, h, "ghl", partial, sign(t, testKey, partial))
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, []string{"first_name", "last_name"}, resp.Missing)
		require.Contains(t, resp.KeysPresent, "contact.email")
		require.Contains(t, resp.KeysPresent, "type")
	})

	t.Run("body too large", func(t *testing.T) {
		huge := []byte(`{"pad":"` + strings.Repeat("x", MaxBodyBytes) + `"}`)
		rec := deliver(t, h, "ghl", huge, "c2ln")
		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	require.Zero(t, events.count(), "nothing should reach the orchestrator")
}

func TestHandlerUnknownTagsAreAcknowledged(t *testing.T) {
	events := &fakeEvents{outcome: domain.OutcomeIgnored}
	h := newTestHandler(t, events)

	// No names either; ignored events don't need them
	body := []byte(`{"email":"a@b.com","tags":"newsletter"}`)
	rec := deliver(t, h, "ghl", body, sign(t, testKey, body))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ignored", resp.Status)
	require.Equal(t, "ignore", resp.Action)
}

func TestHandlerDedupesByWebhookID(t *testing.T) {
	events := &fakeEvents{}
	h := newTestHandler(t, events)

	body := []byte(`{"webhookId":"wh-42","email":"a@b.com","first_name":"A","last_name":"B","tags":"active downline"}`)
	sig := sign(t, testKey, body)

	for i := 0; i < 3; i++ {
		rec := deliver(t, h, "ghl", body, sig)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Equal(t, 1, events.count())
}

func TestHandlerErrorMapping(t *testing.T) {
	body := []byte(`{"webhookId":"wh-1","email":"a@b.com","first_name":"A","last_name":"B","tags":"active downline"}`)

	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("store down: %w", domain.ErrUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("bad email: %w", domain.ErrInvalid), http.StatusBadRequest},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			events := &fakeEvents{err: tt.err}
			h := newTestHandler(t, events)

			rec := deliver(t, h, "ghl", body, sign(t, testKey, body))
			require.Equal(t, tt.code, rec.Code)

			// Failed deliveries are not remembered, the retry must get through
			events.err = nil
			rec = deliver(t, h, "ghl", body, sign(t, testKey, body))
			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, 2, events.count())
		})
	}
}

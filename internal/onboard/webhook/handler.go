// Package webhook authenticates and normalizes inbound CRM deliveries and
// routes them by tag to the orchestrator.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/aussiebroadwan/onboard/internal/onboard/metrics"
	"github.com/aussiebroadwan/onboard/pkg/httpx"
	"github.com/aussiebroadwan/onboard/pkg/slogx"
)

const (
	// MaxBodyBytes caps a single delivery.
	MaxBodyBytes = 1 << 20

	defaultDedupeSize = 4096
)

// EventHandler is implemented by the orchestrator.
type EventHandler interface {
	HandleContactEvent(ctx context.Context, ev domain.ContactEvent) (domain.ContactOutcome, error)
}

// Provider is one CRM sending to /webhooks/{provider}.
type Provider struct {
	Name     string
	Verifier *Verifier
	Router   *Router
}

type Response struct {
	Status  string `json:"status"`
	Action  string `json:"action,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

type ErrorResponse struct {
	Error            string   `json:"error"`
	ErrorDescription string   `json:"error_description,omitempty"`
	Missing          []string `json:"missing,omitempty"`
	KeysPresent      []string `json:"keys_present,omitempty"`
}

// Handler serves POST /webhooks/{provider}. Anything that was understood is
// answered 200, even when nothing happened, so the CRM does not retry it.
type Handler struct {
	events    EventHandler
	providers map[string]Provider
	seen      *recentSet
}

func NewHandler(events EventHandler, providers ...Provider) *Handler {
	h := &Handler{
		events:    events,
		providers: make(map[string]Provider, len(providers)),
		seen:      newRecentSet(defaultDedupeSize),
	}
	for _, p := range providers {
		h.providers[p.Name] = p
	}
	return h
}

// ServeHTTP godoc
//
//	@Summary		CRM Webhook Endpoint
//	@Description	Receives signed contact events from the CRM. The signature covers the raw body.
//	@Description	Unrecognized tags are acknowledged and ignored.
//	@Tags			Webhooks
//	@Accept			json
//	@Produce		json
//	@Param			provider		path		string					true	"Provider name, e.g. ghl"
//	@Param			X-WH-Signature	header		string					false	"base64 RSA-SHA256 signature of the body"
//	@Success		200				{object}	webhook.Response		"status, action, outcome"
//	@Failure		400				{object}	webhook.ErrorResponse	"error, missing, keys_present"
//	@Failure		401				{object}	webhook.ErrorResponse	"error, error_description"
//	@Failure		404				{object}	webhook.ErrorResponse	"unknown provider"
//	@Failure		503				{object}	webhook.ErrorResponse	"store unavailable, retry later"
//	@Router			/webhooks/{provider} [post].
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")
	ctx := slogx.With(r.Context(), slog.String("provider", name))
	log := slogx.FromContext(ctx)

	p, ok := h.providers[name]
	if !ok {
		// Label as "unknown", path values are attacker controlled
		h.reply(w, "unknown", "unknown_provider", http.StatusNotFound, ErrorResponse{
			Error:            "not_found",
			ErrorDescription: "Unknown webhook provider",
		})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reply(w, name, "too_large", http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:            "invalid_request",
				ErrorDescription: "Body too large",
			})
			return
		}
		h.reply(w, name, "malformed", http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Could not read body",
		})
		return
	}

	// Verify before parsing anything
	if err := p.Verifier.Verify(body, r.Header.Get(SignatureHeader)); err != nil {
		if errors.Is(err, ErrNoKeyInProduction) {
			log.Error("rejecting webhook, no verification key configured in production")
		} else {
			log.Warn("webhook signature rejected", slog.Any("error", err))
		}
		h.reply(w, name, "unauthorized", http.StatusUnauthorized, ErrorResponse{
			Error:            "unauthorized",
			ErrorDescription: "Invalid webhook signature",
		})
		return
	}

	ev, err := Extract(body)
	if err != nil {
		h.reply(w, name, "malformed", http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Body must be a JSON object",
		})
		return
	}
	ev.Provider = name
	ev.Action = p.Router.Route(ev.Tags)

	if missing := Missing(ev, ev.Action); len(missing) > 0 {
		keys := KeysPresent(body)
		log.Warn("webhook missing required fields",
			slog.Any("missing", missing),
			slog.Any("keys_present", keys),
		)
		h.reply(w, name, "missing_fields", http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: (&MissingFieldsError{Missing: missing}).Error(),
			Missing:          missing,
			KeysPresent:      keys,
		})
		return
	}

	dedupeKey := ""
	if ev.WebhookID != "" {
		dedupeKey = name + ":" + ev.WebhookID
		if h.seen.Contains(dedupeKey) {
			log.Info("duplicate webhook delivery", slog.String("webhook_id", ev.WebhookID))
			h.reply(w, name, string(domain.OutcomeDuplicate), http.StatusOK, Response{
				Status:  "processed",
				Action:  string(ev.Action),
				Outcome: string(domain.OutcomeDuplicate),
			})
			return
		}
	}

	outcome, err := h.events.HandleContactEvent(ctx, ev)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalid):
			h.reply(w, name, "invalid", http.StatusBadRequest, ErrorResponse{
				Error:            "invalid_request",
				ErrorDescription: err.Error(),
			})
		case errors.Is(err, domain.ErrUnavailable):
			log.Warn("webhook deferred, store unavailable", slog.Any("error", err))
			h.reply(w, name, "unavailable", http.StatusServiceUnavailable, ErrorResponse{
				Error:            "temporarily_unavailable",
				ErrorDescription: "Try again later",
			})
		default:
			log.Error("webhook processing failed", slog.Any("error", err))
			h.reply(w, name, "error", http.StatusInternalServerError, ErrorResponse{
				Error:            "server_error",
				ErrorDescription: "Failed to process webhook",
			})
		}
		return
	}

	if dedupeKey != "" {
		h.seen.Add(dedupeKey)
	}

	status := "processed"
	if outcome == domain.OutcomeIgnored {
		status = "ignored"
	}
	h.reply(w, name, string(outcome), http.StatusOK, Response{
		Status:  status,
		Action:  string(ev.Action),
		Outcome: string(outcome),
	})
}

func (h *Handler) reply(w http.ResponseWriter, provider, outcome string, code int, body any) {
	metrics.WebhookEvents.WithLabelValues(provider, outcome).Inc()
	httpx.WriteJSON(w, code, body)
}

// recentSet remembers the last n keys.
type recentSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
	ring []string
	next int
}

func newRecentSet(n int) *recentSet {
	return &recentSet{keys: make(map[string]struct{}, n), ring: make([]string, n)}
}

func (s *recentSet) Contains(k string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[k]
	return ok
}

func (s *recentSet) Add(k string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[k]; ok {
		return
	}
	if old := s.ring[s.next]; old != "" {
		delete(s.keys, old)
	}
	s.ring[s.next] = k
	s.keys[k] = struct{}{}
	s.next = (s.next + 1) % len(s.ring)
}

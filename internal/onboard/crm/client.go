package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/aussiebroadwan/onboard/internal/onboard/metrics"
	"github.com/aussiebroadwan/onboard/pkg/slogx"
	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultBaseURL    = "https://services.leadconnectorhq.com"
	DefaultAPIVersion = "2021-07-28"
	DefaultTimeout    = 5 * time.Second
	DefaultBackoff    = 500 * time.Millisecond

	maxResponseBytes = 1 << 20
	tracerName       = "github.com/aussiebroadwan/onboard/internal/onboard/crm"
)

// duplicateIDPaths are tried in order against the body of a duplicate-contact
// 400. The CRM has shipped all of these at one point or another.
var duplicateIDPaths = []string{
	"meta.contactId",
	"meta.contact.id",
	"contactId",
	"contact.id",
	"id",
}

type Config struct {
	BaseURL    string
	APIKey     string
	LocationID string
	APIVersion string

	// Timeout bounds each HTTP attempt, not the whole call.
	Timeout time.Duration

	// Backoff is the fixed wait before the single retry.
	Backoff time.Duration

	HTTPClient *http.Client
}

// HTTPClient talks to the CRM over HTTP. Transient failures (transport
// errors, timeouts, 5xx) are retried once; 4xx responses never are.
type HTTPClient struct {
	cfg  Config
	http *http.Client
}

// New builds a client, or Disabled when no API key is configured.
func New(cfg Config) Client {
	if cfg.APIKey == "" {
		return Disabled{}
	}
	return NewHTTPClient(cfg)
}

func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &HTTPClient{cfg: cfg, http: hc}
}

// StatusError is a non-2xx response from the CRM.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	msg := gjson.GetBytes(e.Body, "message").String()
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("crm: status %d: %s", e.Status, msg)
}

func (c *HTTPClient) Lookup(ctx context.Context, email string) (Contact, error) {
	q := url.Values{}
	q.Set("locationId", c.cfg.LocationID)
	q.Set("email", domain.NormalizeEmail(email))

	body, _, err := c.call(ctx, "lookup", http.MethodGet, "/contacts/search/duplicate", q, nil)
	if err != nil {
		return Contact{}, classify(err)
	}

	var resp struct {
		Contact *Contact `json:"contact"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Contact{}, fmt.Errorf("crm: decode lookup: %w", domain.ErrUnavailable)
	}
	if resp.Contact == nil || resp.Contact.ID == "" {
		return Contact{}, fmt.Errorf("crm contact %s: %w", email, domain.ErrNotFound)
	}
	return *resp.Contact, nil
}

func (c *HTTPClient) Upsert(ctx context.Context, in Contact) (UpsertResult, error) {
	log := slogx.FromContext(ctx)

	in.Email = domain.NormalizeEmail(in.Email)
	in.LocationID = c.cfg.LocationID

	body, attempts, err := c.call(ctx, "create", http.MethodPost, "/contacts/", nil, in)
	if err == nil {
		out, err := decodeContact(body)
		if err != nil {
			return UpsertResult{Attempts: attempts}, err
		}
		return UpsertResult{Contact: out, Created: true, Attempts: attempts}, nil
	}

	// A duplicate comes back as a 400 with the existing id buried in the body
	id := duplicateContactID(err)
	if id == "" {
		return UpsertResult{Attempts: attempts}, classify(err)
	}
	log.Debug("crm contact already exists, updating", slog.String("contact_id", id))

	update := in
	update.ID = ""
	update.LocationID = "" // rejected on update

	body, more, err := c.call(ctx, "update", http.MethodPut, "/contacts/"+url.PathEscape(id), nil, update)
	attempts += more
	if err != nil {
		return UpsertResult{Attempts: attempts}, classify(err)
	}

	out, err := decodeContact(body)
	if err != nil {
		return UpsertResult{Attempts: attempts}, err
	}
	if out.ID == "" {
		out = in
		out.ID = id
	}
	return UpsertResult{Contact: out, Created: false, Attempts: attempts}, nil
}

func (c *HTTPClient) AddNote(ctx context.Context, contactID, text string) error {
	if contactID == "" {
		return fmt.Errorf("crm note without contact id: %w", domain.ErrInvalid)
	}
	_, _, err := c.call(ctx, "note", http.MethodPost,
		"/contacts/"+url.PathEscape(contactID)+"/notes", nil,
		map[string]string{"body": text},
	)
	return classify(err)
}

func (c *HTTPClient) DeleteContact(ctx context.Context, contactID string) error {
	_, _, err := c.call(ctx, "delete", http.MethodDelete, "/contacts/"+url.PathEscape(contactID), nil, nil)
	if err = classify(err); errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

// call performs one logical request, retrying once on transient failure.
// It returns the response body, the number of attempts and the raw error
// (a *StatusError for non-2xx responses).
func (c *HTTPClient) call(
	ctx context.Context,
	op, method, path string,
	query url.Values,
	payload any,
) ([]byte, int, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "crm."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("crm.operation", op),
	)

	start := time.Now()
	log := slogx.FromContext(ctx)

	var raw []byte
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return nil, 0, fmt.Errorf("crm: encode %s: %w", op, err)
		}
	}

	target := c.cfg.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	attempts := 0
	operation := func() ([]byte, error) {
		attempts++
		return c.attempt(ctx, method, target, raw)
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("crm call failed, retrying",
			slog.String("operation", op),
			slog.Duration("backoff", wait),
			slog.Any("error", err),
		)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.Backoff), 1),
		ctx,
	)
	body, err := backoff.RetryNotifyWithData(operation, policy, notify)

	metrics.ObserveExternal("crm", op, start, classify(err))
	span.SetAttributes(attribute.Int("crm.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return body, attempts, err
}

func (c *HTTPClient) attempt(ctx context.Context, method, target string, raw []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var body io.Reader
	if raw != nil {
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Version", c.cfg.APIVersion)
	req.Header.Set("Accept", "application/json")
	if raw != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, &StatusError{Status: resp.StatusCode, Body: out}
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(&StatusError{Status: resp.StatusCode, Body: out})
	}
	return out, nil
}

// classify maps a raw call error onto the domain taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Status == http.StatusNotFound:
			return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
		case se.Status < 500:
			return fmt.Errorf("%w: %w", domain.ErrInvalid, err)
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
}

// duplicateContactID returns the existing contact id when err is the CRM's
// duplicate-on-create response, or "" otherwise.
func duplicateContactID(err error) string {
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusBadRequest {
		return ""
	}
	for _, path := range duplicateIDPaths {
		if id := gjson.GetBytes(se.Body, path).String(); id != "" {
			return id
		}
	}
	return ""
}

func decodeContact(body []byte) (Contact, error) {
	var resp struct {
		Contact Contact `json:"contact"`
	}
	if len(body) == 0 {
		return Contact{}, nil
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Contact{}, fmt.Errorf("crm: decode contact: %w", domain.ErrUnavailable)
	}
	return resp.Contact, nil
}

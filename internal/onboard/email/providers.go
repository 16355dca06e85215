package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/onboard/pkg/idx"
	"github.com/aussiebroadwan/onboard/pkg/slogx"
	"github.com/tidwall/gjson"
)

// APIProvider posts to a Resend compatible HTTP API.
type APIProvider struct {
	ProviderName string
	Endpoint     string // e.g. https://api.resend.com
	APIKey       string
	From         string
	Client       *http.Client
}

func (p *APIProvider) Name() string { return p.ProviderName }

func (p *APIProvider) Send(ctx context.Context, msg Message) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"from":    p.From,
		"to":      []string{msg.To},
		"subject": msg.Subject,
		"text":    msg.Text,
		"html":    msg.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode: %v", ErrPermanent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.Endpoint, "/")+"/emails", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if msg.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", msg.IdempotencyKey)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 300 {
		reason := gjson.GetBytes(body, "message").String()
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		err := fmt.Errorf("%s: status %d: %s", p.ProviderName, resp.StatusCode, reason)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %w", ErrPermanent, err)
		}
		return "", err
	}

	id := gjson.GetBytes(body, "id").String()
	if id == "" {
		return "", fmt.Errorf("%s: response missing message id", p.ProviderName)
	}
	return id, nil
}

// LogProvider writes the message to the request logger instead of sending
// it. Used in development when no provider key is configured.
type LogProvider struct{}

func (LogProvider) Name() string { return "log" }

func (LogProvider) Send(ctx context.Context, msg Message) (string, error) {
	id := "log-" + idx.New().String()
	slogx.FromContext(ctx).Info("email not sent, logging instead",
		slog.String("message_id", id),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("text", msg.Text),
	)
	return id, nil
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cwrk-planet/attendance-service/config"
)

const brevoDefaultBaseURL = "https://api.brevo.com"

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoAttachment struct {
	Content string `json:"content"`
	Name    string `json:"name"`
}

type brevoRequest struct {
	Sender      brevoContact      `json:"sender"`
	To          []brevoContact    `json:"to"`
	Subject     string            `json:"subject"`
	TextContent string            `json:"textContent"`
	Attachment  []brevoAttachment `json:"attachment,omitempty"`
}

// Brevo — транзакционные письма через /v3/smtp/email.
type Brevo struct {
	baseURL string
	apiKey  string
	sender  brevoContact
	hc      *http.Client
}

func NewBrevo(cfg config.Brevo, hc *http.Client) *Brevo {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = brevoDefaultBaseURL
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Brevo{
		baseURL: base,
		apiKey:  cfg.APIKey,
		sender:  brevoContact{Email: cfg.SenderEmail, Name: cfg.SenderName},
		hc:      hc,
	}
}

func (b *Brevo) Send(ctx context.Context, m Message) error {
	if b.apiKey == "" || b.sender.Email == "" {
		return fmt.Errorf("brevo: %w", ErrNotConfigured)
	}

	body := brevoRequest{
		Sender:      b.sender,
		To:          []brevoContact{{Email: m.To, Name: m.ToName}},
		Subject:     m.Subject,
		TextContent: m.Text,
	}
	for _, a := range m.Attachments {
		body.Attachment = append(body.Attachment, brevoAttachment{Content: a.Content, Name: a.Name})
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("brevo: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v3/smtp/email", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("brevo: %w", err)
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.hc.Do(req)
	if err != nil {
		return fmt.Errorf("brevo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Provider: "brevo", Status: resp.StatusCode, Body: string(msg)}
	}
	return nil
}

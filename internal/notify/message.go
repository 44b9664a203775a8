// Package notify — best-effort доставка QR и подтверждений входа по email и WhatsApp.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNotConfigured = errors.New("provider not configured")

type Attachment struct {
	Name    string
	Type    string
	Content string // base64
}

type Message struct {
	To          string
	ToName      string
	Subject     string
	Text        string
	Attachments []Attachment
}

type EmailSender interface {
	Send(ctx context.Context, m Message) error
}

type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type WhatsAppSender interface {
	SendTemplate(ctx context.Context, phone, template string, params []Param) error
}

// APIError — ответ провайдера не-2xx или без признака успеха.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Body)
}

// NormalizePhone: только цифры, без международного 00; 10 цифр дополняются кодом страны.
func NormalizePhone(mobile, countryCode string) string {
	var b strings.Builder
	for _, r := range mobile {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimPrefix(b.String(), "00")
	if len(digits) == 10 && countryCode != "" {
		digits = countryCode + digits
	}
	return digits
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

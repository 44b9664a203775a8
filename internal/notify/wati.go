package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cwrk-planet/attendance-service/config"
)

const watiDefaultBroadcast = "utility"

type watiRequest struct {
	TemplateName  string  `json:"template_name"`
	BroadcastName string  `json:"broadcast_name"`
	Parameters    []Param `json:"parameters"`
	ChannelNumber string  `json:"channel_number,omitempty"`
}

// WATI — шаблонные сообщения WhatsApp через /api/v2/sendTemplateMessage.
type WATI struct {
	baseURL   string
	token     string
	broadcast string
	channel   string
	hc        *http.Client
}

func NewWATI(cfg config.WATI, hc *http.Client) *WATI {
	if hc == nil {
		hc = http.DefaultClient
	}
	broadcast := cfg.BroadcastName
	if broadcast == "" {
		broadcast = watiDefaultBroadcast
	}
	return &WATI{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     bearer(cfg.APIToken),
		broadcast: broadcast,
		channel:   cfg.ChannelNumber,
		hc:        hc,
	}
}

func bearer(token string) string {
	t := strings.TrimSpace(token)
	if t == "" || strings.HasPrefix(strings.ToLower(t), "bearer ") {
		return t
	}
	return "Bearer " + t
}

func (w *WATI) SendTemplate(ctx context.Context, phone, template string, params []Param) error {
	if w.baseURL == "" || w.token == "" || template == "" {
		return fmt.Errorf("wati: %w", ErrNotConfigured)
	}

	raw, err := json.Marshal(watiRequest{
		TemplateName:  template,
		BroadcastName: w.broadcast,
		Parameters:    params,
		ChannelNumber: w.channel,
	})
	if err != nil {
		return fmt.Errorf("wati: marshal: %w", err)
	}

	u := w.baseURL + "/api/v2/sendTemplateMessage?whatsappNumber=" + url.QueryEscape(phone)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("wati: %w", err)
	}
	req.Header.Set("Authorization", w.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.hc.Do(req)
	if err != nil {
		return fmt.Errorf("wati: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return &APIError{Provider: "wati", Status: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	// 200 ещё не успех: WATI сообщает результат полем result
	var out struct {
		Result bool `json:"result"`
	}
	if err := json.Unmarshal(body, &out); err != nil || !out.Result {
		return &APIError{Provider: "wati", Status: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	return nil
}

package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cwrk-planet/attendance-service/config"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type SendGrid struct {
	key  string
	host string
	from *sgmail.Email
}

func NewSendGrid(cfg config.SendGrid) *SendGrid {
	return &SendGrid{
		key:  cfg.APIKey,
		host: sendgridHost,
		from: sgmail.NewEmail(cfg.SenderName, cfg.SenderEmail),
	}
}

func (s *SendGrid) prepare(m Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.Subject
	p.AddTos(sgmail.NewEmail(m.ToName, m.To))

	mail := sgmail.NewV3Mail()
	mail.SetFrom(s.from)
	mail.AddPersonalizations(p)
	mail.AddContent(sgmail.NewContent("text/plain", m.Text))

	for _, a := range m.Attachments {
		typ := a.Type
		if typ == "" {
			typ = "application/octet-stream"
		}
		mail.AddAttachment(&sgmail.Attachment{
			Content:     a.Content,
			Type:        typ,
			Filename:    a.Name,
			Disposition: "attachment",
		})
	}
	return mail
}

// Send — sendgrid-go не принимает context; отмена проверяется до запроса.
func (s *SendGrid) Send(ctx context.Context, m Message) error {
	if s.key == "" || s.from.Address == "" {
		return fmt.Errorf("sendgrid: %w", ErrNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(m))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return &APIError{Provider: "sendgrid", Status: res.StatusCode, Body: truncate(res.Body, 512)}
	}
	return nil
}

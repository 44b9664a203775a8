package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/cwrk-planet/attendance-service/config"
	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/live"
	"github.com/cwrk-planet/attendance-service/internal/logger"
	"github.com/cwrk-planet/attendance-service/internal/repository"

	"golang.org/x/sync/semaphore"
)

const (
	entryTimeLayout = "02-Jan-2006 03:04 PM"
	defaultTimeout  = 20 * time.Second
)

type Publisher interface {
	Publish(ev live.Event) live.Event
}

// Info — что настроено, для /api/health и /api/config.
type Info struct {
	EmailProvider      string `json:"email_provider"`
	EmailConfigured    bool   `json:"email_configured"`
	WhatsAppConfigured bool   `json:"whatsapp_configured"`
	TemplateQR         string `json:"qr_template"`
	TemplateEntry      string `json:"entry_template"`
	BroadcastName      string `json:"broadcast_name"`
	PublicBaseURL      string `json:"public_base_url"`
}

// Dispatcher отправляет уведомления и фиксирует результат: статусы, audit, live-событие.
// Ошибки провайдеров никогда не возвращаются вызывающему.
type Dispatcher struct {
	cfg   config.Notify
	store repository.Store
	email EmailSender
	wa    WhatsAppSender
	pub   Publisher
	loc   *time.Location
	sem   *semaphore.Weighted // рассылка QR
	entry *semaphore.Weighted // подтверждения входа, не ждут bulk-рассылку
	wg    sync.WaitGroup
	log   *slog.Logger
}

// NewEmailSender — отправитель по настройке emailProvider.
func NewEmailSender(cfg config.Notify, hc *http.Client) EmailSender {
	if cfg.EmailProvider == config.EmailSendGrid {
		return NewSendGrid(cfg.SendGrid)
	}
	return NewBrevo(cfg.Brevo, hc)
}

func NewDispatcher(cfg config.Notify, store repository.Store, email EmailSender, wa WhatsAppSender, pub Publisher, log *slog.Logger) (*Dispatcher, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("notify: timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		cfg:   cfg,
		store: store,
		email: email,
		wa:    wa,
		pub:   pub,
		loc:   loc,
		sem:   semaphore.NewWeighted(int64(cfg.Concurrency)),
		entry: semaphore.NewWeighted(int64(cfg.Concurrency)),
		log:   log.With("component", "notify"),
	}, nil
}

func (d *Dispatcher) Info() Info {
	emailOK := false
	switch d.cfg.EmailProvider {
	case config.EmailSendGrid:
		emailOK = d.cfg.SendGrid.APIKey != "" && d.cfg.SendGrid.SenderEmail != ""
	default:
		emailOK = d.cfg.Brevo.APIKey != "" && d.cfg.Brevo.SenderEmail != ""
	}
	return Info{
		EmailProvider:      d.cfg.EmailProvider,
		EmailConfigured:    emailOK,
		WhatsAppConfigured: d.cfg.WATI.APIToken != "" && d.cfg.WATI.BaseURL != "",
		TemplateQR:         d.cfg.WATI.TemplateQR,
		TemplateEntry:      d.cfg.WATI.TemplateEntry,
		BroadcastName:      d.cfg.WATI.BroadcastName,
		PublicBaseURL:      d.cfg.PublicBaseURL,
	}
}

// QRURL — публичная ссылка на PNG, пустая без publicBaseURL.
func (d *Dispatcher) QRURL(attendeeID string) string {
	if d.cfg.PublicBaseURL == "" {
		return ""
	}
	return strings.TrimRight(d.cfg.PublicBaseURL, "/") + "/api/qr/" + attendeeID + ".png"
}

// SendQR блокирует до завершения отправки; true — доставлено по обоим каналам.
func (d *Dispatcher) SendQR(ctx context.Context, a domain.Attendee) bool {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer d.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	var lastErr string
	emailErr := d.sendEmail(ctx, Message{
		To:      a.Email,
		ToName:  a.Name,
		Subject: "Workshop QR Code - " + a.Batch,
		Text:    fmt.Sprintf("Dear %s,\nYour registration is confirmed.\nBatch: %s\nQR attached.", a.Name, a.Batch),
		Attachments: []Attachment{
			{Name: "qr_code.png", Type: "image/png", Content: a.QRCode},
		},
	})
	if emailErr != nil {
		lastErr = "email: " + emailErr.Error()
	}

	waErr := d.sendWhatsApp(ctx, a.Mobile, d.cfg.WATI.TemplateQR, []Param{
		{Name: "name", Value: a.Name},
		{Name: "batch", Value: a.Batch},
		{Name: "qr_code", Value: d.QRURL(a.ID)},
	})
	if waErr != nil {
		lastErr = "whatsapp: " + waErr.Error()
	}

	emailStatus, waStatus := status(emailErr), status(waErr)
	lastErr = truncate(lastErr, 500)

	bg := context.WithoutCancel(ctx)
	if err := d.store.Attendees().UpdateQRStatus(bg, a.ID, emailStatus, waStatus, lastErr); err != nil {
		d.log.Warn("qr status update failed", slog.String("attendee_id", a.ID), logger.Err(err))
	}
	d.audit(bg, domain.ActionRegister, a, emailStatus, waStatus, lastErr)
	d.pub.Publish(live.QRDelivery(a.ID, emailStatus, waStatus, lastErr))

	d.log.Debug("qr dispatched",
		slog.String("attendee_id", a.ID),
		slog.String("email", emailStatus),
		slog.String("whatsapp", waStatus),
	)
	return emailErr == nil && waErr == nil
}

// NotifyCheckedIn не блокирует; Wait дожидается фоновых отправок.
func (d *Dispatcher) NotifyCheckedIn(a domain.Attendee, at time.Time) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sendEntry(a, at)
	}()
}

func (d *Dispatcher) sendEntry(a domain.Attendee, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	if err := d.entry.Acquire(ctx, 1); err != nil {
		d.log.Warn("entry notification not sent", slog.String("attendee_id", a.ID), logger.Err(err))
		d.finishEntry(ctx, a, domain.DeliveryFailed, domain.DeliveryFailed, "queue: "+err.Error())
		return
	}
	defer d.entry.Release(1)

	local := at.In(d.loc)
	var lastErr string

	emailErr := d.sendEmail(ctx, Message{
		To:      a.Email,
		ToName:  a.Name,
		Subject: "Entry Confirmed - " + a.Batch,
		Text:    fmt.Sprintf("Dear %s,\nYour entry at %s is confirmed.\nEnjoy the workshop!", a.Name, local.Format(entryTimeLayout+" MST")),
	})
	if emailErr != nil {
		lastErr = "email: " + emailErr.Error()
	}

	waErr := d.sendWhatsApp(ctx, a.Mobile, d.cfg.WATI.TemplateEntry, []Param{
		{Name: "name", Value: a.Name},
		{Name: "batch", Value: a.Batch},
		{Name: "time", Value: local.Format(entryTimeLayout)},
		{Name: "email", Value: a.Email},
	})
	if waErr != nil {
		lastErr = "whatsapp: " + waErr.Error()
	}

	d.finishEntry(ctx, a, status(emailErr), status(waErr), lastErr)
}

// finishEntry фиксирует исход подтверждения входа: статусы, audit, live-событие.
func (d *Dispatcher) finishEntry(ctx context.Context, a domain.Attendee, emailStatus, waStatus, lastErr string) {
	bg := context.WithoutCancel(ctx)
	if err := d.store.Attendance().UpdateEntryStatus(bg, a.ID, emailStatus, waStatus); err != nil {
		d.log.Warn("entry status update failed", slog.String("attendee_id", a.ID), logger.Err(err))
	}
	d.audit(bg, domain.ActionEntry, a, emailStatus, waStatus, truncate(lastErr, 500))
	d.pub.Publish(live.EntryDelivery(a.ID, emailStatus, waStatus))
}

// Wait — для graceful shutdown.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, m Message) error {
	if d.email == nil {
		return ErrNotConfigured
	}
	if strings.TrimSpace(m.To) == "" {
		return errors.New("no email address")
	}
	return d.email.Send(ctx, m)
}

func (d *Dispatcher) sendWhatsApp(ctx context.Context, mobile, template string, params []Param) error {
	if d.wa == nil {
		return ErrNotConfigured
	}
	phone := NormalizePhone(mobile, d.cfg.WATI.DefaultCountryCode)
	if phone == "" {
		return errors.New("no phone number")
	}
	return d.wa.SendTemplate(ctx, phone, template, params)
}

func (d *Dispatcher) audit(ctx context.Context, action string, a domain.Attendee, emailStatus, waStatus, lastErr string) {
	id := a.ID
	err := d.store.Audit().Insert(ctx, &domain.AuditLog{
		AttendeeID:  &id,
		Action:      action,
		EmailStatus: emailStatus,
		WAStatus:    waStatus,
		LastError:   lastErr,
		Details:     a.Token,
	})
	if err != nil {
		d.log.Warn("audit insert failed", slog.String("action", action), logger.Err(err))
	}
}

func status(err error) string {
	if err != nil {
		return domain.DeliveryFailed
	}
	return domain.DeliverySent
}

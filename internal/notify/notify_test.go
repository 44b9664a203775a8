package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/attendance-service/config"
	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/live"
	"github.com/cwrk-planet/attendance-service/internal/memstore"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in, cc, want string
	}{
		{"98765 43210", "91", "919876543210"},
		{"+91-98765-43210", "91", "919876543210"},
		{"0091 9876543210", "91", "919876543210"},
		{"9876543210", "", "9876543210"},
		{"abc", "91", ""},
	}
	for _, c := range cases {
		if got := NormalizePhone(c.in, c.cc); got != c.want {
			t.Errorf("NormalizePhone(%q, %q) = %q, want %q", c.in, c.cc, got, c.want)
		}
	}
}

func TestBrevoSend(t *testing.T) {
	var got brevoRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/smtp/email" || r.Header.Get("api-key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	b := NewBrevo(config.Brevo{BaseURL: srv.URL, APIKey: "k", SenderEmail: "from@x.io", SenderName: "Workshop"}, srv.Client())
	err := b.Send(context.Background(), Message{To: "ann@x.io", Subject: "s", Text: "t", Attachments: []Attachment{{Name: "qr_code.png", Content: "AAA"}}})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Sender.Email != "from@x.io" || len(got.To) != 1 || got.To[0].Email != "ann@x.io" || len(got.Attachment) != 1 {
		t.Fatalf("request = %+v", got)
	}

	bad := NewBrevo(config.Brevo{BaseURL: srv.URL, APIKey: "wrong", SenderEmail: "from@x.io"}, srv.Client())
	var apiErr *APIError
	if err := bad.Send(context.Background(), Message{To: "a@x.io"}); !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("err = %v", err)
	}

	if err := NewBrevo(config.Brevo{}, nil).Send(context.Background(), Message{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("unconfigured err = %v", err)
	}
}

func TestWATISendTemplate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req watiRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		ok := r.URL.Query().Get("whatsappNumber") == "919876543210" && req.BroadcastName == "utility"
		_ = json.NewEncoder(w).Encode(map[string]any{"result": ok})
	}))
	defer srv.Close()

	w := NewWATI(config.WATI{BaseURL: srv.URL + "/", APIToken: "tok"}, srv.Client())
	if err := w.SendTemplate(context.Background(), "919876543210", "qr", nil); err != nil {
		t.Fatalf("SendTemplate: %v", err)
	}
	if err := w.SendTemplate(context.Background(), "1", "qr", nil); err == nil {
		t.Fatal("result=false must be an error")
	}
	if err := w.SendTemplate(context.Background(), "919876543210", "", nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("no template err = %v", err)
	}

	// уже с префиксом Bearer
	w = NewWATI(config.WATI{BaseURL: srv.URL, APIToken: "bearer tok"}, srv.Client())
	if w.token != "bearer tok" {
		t.Fatalf("token = %q", w.token)
	}
}

type recEmail struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (r *recEmail) Send(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return r.err
}

type recWA struct {
	mu     sync.Mutex
	phones []string
	params [][]Param
	err    error
}

func (r *recWA) SendTemplate(_ context.Context, phone, _ string, params []Param) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phones = append(r.phones, phone)
	r.params = append(r.params, params)
	return r.err
}

type recPub struct {
	mu  sync.Mutex
	evs []live.Event
}

func (p *recPub) Publish(ev live.Event) live.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evs = append(p.evs, ev)
	return ev
}

func testNotifyConfig() config.Notify {
	return config.Notify{
		PublicBaseURL: "https://checkin.example.com/",
		Concurrency:   2,
		Timeout:       time.Second,
		Timezone:      "Asia/Kolkata",
		WATI:          config.WATI{TemplateQR: "qr", TemplateEntry: "entry", DefaultCountryCode: "91"},
	}
}

func seedAttendee(t *testing.T, s *memstore.Store) domain.Attendee {
	t.Helper()
	a := domain.Attendee{ID: "a1", Name: "Ann", Email: "ann@x.io", Mobile: "98765 43210", Batch: "B1", Token: domain.TokenFor("a1"), QRCode: "UE5H"}
	if err := s.Attendees().CreateMany(context.Background(), []domain.Attendee{a}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return a
}

func TestDispatcher_SendQR(t *testing.T) {
	s := memstore.New()
	a := seedAttendee(t, s)
	email, wa, pub := &recEmail{}, &recWA{err: errors.New("wati down")}, &recPub{}

	d, err := NewDispatcher(testNotifyConfig(), s, email, wa, pub, nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	if d.SendQR(context.Background(), a) {
		t.Fatal("SendQR reported success with failed whatsapp")
	}

	got, _ := s.Attendees().GetByID(context.Background(), a.ID)
	if got.QREmailStatus != domain.DeliverySent || got.QRWhatsAppStatus != domain.DeliveryFailed || !strings.Contains(got.QRLastError, "wati down") {
		t.Fatalf("statuses = %q %q %q", got.QREmailStatus, got.QRWhatsAppStatus, got.QRLastError)
	}
	if len(email.msgs) != 1 || len(email.msgs[0].Attachments) != 1 || email.msgs[0].Attachments[0].Content != "UE5H" {
		t.Fatalf("email = %+v", email.msgs)
	}
	if wa.phones[0] != "919876543210" || wa.params[0][2].Value != "https://checkin.example.com/api/qr/a1.png" {
		t.Fatalf("wa = %v %v", wa.phones, wa.params)
	}
	if len(pub.evs) != 1 || pub.evs[0].Type != live.TypeDeliveryStatus {
		t.Fatalf("events = %+v", pub.evs)
	}
	logs, _ := s.Audit().List(context.Background(), 10, domain.ActionRegister)
	if len(logs) != 1 || logs[0].WAStatus != domain.DeliveryFailed {
		t.Fatalf("audit = %+v", logs)
	}
}

func TestDispatcher_NotifyCheckedIn(t *testing.T) {
	s := memstore.New()
	a := seedAttendee(t, s)
	at := time.Date(2026, 3, 14, 4, 0, 0, 0, time.UTC)
	if _, _, err := s.Attendance().Record(context.Background(), a.ID, at); err != nil {
		t.Fatalf("Record: %v", err)
	}
	email, wa, pub := &recEmail{}, &recWA{}, &recPub{}
	d, err := NewDispatcher(testNotifyConfig(), s, email, wa, pub, nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	d.NotifyCheckedIn(a, at)
	if err := d.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if !strings.Contains(email.msgs[0].Text, "14-Mar-2026 09:30 AM IST") {
		t.Fatalf("email text = %q", email.msgs[0].Text)
	}
	if wa.params[0][2].Value != "14-Mar-2026 09:30 AM" {
		t.Fatalf("wa time = %q", wa.params[0][2].Value)
	}

	rows, _ := s.Attendees().ListLive(context.Background())
	if rows[0].EntryEmailStatus != domain.DeliverySent || rows[0].EntryWhatsAppStatus != domain.DeliverySent {
		t.Fatalf("entry statuses = %+v", rows[0])
	}
	if len(pub.evs) != 1 || pub.evs[0].EntryEmailStatus == nil || *pub.evs[0].EntryEmailStatus != domain.DeliverySent {
		t.Fatalf("events = %+v", pub.evs)
	}
}

func TestDispatcher_Unconfigured(t *testing.T) {
	s := memstore.New()
	a := seedAttendee(t, s)
	d, err := NewDispatcher(testNotifyConfig(), s, nil, nil, &recPub{}, nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	if d.SendQR(context.Background(), a) {
		t.Fatal("unconfigured providers reported success")
	}
	if info := d.Info(); info.EmailConfigured || info.WhatsAppConfigured {
		t.Fatalf("info = %+v", info)
	}

	if _, err := NewDispatcher(config.Notify{Timezone: "Mars/Olympus"}, s, nil, nil, &recPub{}, nil); err == nil {
		t.Fatal("bad timezone accepted")
	}
}

func TestDispatcher_EntryNotBlockedByQRBacklog(t *testing.T) {
	s := memstore.New()
	a := seedAttendee(t, s)
	at := time.Date(2026, 3, 14, 4, 0, 0, 0, time.UTC)
	if _, _, err := s.Attendance().Record(context.Background(), a.ID, at); err != nil {
		t.Fatalf("Record: %v", err)
	}
	email, pub := &recEmail{}, &recPub{}
	d, err := NewDispatcher(testNotifyConfig(), s, email, &recWA{}, pub, nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	// все слоты QR-рассылки заняты
	if err := d.sem.Acquire(context.Background(), int64(testNotifyConfig().Concurrency)); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer d.sem.Release(int64(testNotifyConfig().Concurrency))

	d.NotifyCheckedIn(a, at)
	if err := d.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	rows, _ := s.Attendees().ListLive(context.Background())
	if rows[0].EntryEmailStatus != domain.DeliverySent {
		t.Fatalf("entry email status = %q", rows[0].EntryEmailStatus)
	}
}

func TestDispatcher_EntryQueueTimeoutRecordsFailure(t *testing.T) {
	s := memstore.New()
	a := seedAttendee(t, s)
	at := time.Date(2026, 3, 14, 4, 0, 0, 0, time.UTC)
	if _, _, err := s.Attendance().Record(context.Background(), a.ID, at); err != nil {
		t.Fatalf("Record: %v", err)
	}
	cfg := testNotifyConfig()
	cfg.Timeout = 50 * time.Millisecond
	email, pub := &recEmail{}, &recPub{}
	d, err := NewDispatcher(cfg, s, email, &recWA{}, pub, nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	if err := d.entry.Acquire(context.Background(), int64(cfg.Concurrency)); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer d.entry.Release(int64(cfg.Concurrency))

	d.NotifyCheckedIn(a, at)
	if err := d.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if len(email.msgs) != 0 {
		t.Fatalf("email sent despite full queue: %+v", email.msgs)
	}
	rows, _ := s.Attendees().ListLive(context.Background())
	if rows[0].EntryEmailStatus != domain.DeliveryFailed || rows[0].EntryWhatsAppStatus != domain.DeliveryFailed {
		t.Fatalf("entry statuses = %+v", rows[0])
	}
	logs, _ := s.Audit().List(context.Background(), 10, domain.ActionEntry)
	if len(logs) != 1 || !strings.Contains(logs[0].LastError, "queue") {
		t.Fatalf("audit = %+v", logs)
	}
	if len(pub.evs) != 1 || pub.evs[0].EntryEmailStatus == nil || *pub.evs[0].EntryEmailStatus != domain.DeliveryFailed {
		t.Fatalf("events = %+v", pub.evs)
	}
}

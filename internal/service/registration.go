package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/logger"
	"github.com/cwrk-planet/attendance-service/internal/repository"
	"github.com/cwrk-planet/attendance-service/internal/validate"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"golang.org/x/sync/errgroup"
)

const (
	qrSize           = 310
	defaultResendCap = 200
	maxResend        = 1000
)

var csvHeader = []string{"name", "email", "mobile", "batch"}

type Registered struct {
	Attendee domain.Attendee
	QRSent   bool
}

type ResendResult struct {
	Retried int `json:"retried"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

type Registration struct {
	attendees   repository.AttendeeRepository
	notifier    Notifier
	concurrency int
	log         *slog.Logger
	now         func() time.Time
}

func NewRegistration(attendees repository.AttendeeRepository, notifier Notifier, concurrency int, log *slog.Logger, now func() time.Time) *Registration {
	if concurrency <= 0 {
		concurrency = 5
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Registration{
		attendees:   attendees,
		notifier:    notifier,
		concurrency: concurrency,
		log:         log.With("component", "registration"),
		now:         now,
	}
}

func (s *Registration) Register(ctx context.Context, in domain.NewAttendee) (Registered, error) {
	out, err := s.RegisterMany(ctx, []domain.NewAttendee{in})
	if err != nil {
		return Registered{}, err
	}
	return out[0], nil
}

// RegisterMany сохраняет всех участников одной операцией, затем рассылает QR.
func (s *Registration) RegisterMany(ctx context.Context, in []domain.NewAttendee) ([]Registered, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: no attendees", domain.ErrInvalidInput)
	}

	list := make([]domain.Attendee, 0, len(in))
	for i, n := range in {
		n = n.Normalize()
		if err := validate.Struct(n); err != nil {
			return nil, fmt.Errorf("attendee %d: %w", i+1, err)
		}
		a, err := s.build(n)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}

	if err := s.attendees.CreateMany(ctx, list); err != nil {
		s.log.Error("registration.createMany failed", slog.Int("count", len(list)), logger.Err(err))
		return nil, storeErr("create attendees", err)
	}
	s.log.Info("attendees registered", slog.Int("count", len(list)))

	sent := s.dispatchQR(ctx, list)
	out := make([]Registered, len(list))
	for i, a := range list {
		out[i] = Registered{Attendee: a, QRSent: sent[i]}
	}
	return out, nil
}

func (s *Registration) build(n domain.NewAttendee) (domain.Attendee, error) {
	id := uuid.NewString()
	token := domain.TokenFor(id)

	png, err := qrcode.Encode(token, qrcode.Medium, qrSize)
	if err != nil {
		return domain.Attendee{}, fmt.Errorf("encode qr: %w", err)
	}

	return domain.Attendee{
		ID:        id,
		Name:      n.Name,
		Email:     n.Email,
		Mobile:    n.Mobile,
		Batch:     n.Batch,
		Token:     token,
		QRCode:    base64.StdEncoding.EncodeToString(png),
		CreatedAt: s.now().UTC(),
	}, nil
}

// dispatchQR — параллельно, не больше concurrency одновременно.
// Отправка не привязана к отмене запроса: участники уже сохранены.
func (s *Registration) dispatchQR(ctx context.Context, list []domain.Attendee) []bool {
	ctx = context.WithoutCancel(ctx)
	results := make([]bool, len(list))

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i, a := range list {
		g.Go(func() error {
			results[i] = s.notifier.SendQR(ctx, a)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ParseCSV читает файл с заголовком ровно name,email,mobile,batch (UTF-8, BOM допускается).
func ParseCSV(r io.Reader) ([]domain.NewAttendee, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty csv", domain.ErrInvalidInput)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	got := make([]string, len(header))
	for i, h := range header {
		got[i] = strings.ToLower(strings.TrimSpace(h))
	}
	if strings.Join(got, ",") != strings.Join(csvHeader, ",") {
		return nil, fmt.Errorf("%w: CSV must contain exact columns: %v, got %v", domain.ErrInvalidInput, csvHeader, got)
	}

	var out []domain.NewAttendee
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrInvalidInput, line, err)
		}
		out = append(out, domain.NewAttendee{
			Name:   rec[0],
			Email:  rec[1],
			Mobile: rec[2],
			Batch:  rec[3],
		}.Normalize())
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: csv has no rows", domain.ErrInvalidInput)
	}
	return out, nil
}

func (s *Registration) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	rows, err := ParseCSV(r)
	if err != nil {
		return 0, err
	}
	out, err := s.RegisterMany(ctx, rows)
	if err != nil {
		return 0, err
	}
	return len(out), nil
}

// QRImage — PNG по id участника.
func (s *Registration) QRImage(ctx context.Context, id string) ([]byte, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrAttendeeNotFound
	}
	a, err := s.attendees.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrAttendeeNotFound
		}
		return nil, storeErr("get attendee", err)
	}
	png, err := base64.StdEncoding.DecodeString(a.QRCode)
	if err != nil {
		return nil, fmt.Errorf("decode qr: %w", err)
	}
	return png, nil
}

// ResendPending повторяет отправку QR тем, у кого хотя бы один канал не "sent".
func (s *Registration) ResendPending(ctx context.Context, limit int) (ResendResult, error) {
	if limit <= 0 {
		limit = defaultResendCap
	}
	limit = min(limit, maxResend)

	list, err := s.attendees.ListPendingQR(ctx, limit)
	if err != nil {
		return ResendResult{}, storeErr("list pending", err)
	}

	res := ResendResult{Retried: len(list)}
	for _, ok := range s.dispatchQR(ctx, list) {
		if ok {
			res.Success++
		}
	}
	res.Failed = res.Retried - res.Success

	s.log.Info("resend pending done", slog.Int("retried", res.Retried), slog.Int("success", res.Success))
	return res, nil
}

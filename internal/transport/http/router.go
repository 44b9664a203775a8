package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/errs"
	"github.com/cwrk-planet/attendance-service/internal/httputil"
	"github.com/cwrk-planet/attendance-service/internal/live"
	"github.com/cwrk-planet/attendance-service/internal/logger"
	"github.com/cwrk-planet/attendance-service/internal/notify"
	"github.com/cwrk-planet/attendance-service/internal/service"
	"github.com/cwrk-planet/attendance-service/internal/validate"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
)

// ProviderInfo — сведения о настроенных каналах уведомлений.
type ProviderInfo interface {
	Info() notify.Info
}

type Deps struct {
	Registrar      *service.Registrar
	Registration   *service.Registration
	Dashboard      *service.Dashboard
	Staff          *service.StaffService
	Live           *live.Broadcaster
	Providers      ProviderInfo
	Concurrency    int
	AllowedOrigins []string
	Logger         *slog.Logger
}

type Handlers struct {
	registrar    *service.Registrar
	registration *service.Registration
	dashboard    *service.Dashboard
	staff        *service.StaffService
	auth         Authenticator
	live         *live.Broadcaster
	providers    ProviderInfo
	concurrency  int
	upgrader     websocket.Upgrader
	now          func() time.Time
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = logger.L()
	}
	h := &Handlers{
		registrar:    d.Registrar,
		registration: d.Registration,
		dashboard:    d.Dashboard,
		staff:        d.Staff,
		auth:         d.Staff,
		live:         d.Live,
		providers:    d.Providers,
		concurrency:  d.Concurrency,
		upgrader:     newUpgrader(d.AllowedOrigins),
		now:          time.Now,
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httputil.RequestID)
	r.Use(httputil.WithRequestLogger(d.Logger))
	r.Use(httputil.RequestLogger)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Post("/staff/login", h.Login)
		r.Get("/qr/{id}.png", h.QRImage)

		r.Group(func(r chi.Router) {
			r.Use(h.requireStaff)

			r.Post("/scan", h.Scan)
			r.Get("/attendees/live", h.LiveSnapshot)
			r.Get("/attendees/stream", h.Stream)
			r.Post("/register/single", h.RegisterSingle)
			r.Post("/register/bulk", h.RegisterBulk)
			r.Post("/upload/csv", h.UploadCSV)
			r.Post("/resend/pending", h.ResendPending)
			r.Get("/attendance/dashboard", h.AttendanceDashboard)

			r.Group(func(r chi.Router) {
				r.Use(h.requireRole(domain.RoleAdmin))

				r.Get("/config", h.Config)
				r.Route("/admin", func(r chi.Router) {
					r.Get("/dashboard", h.AdminDashboard)
					r.Get("/audit-logs", h.AuditLogs)

					r.Post("/staff", h.CreateStaff)
					r.Get("/staff", h.ListStaff)
					r.Get("/staff/{id}", h.GetStaff)
					r.Put("/staff/{id}", h.UpdateStaff)
					r.Delete("/staff/{id}", h.DeleteStaff)
				})
			})
		})
	})

	return r
}

// fail пишет ошибку в конверте; 5xx логируются с причиной.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error, meta map[string]any) {
	he := errs.ToHTTP(err)
	if he.Status >= http.StatusInternalServerError {
		httputil.L(r.Context()).Error("request failed", logger.Err(err))
	}
	httputil.Error(r.Context(), w, he.Status, he.Kind, he.Message, meta)
}

// decode — JSON-тело + теги validate; любая ошибка — invalid_input.
func decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", domain.ErrInvalidInput)
		}
		return fmt.Errorf("%w: invalid JSON", domain.ErrInvalidInput)
	}
	return validate.Struct(v)
}

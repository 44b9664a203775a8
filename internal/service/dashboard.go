package service

import (
	"context"

	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/repository"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
	recentActivities  = 10
)

type AttendanceSummary struct {
	Registered int64
	Attended   int64
	Rate       float64
	Batches    []domain.BatchStat
}

type AdminSummary struct {
	Staff      domain.StaffCounts
	Attendance AttendanceSummary
	Delivery   domain.DeliveryCounts
	Recent     []domain.AuditLog
}

// Dashboard — read-only агрегаты для панелей.
type Dashboard struct {
	store repository.Store
}

func NewDashboard(store repository.Store) *Dashboard {
	return &Dashboard{store: store}
}

// Live — снапшот для live-таблицы.
func (d *Dashboard) Live(ctx context.Context) ([]domain.AttendeeView, error) {
	rows, err := d.store.Attendees().ListLive(ctx)
	if err != nil {
		return nil, storeErr("list live", err)
	}
	return rows, nil
}

func (d *Dashboard) Attendance(ctx context.Context) (AttendanceSummary, error) {
	reg, att, err := d.store.Stats().Totals(ctx)
	if err != nil {
		return AttendanceSummary{}, storeErr("totals", err)
	}
	batches, err := d.store.Stats().ByBatch(ctx)
	if err != nil {
		return AttendanceSummary{}, storeErr("batch stats", err)
	}
	return AttendanceSummary{
		Registered: reg,
		Attended:   att,
		Rate:       domain.Rate(att, reg),
		Batches:    batches,
	}, nil
}

func (d *Dashboard) Admin(ctx context.Context) (AdminSummary, error) {
	att, err := d.Attendance(ctx)
	if err != nil {
		return AdminSummary{}, err
	}
	staff, err := d.store.Staff().Counts(ctx)
	if err != nil {
		return AdminSummary{}, storeErr("staff counts", err)
	}
	delivery, err := d.store.Audit().DeliveryCounts(ctx)
	if err != nil {
		return AdminSummary{}, storeErr("delivery counts", err)
	}
	recent, err := d.store.Audit().List(ctx, recentActivities, "")
	if err != nil {
		return AdminSummary{}, storeErr("recent activity", err)
	}
	return AdminSummary{Staff: staff, Attendance: att, Delivery: delivery, Recent: recent}, nil
}

func (d *Dashboard) AuditLogs(ctx context.Context, limit int, actionFilter string) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	limit = min(limit, maxAuditLimit)

	logs, err := d.store.Audit().List(ctx, limit, actionFilter)
	if err != nil {
		return nil, storeErr("list audit", err)
	}
	return logs, nil
}

func (d *Dashboard) Ping(ctx context.Context) error {
	if err := d.store.Ping(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

package service

import (
	"time"

	"github.com/bitfantasy/nimo-hr/internal/config"
	"github.com/bitfantasy/nimo-hr/internal/hr/notify"
	"github.com/bitfantasy/nimo-hr/internal/hr/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Services bundles the hr services.
type Services struct {
	Timesheet *TimesheetService
	Task      *TaskService
	Workload  *WorkloadService
	Analytics *AnalyticsService
	Bulk      *BulkService
}

// Options carries the collaborators shared by all services. Zero values are
// replaced with working defaults.
type Options struct {
	Logger   *zap.Logger
	Redis    *redis.Client
	Notifier notify.Sender
	Now      func() time.Time
}

// NewServices wires the services over one repository set.
func NewServices(repos *repository.Repositories, cfg *config.Config, opts Options) *Services {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Notifier == nil {
		opts.Notifier = &notify.Recorder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	now := func() time.Time { return opts.Now().UTC() }

	workload := NewWorkloadService(repos, opts.Redis, cfg.Workload, cfg.Redis.CacheTTL, now, opts.Logger)
	analytics := NewAnalyticsService(repos, TrendPolicyFrom(cfg.Analytics), now, opts.Logger)
	task := NewTaskService(repos, workload, analytics, now, opts.Logger)

	return &Services{
		Timesheet: NewTimesheetService(repos, analytics, opts.Notifier, cfg.I18n.DefaultLocale, now, opts.Logger),
		Task:      task,
		Workload:  workload,
		Analytics: analytics,
		Bulk:      NewBulkService(repos, task, opts.Notifier, cfg.Bulk, now, opts.Logger),
	}
}

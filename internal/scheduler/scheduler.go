// Package scheduler runs the periodic optimization, weekly report and
// history retention jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"pricing-service/config"
	"pricing-service/internal/service"
	"pricing-service/internal/util"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Optimizer is satisfied by *service.Optimizer
type Optimizer interface {
	OptimizeAll(ctx context.Context) (*service.BatchReport, error)
}

// Reporter is satisfied by *service.ReportService
type Reporter interface {
	SendWeeklyReports(ctx context.Context) (int, error)
	PurgeHistory(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron      *cron.Cron
	optimizer Optimizer
	reporter  Reporter
	ctx       context.Context
	cancel    context.CancelFunc
	running   sync.WaitGroup
	logger    *zap.Logger
}

// New registers the jobs. An invalid cron spec is an error.
func New(cfg config.SchedulerConfig, optimizer Optimizer, reporter Reporter) (*Scheduler, error) {
	logger := util.GetLogger()
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		// a run still in progress makes the next tick a no-op
		cron:      cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		optimizer: optimizer,
		reporter:  reporter,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{"optimize", cfg.OptimizeSpec, s.runOptimization},
		{"weekly-report", cfg.WeeklyReportSpec, s.runWeeklyReports},
		{"retention", cfg.RetentionSpec, s.runRetention},
	}
	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() { s.track(job.name, job.run) }); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid %s schedule %q: %w", job.name, job.spec, err)
		}
		logger.Info("Scheduled job", zap.String("job", job.name), zap.String("spec", job.spec))
	}

	return s, nil
}

// Start starts the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.running.Wait()
}

func (s *Scheduler) track(name string, run func(context.Context)) {
	s.running.Add(1)
	defer s.running.Done()

	if s.ctx.Err() != nil {
		return
	}
	s.logger.Debug("Running scheduled job", zap.String("job", name))
	run(s.ctx)
}

func (s *Scheduler) runOptimization(ctx context.Context) {
	report, err := s.optimizer.OptimizeAll(ctx)
	if err != nil {
		s.logger.Error("Scheduled optimization failed", zap.Error(err))
		return
	}
	s.logger.Info("Scheduled optimization finished", zap.Int("users", len(report.Users)))
}

func (s *Scheduler) runWeeklyReports(ctx context.Context) {
	if _, err := s.reporter.SendWeeklyReports(ctx); err != nil {
		s.logger.Error("Weekly reports failed", zap.Error(err))
	}
}

func (s *Scheduler) runRetention(ctx context.Context) {
	if _, err := s.reporter.PurgeHistory(ctx); err != nil {
		s.logger.Error("History retention failed", zap.Error(err))
	}
}

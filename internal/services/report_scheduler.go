package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clubledger/internal/core"
	"clubledger/internal/storage"
)

// ReportSchedulerConfig holds configuration for the report scheduler
type ReportSchedulerConfig struct {
	// CheckInterval is how often dueness is evaluated (default: 1h)
	CheckInterval time.Duration

	// RunDay is the day of month from which last month's report is produced (default: 1)
	RunDay int

	// StaleAfter is how old a pending reservation must be before it is cleared (default: 30m)
	StaleAfter time.Duration

	// NotificationsDefault applies when the settings store holds no value
	NotificationsDefault bool
}

// DefaultReportSchedulerConfig returns sensible defaults
func DefaultReportSchedulerConfig() ReportSchedulerConfig {
	return ReportSchedulerConfig{
		CheckInterval:        time.Hour,
		RunDay:               1,
		StaleAfter:           30 * time.Minute,
		NotificationsDefault: true,
	}
}

// ReportRunner is the part of ReportGenerator the scheduler drives.
type ReportRunner interface {
	Run(ctx context.Context, req RunRequest) (RunResult, error)
}

// ReportScheduler runs the automatic monthly report once the run day of a
// new month is reached.
type ReportScheduler struct {
	runner   ReportRunner
	index    storage.ReportIndex
	settings storage.SettingsStore
	config   ReportSchedulerConfig
	checker  MonthlyChecker
	now      func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	last    core.Period
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReportScheduler(
	runner ReportRunner,
	index storage.ReportIndex,
	settings storage.SettingsStore,
	config ReportSchedulerConfig,
) *ReportScheduler {
	return &ReportScheduler{
		runner:   runner,
		index:    index,
		settings: settings,
		config:   config,
		checker:  MonthlyChecker{RunDay: config.RunDay},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the check loop. Returns an error if already running.
func (s *ReportScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("report scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.releaseStale(ctx)

	go s.runLoop(ctx)

	slog.InfoContext(ctx, "Report scheduler started",
		"check_interval", s.config.CheckInterval,
		"run_day", s.config.RunDay)
	return nil
}

// Stop signals the loop and waits for the current check to finish.
func (s *ReportScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Report scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Report scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *ReportScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *ReportScheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	s.Check(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.releaseStale(ctx)
			s.Check(ctx)
		}
	}
}

// Check runs the automatic report when due. It returns true when a run was
// attempted.
func (s *ReportScheduler) Check(ctx context.Context) bool {
	now := s.now()

	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if !s.checker.IsDue(last, now) {
		return false
	}

	enabled, err := s.settings.NotificationsEnabled(ctx, s.config.NotificationsDefault)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read notification setting, using default",
			"default", s.config.NotificationsDefault, "error", err)
		enabled = s.config.NotificationsDefault
	}

	period := core.PreviousPeriod(now)
	res, err := s.runner.Run(ctx, RunRequest{
		Period:               &period,
		Mode:                 core.ModeAutomatic,
		NotificationsEnabled: enabled,
	})
	if err != nil {
		// Left unmarked so the next tick retries.
		slog.ErrorContext(ctx, "Scheduled report failed", "period", period.String(), "error", err)
		return true
	}

	s.mu.Lock()
	s.last = period
	s.mu.Unlock()

	slog.InfoContext(ctx, "Scheduled report finished",
		"period", period.String(),
		"status", res.Status,
		"notified", res.Notified,
		"notification_failures", len(res.NotificationFailures))
	return true
}

func (s *ReportScheduler) releaseStale(ctx context.Context) {
	n, err := s.index.ReleaseStale(ctx, s.now().Add(-s.config.StaleAfter))
	if err != nil {
		slog.WarnContext(ctx, "Failed to release stale report reservations", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Released stale report reservations", "count", n)
	}
}

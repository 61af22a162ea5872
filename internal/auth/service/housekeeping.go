package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/store"
)

const (
	DefaultHousekeepingInterval = 10 * time.Minute
	DefaultOtpRetention         = time.Hour
)

// HousekeepingService periodically removes pending codes that expired more
// than Retention ago. Codes inside the retention window are kept so a late
// verification still reports ErrOtpExpired rather than ErrOtpNotFound.
type HousekeepingService struct {
	Store     store.Store
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration
	Now       func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. Non-positive
// interval or retention fall back to the defaults.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	if retention <= 0 {
		retention = DefaultOtpRetention
	}

	return &HousekeepingService{
		Store:     store,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started",
		slog.Duration("interval", s.Interval),
		slog.Duration("retention", s.Retention),
	)
}

// Stop blocks until any in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// RunOnce deletes codes that expired before now minus Retention.
func (s *HousekeepingService) RunOnce(ctx context.Context) (int64, error) {
	cutoff := now(s.Now).Add(-s.Retention)
	return s.Store.PendingOtps().DeleteExpiredOtps(ctx, cutoff)
}

func (s *HousekeepingService) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), s.Interval)
	defer cancel()

	n, err := s.RunOnce(ctx)
	if err != nil {
		s.Logger.Error("failed to delete expired otps", slog.Any("error", err))
		return
	}
	if n > 0 {
		s.Logger.Info("housekeeping cleanup completed", slog.Int64("otps_deleted", n))
	} else {
		s.Logger.Debug("housekeeping cleanup completed", slog.Int64("otps_deleted", n))
	}
}

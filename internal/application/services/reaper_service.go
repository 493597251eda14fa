package services

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/preceptly/backend/internal/domain/ports"
	"github.com/preceptly/backend/pkg/logger"
)

// ReaperService retires sessions past their expiry in the background.
// Lazy expiry on access keeps sessions correct without it; the reaper just
// stops abandoned rows from accumulating as resumable.
type ReaperService struct {
	store    ports.SessionStore
	schedule string
	cron     *cron.Cron
	log      *logger.Logger
	mu       sync.Mutex
	running  bool
}

// NewReaperService creates a reaper on the given cron schedule
// (e.g. "@every 15m").
func NewReaperService(store ports.SessionStore, schedule string, log *logger.Logger) *ReaperService {
	return &ReaperService{
		store:    store,
		schedule: schedule,
		log:      log,
	}
}

// Start schedules the sweep and runs one immediately
func (rs *ReaperService) Start() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.running {
		return nil
	}

	rs.cron = cron.New()
	if _, err := rs.cron.AddFunc(rs.schedule, rs.sweep); err != nil {
		return err
	}
	rs.cron.Start()
	rs.running = true

	rs.log.Info("session reaper started", "schedule", rs.schedule)
	go rs.sweep()
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish
func (rs *ReaperService) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if !rs.running {
		return
	}
	ctx := rs.cron.Stop()
	<-ctx.Done()
	rs.running = false
	rs.log.Info("session reaper stopped")
}

// sweep retires every resumable session past its expiry
func (rs *ReaperService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reclaimed, err := rs.store.ExpireStale(ctx)
	if err != nil {
		rs.log.Error("session reaper sweep failed", "error", err)
		return
	}
	if reclaimed > 0 {
		rs.log.Info("session reaper swept stale sessions", "reclaimed", reclaimed)
	}
}

// Package scheduler starts flows on cron schedules, for recurring
// conformance sweeps over the device lab.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// StartFunc admits one scheduled run. Rejections are logged and the
// schedule keeps firing; a busy lab at one tick must not kill the schedule.
type StartFunc func(ctx context.Context, flowID string, deviceIDs []string) error

// Entry is one recurring flow start.
type Entry struct {
	ID        string   `json:"id"         yaml:"id"`
	CronExpr  string   `json:"cron"       yaml:"cron"`
	FlowID    string   `json:"flow_id"    yaml:"flow_id"`
	DeviceIDs []string `json:"device_ids" yaml:"device_ids"`
}

func (e Entry) validate() error {
	if e.ID == "" {
		return errors.New("schedule entry id is required")
	}

	if e.FlowID == "" {
		return fmt.Errorf("schedule %s: flow id is required", e.ID)
	}

	if _, err := cron.ParseStandard(e.CronExpr); err != nil {
		return fmt.Errorf("schedule %s: invalid cron expression: %w", e.ID, err)
	}

	return nil
}

// Scheduler owns one cron runner and the entries registered on it.
type Scheduler struct {
	cron   *cron.Cron
	start  StartFunc
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewScheduler(start StartFunc, logger *slog.Logger, location *time.Location) *Scheduler {
	if location == nil {
		location = time.UTC
	}

	return &Scheduler{
		cron:    cron.New(cron.WithLocation(location)),
		start:   start,
		logger:  logger.With("module", "scheduler"),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers one entry. Adding an existing id replaces it.
func (s *Scheduler) Add(entry Entry) error {
	if err := entry.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[entry.ID]; ok {
		s.cron.Remove(existing)
	}

	id, err := s.cron.AddFunc(entry.CronExpr, func() {
		s.fire(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to add schedule %s: %w", entry.ID, err)
	}

	s.entries[entry.ID] = id
	s.logger.Info("Schedule registered",
		"schedule_id", entry.ID, "cron", entry.CronExpr, "flow_id", entry.FlowID)

	return nil
}

// Remove drops one entry. Removing an unknown id is a no-op.
func (s *Scheduler) Remove(entryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[entryID]; ok {
		s.cron.Remove(id)
		delete(s.entries, entryID)
	}
}

func (s *Scheduler) fire(entry Entry) {
	ctx := context.Background()

	s.logger.InfoContext(ctx, "Schedule fired",
		"schedule_id", entry.ID, "flow_id", entry.FlowID, "devices", entry.DeviceIDs)

	// The admission call is non-blocking, but run it off the cron goroutine
	// so a slow storage lookup never delays other schedules.
	go func() {
		if err := s.start(ctx, entry.FlowID, entry.DeviceIDs); err != nil {
			s.logger.ErrorContext(ctx, "Scheduled run rejected",
				"schedule_id", entry.ID, "flow_id", entry.FlowID, "error", err)
		}
	}()
}

// Start begins firing schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron runner and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

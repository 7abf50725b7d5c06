package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger describes when the batch runs: every Interval if set, otherwise
// daily at At (HH:MM).
type Trigger struct {
	At       string
	Interval time.Duration
}

// Spec returns the cron spec (with seconds field) for the trigger.
func (t Trigger) Spec() (string, error) {
	if t.Interval > 0 {
		seconds := int(t.Interval.Seconds())
		if seconds <= 0 {
			seconds = 1
		}
		return fmt.Sprintf("@every %ds", seconds), nil
	}
	if t.Interval < 0 {
		return "", fmt.Errorf("interval must be positive")
	}
	hour, minute, err := parseClock(t.At)
	if err != nil {
		return "", err
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}

// SchedulerService runs jobs on cron triggers. A job still running when its
// next tick fires is skipped, and a panicking job is logged and recovered.
type SchedulerService struct {
	cron *cron.Cron
}

func NewSchedulerService(loc *time.Location) *SchedulerService {
	logger := cron.VerbosePrintfLogger(log.New(os.Stdout, "[cron] ", log.LstdFlags))
	return &SchedulerService{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

// Schedule registers job on trigger. Each invocation gets its own context
// bounded by timeout.
func (s *SchedulerService) Schedule(trigger Trigger, timeout time.Duration, job func(ctx context.Context) error) (cron.EntryID, error) {
	spec, err := trigger.Spec()
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := job(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[error] scheduled job: %v", err)
		}
	})
}

// ScheduleBatch runs the batch on trigger with the given horizon.
func (s *SchedulerService) ScheduleBatch(batch *BatchService, trigger Trigger, horizonDays int, timeout time.Duration) (cron.EntryID, error) {
	return s.Schedule(trigger, timeout, func(ctx context.Context) error {
		_, err := batch.MaterializePendingDays(ctx, horizonDays)
		return err
	})
}

// Next returns the next activation time of a registered job.
func (s *SchedulerService) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func parseClock(timeStr string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(timeStr), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", timeStr)
	}
	return hour, minute, nil
}

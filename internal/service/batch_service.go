package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"crm-tasks/internal/date"
	"crm-tasks/internal/model"
	"crm-tasks/internal/recurrence"
	"crm-tasks/internal/repository"
)

// Notifier receives the report of a batch run that had failures.
type Notifier interface {
	NotifyReport(ctx context.Context, report Report) error
}

// TemplateFailure records why a template was skipped in a run.
type TemplateFailure struct {
	TemplateID uint
	Title      string
	Invalid    bool
	Err        error
}

// Report summarizes one batch run.
type Report struct {
	RunID       string
	Horizon     date.Date
	Templates   int
	Generated   int
	Exhausted   int
	Failures    []TemplateFailure
	Interrupted bool
}

// DefaultMaxPerTemplate bounds the occurrences one run materializes for a
// single template. A cursor lagging further behind catches up over later runs.
const DefaultMaxPerTemplate = 3660

// BatchOptions configures a BatchService.
type BatchOptions struct {
	Workers        int
	Notifier       Notifier
	Now            func() time.Time
	MaxPerTemplate int
}

// BatchService materializes every pending template up to a horizon.
type BatchService struct {
	store        *repository.Store
	materializer *Materializer
	workers        int
	notifier       Notifier
	now            func() time.Time
	maxPerTemplate int
}

func NewBatchService(store *repository.Store, materializer *Materializer, opts BatchOptions) *BatchService {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxPerTemplate < 1 {
		opts.MaxPerTemplate = DefaultMaxPerTemplate
	}
	return &BatchService{
		store:          store,
		materializer:   materializer,
		workers:        opts.Workers,
		notifier:       opts.Notifier,
		now:            opts.Now,
		maxPerTemplate: opts.MaxPerTemplate,
	}
}

// MaterializePendingDays runs a batch with the horizon set horizonDays from today.
func (s *BatchService) MaterializePendingDays(ctx context.Context, horizonDays int) (Report, error) {
	if horizonDays < 0 {
		return Report{}, fmt.Errorf("horizon days must not be negative, got %d", horizonDays)
	}
	return s.MaterializePending(ctx, date.Of(s.now()).AddDays(horizonDays))
}

// MaterializePending generates occurrences for every active template whose
// cursor is on or before horizon, until each cursor passes the horizon or the
// template is exhausted. Failures are isolated per template and reported;
// only a failure to list templates aborts the run. Cancelling ctx stops the
// run between materializations, leaving committed progress in place.
func (s *BatchService) MaterializePending(ctx context.Context, horizon date.Date) (Report, error) {
	report := Report{RunID: uuid.NewString(), Horizon: horizon}

	templates, err := s.store.Templates.ListPending(ctx, horizon)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	report.Templates = len(templates)
	log.Printf("[info] run %s: %d templates pending up to %s", report.RunID, len(templates), horizon)

	jobs := make(chan model.TaskTemplate)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tpl := range jobs {
				res := s.drain(ctx, tpl, horizon)

				mu.Lock()
				report.Generated += res.generated
				if res.exhausted {
					report.Exhausted++
				}
				if res.err != nil && !errors.Is(res.err, context.Canceled) && !errors.Is(res.err, context.DeadlineExceeded) {
					report.Failures = append(report.Failures, TemplateFailure{
						TemplateID: tpl.ID,
						Title:      tpl.Title,
						Invalid:    errors.Is(res.err, recurrence.ErrInvalidPattern),
						Err:        res.err,
					})
				}
				mu.Unlock()

				if res.err != nil {
					log.Printf("[warn] run %s: template %d skipped after %d occurrences: %v",
						report.RunID, tpl.ID, res.generated, res.err)
				}
			}
		}()
	}

dispatch:
	for _, tpl := range templates {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- tpl:
		}
	}
	close(jobs)
	wg.Wait()

	report.Interrupted = ctx.Err() != nil
	log.Printf("[info] run %s: generated %d occurrences, %d exhausted, %d failed, interrupted=%t",
		report.RunID, report.Generated, report.Exhausted, len(report.Failures), report.Interrupted)

	if s.notifier != nil && len(report.Failures) > 0 {
		if err := s.notifier.NotifyReport(ctx, report); err != nil {
			log.Printf("[warn] run %s: notify: %v", report.RunID, err)
		}
	}
	return report, nil
}

type drainResult struct {
	generated int
	exhausted bool
	err       error
}

// drain materializes tpl until its cursor passes horizon. The loop is capped
// at one iteration per day between the cursor and horizon so a cursor that
// fails to advance cannot spin forever. A concurrent modification is retried
// once from a freshly read template, which gets a budget of its own.
func (s *BatchService) drain(ctx context.Context, tpl model.TaskTemplate, horizon date.Date) drainResult {
	var res drainResult
	limit, clamped := s.iterationCap(tpl, horizon)
	retried := false

	for attempts := 0; attempts < limit; {
		if err := ctx.Err(); err != nil {
			res.err = err
			return res
		}
		prev := *tpl.NextOccurrenceDate

		occ, err := s.materializer.MaterializeOne(ctx, &tpl)
		if errors.Is(err, ErrConcurrentModification) && !retried {
			retried = true
			fresh, ferr := s.store.Templates.FindByID(ctx, tpl.ID)
			if ferr != nil {
				res.err = storageErr(ferr, ErrTemplateNotFound)
				return res
			}
			tpl = *fresh
			if !tpl.Pending(horizon) {
				return res
			}
			attempts = 0
			limit, clamped = s.iterationCap(tpl, horizon)
			continue
		}
		attempts++
		if err != nil {
			res.err = err
			return res
		}
		if occ == nil {
			res.exhausted = tpl.CursorState == model.CursorExhausted
			return res
		}
		res.generated++

		if tpl.CursorState == model.CursorExhausted {
			res.exhausted = true
			return res
		}
		if !tpl.Pending(horizon) {
			return res
		}
		if !tpl.NextOccurrenceDate.After(prev) {
			res.err = fmt.Errorf("cursor of template %d did not advance past %s", tpl.ID, prev)
			return res
		}
	}

	if tpl.Pending(horizon) {
		if clamped {
			log.Printf("[warn] template %d: %d occurrences materialized this run, the rest is left for the next run",
				tpl.ID, res.generated)
			return res
		}
		res.err = fmt.Errorf("template %d reached the iteration cap of %d", tpl.ID, limit)
	}
	return res
}

// iterationCap returns the number of materializations tpl may need to reach
// horizon, bounded by maxPerTemplate. The flag reports whether the bound applied.
func (s *BatchService) iterationCap(tpl model.TaskTemplate, horizon date.Date) (int, bool) {
	n := tpl.NextOccurrenceDate.DaysUntil(horizon) + 1
	if n > s.maxPerTemplate {
		return s.maxPerTemplate, true
	}
	return n, false
}

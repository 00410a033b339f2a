// Package scheduler запускает фоновые задачи магазина: продвижение статусов заказов
// и ежедневный пересчёт продаж.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/hanaro-shop/internal/metrics"
)

// Job описывает фоновую задачу планировщика.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Schedule вычисляет момент следующего запуска задачи после now.
type Schedule interface {
	Next(now time.Time) time.Time
}

// Entry связывает задачу с её расписанием.
type Entry struct {
	Job      Job
	Schedule Schedule
}

// Params настраивают планировщик.
type Params struct {
	Logger  *zap.Logger
	Metrics *metrics.JobMetrics
	Locks   LockFactory
	Now     func() time.Time
	Entries []Entry
}

// Scheduler выполняет задачи по расписанию, каждую в своей горутине.
type Scheduler struct {
	logger  *zap.Logger
	metrics *metrics.JobMetrics
	locks   map[string]Lock
	now     func() time.Time
	entries []Entry
}

// New создаёт планировщик.
func New(p Params) (*Scheduler, error) {
	if p.Logger == nil {
		return nil, errors.New("logger required")
	}
	lockFactory := p.Locks
	if lockFactory == nil {
		lockFactory = NopLocks
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}

	s := &Scheduler{
		logger:  p.Logger,
		metrics: p.Metrics,
		locks:   make(map[string]Lock, len(p.Entries)),
		now:     now,
	}
	for _, e := range p.Entries {
		if e.Job == nil || e.Schedule == nil {
			return nil, errors.New("job and schedule required")
		}
		if every, ok := e.Schedule.(Every); ok && every <= 0 {
			return nil, fmt.Errorf("job %q: interval must be positive", e.Job.Name())
		}
		if _, dup := s.locks[e.Job.Name()]; dup {
			return nil, fmt.Errorf("duplicate job %q", e.Job.Name())
		}
		s.locks[e.Job.Name()] = lockFactory(e.Job.Name())
		s.entries = append(s.entries, e)
	}
	return s, nil
}

// Run запускает все задачи и блокируется до отмены ctx.
// Ошибки отдельных запусков логируются и не останавливают планировщик.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, e := range s.entries {
		g.Go(func() error {
			s.loop(ctx, e)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e Entry) {
	s.logger.Info("job scheduled", zap.String("job", e.Job.Name()))
	for {
		next := e.Schedule.Next(s.now())
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("job stopped", zap.String("job", e.Job.Name()))
			return
		case <-timer.C:
		}
		_ = s.runJob(ctx, e.Job)
	}
}

// RunOnce последовательно выполняет каждую задачу один раз и возвращает объединённые ошибки.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs error
	for _, e := range s.entries {
		errs = multierr.Append(errs, s.runJob(ctx, e.Job))
	}
	return errs
}

func (s *Scheduler) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	log := s.logger.With(zap.String("job", name))

	lock := s.locks[name]
	locked, err := lock.Acquire(ctx)
	if err != nil {
		log.Error("failed to acquire job lock", zap.Error(err))
		s.metrics.IncFailure(name)
		return fmt.Errorf("%s: lock acquire: %w", name, err)
	}
	if !locked {
		log.Debug("job is running elsewhere, skipping")
		return nil
	}
	defer func() {
		if relErr := lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			log.Error("failed to release job lock", zap.Error(relErr))
		}
	}()

	start := time.Now()
	err = job.Run(ctx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(name, duration)

	if err != nil {
		log.Error("job failed", zap.Duration("duration", duration), zap.Error(err))
		s.metrics.IncFailure(name)
		return fmt.Errorf("%s: %w", name, err)
	}
	log.Debug("job completed", zap.Duration("duration", duration))
	s.metrics.IncSuccess(name)
	return nil
}

// Every запускает задачу с фиксированным интервалом.
type Every time.Duration

// Next возвращает now + интервал.
func (e Every) Next(now time.Time) time.Time {
	return now.Add(time.Duration(e))
}

// DailyAt запускает задачу один раз в сутки в заданное время в зоне Loc.
type DailyAt struct {
	Hour   int
	Minute int
	Loc    *time.Location
}

// ParseDailyAt разбирает время суток в формате HH:MM.
func ParseDailyAt(value string, loc *time.Location) (DailyAt, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return DailyAt{}, fmt.Errorf("parse time of day %q: %w", value, err)
	}
	return DailyAt{Hour: t.Hour(), Minute: t.Minute(), Loc: loc}, nil
}

// Next возвращает ближайший момент HH:MM строго после now.
func (d DailyAt) Next(now time.Time) time.Time {
	loc := d.Loc
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.Hour, d.Minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.Hour, d.Minute, 0, 0, loc)
	}
	return next
}

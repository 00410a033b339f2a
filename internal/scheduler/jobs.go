package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/hanaro-shop/internal/metrics"
	"github.com/mmeshcher/hanaro-shop/internal/model"
)

// StatusAdvancer переводит заказы между статусами одним условным обновлением.
type StatusAdvancer interface {
	AdvanceOrderStatus(ctx context.Context, from, to model.OrderStatus, threshold, now time.Time) (int64, error)
}

// TransitionJob переводит заказы из статуса From в To, если они провели в From не меньше After.
type TransitionJob struct {
	name    string
	from    model.OrderStatus
	to      model.OrderStatus
	after   time.Duration
	store   StatusAdvancer
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.JobMetrics
}

// TransitionParams настраивают TransitionJob.
type TransitionParams struct {
	Name    string
	From    model.OrderStatus
	To      model.OrderStatus
	After   time.Duration
	Store   StatusAdvancer
	Now     func() time.Time
	Logger  *zap.Logger
	Metrics *metrics.JobMetrics
}

// NewTransitionJob создаёт задачу перехода статуса. Допускаются только переходы на один шаг вперёд.
func NewTransitionJob(p TransitionParams) (*TransitionJob, error) {
	if p.Store == nil {
		return nil, errors.New("status store required")
	}
	if p.From == model.OrderStatusCanceled || p.To == model.OrderStatusCanceled || !p.From.CanTransitionTo(p.To) {
		return nil, fmt.Errorf("invalid transition %s -> %s", p.From, p.To)
	}
	if p.After <= 0 {
		return nil, fmt.Errorf("threshold must be positive, got %s", p.After)
	}
	name := p.Name
	if name == "" {
		name = fmt.Sprintf("orders-%s-to-%s", p.From, p.To)
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransitionJob{
		name:    name,
		from:    p.From,
		to:      p.To,
		after:   p.After,
		store:   p.Store,
		now:     now,
		logger:  logger,
		metrics: p.Metrics,
	}, nil
}

// Name возвращает имя задачи.
func (j *TransitionJob) Name() string { return j.name }

// Run выполняет один проход перехода. Повторный запуск без новых заказов ничего не меняет.
func (j *TransitionJob) Run(ctx context.Context) error {
	now := j.now()
	n, err := j.store.AdvanceOrderStatus(ctx, j.from, j.to, now.Add(-j.after), now)
	if err != nil {
		return err
	}
	j.metrics.AddAffected(j.name, n)
	if n > 0 {
		j.logger.Info("orders advanced",
			zap.String("job", j.name),
			zap.String("from", string(j.from)),
			zap.String("to", string(j.to)),
			zap.Int64("count", n),
		)
	}
	return nil
}

// Aggregator пересчитывает итоги продаж за прошедший день.
type Aggregator interface {
	AggregateYesterday(ctx context.Context) error
}

// DailySalesJob пересчитывает продажи за вчерашний день.
type DailySalesJob struct {
	aggregator Aggregator
}

// NewDailySalesJob создаёт задачу ежедневного пересчёта продаж.
func NewDailySalesJob(a Aggregator) (*DailySalesJob, error) {
	if a == nil {
		return nil, errors.New("aggregator required")
	}
	return &DailySalesJob{aggregator: a}, nil
}

// Name возвращает имя задачи.
func (j *DailySalesJob) Name() string { return "daily-sales" }

// Run пересчитывает итоги за вчерашний день.
func (j *DailySalesJob) Run(ctx context.Context) error {
	return j.aggregator.AggregateYesterday(ctx)
}

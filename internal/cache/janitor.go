package cache

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const defaultSweepInterval = 5 * time.Minute

var (
	janitorSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderstock_cache_janitor_sweeps_total",
		Help: "Total number of in-memory cache janitor sweeps.",
	})
	janitorDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderstock_cache_janitor_deleted_total",
		Help: "Total number of expired cache entries deleted by the janitor.",
	})
	janitorLastDeleted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orderstock_cache_janitor_last_deleted",
		Help: "Number of entries deleted during the last janitor sweep.",
	})
)

// expiringStore — бэкенд, которому нужна фоновая уборка просроченных записей.
// Redis чистит TTL сам, in-memory стору нужен Janitor.
type expiringStore interface {
	DeleteExpired(now time.Time) int
}

// JanitorOptions задаёт параметры фоновой уборки кэша.
type JanitorOptions struct {
	Logger   *log.Entry
	Interval time.Duration
}

// JanitorOption настраивает Janitor.
type JanitorOption func(*JanitorOptions)

// WithJanitorLogger задаёт logger для уборщика.
func WithJanitorLogger(logger *log.Entry) JanitorOption {
	return func(opts *JanitorOptions) {
		opts.Logger = logger
	}
}

// WithJanitorInterval задаёт интервал между проходами уборки.
func WithJanitorInterval(interval time.Duration) JanitorOption {
	return func(opts *JanitorOptions) {
		opts.Interval = interval
	}
}

// Janitor периодически удаляет просроченные записи из in-memory кэша.
type Janitor struct {
	store    expiringStore
	logger   *log.Entry
	interval time.Duration
}

// NewJanitor создаёт уборщика для store. Если store не поддерживает
// DeleteExpired (например, Redis), возвращается nil и уборка не нужна.
func NewJanitor(store Store, options ...JanitorOption) *Janitor {
	target, ok := store.(expiringStore)
	if !ok {
		return nil
	}

	opts := JanitorOptions{Interval: defaultSweepInterval}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cache-janitor")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}

	return &Janitor{
		store:    target,
		logger:   logger,
		interval: opts.Interval,
	}
}

// Run запускает периодическую уборку до отмены ctx.
func (j *Janitor) Run(ctx context.Context) {
	if j == nil {
		return
	}

	j.sweep()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *Janitor) sweep() {
	deleted := j.store.DeleteExpired(time.Now().UTC())

	janitorSweepsTotal.Inc()
	janitorLastDeleted.Set(float64(deleted))
	if deleted > 0 {
		janitorDeletedTotal.Add(float64(deleted))
		j.logger.WithField("deleted", deleted).Debug("cache janitor sweep completed")
	}
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderstock_cache_hits_total",
		Help: "Total number of cache hits.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderstock_cache_misses_total",
		Help: "Total number of cache misses.",
	})
	cacheErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderstock_cache_errors_total",
		Help: "Total number of cache backend errors grouped by operation.",
	}, []string{"op"})
)

// Store — низкоуровневое key-value хранилище кэша с TTL и удалением по префиксу.
type Store interface {
	// Get возвращает значение и признак его наличия.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set сохраняет значение на ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete удаляет одну запись.
	Delete(ctx context.Context, key string) error
	// DeletePrefix удаляет все записи, ключ которых начинается с prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// Gateway — read-through кэш поверх Store. Любой сбой бэкенда деградирует
// до прямого вызова loader-а и никогда не валит обслуживаемый запрос.
type Gateway struct {
	store  Store
	logger *log.Entry
}

// NewGateway создаёт шлюз кэша.
func NewGateway(store Store, logger *log.Entry) *Gateway {
	if logger == nil {
		logger = log.WithField("component", "cache")
	}
	return &Gateway{store: store, logger: logger}
}

// Remember возвращает закэшированное значение по ключу, а при промахе
// вызывает loader, сохраняет результат на ttl и возвращает его.
// Промах — наблюдаемое событие (лог + счётчик).
func Remember[T any](ctx context.Context, g *Gateway, key string, ttl time.Duration, loader func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	raw, ok, err := g.store.Get(ctx, key)
	if err != nil {
		cacheErrorsTotal.WithLabelValues("get").Inc()
		g.logger.WithError(err).WithField("cache_key", key).Warn("cache get failed, falling back to loader")
	}
	if ok && err == nil {
		var value T
		if err := json.Unmarshal(raw, &value); err == nil {
			cacheHitsTotal.Inc()
			return value, nil
		}
		// Непарсимая запись эквивалентна промаху; затираем её свежим значением.
		g.logger.WithField("cache_key", key).Warn("cache entry is not decodable, reloading")
	}

	cacheMissesTotal.Inc()
	g.logger.WithField("cache_key", key).Debug("cache miss")

	value, err := loader(ctx)
	if err != nil {
		return zero, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return zero, fmt.Errorf("encode cache value: %w", err)
	}
	if err := g.store.Set(ctx, key, encoded, ttl); err != nil {
		cacheErrorsTotal.WithLabelValues("set").Inc()
		g.logger.WithError(err).WithField("cache_key", key).Warn("cache set failed")
	}

	return value, nil
}

// Forget удаляет одну запись. Ошибка бэкенда логируется и проглатывается.
func (g *Gateway) Forget(ctx context.Context, key string) {
	if err := g.store.Delete(ctx, key); err != nil {
		cacheErrorsTotal.WithLabelValues("delete").Inc()
		g.logger.WithError(err).WithField("cache_key", key).Warn("cache delete failed")
	}
}

// ForgetPrefix удаляет все записи с данным префиксом ключа.
func (g *Gateway) ForgetPrefix(ctx context.Context, prefix string) {
	if err := g.store.DeletePrefix(ctx, prefix); err != nil {
		cacheErrorsTotal.WithLabelValues("delete_prefix").Inc()
		g.logger.WithError(err).WithField("cache_prefix", prefix).Warn("cache prefix delete failed")
	}
}

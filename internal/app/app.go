package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderstock/internal/cache"
	"github.com/vladislavdragonenkov/orderstock/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/orderstock/internal/health"
	"github.com/vladislavdragonenkov/orderstock/internal/httpapi"
	"github.com/vladislavdragonenkov/orderstock/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderstock/internal/service/orders"
	"github.com/vladislavdragonenkov/orderstock/internal/storage/memory"
	"github.com/vladislavdragonenkov/orderstock/internal/storage/postgres"
	"github.com/vladislavdragonenkov/orderstock/internal/version"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr     string
	OpsAddr      string
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string
}

// DefaultConfig возвращает базовые адреса API и служебного сервера.
func DefaultConfig() Config {
	return Config{
		HTTPAddr: ":8080",
		OpsAddr:  ":9090",
	}
}

// ConfigFromEnv собирает конфигурацию из переменных окружения ORDERSTOCK_*.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("ORDERSTOCK_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("ORDERSTOCK_OPS_ADDR"); v != "" {
		cfg.OpsAddr = v
	}
	cfg.PostgresDSN = strings.TrimSpace(os.Getenv("ORDERSTOCK_POSTGRES_DSN"))
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("ORDERSTOCK_REDIS_ADDR"))
	if v := strings.TrimSpace(os.Getenv("ORDERSTOCK_KAFKA_BROKERS")); v != "" {
		cfg.KafkaBrokers = strings.Split(v, ",")
	}
	return cfg
}

// Run собирает зависимости и запускает сервис до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	healthHandler := healthcheck.NewHandler(version.String())

	var (
		orderRepo   domain.OrderRepository
		productRepo domain.ProductRepository
		uow         domain.UnitOfWork
	)

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}

		orderRepo = postgres.NewOrderRepository(store)
		productRepo = postgres.NewProductRepository(store)
		uow = postgres.NewUnitOfWork(store)
		healthHandler.RegisterCheck("postgres", store.Ping)
		logger.Info("using postgres storage")
	} else {
		orderRepoMem := memory.NewOrderRepository()
		productRepoMem := memory.NewProductRepository()
		orderRepo = orderRepoMem
		productRepo = productRepoMem
		uow = memory.NewUnitOfWork(orderRepoMem, productRepoMem)
		logger.Warn("ORDERSTOCK_POSTGRES_DSN is not set, using in-memory storage")
	}

	var cacheStore cache.Store
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		cacheStore = cache.NewRedisStore(client)
		healthHandler.RegisterCheck("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		logger.WithField("addr", cfg.RedisAddr).Info("using redis cache")
	} else {
		cacheStore = cache.NewMemoryStore()
		logger.Warn("ORDERSTOCK_REDIS_ADDR is not set, using in-memory cache")
	}
	gateway := cache.NewGateway(cacheStore, logger.WithField("component", "cache"))

	// Для in-memory кэша нужна фоновая уборка просроченных записей;
	// для Redis NewJanitor вернёт nil и Run станет no-op.
	janitor := cache.NewJanitor(cacheStore)
	go janitor.Run(ctx)

	// Инициализация Kafka producer (опционально)
	var publisher domain.EventPublisher
	var kafkaProducer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			kafkaProducer = producer
			publisher = producer
			logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
		}
	}

	engine := orders.NewService(orderRepo, productRepo, gateway, logger.WithField("component", "orders"))
	coordinator := orders.NewCoordinator(uow, engine, publisher, logger.WithField("component", "order-coordinator"))
	handler := httpapi.NewHandler(coordinator, logger.WithField("component", "httpapi"))

	opsSrv := startOpsServer(ctx, cfg.OpsAddr, logger, healthHandler)

	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler.Router()}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(opsSrv, logger)
		closeKafka(kafkaProducer, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(opsSrv, logger)
		closeKafka(kafkaProducer, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startOpsServer запускает служебный HTTP-сервер: метрики и health checks.
func startOpsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("ops server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}

func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

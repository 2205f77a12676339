package app

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("unexpected default http addr: %s", cfg.HTTPAddr)
	}
	if cfg.OpsAddr != ":9090" {
		t.Errorf("unexpected default ops addr: %s", cfg.OpsAddr)
	}
	if cfg.PostgresDSN != "" || cfg.RedisAddr != "" || len(cfg.KafkaBrokers) != 0 {
		t.Error("external dependencies must be off by default")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("ORDERSTOCK_HTTP_ADDR", ":18080")
	t.Setenv("ORDERSTOCK_OPS_ADDR", ":19090")
	t.Setenv("ORDERSTOCK_POSTGRES_DSN", "postgres://localhost/orderstock")
	t.Setenv("ORDERSTOCK_REDIS_ADDR", "localhost:6379")
	t.Setenv("ORDERSTOCK_KAFKA_BROKERS", "broker1:9092,broker2:9092")

	cfg := ConfigFromEnv()

	if cfg.HTTPAddr != ":18080" {
		t.Errorf("http addr not read from env: %s", cfg.HTTPAddr)
	}
	if cfg.OpsAddr != ":19090" {
		t.Errorf("ops addr not read from env: %s", cfg.OpsAddr)
	}
	if cfg.PostgresDSN != "postgres://localhost/orderstock" {
		t.Errorf("postgres dsn not read from env: %s", cfg.PostgresDSN)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("redis addr not read from env: %s", cfg.RedisAddr)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "broker1:9092" {
		t.Errorf("kafka brokers not parsed: %v", cfg.KafkaBrokers)
	}
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("ORDERSTOCK_HTTP_ADDR", "")
	t.Setenv("ORDERSTOCK_OPS_ADDR", "")
	t.Setenv("ORDERSTOCK_POSTGRES_DSN", " ")
	t.Setenv("ORDERSTOCK_REDIS_ADDR", "")
	t.Setenv("ORDERSTOCK_KAFKA_BROKERS", "")

	cfg := ConfigFromEnv()

	if cfg.HTTPAddr != ":8080" || cfg.OpsAddr != ":9090" {
		t.Errorf("empty env must fall back to defaults: %+v", cfg)
	}
	if cfg.PostgresDSN != "" {
		t.Errorf("whitespace dsn must be trimmed to empty, got %q", cfg.PostgresDSN)
	}
	if cfg.KafkaBrokers != nil {
		t.Errorf("empty brokers must stay nil, got %v", cfg.KafkaBrokers)
	}
}

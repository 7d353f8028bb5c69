package config

import (
	"testing"
	"time"
)

func clearStoreEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("REDIS_DB", "")
	t.Setenv("SLA_SWEEP_INTERVAL_SECONDS", "")
	t.Setenv("LIST_DEFAULT_LIMIT", "")
}

func TestLoadDefaultsToSQLite(t *testing.T) {
	clearStoreEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Driver != DriverSQLite {
		t.Fatalf("driver = %q, want %q", cfg.Store.Driver, DriverSQLite)
	}
	if cfg.SLA.SweepInterval() != 0 {
		t.Fatalf("sweep interval = %v, want disabled", cfg.SLA.SweepInterval())
	}
	if cfg.List.DefaultLimit != 10 || cfg.List.MaxLimit != 100 {
		t.Fatalf("list limits = %+v", cfg.List)
	}
}

func TestLoadPicksPostgresWhenDSNSet(t *testing.T) {
	clearStoreEnv(t)
	t.Setenv("POSTGRES_DSN", "postgres://localhost/helpdesk")
	t.Setenv("SLA_SWEEP_INTERVAL_SECONDS", "90")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Driver != DriverPostgres {
		t.Fatalf("driver = %q, want %q", cfg.Store.Driver, DriverPostgres)
	}
	if cfg.SLA.SweepInterval() != 90*time.Second {
		t.Fatalf("sweep interval = %v, want 90s", cfg.SLA.SweepInterval())
	}
}

func TestLoadRejectsPostgresWithoutDSN(t *testing.T) {
	clearStoreEnv(t)
	t.Setenv("STORE_DRIVER", "postgres")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want missing DSN error")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	clearStoreEnv(t)
	t.Setenv("STORE_DRIVER", "mongo")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want invalid driver error")
	}
}

package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ALLOWED_ORIGIN", "DB_PATH", "REDIS_ADDR", "REDIS_DB",
		"REPORT_CACHE_TTL_SECONDS", "AUTH_SECRET", "ACCESS_TOKEN_TTL_MINUTES",
		"MANAGER_PIN", "ADMIN_USERNAME", "ADMIN_PASSWORD", "SEED_DEMO_DATA",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("port = %q, want 8080", cfg.Port)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("address = %q, want :8080", cfg.Address())
	}
	if cfg.DatabasePath != "dukapos.db" {
		t.Fatalf("db path = %q", cfg.DatabasePath)
	}
	if cfg.ReportCacheTTLSeconds != 300 {
		t.Fatalf("report ttl = %d, want 300", cfg.ReportCacheTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("token ttl = %d, want 480", cfg.AccessTokenTTLMinutes)
	}
	if cfg.AdminUsername != "admin" {
		t.Fatalf("admin username = %q", cfg.AdminUsername)
	}
	if cfg.SeedDemoData {
		t.Fatal("seed demo data should default off")
	}
}

func TestLoadOverridesAndTrimming(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/test.db")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("AUTH_SECRET", "  spaced-secret  ")
	t.Setenv("MANAGER_PIN", " 246813 ")
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "not-a-number")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")
	t.Setenv("SEED_DEMO_DATA", "true")

	cfg := Load()
	if cfg.Port != "9090" || cfg.DatabasePath != "/tmp/test.db" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 3 {
		t.Fatalf("redis config = %q/%d", cfg.RedisAddr, cfg.RedisDB)
	}
	if cfg.AuthSecret != "spaced-secret" {
		t.Fatalf("auth secret = %q, want trimmed", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "246813" {
		t.Fatalf("manager pin = %q, want trimmed", cfg.ManagerPIN)
	}
	if cfg.ReportCacheTTLSeconds != 300 {
		t.Fatalf("bad report ttl should fall back, got %d", cfg.ReportCacheTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("negative token ttl should fall back, got %d", cfg.AccessTokenTTLMinutes)
	}
	if !cfg.SeedDemoData {
		t.Fatal("seed demo data should be on")
	}
}

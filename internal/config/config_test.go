package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CLOSURE_INACTIVITY_THRESHOLD_DAYS", "")
	t.Setenv("NOTIFY_EMAIL_SUBJECT", "")
	t.Setenv("SMTP_HOST", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Closure.InactivityThreshold() != 72*time.Hour {
		t.Fatalf("expected 72h threshold, got %s", cfg.Closure.InactivityThreshold())
	}
	if cfg.Notification.EmailSubject != DefaultEmailSubject {
		t.Fatalf("unexpected subject %q", cfg.Notification.EmailSubject)
	}
	if cfg.SMTP.Enabled() {
		t.Fatalf("expected smtp disabled without host")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CLOSURE_INACTIVITY_THRESHOLD_DAYS", "7")
	t.Setenv("CLOSURE_SCHEDULE", "*/15 * * * *")
	t.Setenv("CLOSURE_LEASE_TTL_SECONDS", "30")
	t.Setenv("NOTIFY_EMAIL_BODY", "bye")
	t.Setenv("SMTP_HOST", "mail.internal")
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Closure.InactivityThreshold() != 7*24*time.Hour {
		t.Fatalf("unexpected threshold %s", cfg.Closure.InactivityThreshold())
	}
	if cfg.Closure.Schedule != "*/15 * * * *" {
		t.Fatalf("unexpected schedule %q", cfg.Closure.Schedule)
	}
	if cfg.Closure.LeaseTTL() != 30*time.Second {
		t.Fatalf("unexpected lease ttl %s", cfg.Closure.LeaseTTL())
	}
	if cfg.Notification.EmailBody != "bye" {
		t.Fatalf("unexpected body %q", cfg.Notification.EmailBody)
	}
	if cfg.SMTP.Addr() != "mail.internal:2525" {
		t.Fatalf("unexpected smtp addr %q", cfg.SMTP.Addr())
	}
}

func TestLoadRejectsNonPositiveThreshold(t *testing.T) {
	t.Setenv("CLOSURE_INACTIVITY_THRESHOLD_DAYS", "0")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero threshold")
	}
}

func TestLoadFallsBackOnInvalidInt(t *testing.T) {
	t.Setenv("CLOSURE_INACTIVITY_THRESHOLD_DAYS", "three")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Closure.InactivityThresholdDays != 3 {
		t.Fatalf("expected fallback to 3, got %d", cfg.Closure.InactivityThresholdDays)
	}
}

func TestLoadPropagatesServiceIdentity(t *testing.T) {
	t.Setenv("APP_NAME", "autoclose-eu")
	t.Setenv("APP_ENV", "staging")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logger.Service != "autoclose-eu" || cfg.Logger.Env != "staging" {
		t.Fatalf("logger identity not set: %+v", cfg.Logger)
	}
	if cfg.Postgres.ApplicationName != "autoclose-eu" {
		t.Fatalf("expected application_name autoclose-eu, got %q", cfg.Postgres.ApplicationName)
	}
}

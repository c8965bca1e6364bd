package config

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("MAX_DELIVERY_ATTEMPTS", "")
	t.Setenv("REDIS_ENABLED", "not-a-bool")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.MaxDeliveryAttempts != 5 {
		t.Errorf("expected default max attempts 5, got %d", cfg.MaxDeliveryAttempts)
	}
	if cfg.Redis.Enabled {
		t.Error("expected redis relay disabled on unparsable flag")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SKIP_AUTH", "true")
	t.Setenv("ENVIRONMENT", "Production")

	cfg, _ := LoadConfig()
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.SMTPPort != 2525 {
		t.Errorf("expected smtp port 2525, got %d", cfg.SMTPPort)
	}
	if !cfg.SkipAuth {
		t.Error("expected SkipAuth to be true")
	}
	if !cfg.IsProduction() {
		t.Error("expected production environment")
	}
}

package params

import "testing"

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Keys.Dir != "keys" {
		t.Errorf("keys dir = %q", cfg.Keys.Dir)
	}
	if !cfg.Book.ConfidentialDefault {
		t.Error("confidential default = false, want true")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("API_ADDR", ":9090")
	t.Setenv("KEYS_DIR", "/tmp/veil-keys")
	t.Setenv("CONFIDENTIAL", "false")
	t.Setenv("FILL_JOURNAL", "")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")

	cfg := LoadFromEnv("testdata/no-such.env")

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Keys.Dir != "/tmp/veil-keys" {
		t.Errorf("keys dir = %q", cfg.Keys.Dir)
	}
	if cfg.Book.ConfidentialDefault {
		t.Error("confidential not overridden to false")
	}
	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Errorf("origins = %v", cfg.Server.AllowedOrigins)
	}
	// Empty env value keeps the default.
	if cfg.FillJournal != Default().FillJournal {
		t.Errorf("fill journal = %q", cfg.FillJournal)
	}
}

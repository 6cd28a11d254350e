package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Server.Addr != DefaultHTTPAddr {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Storage.Driver != StorageDriverPostgres {
		t.Fatalf("unexpected driver: %s", cfg.Storage.Driver)
	}
	if cfg.Channels.WhatsApp.APIVersion != DefaultWhatsAppVersion {
		t.Fatalf("unexpected whatsapp version: %s", cfg.Channels.WhatsApp.APIVersion)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9090"

[storage]
driver = " Memory "

[channels.whatsapp]
enabled = true
number_id = "123"
token = "tok"
verify_token = "verify"

[channels.web]
enabled = true
allowed_origins = ["https://chat.example.com", "re:^https://.*\\.example\\.org$"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Storage.Driver != StorageDriverMemory {
		t.Fatalf("unexpected driver: %q", cfg.Storage.Driver)
	}
	wa := cfg.Channels.WhatsApp
	if !wa.Enabled || wa.NumberID != "123" || wa.VerifyToken != "verify" {
		t.Fatalf("unexpected whatsapp config: %#v", wa)
	}
	if wa.BaseURL != DefaultWhatsAppBaseURL {
		t.Fatalf("default base url lost: %s", wa.BaseURL)
	}
	if got := len(cfg.Channels.Web.AllowedOrigins); got != 2 {
		t.Fatalf("expected 2 origins, got %d", got)
	}
}

func TestLoadRejectsInvalidTOML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server\naddr="), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/language"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Volume != DefaultVolume || cfg.SiteTitle != DefaultSiteTitle || cfg.Mailbox != "." {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if got, want := cfg.FragmentPath(), filepath.Join(filepath.Dir(path), FragmentName); got != want {
		t.Fatalf("FragmentPath() = %q, want %q", got, want)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("loading defaults must not create the file")
	}
}

func TestLoadClampsVolume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("volume = 250\nmailbox = \"  \"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Volume != 100 {
		t.Fatalf("expected volume clamped to 100, got %d", cfg.Volume)
	}
	if cfg.Mailbox != "." {
		t.Fatalf("expected blank mailbox to default, got %q", cfg.Mailbox)
	}
}

func TestLoadRejectsInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("volume = = 3"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	cfg.Mailbox = "/srv/voicemail"
	cfg.SetVolumeLevel(0.42)
	cfg.Muted = true
	cfg.Language = "sv"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("reload returned error: %v", err)
	}
	if got.Mailbox != "/srv/voicemail" || got.Volume != 42 || !got.Muted {
		t.Fatalf("unexpected reloaded config %+v", got)
	}
	if got.LanguageTag() != language.Swedish {
		t.Fatalf("unexpected language %v", got.LanguageTag())
	}
	if got.VolumeLevel() != 0.42 {
		t.Fatalf("VolumeLevel() = %v, want 0.42", got.VolumeLevel())
	}
}

func TestLanguageTagFallsBack(t *testing.T) {
	cfg := &Config{Language: "not a tag!"}
	if cfg.LanguageTag() != language.Und {
		t.Fatalf("expected und, got %v", cfg.LanguageTag())
	}
}

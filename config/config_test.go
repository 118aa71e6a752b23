package config

import "testing"

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("MUSEFM_TEST_STR", "value")
	t.Setenv("MUSEFM_TEST_INT", "42")
	t.Setenv("MUSEFM_TEST_INT_BAD", "notanumber")
	t.Setenv("MUSEFM_TEST_BOOL", "true")

	if got := getEnv("MUSEFM_TEST_STR", "fallback"); got != "value" {
		t.Errorf("getEnv set = %q", got)
	}
	if got := getEnv("MUSEFM_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("getEnv unset = %q", got)
	}
	if got := getEnvInt("MUSEFM_TEST_INT", 0); got != 42 {
		t.Errorf("getEnvInt = %d", got)
	}
	if got := getEnvInt("MUSEFM_TEST_INT_BAD", 7); got != 7 {
		t.Errorf("getEnvInt malformed = %d, want fallback", got)
	}
	if got := getEnvBool("MUSEFM_TEST_BOOL", false); got != true {
		t.Errorf("getEnvBool = %v", got)
	}
	if got := getEnvBool("MUSEFM_TEST_UNSET", true); got != true {
		t.Errorf("getEnvBool unset = %v, want fallback", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Error("ServerPort default is empty")
	}
	if cfg.PlaylistsRoot == "" {
		t.Error("PlaylistsRoot default is empty")
	}
	if cfg.WatchDebounceMs <= 0 {
		t.Errorf("WatchDebounceMs default = %d", cfg.WatchDebounceMs)
	}
	if cfg.CacheTTL <= 0 {
		t.Errorf("CacheTTL default = %d", cfg.CacheTTL)
	}
}

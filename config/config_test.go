package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wippyai/hvr-interface/errors"
	"github.com/wippyai/hvr-interface/platform"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hvr.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppID != DefaultAppID || cfg.AppVersion != DefaultAppVersion {
		t.Errorf("app = %s/%s", cfg.AppID, cfg.AppVersion)
	}
	if cfg.ReconnectInterval != DefaultReconnectInterval {
		t.Errorf("reconnect interval = %v", cfg.ReconnectInterval)
	}
	if cfg.MetricsNamespace != DefaultMetricsNamespace {
		t.Errorf("metrics namespace = %q", cfg.MetricsNamespace)
	}
	if cfg.Verbose || cfg.DisableCache || cfg.Interactive {
		t.Error("boolean defaults should be false")
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
app:
  id: viewer
  version: 2.4.0
api:
  key_file: /etc/hvr/engine.key
platform: mobile
paths:
  extensions: /opt/hvr/ext
  cache: /var/cache/viewer
cache:
  disable: true
log:
  verbose: true
connection:
  reconnect_interval: 750ms
engine:
  path: ./engine.wasm
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name      string
		got, want any
	}{
		{"app id", cfg.AppID, "viewer"},
		{"app version", cfg.AppVersion, "2.4.0"},
		{"key file", cfg.APIKeyFile, "/etc/hvr/engine.key"},
		{"platform", cfg.Platform, "mobile"},
		{"extensions", cfg.ExtensionDir, "/opt/hvr/ext"},
		{"cache", cfg.CacheDir, "/var/cache/viewer"},
		{"cache disabled", cfg.DisableCache, true},
		{"verbose", cfg.Verbose, true},
		{"interval", cfg.ReconnectInterval, 750 * time.Millisecond},
		{"engine", cfg.EnginePath, "./engine.wasm"},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("%s = %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "app:\n  id: viewer\nlog:\n  verbose: false\n")
	t.Setenv("HVR_APP_ID", "kiosk")
	t.Setenv("HVR_VERBOSE", "true")
	t.Setenv("HVR_RECONNECT_INTERVAL", "10s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppID != "kiosk" {
		t.Errorf("AppID = %q", cfg.AppID)
	}
	if !cfg.Verbose {
		t.Error("HVR_VERBOSE ignored")
	}
	if cfg.ReconnectInterval != 10*time.Second {
		t.Errorf("interval = %v", cfg.ReconnectInterval)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		kind errors.Kind
	}{
		{
			name: "missing explicit file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.yaml") },
			kind: errors.KindIO,
		},
		{
			name: "unknown platform",
			path: func(t *testing.T) string { return writeConfig(t, "platform: console\n") },
			kind: errors.KindNotFound,
		},
		{
			name: "non-positive interval",
			path: func(t *testing.T) string { return writeConfig(t, "connection:\n  reconnect_interval: 0s\n") },
			kind: errors.KindInvalidInput,
		},
		{
			name: "app id escaping the cache home",
			path: func(t *testing.T) string { return writeConfig(t, "app:\n  id: \"..\"\n") },
			kind: errors.KindInvalidInput,
		},
		{
			name: "app id with separator",
			path: func(t *testing.T) string { return writeConfig(t, "app:\n  id: ../../etc\n") },
			kind: errors.KindInvalidInput,
		},
		{
			name: "cache is the working directory",
			path: func(t *testing.T) string { return writeConfig(t, "paths:\n  cache: .\n") },
			kind: errors.KindInvalidInput,
		},
		{
			name: "cache is the filesystem root",
			path: func(t *testing.T) string { return writeConfig(t, "paths:\n  cache: /\n") },
			kind: errors.KindInvalidInput,
		},
		{
			name: "empty app id",
			path: func(t *testing.T) string { return writeConfig(t, "app:\n  id: \"\"\n") },
			kind: errors.KindInvalidInput,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.path(t))
			if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: tc.kind}) {
				t.Errorf("got %v, want config/%s", err, tc.kind)
			}
		})
	}
}

func TestCollaborators(t *testing.T) {
	cfg := &Config{AppID: "viewer", APIKey: "inline", APIKeyFile: "/ignored", Platform: "web", CacheDir: "/c"}

	if k, ok, _ := cfg.KeyResolver().ResolveKey(); !ok || k != "inline" {
		t.Errorf("inline key = %q, %v", k, ok)
	}
	if _, ok := (&Config{APIKeyFile: "/x"}).KeyResolver().(platform.FileKey); !ok {
		t.Error("key file should resolve through FileKey")
	}
	if p := cfg.ResolvePlatform(); p.Name != platform.Web.Name {
		t.Errorf("platform = %s", p.Name)
	}
	if c, ok := cfg.Paths().CachePath(); !ok || c != "/c" {
		t.Errorf("cache path = %s, %v", c, ok)
	}
}

func TestValidate_DisabledCacheSkipsPathCheck(t *testing.T) {
	cfg := &Config{AppID: "viewer", CacheDir: ".", DisableCache: true, ReconnectInterval: time.Second}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

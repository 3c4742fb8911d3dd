package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/sluice/form"
	"github.com/pithecene-io/sluice/policy"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `storage:
  backend: s3
  path: my-bucket/incoming
  prefix: web
  region: us-east-1
  endpoint: https://example.com
  s3_path_style: true

limits:
  window: 131072
  boundary_max: 128
  line_max: 512
  max_header_lines: 20
  max_parts: 100
  field_max: 4096

names:
  denylist: [php, cgi]
  replacement: .txt
  timezone: Europe/Berlin

journal: /var/log/sluice/uploads.journal
manifest: /var/lib/sluice/manifest

adapter:
  type: webhook
  url: https://hooks.example.com/sluice
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 3
  backoff: 250ms

log:
  level: debug
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Storage
	assertEqual(t, "storage.backend", cfg.Storage.Backend, "s3")
	assertEqual(t, "storage.path", cfg.Storage.Path, "my-bucket/incoming")
	assertEqual(t, "storage.prefix", cfg.Storage.Prefix, "web")
	assertEqual(t, "storage.region", cfg.Storage.Region, "us-east-1")
	assertEqual(t, "storage.endpoint", cfg.Storage.Endpoint, "https://example.com")
	if !cfg.Storage.S3PathStyle {
		t.Error("expected storage.s3_path_style=true")
	}

	// Limits
	want := LimitsConfig{Window: 131072, BoundaryMax: 128, LineMax: 512, MaxHeaderLines: 20, MaxParts: 100, FieldMax: 4096}
	if cfg.Limits != want {
		t.Errorf("limits = %+v, want %+v", cfg.Limits, want)
	}

	// Names
	if len(cfg.Names.Denylist) != 2 || cfg.Names.Denylist[1] != "cgi" {
		t.Errorf("names.denylist = %v", cfg.Names.Denylist)
	}
	assertEqual(t, "names.timezone", cfg.Names.Timezone, "Europe/Berlin")

	// Records
	assertEqual(t, "journal", cfg.Journal, "/var/log/sluice/uploads.journal")
	assertEqual(t, "manifest", cfg.Manifest, "/var/lib/sluice/manifest")

	// Adapter
	assertEqual(t, "adapter.type", cfg.Adapter.Type, "webhook")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "https://hooks.example.com/sluice")
	if cfg.Adapter.Timeout.Duration != 10*time.Second {
		t.Errorf("expected adapter.timeout=10s, got %v", cfg.Adapter.Timeout.Duration)
	}
	if cfg.Adapter.Backoff.Duration != 250*time.Millisecond {
		t.Errorf("expected adapter.backoff=250ms, got %v", cfg.Adapter.Backoff.Duration)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Errorf("expected adapter.retries=3")
	}
	if cfg.Adapter.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("expected Authorization header")
	}

	assertEqual(t, "log.level", cfg.Log.Level, "debug")

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	for _, content := range []string{"", "   \n  \n  \n", "# This is a comment\n# Another comment\n"} {
		path := writeTemp(t, content)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q) failed: %v", content, err)
		}
		if cfg.Storage.Backend != "" || cfg.Names.Denylist != nil {
			t.Errorf("Load(%q) = %+v, want zero config", content, cfg)
		}
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/sluice.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{invalid yaml")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_UPLOAD_DIR", "/srv/uploads")

	path := writeTemp(t, "storage:\n  path: ${TEST_UPLOAD_DIR}\n  backend: ${TEST_BACKEND_UNSET:-lode}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "storage.path", cfg.Storage.Path, "/srv/uploads")
	assertEqual(t, "storage.backend", cfg.Storage.Backend, "lode")
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		key  string
	}{
		{"top level", "journal: ./j\nbogus_key: should_fail\n", "bogus_key"},
		{"nested", "storage:\n  backend: fs\n  unknown_field: bad\n", "unknown_field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error for unknown key, got nil")
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error should mention %s, got: %v", tt.key, err)
			}
		})
	}
}

func TestLoad_DenylistEmptyDistinctFromOmitted(t *testing.T) {
	cfg, err := Load(writeTemp(t, "names:\n  denylist: []\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Names.Denylist == nil {
		t.Fatal("explicit empty denylist decoded as nil")
	}

	nc, err := cfg.NameConfig()
	if err != nil {
		t.Fatalf("NameConfig failed: %v", err)
	}
	p, err := policy.NewNamePolicy(nc)
	if err != nil {
		t.Fatalf("NewNamePolicy failed: %v", err)
	}
	if p.IsDenied("php") {
		t.Error("empty denylist still rewrites php")
	}
}

func TestLoad_RetriesZeroDistinctFromNil(t *testing.T) {
	cfg, err := Load(writeTemp(t, "adapter:\n  type: webhook\n  url: https://example.com\n  retries: 0\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 0 {
		t.Fatalf("expected retries=0, got %v", cfg.Adapter.Retries)
	}

	cfg, err = Load(writeTemp(t, "adapter:\n  type: webhook\n  url: https://example.com\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries != nil {
		t.Errorf("expected retries to be nil, got %d", *cfg.Adapter.Retries)
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Duration
		wantErr bool
	}{
		{"seconds", "30s", 30 * time.Second, false},
		{"compound", "1m30s", 90 * time.Second, false},
		{"empty is zero", `""`, 0, false},
		{"invalid", "not-a-duration", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeTemp(t, "adapter:\n  timeout: "+tt.value+"\n"))
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "invalid duration") {
					t.Errorf("error = %v, want invalid duration", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Adapter.Timeout.Duration != tt.want {
				t.Errorf("timeout = %v, want %v", cfg.Adapter.Timeout.Duration, tt.want)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	assertEqual(t, "storage.backend", cfg.Storage.Backend, DefaultStorageBackend)
	assertEqual(t, "storage.path", cfg.Storage.Path, DefaultStoragePath)
	assertEqual(t, "log.level", cfg.Log.Level, DefaultLogLevel)

	s3 := &Config{Storage: StorageConfig{Backend: "s3"}}
	s3.ApplyDefaults()
	if s3.Storage.Path != "" {
		t.Errorf("s3 path defaulted to %q", s3.Storage.Path)
	}
}

func TestValidate(t *testing.T) {
	negative := -1
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"zero config", Config{}, ""},
		{"bad backend", Config{Storage: StorageConfig{Backend: "ftp"}}, "storage.backend"},
		{"s3 without bucket", Config{Storage: StorageConfig{Backend: "s3"}}, "bucket"},
		{"bad adapter", Config{Adapter: AdapterConfig{Type: "kafka", URL: "x"}}, "adapter.type"},
		{"adapter without url", Config{Adapter: AdapterConfig{Type: "redis"}}, "adapter.url"},
		{"negative retries", Config{Adapter: AdapterConfig{Type: "redis", URL: "redis://x", Retries: &negative}}, "adapter.retries"},
		{"window too small", Config{Limits: LimitsConfig{Window: 16, BoundaryMax: 70}}, "limits"},
		{"negative field max", Config{Limits: LimitsConfig{FieldMax: -5}}, "limits.field_max"},
		{"bad timezone", Config{Names: NamesConfig{Timezone: "Mars/Olympus"}}, "names.timezone"},
		{"bad log level", Config{Log: LogConfig{Level: "loud"}}, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestFormConfig(t *testing.T) {
	cfg := &Config{Limits: LimitsConfig{Window: 4096, BoundaryMax: 100, LineMax: 300, MaxParts: 5}}
	fc := cfg.FormConfig().WithDefaults()

	if fc.Transfer.WindowSize != 4096 || fc.Transfer.BoundaryMax != 100 {
		t.Errorf("transfer = %+v", fc.Transfer)
	}
	if fc.LineMax != 300 || fc.MaxParts != 5 || fc.MaxHeaderLines != form.DefaultMaxHeaderLines {
		t.Errorf("form = %+v", fc)
	}
}

func TestNameConfig_Timezone(t *testing.T) {
	cfg := &Config{Names: NamesConfig{Timezone: "Asia/Tokyo", Replacement: ".safe"}}
	nc, err := cfg.NameConfig()
	if err != nil {
		t.Fatalf("NameConfig failed: %v", err)
	}
	if nc.Location == nil || nc.Location.String() != "Asia/Tokyo" || nc.Replacement != ".safe" {
		t.Errorf("name config = %+v", nc)
	}
	if nc.Denylist != nil {
		t.Errorf("denylist = %v, want nil (defaults)", nc.Denylist)
	}
}

// writeTemp writes content to a temp file and returns the path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sluice.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}

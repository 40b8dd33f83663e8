package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/gardensite/pkg/config"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
}

func TestTargetConfig_UnknownAudience(t *testing.T) {
	cfg := TargetConfig{Name: "x", Audience: "everyone", Dest: "d"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown audience should fail validation")
	}
}

func TestTargetConfig_GroupRequiresGroupName(t *testing.T) {
	cfg := TargetConfig{Name: "friends", Audience: "group", Dest: "d"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("group audience without group should fail")
	}
	cfg.Group = "friends"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("group audience with group should pass: %v", err)
	}
}

func TestConfig_DuplicateTargets(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Targets = append(cfg.Targets, cfg.Targets[0])
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate name") {
		t.Fatalf("err = %v, want duplicate name", err)
	}
}

func TestWatchConfig_Schedule(t *testing.T) {
	cfg := WatchConfig{Debounce: time.Second, Schedule: "0 3 * * *"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}
	cfg.Schedule = "at noon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("bad cron schedule should fail")
	}
	cfg.Schedule = ""
	cfg.Debounce = time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Fatal("tiny debounce should fail")
	}
}

func TestApplicationConfig_LogFormat(t *testing.T) {
	cfg := ApplicationConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty format should default: %v", err)
	}
	if cfg.LogFormat != LogFormatText {
		t.Errorf("format = %q, want %q", cfg.LogFormat, LogFormatText)
	}
	cfg.LogFormat = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown log format should fail")
	}
}

func TestMetricsConfig_TextfileRequired(t *testing.T) {
	cfg := MetricsConfig{Enabled: true}
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled metrics without textfile should fail")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("GARDEN_OUT", "/srv/www")
	yaml := `
app:
  log_level: debug
  log_format: json
site:
  root: ./garden
targets:
  - name: public
    audience: public
    dest: ./build/public
    output: ${GARDEN_OUT}/public
  - name: friends
    audience: group
    group: friends
    dest: ./build/friends
generator:
  command: [hugo, --source, "{dest}", --destination, "{output}"]
  timeout: 2m
watch:
  debounce: 750ms
  schedule: "*/30 * * * *"
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug || cfg.App.LogFormat != LogFormatJSON {
		t.Errorf("app = %+v", cfg.App)
	}
	if len(cfg.Targets) != 2 {
		t.Fatalf("targets = %+v", cfg.Targets)
	}
	pub, ok := cfg.Target("public")
	if !ok || pub.Output != "/srv/www/public" {
		t.Errorf("public target = %+v", pub)
	}
	if cfg.Generator.Timeout != 2*time.Minute || len(cfg.Generator.Command) != 5 {
		t.Errorf("generator = %+v", cfg.Generator)
	}
	if cfg.Watch.Debounce != 750*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Watch.Debounce)
	}
	if cfg.Catalog.Path != "./gardensite.db" {
		t.Errorf("catalog default lost: %q", cfg.Catalog.Path)
	}
	if got := cfg.Site.ContentDir(); got != filepath.Join("garden", "content") {
		t.Errorf("content dir = %q", got)
	}
}

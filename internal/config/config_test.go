package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so the ambient environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TASKDECK_LISTEN", "PORT", "GOOGLE_CLOUD_PROJECT",
		"TASKDECK_COLLECTION", "TASKDECK_NOTICE_TTL", "TASKDECK_USERS",
	} {
		t.Setenv(key, "")
	}
}

func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "taskdeck.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
}

// chdir moves the test into dir and restores the original working
// directory on cleanup. testing.T.Chdir needs Go 1.24, newer than this
// module's toolchain.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			panic("restoring working directory: " + err.Error())
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("GOOGLE_CLOUD_PROJECT", "demo-project")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != DefaultListen {
		t.Errorf("Listen = %q, want %q", cfg.Listen, DefaultListen)
	}
	if cfg.ProjectID != "demo-project" {
		t.Errorf("ProjectID = %q, want %q", cfg.ProjectID, "demo-project")
	}
	if cfg.Collection != DefaultCollection {
		t.Errorf("Collection = %q, want %q", cfg.Collection, DefaultCollection)
	}
	if cfg.NoticeTTLSeconds != DefaultNoticeTTLSeconds {
		t.Errorf("NoticeTTLSeconds = %d, want %d", cfg.NoticeTTLSeconds, DefaultNoticeTTLSeconds)
	}
	if len(cfg.Identity.Users) != 0 {
		t.Errorf("Identity.Users = %v, want empty", cfg.Identity.Users)
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfigFile(t, dir, `
listen = ":9000"
project_id = "file-project"
collection = "todo"
notice_ttl_seconds = 10

[identity]
users = ["alice", "bob"]
`)
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != ":9000" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, ":9000")
	}
	if cfg.ProjectID != "file-project" {
		t.Errorf("ProjectID = %q, want %q", cfg.ProjectID, "file-project")
	}
	if cfg.Collection != "todo" {
		t.Errorf("Collection = %q, want %q", cfg.Collection, "todo")
	}
	if cfg.NoticeTTLSeconds != 10 {
		t.Errorf("NoticeTTLSeconds = %d, want 10", cfg.NoticeTTLSeconds)
	}
	if want := []string{"alice", "bob"}; !reflect.DeepEqual(cfg.Identity.Users, want) {
		t.Errorf("Identity.Users = %v, want %v", cfg.Identity.Users, want)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfigFile(t, dir, `
listen = ":9000"
project_id = "file-project"
collection = "todo"
`)
	chdir(t, dir)
	t.Setenv("TASKDECK_LISTEN", ":7777")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "env-project")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != ":7777" {
		t.Errorf("Listen = %q, want env override %q", cfg.Listen, ":7777")
	}
	if cfg.ProjectID != "env-project" {
		t.Errorf("ProjectID = %q, want env override %q", cfg.ProjectID, "env-project")
	}
	if cfg.Collection != "todo" {
		t.Errorf("Collection = %q, want file value %q", cfg.Collection, "todo")
	}
}

func TestPortEnv(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("GOOGLE_CLOUD_PROJECT", "demo-project")
	t.Setenv("PORT", "3000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != ":3000" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, ":3000")
	}
}

func TestUsersFromEnv(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("GOOGLE_CLOUD_PROJECT", "demo-project")
	t.Setenv("TASKDECK_USERS", "alice, bob,,charlie ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if want := []string{"alice", "bob", "charlie"}; !reflect.DeepEqual(cfg.Identity.Users, want) {
		t.Errorf("Identity.Users = %v, want %v", cfg.Identity.Users, want)
	}
}

func TestMissingProjectID(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	if _, err := Load(); err == nil {
		t.Fatal("Load() without project id should fail")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Listen:           ":8080",
		ProjectID:        "p",
		Collection:       "tasks",
		NoticeTTLSeconds: 4,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no project", func(c *Config) { c.ProjectID = "" }, true},
		{"no listen", func(c *Config) { c.Listen = "" }, true},
		{"no collection", func(c *Config) { c.Collection = "" }, true},
		{"zero ttl", func(c *Config) { c.NoticeTTLSeconds = 0 }, true},
		{"negative ttl", func(c *Config) { c.NoticeTTLSeconds = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNoticeTTL(t *testing.T) {
	cfg := Config{NoticeTTLSeconds: 7}
	if got := cfg.NoticeTTL(); got != 7*time.Second {
		t.Errorf("NoticeTTL() = %v, want %v", got, 7*time.Second)
	}
}

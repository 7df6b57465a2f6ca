package runner

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validOptions() *Options {
	return &Options{
		Server:            "http://127.0.0.1:8080/",
		RefreshInterval:   30 * time.Second,
		ReconnectDelay:    time.Second,
		ReconnectDelayMax: 5 * time.Second,
		ToastDuration:     5 * time.Second,
		ActivityLimit:     100,

		ActivityBatchSize:     100,
		ActivityFlushInterval: 5 * time.Second,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *Options)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Options) {}},
		{name: "https server", mutate: func(o *Options) { o.Server = "https://scans.example.com" }},
		{name: "bad scheme", mutate: func(o *Options) { o.Server = "ftp://host" }, wantErr: true},
		{name: "missing host", mutate: func(o *Options) { o.Server = "http://" }, wantErr: true},
		{name: "zero refresh", mutate: func(o *Options) { o.RefreshInterval = 0 }, wantErr: true},
		{name: "max below min", mutate: func(o *Options) { o.ReconnectDelayMax = 500 * time.Millisecond }, wantErr: true},
		{name: "negative ttl", mutate: func(o *Options) { o.ErrorTTL = -time.Second }, wantErr: true},
		{name: "zero activity limit", mutate: func(o *Options) { o.ActivityLimit = 0 }, wantErr: true},
		{name: "zero batch size", mutate: func(o *Options) { o.ActivityBatchSize = 0 }, wantErr: true},
		{name: "zero flush interval", mutate: func(o *Options) { o.ActivityFlushInterval = 0 }, wantErr: true},
		{name: "verbose and silent", mutate: func(o *Options) { o.Verbose, o.Silent = true, true }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOptions()
			tt.mutate(o)
			err := o.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDerivesAPIBase(t *testing.T) {
	o := validOptions()
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}
	if o.Server != "http://127.0.0.1:8080" {
		t.Errorf("Server = %q", o.Server)
	}
	if o.APIBase != "http://127.0.0.1:8080/api" {
		t.Errorf("APIBase = %q", o.APIBase)
	}

	o = validOptions()
	o.APIBase = "http://other:9000/v2"
	_ = o.Validate()
	if o.APIBase != "http://other:9000/v2" {
		t.Errorf("explicit APIBase overwritten: %q", o.APIBase)
	}
}

func TestConfigFileMerge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scanwatch.yaml")
	content := `server: https://scans.example.com
room: global
refresh-interval: 10s
error-ttl: 15m
activity-limit: 50
activity-batch-size: 20
activity-flush-interval: 2s
no-color: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() err=%v", err)
	}
	if cfg.RefreshInterval != 10*time.Second || cfg.ErrorTTL != 15*time.Minute {
		t.Fatalf("durations not decoded: %+v", cfg)
	}

	o := validOptions()
	o.Room = "cli-room"
	o.merge(cfg, map[string]bool{"room": true, "al": true})

	if o.Server != "https://scans.example.com" {
		t.Errorf("Server = %q, want file value", o.Server)
	}
	if o.Room != "cli-room" {
		t.Errorf("Room = %q, flag must win", o.Room)
	}
	if o.ActivityLimit != 100 {
		t.Errorf("ActivityLimit = %d, short flag must win", o.ActivityLimit)
	}
	if o.RefreshInterval != 10*time.Second || o.ErrorTTL != 15*time.Minute || !o.NoColor {
		t.Errorf("file values not applied: %+v", o)
	}
	if o.ActivityBatchSize != 20 || o.ActivityFlushInterval != 2*time.Second {
		t.Errorf("activity sink values not applied: batch=%d flush=%s", o.ActivityBatchSize, o.ActivityFlushInterval)
	}
	if o.ReconnectDelay != time.Second {
		t.Errorf("unset file value overwrote default: %s", o.ReconnectDelay)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(path, []byte("refresh-interval: [nope"), 0600)
	if _, err := loadConfig(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestLoadConfigEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() err=%v", err)
	}
	if *cfg != (fileConfig{}) {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}

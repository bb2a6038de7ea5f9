package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	s := &Settings{}

	if s.GetMinMachineSamples() != 100 || s.GetMinComponentSamples() != 100 {
		t.Errorf("quality minimums = %d/%d, want 100/100", s.GetMinMachineSamples(), s.GetMinComponentSamples())
	}
	if s.GetPercentileNormal() != 90 || s.GetPercentileAlert() != 95 || s.GetPercentileCritical() != 98 {
		t.Errorf("percentiles = %v/%v/%v, want 90/95/98",
			s.GetPercentileNormal(), s.GetPercentileAlert(), s.GetPercentileCritical())
	}
	if s.GetPointsMarginal() != 1 || s.GetPointsAlert() != 3 || s.GetPointsCritical() != 5 {
		t.Errorf("points = %d/%d/%d, want 1/3/5",
			s.GetPointsMarginal(), s.GetPointsAlert(), s.GetPointsCritical())
	}
	if s.GetReportAlertScore() != 3 || s.GetReportAbnormalScore() != 5 {
		t.Errorf("report bands = %d/%d, want 3/5", s.GetReportAlertScore(), s.GetReportAbnormalScore())
	}
	if s.GetMachineAlertScore() != 2 || s.GetMachineAbnormalScore() != 4 {
		t.Errorf("machine bands = %d/%d, want 2/4", s.GetMachineAlertScore(), s.GetMachineAbnormalScore())
	}
	if s.GetWorkers() != 18 {
		t.Errorf("workers = %d, want 18", s.GetWorkers())
	}
	if s.GetRequestTimeout() != 30*time.Second {
		t.Errorf("request timeout = %v, want 30s", s.GetRequestTimeout())
	}
	if s.GetGeminiModel() != "gemini-1.5-flash" {
		t.Errorf("gemini model = %q", s.GetGeminiModel())
	}
	if s.GetRedisAddr() != "" {
		t.Errorf("redis addr = %q, want empty", s.GetRedisAddr())
	}
	if s.GetCacheTTL() != 30*24*time.Hour {
		t.Errorf("cache ttl = %v, want 720h", s.GetCacheTTL())
	}
	if s.GetNormalMessage() == "" {
		t.Error("normal message is empty")
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "settings.json")

	testJSON := `{
  "min_machine_samples": 50,
  "percentile_critical": 99,
  "workers": 4,
  "request_timeout": "10s",
  "redis_addr": "localhost:6379"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	s, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.GetMinMachineSamples() != 50 {
		t.Errorf("min machine samples = %d, want 50", s.GetMinMachineSamples())
	}
	if s.GetPercentileCritical() != 99 {
		t.Errorf("percentile critical = %v, want 99", s.GetPercentileCritical())
	}
	if s.GetWorkers() != 4 {
		t.Errorf("workers = %d, want 4", s.GetWorkers())
	}
	if s.GetRequestTimeout() != 10*time.Second {
		t.Errorf("request timeout = %v, want 10s", s.GetRequestTimeout())
	}
	if s.GetRedisAddr() != "localhost:6379" {
		t.Errorf("redis addr = %q", s.GetRedisAddr())
	}
	// Unset fields keep their defaults.
	if s.GetMinComponentSamples() != 100 {
		t.Errorf("min component samples = %d, want default 100", s.GetMinComponentSamples())
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("wrong extension", func(t *testing.T) {
		path := filepath.Join(tmpDir, "settings.yaml")
		os.WriteFile(path, []byte("{}"), 0644)
		if _, err := Load(path); err == nil {
			t.Fatal("expected error for non-json extension")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(tmpDir, "absent.json")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		path := filepath.Join(tmpDir, "broken.json")
		os.WriteFile(path, []byte("{nope"), 0644)
		if _, err := Load(path); err == nil {
			t.Fatal("expected error for invalid JSON")
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		path := filepath.Join(tmpDir, "invalid.json")
		os.WriteFile(path, []byte(`{"workers": 0}`), 0644)
		if _, err := Load(path); err == nil {
			t.Fatal("expected validation error for zero workers")
		}
	})
}

func TestValidate(t *testing.T) {
	bad := func(mutate func(*Settings)) *Settings {
		s := &Settings{}
		mutate(s)
		return s
	}
	intp := func(v int) *int { return &v }
	floatp := func(v float64) *float64 { return &v }
	strp := func(v string) *string { return &v }

	tests := []struct {
		name    string
		s       *Settings
		wantErr bool
	}{
		{"empty is valid", &Settings{}, false},
		{"negative workers", bad(func(s *Settings) { s.Workers = intp(-1) }), true},
		{"negative min samples", bad(func(s *Settings) { s.MinMachineSamples = intp(-1) }), true},
		{"percentile too high", bad(func(s *Settings) { s.PercentileCritical = floatp(100) }), true},
		{"percentile zero", bad(func(s *Settings) { s.PercentileNormal = floatp(0) }), true},
		{"temperature out of range", bad(func(s *Settings) { s.GeminiTemperature = floatp(3) }), true},
		{"bad duration", bad(func(s *Settings) { s.RequestTimeout = strp("soon") }), true},
		{"good duration", bad(func(s *Settings) { s.CacheTTL = strp("48h") }), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.s.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

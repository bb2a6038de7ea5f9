// Package config loads the engine settings file.
//
// All fields are optional in the JSON: anything omitted falls back to the
// documented default through the Get* accessors, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the canonical settings file. It is the single source
// of truth for default processing values.
const DefaultConfigPath = "config/settings.defaults.json"

// Settings is the root configuration for the processing engine.
type Settings struct {
	// Quality filter: minimum historical volume a segment needs before its
	// samples take part in threshold calibration.
	MinMachineSamples   *int `json:"min_machine_samples,omitempty"`
	MinComponentSamples *int `json:"min_component_samples,omitempty"`

	// Stewart limit percentiles.
	PercentileNormal   *float64 `json:"percentile_normal,omitempty"`
	PercentileAlert    *float64 `json:"percentile_alert,omitempty"`
	PercentileCritical *float64 `json:"percentile_critical,omitempty"`

	// Essay points and report score bands.
	PointsMarginal      *int `json:"points_marginal,omitempty"`
	PointsAlert         *int `json:"points_alert,omitempty"`
	PointsCritical      *int `json:"points_critical,omitempty"`
	ReportAlertScore    *int `json:"report_alert_score,omitempty"`
	ReportAbnormalScore *int `json:"report_abnormal_score,omitempty"`

	// Machine aggregation bands over summed component weights.
	MachineAlertScore    *int `json:"machine_alert_score,omitempty"`
	MachineAbnormalScore *int `json:"machine_abnormal_score,omitempty"`

	// Recommendation orchestration.
	Workers           *int     `json:"workers,omitempty"`
	NormalMessage     *string  `json:"normal_message,omitempty"`
	RequestTimeout    *string  `json:"request_timeout,omitempty"` // duration string like "30s"
	GeminiModel       *string  `json:"gemini_model,omitempty"`
	GeminiTemperature *float64 `json:"gemini_temperature,omitempty"`
	GeminiMaxTokens   *int     `json:"gemini_max_tokens,omitempty"`
	RedisAddr         *string  `json:"redis_addr,omitempty"` // empty means in-memory cache
	CacheTTL          *string  `json:"cache_ttl,omitempty"`  // duration string like "720h"
}

// Load reads a Settings file. The path must have a .json extension and stay
// under the max file size.
func Load(path string) (*Settings, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("settings file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat settings file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("settings file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	s := &Settings{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings JSON: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// Validate checks that configured values are usable.
func (s *Settings) Validate() error {
	if s.Workers != nil && *s.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", *s.Workers)
	}
	if s.MinMachineSamples != nil && *s.MinMachineSamples < 0 {
		return fmt.Errorf("min_machine_samples must be non-negative, got %d", *s.MinMachineSamples)
	}
	if s.MinComponentSamples != nil && *s.MinComponentSamples < 0 {
		return fmt.Errorf("min_component_samples must be non-negative, got %d", *s.MinComponentSamples)
	}
	percentiles := []struct {
		name string
		v    *float64
	}{
		{"percentile_normal", s.PercentileNormal},
		{"percentile_alert", s.PercentileAlert},
		{"percentile_critical", s.PercentileCritical},
	}
	for _, p := range percentiles {
		if p.v != nil && (*p.v <= 0 || *p.v >= 100) {
			return fmt.Errorf("%s must be between 0 and 100 exclusive, got %f", p.name, *p.v)
		}
	}
	if s.GeminiTemperature != nil && (*s.GeminiTemperature < 0 || *s.GeminiTemperature > 2) {
		return fmt.Errorf("gemini_temperature must be between 0 and 2, got %f", *s.GeminiTemperature)
	}
	if s.RequestTimeout != nil && *s.RequestTimeout != "" {
		if _, err := time.ParseDuration(*s.RequestTimeout); err != nil {
			return fmt.Errorf("invalid request_timeout %q: %w", *s.RequestTimeout, err)
		}
	}
	if s.CacheTTL != nil && *s.CacheTTL != "" {
		if _, err := time.ParseDuration(*s.CacheTTL); err != nil {
			return fmt.Errorf("invalid cache_ttl %q: %w", *s.CacheTTL, err)
		}
	}
	return nil
}

func (s *Settings) GetMinMachineSamples() int {
	if s.MinMachineSamples != nil {
		return *s.MinMachineSamples
	}
	return 100
}

func (s *Settings) GetMinComponentSamples() int {
	if s.MinComponentSamples != nil {
		return *s.MinComponentSamples
	}
	return 100
}

func (s *Settings) GetPercentileNormal() float64 {
	if s.PercentileNormal != nil {
		return *s.PercentileNormal
	}
	return 90
}

func (s *Settings) GetPercentileAlert() float64 {
	if s.PercentileAlert != nil {
		return *s.PercentileAlert
	}
	return 95
}

func (s *Settings) GetPercentileCritical() float64 {
	if s.PercentileCritical != nil {
		return *s.PercentileCritical
	}
	return 98
}

func (s *Settings) GetPointsMarginal() int {
	if s.PointsMarginal != nil {
		return *s.PointsMarginal
	}
	return 1
}

func (s *Settings) GetPointsAlert() int {
	if s.PointsAlert != nil {
		return *s.PointsAlert
	}
	return 3
}

func (s *Settings) GetPointsCritical() int {
	if s.PointsCritical != nil {
		return *s.PointsCritical
	}
	return 5
}

func (s *Settings) GetReportAlertScore() int {
	if s.ReportAlertScore != nil {
		return *s.ReportAlertScore
	}
	return 3
}

func (s *Settings) GetReportAbnormalScore() int {
	if s.ReportAbnormalScore != nil {
		return *s.ReportAbnormalScore
	}
	return 5
}

func (s *Settings) GetMachineAlertScore() int {
	if s.MachineAlertScore != nil {
		return *s.MachineAlertScore
	}
	return 2
}

func (s *Settings) GetMachineAbnormalScore() int {
	if s.MachineAbnormalScore != nil {
		return *s.MachineAbnormalScore
	}
	return 4
}

func (s *Settings) GetWorkers() int {
	if s.Workers != nil {
		return *s.Workers
	}
	return 18
}

func (s *Settings) GetNormalMessage() string {
	if s.NormalMessage != nil {
		return *s.NormalMessage
	}
	return "Resultados dentro de límites permisibles. Mantener intervalos de muestreo habituales."
}

func (s *Settings) GetRequestTimeout() time.Duration {
	if s.RequestTimeout != nil && *s.RequestTimeout != "" {
		if d, err := time.ParseDuration(*s.RequestTimeout); err == nil {
			return d
		}
	}
	return 30 * time.Second
}

func (s *Settings) GetGeminiModel() string {
	if s.GeminiModel != nil {
		return *s.GeminiModel
	}
	return "gemini-1.5-flash"
}

func (s *Settings) GetGeminiTemperature() float64 {
	if s.GeminiTemperature != nil {
		return *s.GeminiTemperature
	}
	return 0.9
}

func (s *Settings) GetGeminiMaxTokens() int {
	if s.GeminiMaxTokens != nil {
		return *s.GeminiMaxTokens
	}
	return 500
}

func (s *Settings) GetRedisAddr() string {
	if s.RedisAddr != nil {
		return *s.RedisAddr
	}
	return ""
}

func (s *Settings) GetCacheTTL() time.Duration {
	if s.CacheTTL != nil && *s.CacheTTL != "" {
		if d, err := time.ParseDuration(*s.CacheTTL); err == nil {
			return d
		}
	}
	return 30 * 24 * time.Hour
}

// Package config centralizes configuration for the guidealign commands,
// loaded from config files, environment variables and defaults.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete configuration for the guidealign
// application.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Detection loop configuration
	Detection DetectionConfig `mapstructure:"detection" yaml:"detection" json:"detection"`

	// Boundary detector configuration
	Boundary BoundaryConfig `mapstructure:"boundary" yaml:"boundary" json:"boundary"`

	// Guide set configuration
	Guides GuidesConfig `mapstructure:"guides" yaml:"guides" json:"guides"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// DetectionConfig contains detection loop and state machine settings.
type DetectionConfig struct {
	IntervalMs          int     `mapstructure:"interval_ms" yaml:"interval_ms" json:"interval_ms"`
	TimeoutMs           int     `mapstructure:"timeout_ms" yaml:"timeout_ms" json:"timeout_ms"`
	HideConfidence      float64 `mapstructure:"hide_confidence" yaml:"hide_confidence" json:"hide_confidence"`
	LandscapeRatio      float64 `mapstructure:"landscape_ratio" yaml:"landscape_ratio" json:"landscape_ratio"`
	PortraitRatio       float64 `mapstructure:"portrait_ratio" yaml:"portrait_ratio" json:"portrait_ratio"`
	AmbiguousConfidence float64 `mapstructure:"ambiguous_confidence" yaml:"ambiguous_confidence" json:"ambiguous_confidence"`
	UseOverlapMatch     bool    `mapstructure:"use_overlap_match" yaml:"use_overlap_match" json:"use_overlap_match"`
}

// Interval returns the tick interval as a duration.
func (c DetectionConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// Timeout returns the decay timeout as a duration.
func (c DetectionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// BoundaryConfig contains boundary detector settings.
type BoundaryConfig struct {
	ModelPath            string  `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	ConfidenceThreshold  float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold" json:"confidence_threshold"`
	NumThreads           int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	UseHeuristicFallback bool    `mapstructure:"use_heuristic_fallback" yaml:"use_heuristic_fallback" json:"use_heuristic_fallback"`
	HeuristicOnly        bool    `mapstructure:"heuristic_only" yaml:"heuristic_only" json:"heuristic_only"`
}

// GuidesConfig selects the guide set shown by the UI.
type GuidesConfig struct {
	// Path points at a YAML guide preset file; empty uses the built-in
	// defaults for the configured frame size.
	Path        string  `mapstructure:"path" yaml:"path" json:"path"`
	FrameWidth  float64 `mapstructure:"frame_width" yaml:"frame_width" json:"frame_width"`
	FrameHeight float64 `mapstructure:"frame_height" yaml:"frame_height" json:"frame_height"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	TimeoutSec      int    `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := c.Detection.Validate(); err != nil {
		return fmt.Errorf("detection: %w", err)
	}
	if err := c.Boundary.Validate(); err != nil {
		return fmt.Errorf("boundary: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Guides.Validate(); err != nil {
		return fmt.Errorf("guides: %w", err)
	}
	return nil
}

// Validate checks detection loop settings.
func (c DetectionConfig) Validate() error {
	if c.IntervalMs <= 0 {
		return fmt.Errorf("interval_ms must be positive, got %d", c.IntervalMs)
	}
	if c.TimeoutMs <= 0 {
		return fmt.Errorf("timeout_ms must be positive, got %d", c.TimeoutMs)
	}
	if c.HideConfidence < 0 || c.HideConfidence > 1 {
		return fmt.Errorf("hide_confidence must be within [0,1], got %f", c.HideConfidence)
	}
	if c.PortraitRatio <= 0 || c.LandscapeRatio <= c.PortraitRatio {
		return fmt.Errorf("landscape_ratio (%f) must exceed portrait_ratio (%f)", c.LandscapeRatio, c.PortraitRatio)
	}
	return nil
}

// Validate checks boundary detector settings.
func (c BoundaryConfig) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be within [0,1], got %f", c.ConfidenceThreshold)
	}
	if c.NumThreads < 0 {
		return fmt.Errorf("num_threads must not be negative, got %d", c.NumThreads)
	}
	if c.ModelPath == "" && !c.UseHeuristicFallback && !c.HeuristicOnly {
		return fmt.Errorf("no model path and heuristic disabled: detector can never become ready")
	}
	return nil
}

// Validate checks guide settings.
func (c GuidesConfig) Validate() error {
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("frame dimensions must be positive, got %fx%f", c.FrameWidth, c.FrameHeight)
	}
	return nil
}

// Validate checks server settings.
func (c ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be within [0,65535], got %d", c.Port)
	}
	if c.TimeoutSec <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.TimeoutSec)
	}
	return nil
}

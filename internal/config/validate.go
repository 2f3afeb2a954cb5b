package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateInference(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.BatchSize <= 0 {
		return errors.New("analysis.batch_size must be positive")
	}
	if c.Analysis.SongTimeoutSeconds <= 0 {
		return errors.New("analysis.song_timeout_seconds must be positive")
	}
	if c.Analysis.BatchYieldMillis < 0 {
		return errors.New("analysis.batch_yield_ms must be >= 0")
	}
	if c.Analysis.KeepFraction <= 0 || c.Analysis.KeepFraction > 1 {
		return errors.New("analysis.keep_fraction must be in (0, 1]")
	}
	if len(c.Analysis.Models) == 0 {
		return errors.New("analysis.models must list at least one model")
	}
	return nil
}

// validateExtraction only rejects structurally impossible values. Parameters
// the extractor cannot work with are reported by the extraction stage itself
// so every request fails with a descriptive error instead of blocking startup.
func (c *Config) validateExtraction() error {
	if c.Extraction.HopSize < 0 || c.Extraction.FrameSize < 0 {
		return errors.New("extraction.frame_size and extraction.hop_size must be >= 0")
	}
	return nil
}

func (c *Config) validateInference() error {
	switch c.Inference.Backend {
	case "onnx":
	default:
		return fmt.Errorf("inference.backend: unsupported value %q", c.Inference.Backend)
	}
	if c.Inference.LoadTimeoutSeconds <= 0 {
		return errors.New("inference.load_timeout_seconds must be positive")
	}
	if c.Inference.WarmupTimeoutSeconds <= 0 {
		return errors.New("inference.warmup_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateExport() error {
	if !c.Export.UploadEnabled {
		return nil
	}
	if c.Export.Endpoint == "" {
		return errors.New("export.endpoint must be set when export.upload_enabled is true")
	}
	if c.Export.Bucket == "" {
		return errors.New("export.bucket must be set when export.upload_enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return errors.New("logging rotation values must be >= 0")
	}
	return nil
}

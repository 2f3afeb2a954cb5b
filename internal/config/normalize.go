package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAnalysis()
	c.normalizeInference()
	c.normalizeDecoder()
	c.normalizeExport()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("SONGLENS_MODELS_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.ModelsDir = value
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if strings.TrimSpace(c.Paths.ModelsDir) == "" {
		c.Paths.ModelsDir = defaultModelsDir
	}
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ModelsDir, err = expandPath(c.Paths.ModelsDir); err != nil {
		return fmt.Errorf("paths.models_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAnalysis() {
	if c.Analysis.BatchSize <= 0 {
		c.Analysis.BatchSize = defaultBatchSize
	}
	if c.Analysis.SampleRate <= 0 {
		c.Analysis.SampleRate = defaultAnalysisSampleRate
	}
	models := make([]string, 0, len(c.Analysis.Models))
	seen := make(map[string]struct{}, len(c.Analysis.Models))
	for _, name := range c.Analysis.Models {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		models = append(models, name)
	}
	if len(models) == 0 {
		models = append(models, DefaultModels...)
	}
	c.Analysis.Models = models
}

func (c *Config) normalizeInference() {
	c.Inference.Backend = strings.ToLower(strings.TrimSpace(c.Inference.Backend))
	if c.Inference.Backend == "" {
		c.Inference.Backend = defaultInferenceBackend
	}
	c.Inference.ONNXLibraryPath = strings.TrimSpace(c.Inference.ONNXLibraryPath)
	if c.Inference.ONNXLibraryPath == "" {
		if value, ok := os.LookupEnv("ONNXRUNTIME_LIB"); ok {
			c.Inference.ONNXLibraryPath = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeDecoder() {
	c.Decoder.FFmpegBinary = strings.TrimSpace(c.Decoder.FFmpegBinary)
	if c.Decoder.FFmpegBinary == "" {
		c.Decoder.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Decoder.SampleRate <= 0 {
		c.Decoder.SampleRate = defaultDecodeSampleRate
	}
	if c.Decoder.Channels <= 0 {
		c.Decoder.Channels = defaultDecodeChannels
	}
}

func (c *Config) normalizeExport() {
	c.Export.Endpoint = strings.TrimSpace(c.Export.Endpoint)
	c.Export.Bucket = strings.TrimSpace(c.Export.Bucket)
	c.Export.Prefix = strings.Trim(strings.TrimSpace(c.Export.Prefix), "/")
	if c.Export.AccessKey == "" {
		if value, ok := os.LookupEnv("SONGLENS_S3_ACCESS_KEY"); ok {
			c.Export.AccessKey = value
		}
	}
	if c.Export.SecretKey == "" {
		if value, ok := os.LookupEnv("SONGLENS_S3_SECRET_KEY"); ok {
			c.Export.SecretKey = value
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

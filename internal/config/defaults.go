package config

const (
	defaultStateDir             = "~/.local/share/songlens"
	defaultLogDir               = "~/.local/share/songlens/logs"
	defaultModelsDir            = "~/.local/share/songlens/models"
	defaultBatchSize            = 20
	defaultSongTimeoutSeconds   = 30
	defaultBatchYieldMillis     = 250
	defaultKeepFraction         = 0.15
	defaultAnalysisSampleRate   = 16000
	defaultFrameSize            = 512
	defaultHopSize              = 256
	defaultMelBands             = 96
	defaultPatchSize            = 187
	defaultInferenceBackend     = "onnx"
	defaultLoadTimeoutSeconds   = 30
	defaultWarmupTimeoutSeconds = 10
	defaultFFmpegBinary         = "ffmpeg"
	defaultDecodeSampleRate     = 44100
	defaultDecodeChannels       = 2
	defaultDecodeTimeoutSeconds = 120
	defaultWatchDebounceMillis  = 1500
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogMaxSizeMB         = 20
	defaultLogMaxBackups        = 5
	defaultLogMaxAgeDays        = 30
	defaultExportPrefix         = "songlens"
)

// DefaultModels lists the classifiers every song is scored against.
var DefaultModels = []string{"mood_happy", "mood_sad", "mood_relaxed", "mood_aggressive", "danceability"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	models := make([]string, len(DefaultModels))
	copy(models, DefaultModels)
	return Config{
		Paths: Paths{
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
			ModelsDir: defaultModelsDir,
		},
		Analysis: Analysis{
			BatchSize:          defaultBatchSize,
			SongTimeoutSeconds: defaultSongTimeoutSeconds,
			BatchYieldMillis:   defaultBatchYieldMillis,
			KeepFraction:       defaultKeepFraction,
			TrimEnds:           true,
			SampleRate:         defaultAnalysisSampleRate,
			Models:             models,
		},
		Extraction: Extraction{
			ReuseWorker: true,
			FrameSize:   defaultFrameSize,
			HopSize:     defaultHopSize,
			MelBands:    defaultMelBands,
			PatchSize:   defaultPatchSize,
		},
		Inference: Inference{
			Backend:              defaultInferenceBackend,
			LoadTimeoutSeconds:   defaultLoadTimeoutSeconds,
			WarmupTimeoutSeconds: defaultWarmupTimeoutSeconds,
		},
		Decoder: Decoder{
			FFmpegBinary:   defaultFFmpegBinary,
			SampleRate:     defaultDecodeSampleRate,
			Channels:       defaultDecodeChannels,
			TimeoutSeconds: defaultDecodeTimeoutSeconds,
		},
		Export: Export{
			UseSSL: true,
			Prefix: defaultExportPrefix,
		},
		Watch: Watch{
			DebounceMillis: defaultWatchDebounceMillis,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}

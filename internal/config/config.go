package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when neither --config nor CONFIG_PATH is set.
const DefaultConfigPath = "/config/pipeline.yaml"

// DefaultGlobal returns a GlobalConfig with sensible defaults, mirroring
// the teacher's DefaultConfig pattern.
func DefaultGlobal() GlobalConfig {
	return GlobalConfig{
		Redis: RedisConfig{
			Addr:      "127.0.0.1:6379",
			DB:        0,
			KeyPrefix: "encode:",
		},
		Stability: StabilityConfig{
			PollInterval:      Duration(5 * time.Second),
			StabilityDuration: Duration(30 * time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
		},
		Prometheus: PrometheusConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		ProbePath:   "ffprobe",
		EncoderPath: "ffmpeg",
		IdleSleep:   Duration(5 * time.Second),
		ErrorSleep:  Duration(10 * time.Second),
		LogLevel:    "info",
		AuditDBPath: "/config/audit.db",
	}
}

// DefaultProfile returns a Profile with sensible defaults for fields a user
// omits.
func DefaultProfile(name string) Profile {
	return Profile{
		Name:            name,
		Recursive:       true,
		FilePatterns:    []string{"*.mkv", "*.mp4"},
		Encoder:         EncoderSvtAv1,
		TargetQuality:   93.0,
		WorkerCountHint: 1,
		Audio: AudioConfig{
			Fallback:    FallbackPassthrough,
			OutputOrder: OrderPreserve,
		},
		Subtitles: SubtitleConfig{
			ImageSubs: ImageSubsCopy,
			Fallback:  FallbackPassthrough,
		},
		OutputStructure: StructureMirror,
		FilenameMode:    FilenamePreserve,
	}
}

// Load reads and parses a YAML config file, applying defaults for omitted
// fields. If the file does not exist, a default config is written and
// returned, mirroring the teacher's Load().
func Load(path string) (*Config, error) {
	cfg := &Config{Global: DefaultGlobal()}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if saveErr := cfg.Save(path); saveErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrConfigCacheFailed, saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrConfigReadFailed, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParseFailed, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills in zero-valued fields that have a documented default,
// matching the teacher's post-unmarshal fixups in Load().
func (c *Config) applyDefaults() {
	if c.Global.ProbePath == "" {
		c.Global.ProbePath = "ffprobe"
	}
	if c.Global.EncoderPath == "" {
		c.Global.EncoderPath = "ffmpeg"
	}
	if c.Global.Redis.Addr == "" {
		c.Global.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Global.Redis.KeyPrefix == "" {
		c.Global.Redis.KeyPrefix = "encode:"
	}
	if c.Global.Retry.MaxAttempts <= 0 {
		c.Global.Retry.MaxAttempts = 3
	}
	if c.Global.Stability.PollInterval == 0 {
		c.Global.Stability.PollInterval = Duration(5 * time.Second)
	}
	if c.Global.Stability.StabilityDuration == 0 {
		c.Global.Stability.StabilityDuration = Duration(30 * time.Second)
	}
	if c.Global.IdleSleep == 0 {
		c.Global.IdleSleep = Duration(5 * time.Second)
	}
	if c.Global.ErrorSleep == 0 {
		c.Global.ErrorSleep = Duration(10 * time.Second)
	}
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = "info"
	}
	if c.Global.AuditDBPath == "" {
		c.Global.AuditDBPath = "/config/audit.db"
	}
	for i := range c.Profiles {
		p := &c.Profiles[i]
		if p.WorkerCountHint <= 0 {
			p.WorkerCountHint = 1
		}
		if p.OutputStructure == "" {
			p.OutputStructure = StructureMirror
		}
		if p.FilenameMode == "" {
			p.FilenameMode = FilenamePreserve
		}
		if p.Audio.Fallback == "" {
			p.Audio.Fallback = FallbackPassthrough
		}
		if p.Audio.OutputOrder == "" {
			p.Audio.OutputOrder = OrderPreserve
		}
		if p.Subtitles.ImageSubs == "" {
			p.Subtitles.ImageSubs = ImageSubsCopy
		}
		if p.Subtitles.Fallback == "" {
			p.Subtitles.Fallback = FallbackPassthrough
		}
	}
}

// Save writes the config to a YAML file, creating the parent directory if
// needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ResolvePath returns the config path per the CLI contract: explicit flag,
// else CONFIG_PATH env var, else DefaultConfigPath.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return DefaultConfigPath
}

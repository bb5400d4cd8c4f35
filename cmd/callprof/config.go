package main

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	ServiceConfig struct {
		Environment string `yaml:"environment" env:"SENTRY_ENVIRONMENT" env-default:"development"`
		SentryDSN   string `yaml:"sentry_dsn" env:"SENTRY_DSN"`
		LogLevel    string `yaml:"log_level" env:"CALLPROF_LOG_LEVEL" env-default:"info"`

		MemoryProfiling bool  `yaml:"memory_profiling" env:"CALLPROF_MEMORY_PROFILING"`
		Frames          int   `yaml:"frames" env:"CALLPROF_FRAMES" env-default:"60"`
		Entities        int   `yaml:"entities" env:"CALLPROF_ENTITIES" env-default:"256"`
		Seed            int64 `yaml:"seed" env:"CALLPROF_SEED" env-default:"1"`

		OutputDir         string `yaml:"output_dir" env:"CALLPROF_OUTPUT_DIR" env-default:"."`
		FrameStatistics   bool   `yaml:"frame_statistics" env:"CALLPROF_FRAME_STATISTICS"`
		BucketURL         string `yaml:"bucket_url" env:"CALLPROF_BUCKET_URL"`
		CompressExports   bool   `yaml:"compress_exports" env:"CALLPROF_COMPRESS_EXPORTS"`
		TopFunctions      int    `yaml:"top_functions" env:"CALLPROF_TOP_FUNCTIONS" env-default:"15"`
		ListenAddr        string `yaml:"listen_addr" env:"CALLPROF_LISTEN_ADDR" env-default:":8080"`
		ShutdownTimeoutMS int    `yaml:"shutdown_timeout_ms" env:"CALLPROF_SHUTDOWN_TIMEOUT_MS" env-default:"30000"`
	}
)

var (
	serviceConfigs = map[string]ServiceConfig{
		"production": {
			BucketURL:       "gs://callprof-exports",
			CompressExports: true,
		},
		"development": {},
	}
)

// loadConfig reads the configuration from path, if set, then from the
// environment, and fills what is still unset from the environment's defaults.
func loadConfig(path string) (ServiceConfig, error) {
	var cfg ServiceConfig
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}
	defaults, exists := serviceConfigs[cfg.Environment]
	if !exists {
		return cfg, fmt.Errorf("service config for environment %v does not exist", cfg.Environment)
	}
	if cfg.SentryDSN == "" {
		cfg.SentryDSN = defaults.SentryDSN
	}
	if cfg.BucketURL == "" {
		cfg.BucketURL = defaults.BucketURL
		cfg.CompressExports = cfg.CompressExports || defaults.CompressExports
	}
	if cfg.Frames < 0 || cfg.Entities < 0 {
		return cfg, fmt.Errorf("frames and entities must not be negative")
	}
	return cfg, nil
}

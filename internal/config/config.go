// Package config assembles ehscore settings from a .env file, an optional
// YAML file and EHS_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ehscore/internal/blob"
	"ehscore/internal/core"
)

// Config holds all runtime settings.
type Config struct {
	Storage                core.StorageConfig
	Blob                   blob.Config
	CorrectiveActionPolicy core.CorrectiveActionPolicy
	LogLevel               slog.Level
	Metrics                core.MetricsExporter

	// MetricsFile receives a metrics snapshot when the process closes the service.
	MetricsFile string
	// TraceFile receives one JSON line per finished span.
	TraceFile   string
}

// fileConfig is the YAML layout read from EHS_CONFIG_FILE.
type fileConfig struct {
	Storage struct {
		Driver      string `yaml:"driver"`
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"storage"`
	Blob struct {
		Driver string `yaml:"driver"`
		FSRoot string `yaml:"fs_root"`
		S3     struct {
			Region    string `yaml:"region"`
			Bucket    string `yaml:"bucket"`
			Endpoint  string `yaml:"endpoint"`
			PathStyle bool   `yaml:"path_style"`
		} `yaml:"s3"`
	} `yaml:"blob"`
	CorrectiveActionPolicy string `yaml:"corrective_action_policy"`
	LogLevel               string `yaml:"log_level"`
	Metrics                struct {
		Exporter string `yaml:"exporter"`
		File     string `yaml:"file"`
	} `yaml:"metrics"`
	TraceFile string `yaml:"trace_file"`
}

// Load reads .env when present, then the YAML overlay, then environment
// variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var file fileConfig
	if path := os.Getenv("EHS_CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Storage: core.StorageConfig{
			Driver:      core.StorageDriver(getEnv("EHS_STORAGE_DRIVER", orDefault(file.Storage.Driver, string(core.StorageSQLite)))),
			SQLitePath:  getEnv("EHS_SQLITE_PATH", file.Storage.SQLitePath),
			PostgresDSN: getEnv("EHS_POSTGRES_DSN", file.Storage.PostgresDSN),
		},
		Blob: blob.Config{
			Driver: blob.Driver(getEnv("EHS_BLOB_DRIVER", orDefault(file.Blob.Driver, string(blob.DriverFilesystem)))),
			FSRoot: getEnv("EHS_BLOB_FS_ROOT", file.Blob.FSRoot),
			S3: blob.S3Config{
				Region:          getEnv("EHS_BLOB_S3_REGION", file.Blob.S3.Region),
				Bucket:          getEnv("EHS_BLOB_S3_BUCKET", file.Blob.S3.Bucket),
				Endpoint:        getEnv("EHS_BLOB_S3_ENDPOINT", file.Blob.S3.Endpoint),
				AccessKeyID:     os.Getenv("EHS_BLOB_S3_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("EHS_BLOB_S3_SECRET_ACCESS_KEY"),
				SessionToken:    os.Getenv("EHS_BLOB_S3_SESSION_TOKEN"),
				PathStyle:       file.Blob.S3.PathStyle,
			},
		},
		MetricsFile: getEnv("EHS_METRICS_FILE", file.Metrics.File),
		TraceFile:   getEnv("EHS_TRACE_FILE", file.TraceFile),
	}

	if raw := os.Getenv("EHS_BLOB_S3_PATH_STYLE"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("EHS_BLOB_S3_PATH_STYLE: %w", err)
		}
		cfg.Blob.S3.PathStyle = v
	}

	policy, err := core.ParseCorrectiveActionPolicy(getEnv("EHS_CORRECTIVE_ACTION_POLICY", file.CorrectiveActionPolicy))
	if err != nil {
		return nil, err
	}
	cfg.CorrectiveActionPolicy = policy

	if cfg.Metrics, err = core.ParseMetricsExporter(getEnv("EHS_METRICS", file.Metrics.Exporter)); err != nil {
		return nil, err
	}

	if cfg.LogLevel, err = parseLevel(getEnv("EHS_LOG_LEVEL", file.LogLevel)); err != nil {
		return nil, err
	}

	switch cfg.Storage.Driver {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres:
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	return cfg, nil
}

func parseLevel(raw string) (slog.Level, error) {
	if raw == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(raw))); err != nil {
		return 0, fmt.Errorf("EHS_LOG_LEVEL: %w", err)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

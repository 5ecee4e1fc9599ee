package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"

	DriverSQLite   = "sqlite"
	DriverPostgres = "pg"
)

const envPrefix = "RIPENESS"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Environment string `mapstructure:"environment"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	AssetsDir   string `mapstructure:"assets_dir"`
	MaxUploadMB int    `mapstructure:"max_upload_mb"`

	Model      ModelConfig      `mapstructure:"model"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Preprocess PreprocessConfig `mapstructure:"preprocess"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	History    HistoryConfig    `mapstructure:"history"`
	DB         DBConfig         `mapstructure:"db"`
	Storage    StorageConfig    `mapstructure:"storage"`
	S3         S3Config         `mapstructure:"s3"`
}

type ModelConfig struct {
	Path        string `mapstructure:"path"`
	LabelMap    string `mapstructure:"label_map"`
	Runtime     string `mapstructure:"runtime"`
	Cache       bool   `mapstructure:"cache"`
	NumThreads  int    `mapstructure:"num_threads"`
	OnnxLibrary string `mapstructure:"onnx_library"`
}

type ClassifierConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

type PreprocessConfig struct {
	Size  int     `mapstructure:"size"`
	Alpha float64 `mapstructure:"alpha"`
	Beta  float64 `mapstructure:"beta"`
	// MaxPixels caps width*height of uploads before decoding.
	MaxPixels int64 `mapstructure:"max_pixels"`
}

type CatalogConfig struct {
	File string `mapstructure:"file"`
}

type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type StorageConfig struct {
	Type     string `mapstructure:"type"`
	LocalDir string `mapstructure:"local_dir"`
}

type S3Config struct {
	Folder      string `mapstructure:"folder"`
	Region      string `mapstructure:"region_name"`
	Bucket      string `mapstructure:"bucket_name"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	EndpointUrl string `mapstructure:"endpoint_url"`
	ModelKey    string `mapstructure:"model_key"`
	LabelMapKey string `mapstructure:"label_map_key"`
}

// Load reads defaults, then the env file, then the config file, then
// RIPENESS_* environment variables. Flags bound to v before the call win over
// all of them. Empty paths fall back to ./.env and ./config.yaml when present.
func Load(v *viper.Viper, configFile, envFile string) (*Config, error) {
	SetDefaults(v)

	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`, `-`, `_`))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigType("yaml")
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFile(envFile string) error {
	if envFile == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		envFile = ".env"
	}

	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch {
	case c.Classifier.Threshold < 0 || c.Classifier.Threshold > 1:
		return fmt.Errorf("%w: classifier.threshold %v is outside [0, 1]", ErrInvalidConfig, c.Classifier.Threshold)
	case c.Preprocess.Size <= 0:
		return fmt.Errorf("%w: preprocess.size must be positive", ErrInvalidConfig)
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("%w: port %d", ErrInvalidConfig, c.Port)
	case c.MaxUploadMB <= 0:
		return fmt.Errorf("%w: max_upload_mb must be positive", ErrInvalidConfig)
	}

	switch strings.ToLower(c.Model.Runtime) {
	case "", "auto", "tflite", "onnx":
	default:
		return fmt.Errorf("%w: unknown model.runtime %q", ErrInvalidConfig, c.Model.Runtime)
	}

	switch c.Storage.Type {
	case StorageLocal:
	case StorageS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("%w: s3.bucket_name is required for s3 storage", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage.type %q", ErrInvalidConfig, c.Storage.Type)
	}

	if c.History.Enabled {
		switch c.DB.Driver {
		case DriverSQLite, DriverPostgres:
		default:
			return fmt.Errorf("%w: unknown db.driver %q", ErrInvalidConfig, c.DB.Driver)
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

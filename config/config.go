package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"imghost/utils"
)

// StorageConfig selects and configures the blob backend. Driver "local"
// stores files under UploadDir, "s3" talks to any S3 compatible endpoint.
type StorageConfig struct {
	Driver    string
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type Config struct {
	Addr             string
	PublicBaseURL    string
	UploadDir        string
	MetadataFile     string
	StaticDir        string
	MaxFileSize      int64
	MaxFilesPerBatch int
	RateLimit        float64
	RateBurst        int64
	LogVerbosity     int
	Storage          StorageConfig

	v *viper.Viper
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":7000")
	v.SetDefault("public_base_url", "")
	v.SetDefault("upload_dir", "./uploads")
	v.SetDefault("metadata_file", "./data/images.json")
	v.SetDefault("static_dir", "./static")
	v.SetDefault("max_file_size", 10*1024*1024)
	v.SetDefault("max_files_per_upload", 10)
	v.SetDefault("rate.limit", 100.0)
	v.SetDefault("rate.burst", 100)
	v.SetDefault("log.v", 0)
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "images")
}

// Load reads config.yaml (optional), .env (optional) and IMGHOST_* env
// vars, in increasing order of precedence for the env layer.
func Load() (*Config, error) {
	// .env is a convenience for local runs, absence is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("imghost")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Addr:             v.GetString("addr"),
		PublicBaseURL:    strings.TrimRight(v.GetString("public_base_url"), "/"),
		UploadDir:        v.GetString("upload_dir"),
		MetadataFile:     v.GetString("metadata_file"),
		StaticDir:        v.GetString("static_dir"),
		MaxFileSize:      v.GetInt64("max_file_size"),
		MaxFilesPerBatch: v.GetInt("max_files_per_upload"),
		RateLimit:        v.GetFloat64("rate.limit"),
		RateBurst:        v.GetInt64("rate.burst"),
		LogVerbosity:     v.GetInt("log.v"),
		Storage: StorageConfig{
			Driver:    v.GetString("storage.driver"),
			Endpoint:  v.GetString("storage.endpoint"),
			AccessKey: v.GetString("storage.access_key"),
			SecretKey: v.GetString("storage.secret_key"),
			UseSSL:    v.GetBool("storage.use_ssl"),
			Bucket:    v.GetString("storage.bucket"),
		},
		v: v,
	}
}

func (c *Config) validate() error {
	if c.PublicBaseURL != "" && !utils.IsValidBaseURL(c.PublicBaseURL) {
		return fmt.Errorf("public_base_url %q is not a valid url", c.PublicBaseURL)
	}
	if c.Storage.Driver != "local" && c.Storage.Driver != "s3" {
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive")
	}
	if c.MaxFilesPerBatch <= 0 {
		return fmt.Errorf("max_files_per_upload must be positive")
	}
	return nil
}

// OnReload re-reads the config file whenever it changes on disk and calls
// fn with the fresh values. Only used for settings that are safe to flip
// at runtime, such as log verbosity.
func (c *Config) OnReload(fn func(*Config)) {
	if c.v == nil {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		utils.Log().V(1).Info("config file changed", "file", e.Name)
		fresh := fromViper(c.v)
		if err := fresh.validate(); err != nil {
			utils.Log().Error(err, "ignoring invalid config reload")
			return
		}
		fn(fresh)
	})
	c.v.WatchConfig()
}

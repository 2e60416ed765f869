package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds every tunable of the service. Zero values are replaced by defaults.
type Config struct {
	Server struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Model struct {
		Path         string `yaml:"path"`
		MetadataPath string `yaml:"metadata_path"`
		LibraryPath  string `yaml:"library_path"`
	} `yaml:"model"`
	Static struct {
		Dir        string `yaml:"dir"`
		MaxSamples int    `yaml:"max_samples"`
	} `yaml:"static"`
	Image struct {
		MaxPixels int `yaml:"max_pixels"`
	} `yaml:"image"`
	Cache struct {
		Predictions int `yaml:"predictions"`
	} `yaml:"cache"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Recommendations map[string]Recommendation `yaml:"recommendations"`
}

// Recommendation overrides the built-in hairstyle text of one facial shape.
type Recommendation struct {
	Female string `yaml:"female"`
	Male   string `yaml:"male"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 10000
	cfg.Server.ShutdownTimeout = 15 * time.Second
	cfg.Model.Path = "models/facial_shape_classifier.onnx"
	cfg.Model.MetadataPath = "models/model_metadata.json"
	cfg.Static.Dir = "static"
	cfg.Static.MaxSamples = 5
	cfg.Image.MaxPixels = 178956970
	cfg.Cache.Predictions = 256
	cfg.Log.Level = "info"
	return cfg
}

// Load reads the YAML file at path (if any) over the defaults and applies env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		c.Server.Port = p
	}
	c.Model.Path = getEnv("MODEL_PATH", c.Model.Path)
	c.Model.MetadataPath = getEnv("MODEL_METADATA_PATH", c.Model.MetadataPath)
	c.Model.LibraryPath = getEnv("ONNX_LIB_PATH", c.Model.LibraryPath)
	c.Static.Dir = getEnv("STATIC_DIR", c.Static.Dir)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("LOG_FILE", c.Log.File)
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Model.Path == "" {
		return errors.New("model path is required")
	}
	if c.Static.MaxSamples < 1 {
		return fmt.Errorf("static.max_samples must be positive, got %d", c.Static.MaxSamples)
	}
	if c.Image.MaxPixels < 1 {
		return fmt.Errorf("image.max_pixels must be positive, got %d", c.Image.MaxPixels)
	}
	if c.Cache.Predictions < 0 {
		return fmt.Errorf("cache.predictions must not be negative, got %d", c.Cache.Predictions)
	}
	return nil
}

// Addr is the listen address, host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	ModelPath     string
	MetadataPath  string
	ORTLibPath    string // onnxruntime shared library, empty means the loader default
	NormalDir     string
	PneumoniaDir  string
	UploadDir     string
	MaxUploadSize int64
	LogLevel      string
	GinMode       string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// Load reads a .env file when present and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnvAsInt("PORT", 8080),
		ModelPath:     getEnv("MODEL_PATH", filepath.Join("models", "pneumonia.onnx")),
		MetadataPath:  getEnv("METADATA_PATH", filepath.Join("models", "model_metadata.json")),
		ORTLibPath:    getEnv("ORT_LIB_PATH", ""),
		NormalDir:     getEnv("NORMAL_DIR", filepath.Join("chest_xray", "train", "NORMAL")),
		PneumoniaDir:  getEnv("PNEUMONIA_DIR", filepath.Join("chest_xray", "train", "PNEUMONIA")),
		UploadDir:     getEnv("UPLOAD_DIR", filepath.Join(os.TempDir(), "pneumonia-api")),
		MaxUploadSize: getEnvAsInt64("MAX_UPLOAD_SIZE", 10<<20),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		GinMode:       getEnv("GIN_MODE", "release"),
		ReadTimeout:   getEnvAsDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:  getEnvAsDuration("WRITE_TIMEOUT", 60*time.Second),
	}
}

func (c *Config) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("MODEL_PATH is required")
	}
	if c.MetadataPath == "" {
		return fmt.Errorf("METADATA_PATH is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got %d", c.MaxUploadSize)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

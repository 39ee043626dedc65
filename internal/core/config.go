package core

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DevelopmentSecretKey is used to sign session cookies when no SECRET_KEY is configured.
	DevelopmentSecretKey = "dev-secret-key"

	DefaultCaptionEndpoint = "https://api-inference.huggingface.co/models/Salesforce/blip-image-captioning-base"
)

type Caption struct {
	Endpoint string        `yaml:"endpoint" validate:"required,url"`
	Timeout  time.Duration `yaml:"timeout" validate:"min=0"`
}

type Flash struct {
	Type             string `yaml:"type" validate:"oneof=memory sqlite redis"`
	ConnectionString string `yaml:"connectionString"`
}

type ServiceConfig struct {
	Port               int      `yaml:"port" validate:"min=1,max=65535"`
	StaticDir          string   `yaml:"staticDir" validate:"required"`
	UploadDir          string   `yaml:"uploadDir" validate:"required"`
	AllowedExtensions  []string `yaml:"allowedExtensions" validate:"required,min=1,dive,required"`
	ThumbnailWidth     int      `yaml:"thumbnailWidth" validate:"min=16,max=4096"`
	ThumbnailMaxPixels int      `yaml:"thumbnailMaxPixels" validate:"min=1"`
	MaxUploadBytes     int64    `yaml:"maxUploadBytes" validate:"min=1"`
	Caption            Caption  `yaml:"caption"`
	Flash              Flash    `yaml:"flash"`

	// secrets are only read from the environment
	SecretKey       string `yaml:"-" validate:"required"`
	CaptionAPIToken string `yaml:"-"`
}

// DefaultConfig returns the configuration used when no file or environment overrides are present.
func DefaultConfig() *ServiceConfig {
	staticDir := "static"
	return &ServiceConfig{
		Port:               8080,
		StaticDir:          staticDir,
		UploadDir:          filepath.Join(staticDir, "uploads"),
		AllowedExtensions:  []string{"png", "jpg", "jpeg", "gif"},
		ThumbnailWidth:     320,
		ThumbnailMaxPixels: 25_000_000,
		MaxUploadBytes:     32 << 20,
		Caption: Caption{
			Endpoint: DefaultCaptionEndpoint,
		},
		Flash: Flash{
			Type: "memory",
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file at configPath,
// an optional .env file and finally the process environment.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Info("no config file found, using defaults", "path", configPath)
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	// .env is optional; values already present in the environment win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if config.CaptionAPIToken == "" {
		slog.Warn("HF_API_TOKEN is not set, caption requests will be unauthorized")
	}

	return config, nil
}

func applyEnv(config *ServiceConfig) error {
	config.SecretKey = getEnv("SECRET_KEY", DevelopmentSecretKey)
	config.CaptionAPIToken = os.Getenv("HF_API_TOKEN")

	if value := os.Getenv("PORT"); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", value, err)
		}
		config.Port = port
	}
	config.UploadDir = getEnv("UPLOAD_DIR", config.UploadDir)
	config.Caption.Endpoint = getEnv("CAPTION_ENDPOINT", config.Caption.Endpoint)
	config.Flash.Type = getEnv("FLASH_STORE", config.Flash.Type)
	config.Flash.ConnectionString = getEnv("FLASH_CONNECTION_STRING", config.Flash.ConnectionString)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// validateConfig checks struct constraints and normalizes the extension allow-list
func validateConfig(config *ServiceConfig) error {
	if err := validator.New().Struct(config); err != nil {
		return err
	}

	seen := make(map[string]bool)
	normalized := make([]string, 0, len(config.AllowedExtensions))
	for i, ext := range config.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			return fmt.Errorf("allowed extension at index %d is empty", i)
		}
		if seen[ext] {
			return fmt.Errorf("duplicate allowed extension: %s", ext)
		}
		seen[ext] = true
		normalized = append(normalized, ext)
	}
	config.AllowedExtensions = normalized

	if config.Flash.Type != "memory" && config.Flash.ConnectionString == "" {
		return fmt.Errorf("flash store %s requires a connection string", config.Flash.Type)
	}

	return nil
}

// UploadURLPrefix is the public URL prefix under which stored images are served.
// The upload directory is addressed relative to the static root, like url_for('static').
func (config *ServiceConfig) UploadURLPrefix() string {
	rel, err := filepath.Rel(config.StaticDir, config.UploadDir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "/uploads"
	}
	return "/static/" + filepath.ToSlash(rel)
}

package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"SECRET_KEY", "HF_API_TOKEN", "PORT", "UPLOAD_DIR", "CAPTION_ENDPOINT", "FLASH_STORE", "FLASH_CONNECTION_STRING"} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}
	return configPath
}

func TestLoadConfig_Success(t *testing.T) {
	clearConfigEnv(t)
	configPath := writeConfig(t, `port: 9090
staticDir: public
uploadDir: public/images
allowedExtensions: [PNG, ".jpg"]
thumbnailWidth: 200
caption:
  endpoint: "http://localhost:5000/caption"
  timeout: 30s
flash:
  type: sqlite
  connectionString: "flash.db"`)

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Port != 9090 {
		t.Errorf("Expected port to be 9090, got %d", config.Port)
	}
	if config.UploadDir != "public/images" {
		t.Errorf("Expected uploadDir to be 'public/images', got '%s'", config.UploadDir)
	}
	if len(config.AllowedExtensions) != 2 || config.AllowedExtensions[0] != "png" || config.AllowedExtensions[1] != "jpg" {
		t.Errorf("Expected normalized extensions [png jpg], got %v", config.AllowedExtensions)
	}
	if config.Caption.Timeout != 30*time.Second {
		t.Errorf("Expected caption timeout 30s, got %v", config.Caption.Timeout)
	}
	if config.Flash.Type != "sqlite" || config.Flash.ConnectionString != "flash.db" {
		t.Errorf("Expected sqlite flash store, got %+v", config.Flash)
	}
	if config.UploadURLPrefix() != "/static/images" {
		t.Errorf("Expected upload url prefix '/static/images', got '%s'", config.UploadURLPrefix())
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	clearConfigEnv(t)

	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", config.Port)
	}
	if config.SecretKey != DevelopmentSecretKey {
		t.Errorf("Expected development secret key fallback, got '%s'", config.SecretKey)
	}
	if config.CaptionAPIToken != "" {
		t.Errorf("Expected no api token, got '%s'", config.CaptionAPIToken)
	}
	if config.Caption.Endpoint != DefaultCaptionEndpoint {
		t.Errorf("Expected default caption endpoint, got '%s'", config.Caption.Endpoint)
	}
	if config.Caption.Timeout != 0 {
		t.Errorf("Expected unbounded caption timeout, got %v", config.Caption.Timeout)
	}
	if config.UploadURLPrefix() != "/static/uploads" {
		t.Errorf("Expected upload url prefix '/static/uploads', got '%s'", config.UploadURLPrefix())
	}
	expected := []string{"png", "jpg", "jpeg", "gif"}
	if len(config.AllowedExtensions) != len(expected) {
		t.Fatalf("Expected extensions %v, got %v", expected, config.AllowedExtensions)
	}
	for i := range expected {
		if config.AllowedExtensions[i] != expected[i] {
			t.Errorf("Expected extensions %v, got %v", expected, config.AllowedExtensions)
		}
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("HF_API_TOKEN", "hf_token")
	t.Setenv("PORT", "7070")
	t.Setenv("FLASH_STORE", "redis")
	t.Setenv("FLASH_CONNECTION_STRING", "redis://localhost:6379/0")
	configPath := writeConfig(t, `port: 9090`)

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Port != 7070 {
		t.Errorf("Expected PORT to override file, got %d", config.Port)
	}
	if config.SecretKey != "s3cret" {
		t.Errorf("Expected secret key from env, got '%s'", config.SecretKey)
	}
	if config.CaptionAPIToken != "hf_token" {
		t.Errorf("Expected api token from env, got '%s'", config.CaptionAPIToken)
	}
	if config.Flash.Type != "redis" {
		t.Errorf("Expected redis flash store, got '%s'", config.Flash.Type)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{name: "unparsable yaml", content: "port: [1"},
		{name: "port out of range", content: "port: 70000"},
		{name: "unknown flash store", content: "flash:\n  type: memcached"},
		{name: "sqlite without connection string", content: "flash:\n  type: sqlite"},
		{name: "duplicate extension", content: "allowedExtensions: [png, PNG]"},
		{name: "empty extension list", content: "allowedExtensions: []"},
		{name: "invalid endpoint", content: "caption:\n  endpoint: not a url"},
		{name: "zero thumbnail pixel limit", content: "thumbnailMaxPixels: 0"},
		{name: "invalid port env", content: "port: 80", env: map[string]string{"PORT": "eighty"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			config, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if config != nil {
				t.Error("Expected config to be nil on error")
			}
		})
	}
}

package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "MODEL_PATH", "NORMAL_DIR", "PNEUMONIA_DIR", "MAX_UPLOAD_SIZE", "READ_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, filepath.Join("models", "pneumonia.onnx"), cfg.ModelPath)
	assert.Equal(t, filepath.Join("chest_xray", "train", "NORMAL"), cfg.NormalDir)
	assert.Equal(t, filepath.Join("chest_xray", "train", "PNEUMONIA"), cfg.PneumoniaDir)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadSize)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MODEL_PATH", "/srv/model.onnx")
	t.Setenv("MAX_UPLOAD_SIZE", "2048")
	t.Setenv("WRITE_TIMEOUT", "5s")

	cfg := Load()
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, "/srv/model.onnx", cfg.ModelPath)
	assert.Equal(t, int64(2048), cfg.MaxUploadSize)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("PORT", "eighty")
	t.Setenv("READ_TIMEOUT", "soon")

	cfg := Load()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.ModelPath = ""
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.MaxUploadSize = -1
	assert.Error(t, cfg.Validate())
}

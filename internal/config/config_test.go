package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		wantErr     bool
		errContains string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "default configuration with no env vars",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 120*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

				assert.Equal(t, []string{"http://localhost:8080"}, cfg.Security.AllowedOrigins)
				assert.True(t, cfg.Security.EnableCORS)
				assert.True(t, cfg.Security.RateLimit.Enabled)

				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)

				assert.Equal(t, int64(50<<20), cfg.Upload.MaxUploadSize)
				assert.Equal(t, 50, cfg.Upload.MaxPromptRows)
				assert.Equal(t, 3, cfg.Upload.MaxFilesPerRequest)

				assert.Equal(t, "gemini-1.5-flash", cfg.Analysis.Model)
				assert.Equal(t, 60*time.Second, cfg.Analysis.RequestTimeout())
				assert.Equal(t, 3, cfg.Analysis.MaxRetries)
				assert.Equal(t, 30*time.Minute, cfg.Analysis.ReportTTL)
				assert.Empty(t, cfg.Analysis.APIKey)
			},
		},
		{
			name: "environment overrides",
			env: map[string]string{
				"PORT":                    "9090",
				"MAX_UPLOAD_SIZE":         "1048576",
				"REQUEST_TIMEOUT_SECONDS": "15",
				"MAX_RETRIES":             "5",
				"API_KEY":                 "test-key",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, int64(1<<20), cfg.Upload.MaxUploadSize)
				assert.Equal(t, 15*time.Second, cfg.Analysis.RequestTimeout())
				assert.Equal(t, 5, cfg.Analysis.MaxRetries)
				assert.Equal(t, "test-key", cfg.Analysis.APIKey)
			},
		},
		{
			name:        "invalid port",
			env:         map[string]string{"PORT": "99999"},
			wantErr:     true,
			errContains: "invalid server port",
		},
		{
			name:        "zero upload size",
			env:         map[string]string{"MAX_UPLOAD_SIZE": "0"},
			wantErr:     true,
			errContains: "max upload size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 3000
analysis:
  model: gemini-1.5-pro
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := loadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "gemini-1.5-pro", cfg.Analysis.Model)
}

func TestMergeEnvWins(t *testing.T) {
	fileCfg := Config{}
	fileCfg.Server.Port = 3000
	fileCfg.Analysis.Model = "gemini-1.5-pro"

	envCfg := Config{}
	envCfg.Server.Port = 9090

	merged := merge(fileCfg, envCfg)
	assert.Equal(t, 9090, merged.Server.Port, "env value is kept")
	assert.Equal(t, "gemini-1.5-pro", merged.Analysis.Model, "file fills the gap")
}

func TestAPIKeyNeverSerialized(t *testing.T) {
	// The credential is env-only: the yaml tag is "-" so it can never be
	// round-tripped into a config file.
	field, ok := reflect.TypeOf(AnalysisConfig{}).FieldByName("APIKey")
	require.True(t, ok)
	assert.Equal(t, "-", field.Tag.Get("yaml"))

	var cfg Config
	cfg.Analysis.APIKey = "secret"
	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "secret")
}

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Load(t *testing.T) {
	t.Run("Should load valid defaults", func(t *testing.T) {
		cfg, err := NewService().Load(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 5001, cfg.Server.Port)
		assert.Equal(t, "google", cfg.LLM.Provider)
		assert.Equal(t, "redis", cfg.Index.Driver)
		assert.Equal(t, 4, cfg.Pipeline.MaxConcurrency)
		assert.Equal(t, 2*time.Minute, cfg.Index.ClaimTTL)
	})

	t.Run("Should apply explicit environment mappings", func(t *testing.T) {
		t.Setenv("JIRA_PROJECT_KEY", "MM")
		t.Setenv("EMAIL_PORT", "2525")
		t.Setenv("LLM_API_KEY", "secret-key")
		t.Setenv("PIPELINE_NOTIFY_TIMEOUT", "3s")
		svc := NewService()
		cfg, err := svc.Load(t.Context(), NewEnvProvider())
		require.NoError(t, err)
		assert.Equal(t, "MM", cfg.Jira.ProjectKey)
		assert.Equal(t, 2525, cfg.Mail.Port)
		assert.Equal(t, "secret-key", cfg.LLM.APIKey.Value())
		assert.Equal(t, 3*time.Second, cfg.Pipeline.NotifyTimeout)
		assert.Equal(t, SourceEnv, svc.GetSource("jira.project_key"))
		assert.Equal(t, SourceDefault, svc.GetSource("server.port"))
	})

	t.Run("Should map prefixed variables without explicit tags", func(t *testing.T) {
		t.Setenv("MINUTEMATE_PIPELINE_MAX_CONCURRENCY", "9")
		cfg, err := NewService().Load(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 9, cfg.Pipeline.MaxConcurrency)
	})

	t.Run("Should let environment override YAML values", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "minutemate.yaml")
		content := "server:\n  port: 7000\nindex:\n  driver: memory\njira:\n  project_key: FROMYAML\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		t.Setenv("JIRA_PROJECT_KEY", "FROMENV")
		svc := NewService()
		cfg, err := svc.Load(t.Context(), NewYAMLProvider(path), NewEnvProvider())
		require.NoError(t, err)
		assert.Equal(t, 7000, cfg.Server.Port)
		assert.Equal(t, "memory", cfg.Index.Driver)
		assert.Equal(t, "FROMENV", cfg.Jira.ProjectKey)
		assert.Equal(t, SourceYAML, svc.GetSource("server.port"))
	})

	t.Run("Should apply CLI values keyed by config path", func(t *testing.T) {
		cfg, err := NewService().Load(t.Context(), NewCLIProvider(map[string]any{
			"runtime.log_level": "debug",
			"database.path":     ":memory:",
		}))
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Runtime.LogLevel)
		assert.Equal(t, ":memory:", cfg.Database.Path)
	})

	t.Run("Should let CLI values override the environment", func(t *testing.T) {
		t.Setenv("RUNTIME_LOG_LEVEL", "warn")
		svc := NewService()
		cfg, err := svc.Load(t.Context(), NewCLIProvider(map[string]any{"runtime.log_level": "debug"}))
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Runtime.LogLevel)
		assert.Equal(t, SourceCLI, svc.GetSource("runtime.log_level"))
	})

	t.Run("Should reject invalid values", func(t *testing.T) {
		t.Setenv("INDEX_DRIVER", "etcd")
		_, err := NewService().Load(t.Context())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})

	t.Run("Should reject claim wait longer than claim ttl", func(t *testing.T) {
		t.Setenv("INDEX_CLAIM_WAIT", "10m")
		_, err := NewService().Load(t.Context())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "claim_wait")
	})

	t.Run("Should reject an enabled rate limit without a period", func(t *testing.T) {
		t.Setenv("SERVER_RATE_PERIOD", "0s")
		_, err := NewService().Load(t.Context())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate_limit")
	})

	t.Run("Should accept day and week duration units", func(t *testing.T) {
		t.Setenv("INDEX_RETENTION", "1w2d")
		cfg, err := NewService().Load(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 9*24*time.Hour, cfg.Index.Retention)
	})

	t.Run("Should reject malformed durations", func(t *testing.T) {
		t.Setenv("INDEX_RETENTION", "soon")
		_, err := NewService().Load(t.Context())
		require.Error(t, err)
	})

	t.Run("Should reject relative Jira URLs", func(t *testing.T) {
		t.Setenv("JIRA_BASE_URL", "example.atlassian.net")
		_, err := NewService().Load(t.Context())
		require.Error(t, err)
	})
}

func TestSensitiveString(t *testing.T) {
	t.Run("Should redact secrets in String and JSON", func(t *testing.T) {
		s := SensitiveString("hunter2")
		assert.Equal(t, "[REDACTED]", s.String())
		out, err := json.Marshal(struct {
			Key SensitiveString `json:"key"`
		}{Key: s})
		require.NoError(t, err)
		assert.JSONEq(t, `{"key":"[REDACTED]"}`, string(out))
		assert.Equal(t, "hunter2", s.Value())
	})
}

func TestTransformEnvKey(t *testing.T) {
	t.Run("Should convert prefixed names to dotted paths", func(t *testing.T) {
		assert.Equal(t, "pipeline.max_concurrency", transformEnvKey("MINUTEMATE_PIPELINE_MAX_CONCURRENCY"))
		assert.Equal(t, "server", transformEnvKey("MINUTEMATE_SERVER"))
		assert.Equal(t, "", transformEnvKey("MINUTEMATE_"))
	})
}

func TestGenerateEnvMappings(t *testing.T) {
	t.Run("Should include nested env tags", func(t *testing.T) {
		paths := map[string]string{}
		for _, m := range GenerateEnvMappings() {
			paths[m.EnvVar] = m.ConfigPath
		}
		assert.Equal(t, "jira.api_token", paths["JIRA_API_TOKEN"])
		assert.Equal(t, "mail.from", paths["FROM_EMAIL"])
		assert.Equal(t, "index.claim_ttl", paths["INDEX_CLAIM_TTL"])
	})
}

func TestManager(t *testing.T) {
	t.Run("Should expose loaded configuration through context", func(t *testing.T) {
		m := NewManager(nil)
		_, err := m.Load(t.Context(), NewCLIProvider(map[string]any{"server.port": 6000}))
		require.NoError(t, err)
		ctx := ContextWithManager(t.Context(), m)
		assert.Equal(t, 6000, FromContext(ctx).Server.Port)
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetYaml(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		path := writeConfig(t, `
store_url: http://localhost:8080
experiment_id: exp-42
participant_id: p-7
resume: true
request_timeout: 3s
retry_base_delay: 500ms
retry_attempts: 5
journal_dir: /tmp/journal
`)
		cfg, err := getYaml(path)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080", cfg.StoreURL)
		assert.Equal(t, "exp-42", cfg.ExperimentID)
		assert.Equal(t, "p-7", cfg.ParticipantID)
		assert.True(t, cfg.Resume)
		assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 500*time.Millisecond, cfg.RetryBaseDelay)
		assert.Equal(t, 5, cfg.RetryAttempts)
	})

	t.Run("defaults fill the gaps", func(t *testing.T) {
		path := writeConfig(t, `
store_url: http://localhost:8080
experiment_id: exp-42
`)
		cfg, err := getYaml(path)
		require.NoError(t, err)
		assert.NotEmpty(t, cfg.ParticipantID, "participant id generated")
		assert.Equal(t, defaultRequestTimeout, cfg.RequestTimeout)
		assert.Equal(t, defaultRetryAttempts, cfg.RetryAttempts)
		assert.Equal(t, defaultJournalDir, cfg.JournalDir)
	})

	t.Run("store url is required", func(t *testing.T) {
		path := writeConfig(t, `experiment_id: exp-42`)
		_, err := getYaml(path)
		assert.ErrorContains(t, err, "store URL is required")
	})

	t.Run("experiment id is required", func(t *testing.T) {
		path := writeConfig(t, `store_url: http://localhost:8080`)
		_, err := getYaml(path)
		assert.ErrorContains(t, err, "experiment id is required")
	})

	t.Run("resume needs an explicit participant id", func(t *testing.T) {
		path := writeConfig(t, `
store_url: http://localhost:8080
experiment_id: exp-42
resume: true
`)
		_, err := getYaml(path)
		assert.ErrorContains(t, err, "resuming requires")
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
database:
  postgres:
    host: localhost
    database: credit
    user: credit
  elasticsearch:
    addresses: ["http://localhost:9200"]
ai:
  embedding:
    base_url: https://api.openai.com/v1
`

func TestLoadFromFile_Defaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "credit-workers", cfg.App.Name)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "http://localhost:9200", cfg.Database.Elasticsearch.GetURL())
	assert.Equal(t, "openai", cfg.AI.Embedding.Provider)
	assert.Equal(t, 1536, cfg.AI.Embedding.Dimensions)
	assert.Equal(t, "elasticsearch", cfg.Search.Backend)
	assert.Equal(t, "ranks", cfg.Search.RankIndex)
	assert.Equal(t, "products", cfg.Search.ProductIndex)
	assert.Equal(t, 10, cfg.Evaluation.MatchTopK)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.NotNil(t, cfg.Workers)
}

func TestLoadFromFile_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_PG_PASSWORD", "s3cret")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
workers:
  evaluate-credit:
    enabled: true
    timeout: 15000
`))
	require.NoError(t, err)

	w := GetWorkerConfig(cfg, "evaluate-credit")
	assert.Equal(t, 15000, w.Timeout)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 3, w.MaxRetries)
	assert.True(t, IsWorkerEnabled(cfg, "evaluate-credit"))
	assert.True(t, IsWorkerEnabled(cfg, "unknown-worker"))

	path := writeConfig(t, `
database:
  postgres:
    host: localhost
    database: credit
    user: credit
    password: ${TEST_PG_PASSWORD}
search:
  backend: memory
ai:
  embedding:
    base_url: http://embeddings
`)
	cfg, err = LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
	assert.Contains(t, cfg.Database.Postgres.GetDSN(), "password=s3cret")
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing postgres host",
			body:    "ai:\n  embedding:\n    base_url: http://x\n",
			wantErr: "database.postgres.host is required",
		},
		{
			name:    "camunda without broker",
			body:    minimalConfig + "camunda:\n  enabled: true\n",
			wantErr: "camunda.broker_address is required",
		},
		{
			name:    "unknown search backend",
			body:    minimalConfig + "search:\n  backend: pinecone\n",
			wantErr: `search.backend "pinecone" is not supported`,
		},
		{
			name: "cache without redis",
			body: `
database:
  postgres: {host: localhost, database: credit, user: credit}
search: {backend: memory}
ai:
  embedding: {base_url: "http://x", cache_ttl: 60000}
`,
			wantErr: "database.redis.address is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
	assert.Equal(t, time.Duration(0), GetDuration(0))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHAT_STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CHAT_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("CHAT_COLLAB_DEBOUNCE_MS", "250")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "50051", cfg.Server.Port)
	assert.Equal(t, map[string]string{"default": "s3cret"}, cfg.JWTKeys)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.DebounceWindow)
	assert.Equal(t, 3*time.Second, cfg.ModerationTimeout)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "chat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: mongo
  mongo_uri: mongodb://localhost:27017/?replicaSet=rs0
jwt:
  keys: k1:one,k2:two
  active_kid: k2
moderation:
  url: http://classifier.local/classify
  timeout_ms: 1500
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "k2", cfg.JWT.ActiveKid)
	assert.Len(t, cfg.JWTKeys, 2)
	assert.Equal(t, 1500*time.Millisecond, cfg.ModerationTimeout)
	assert.Equal(t, "http://classifier.local/classify", cfg.Moderation.URL)
}

func TestLoad_RejectsInvalidCombinations(t *testing.T) {
	cases := map[string]map[string]string{
		"mongo without uri": {
			"CHAT_STORE_DRIVER": "mongo",
			"JWT_SECRET":        "x",
		},
		"tls required without certs": {
			"CHAT_STORE_DRIVER": "memory",
			"JWT_SECRET":        "x",
			"REQUIRE_TLS":       "true",
		},
		"no jwt keys": {
			"CHAT_STORE_DRIVER": "memory",
		},
		"unknown driver": {
			"CHAT_STORE_DRIVER": "sqlite",
			"JWT_SECRET":        "x",
		},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for _, k := range []string{"MONGODB_URI", "JWT_SECRET", "JWT_KEYS", "REQUIRE_TLS"} {
				t.Setenv(k, "")
			}
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

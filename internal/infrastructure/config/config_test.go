package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test-key-1234")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "nutripal", cfg.App.Name)
	assert.Equal(t, "memory", cfg.Session.Driver)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 20*time.Second, cfg.AI.CapabilityTimeout)
	assert.Equal(t, time.Second, cfg.DedupWindow)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowOrigins)
	assert.True(t, cfg.UsesSQLite())
	assert.False(t, cfg.UsesRedis())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test-key-1234")
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("DEDUP_WINDOW", "3s")
	t.Setenv("APP_AI_CAPABILITY_TIMEOUT", "5s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Session.Driver)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 3*time.Second, cfg.DedupWindow)
	assert.Equal(t, 5*time.Second, cfg.AI.CapabilityTimeout)
	assert.True(t, cfg.UsesRedis())
	assert.False(t, cfg.UsesSQLite())
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing api key",
			env:  map[string]string{"OPENROUTER_API_KEY": ""},
			want: "openrouter api key",
		},
		{
			name: "unknown storage driver",
			env:  map[string]string{"STORAGE_DRIVER": "mongo"},
			want: "unknown storage driver",
		},
		{
			name: "supabase without credentials",
			env:  map[string]string{"STORAGE_DRIVER": "supabase"},
			want: "supabase url",
		},
		{
			name: "unknown session driver",
			env:  map[string]string{"SESSION_DRIVER": "etcd"},
			want: "unknown session driver",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("OPENROUTER_API_KEY", "sk-or-test-key-1234")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", MaskAPIKey("short"))
	assert.Equal(t, "sk-o...1234", MaskAPIKey("sk-or-test-key-1234"))
}

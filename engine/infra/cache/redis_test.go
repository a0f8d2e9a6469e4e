package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/minutemate/minutemate/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis(t *testing.T) {
	t.Run("Should connect by host and port", func(t *testing.T) {
		s := miniredis.RunT(t)
		r, err := NewRedis(t.Context(), &config.RedisConfig{Host: s.Host(), Port: s.Port()})
		require.NoError(t, err)
		defer r.Close()

		ok, err := r.SetNX(t.Context(), "k", "v", time.Minute).Result()
		require.NoError(t, err)
		assert.True(t, ok)
		v, err := r.Get(t.Context(), "k").Result()
		require.NoError(t, err)
		assert.Equal(t, "v", v)
		require.NoError(t, r.HealthCheck(t.Context()))
	})

	t.Run("Should connect by URL", func(t *testing.T) {
		s := miniredis.RunT(t)
		r, err := NewRedis(t.Context(), &config.RedisConfig{URL: "redis://" + s.Addr() + "/0"})
		require.NoError(t, err)
		assert.NoError(t, r.Close())
		assert.NoError(t, r.Close())
	})

	t.Run("Should fail when the server is unreachable", func(t *testing.T) {
		s := miniredis.RunT(t)
		addr := s.Addr()
		s.Close()
		_, err := NewRedis(t.Context(), &config.RedisConfig{URL: "redis://" + addr, PingTimeout: 200 * time.Millisecond})
		assert.ErrorContains(t, err, "pinging Redis server")
	})

	t.Run("Should require a config", func(t *testing.T) {
		_, err := NewRedis(t.Context(), nil)
		assert.Error(t, err)
	})
}

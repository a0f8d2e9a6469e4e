package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBase(t *testing.T) {
	t.Run("Should return versioned API base path", func(t *testing.T) {
		assert.Equal(t, "/api/v0", Base())
	})
}

func TestHealthVersioned(t *testing.T) {
	t.Run("Should nest health under the API base", func(t *testing.T) {
		assert.Equal(t, "/api/v0/health", HealthVersioned())
		assert.Equal(t, "/metrics", Metrics())
	})
}

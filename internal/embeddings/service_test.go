package embeddings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{
		BaseURL:   "http://localhost:8081/v1",
		Model:     "text-embedding-3-small",
		Dimension: 1536,
		Timeout:   10 * time.Second,
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing base URL", func(c *Config) { c.BaseURL = "" }},
		{"missing model", func(c *Config) { c.Model = "" }},
		{"zero dimension", func(c *Config) { c.Dimension = 0 }},
		{"negative dimension", func(c *Config) { c.Dimension = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestNewService(t *testing.T) {
	t.Run("invalid config rejected", func(t *testing.T) {
		_, err := NewService(Config{})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("keyless local endpoint accepted", func(t *testing.T) {
		svc, err := NewService(Config{
			BaseURL:   "http://localhost:8081/v1",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		})
		require.NoError(t, err)
		assert.Equal(t, 1536, svc.Dimension())
	})
}

package configbinder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleConfig struct {
	Type     string        `yaml:"type"`
	Port     int           `yaml:"port"`
	Enabled  bool          `yaml:"enabled"`
	Timeout  time.Duration `yaml:"timeout"`
	Excluded []string      `yaml:"excluded"`
}

func TestBindWeaklyTyped(t *testing.T) {
	var cfg sampleConfig
	err := Bind(map[string]interface{}{
		"type":     "sqlite",
		"port":     "5432",
		"enabled":  "true",
		"timeout":  "1500ms",
		"excluded": "a,b",
	}, &cfg)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Type)
	assert.Equal(t, 5432, cfg.Port)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, []string{"a", "b"}, cfg.Excluded)
}

func TestBindStrings(t *testing.T) {
	var cfg sampleConfig
	require.NoError(t, BindStrings(map[string]string{"port": "3306"}, &cfg))
	assert.Equal(t, 3306, cfg.Port)

	err := BindStrings(map[string]string{"port": "not-a-number"}, &cfg)
	assert.ErrorContains(t, err, "configbinder.sampleConfig")
}

func TestBindSection(t *testing.T) {
	props := map[string]interface{}{
		"main":   map[string]interface{}{"type": "mysql"},
		"broken": "scalar",
	}

	var cfg sampleConfig
	found, err := BindSection(props, "main", &cfg)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "mysql", cfg.Type)

	found, err = BindSection(props, "missing", &cfg)
	assert.NoError(t, err)
	assert.False(t, found)

	_, err = BindSection(props, "broken", &cfg)
	assert.Error(t, err)
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestUnmarshalFillsDefaults(t *testing.T) {
	var cfg Config
	err := yaml.Unmarshal([]byte(`matrix:
  homeserver: https://example.org
  username: alice
`), &cfg)
	require.NoError(t, err)
	assert.Equal(t, 16000, cfg.Audio.SampleRateHz)
	assert.Equal(t, 1, cfg.Audio.Channels)
	assert.Equal(t, "wata", cfg.Matrix.DeviceName)
	assert.Equal(t, 50, cfg.Sync.InitialBackfillLimit)
}

func TestUnmarshalRequiresHomeserver(t *testing.T) {
	var cfg Config
	err := yaml.Unmarshal([]byte("matrix:\n  username: alice\n"), &cfg)
	assert.Error(t, err)
}

func TestExampleConfigParses(t *testing.T) {
	var cfg Config
	err := yaml.Unmarshal([]byte(ExampleConfig), &cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://matrix.org", cfg.Matrix.Homeserver)
}

func TestResolveProfileFallsBackToTopLevel(t *testing.T) {
	cfg := Config{Matrix: MatrixConfig{Homeserver: "https://default.example"}}
	mc, err := cfg.ResolveProfile("")
	require.NoError(t, err)
	assert.Equal(t, "https://default.example", mc.Homeserver)
}

func TestResolveProfileSelectsNamed(t *testing.T) {
	cfg := Config{
		Matrix: MatrixConfig{Homeserver: "https://default.example"},
		Profiles: map[string]MatrixConfig{
			"family": {Homeserver: "https://family.example", DefaultRoom: "!family:example"},
		},
	}
	mc, err := cfg.ResolveProfile("family")
	require.NoError(t, err)
	assert.Equal(t, "https://family.example", mc.Homeserver)
	assert.Equal(t, "!family:example", mc.DefaultRoom)
}

func TestResolveProfileRejectsUnknown(t *testing.T) {
	cfg := Config{}
	_, err := cfg.ResolveProfile("nope")
	assert.Error(t, err)
}

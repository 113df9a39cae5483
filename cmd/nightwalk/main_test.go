package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/nightwalk/internal/config"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, writeTo, err := parseFlags("serve", nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Empty(t, writeTo)
}

func TestParseFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nightwalk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("width: 640\nheight: 360\nlisten: 0.0.0.0:9000\n"), 0o644))

	cfg, _, err := parseFlags("serve", []string{"-config", path, "-height", "480"})
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
}

func TestParseFlagsPreset(t *testing.T) {
	cfg, _, err := parseFlags("export", []string{"-preset", "9:16", "-o", "out.webm"})
	require.NoError(t, err)
	assert.Equal(t, 720, cfg.Width)
	assert.Equal(t, 1280, cfg.Height)
	assert.Equal(t, "out.webm", cfg.OutputVideo)
}

func TestParseFlagsRejects(t *testing.T) {
	for _, args := range [][]string{
		{"-preset", "1:1"},
		{"-width", "641"},
		{"-refresh", "0"},
		{"stray"},
	} {
		_, _, err := parseFlags("serve", args)
		assert.Error(t, err, "%v", args)
	}
}

func TestRunWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, run([]string{"serve", "-width", "320", "-height", "180", "-write-config", path}))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 180, cfg.Height)
}

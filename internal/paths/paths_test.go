package paths

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlatform swaps the platform hooks for the duration of a test.
func fakePlatform(t *testing.T, goos, home, userConfig string) {
	t.Helper()
	orig := platform
	platform.goos = goos
	platform.homeDir = func() (string, error) { return home, nil }
	platform.userConfigDir = func() (string, error) { return userConfig, nil }
	t.Cleanup(func() { platform = orig })
}

func TestDefaultDirsLinux(t *testing.T) {
	fakePlatform(t, "linux", "/home/ana", "/unused")

	t.Run("xdg set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
		t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/xdg-config/magsav", got)
		got, err = DefaultDataDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/xdg-data/magsav", got)
	})

	t.Run("home fallback", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("XDG_DATA_HOME", "")
		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/home/ana/.config/magsav", got)
		got, err = DefaultDataDir()
		require.NoError(t, err)
		assert.Equal(t, "/home/ana/.local/share/magsav", got)
	})
}

func TestDefaultDirsOtherPlatforms(t *testing.T) {
	fakePlatform(t, "darwin", "/Users/ana", "/Users/ana/Library/Application Support")
	t.Setenv("XDG_CONFIG_HOME", "/ignored")

	got, err := DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/Users/ana/Library/Application Support/magsav", got)
	got, err = DefaultDataDir()
	require.NoError(t, err)
	assert.Equal(t, "/Users/ana/Library/Application Support/magsav", got)
}

func TestDefaultDirError(t *testing.T) {
	fakePlatform(t, "linux", "", "")
	platform.homeDir = func() (string, error) { return "", errors.New("no home") }
	t.Setenv("XDG_CONFIG_HOME", "")
	_, err := DefaultConfigDir()
	assert.ErrorContains(t, err, "no home")
}

func TestResolveConfigDir(t *testing.T) {
	fakePlatform(t, "linux", "/home/ana", "")
	t.Setenv("XDG_CONFIG_HOME", "")

	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{name: "flag wins", flag: "/flag", env: "/env", want: "/flag"},
		{name: "env", env: "/env", want: "/env"},
		{name: "default", want: "/home/ana/.config/magsav"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfigDir, tt.env)
			got, err := ResolveConfigDir(tt.flag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDataDir(t *testing.T) {
	fakePlatform(t, "linux", "/home/ana", "")
	t.Setenv("XDG_DATA_HOME", "")

	tests := []struct {
		name   string
		flag   string
		env    string
		config string
		want   string
	}{
		{name: "flag wins", flag: "/flag", env: "/env", config: "/config", want: "/flag"},
		{name: "env over config", env: "/env", config: "/config", want: "/env"},
		{name: "config", config: "/config", want: "/config"},
		{name: "default", want: "/home/ana/.local/share/magsav"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDataDir, tt.env)
			got, err := ResolveDataDir(tt.flag, tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRelativePathsBecomeAbsolute(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	t.Setenv(EnvConfigDir, "")
	t.Setenv(EnvDataDir, "")

	got, err := ResolveConfigDir("rel/config")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "rel", "config"), got)

	got, err = ResolveDataDir("", "rel/data")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "rel", "data"), got)
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, filepath.Join("/cfg", "config.yaml"), ConfigFile("/cfg"))
	assert.Equal(t, filepath.Join("/cfg", ".env"), EnvFile("/cfg"))
}

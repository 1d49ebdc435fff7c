// Package paths resolves the configuration and data directories.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "magsav"

// Environment variables overriding the directories.
const (
	EnvConfigDir = "MAGSAV_CONFIG_DIR"
	EnvDataDir   = "MAGSAV_DATA_DIR"
)

// Files inside the config directory.
const (
	ConfigFileName = "config.yaml"
	EnvFileName    = ".env"
)

// platform is replaced in tests.
var platform = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform configuration directory:
// $XDG_CONFIG_HOME/magsav or ~/.config/magsav on Linux, the user config
// directory elsewhere.
func DefaultConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform data directory:
// $XDG_DATA_HOME/magsav or ~/.local/share/magsav on Linux, the user config
// directory elsewhere.
func DefaultDataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, homeRel string) (string, error) {
	if platform.goos != "linux" {
		dir, err := platform.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appName), nil
	}
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := platform.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeRel, appName), nil
}

// ResolveConfigDir applies flag > MAGSAV_CONFIG_DIR > platform default.
// Explicit values are made absolute.
func ResolveConfigDir(flag string) (string, error) {
	return resolve(DefaultConfigDir, flag, os.Getenv(EnvConfigDir))
}

// ResolveDataDir applies flag > MAGSAV_DATA_DIR > config value > platform
// default. Explicit values are made absolute.
func ResolveDataDir(flag, configValue string) (string, error) {
	return resolve(DefaultDataDir, flag, os.Getenv(EnvDataDir), configValue)
}

func resolve(fallback func() (string, error), candidates ...string) (string, error) {
	for _, c := range candidates {
		if c != "" {
			return filepath.Abs(c)
		}
	}
	return fallback()
}

// ConfigFile returns the path of config.yaml in dir.
func ConfigFile(dir string) string {
	return filepath.Join(dir, ConfigFileName)
}

// EnvFile returns the path of the .env file in dir.
func EnvFile(dir string) string {
	return filepath.Join(dir, EnvFileName)
}

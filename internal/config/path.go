package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath picks the config file: the --config flag, then $LISTEND_CONFIG, then
// listend/config.jsonc under XDG_CONFIG_HOME or ~/.config.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}
	if env := strings.TrimSpace(os.Getenv("LISTEND_CONFIG")); env != "" {
		return env, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "listend", "config.jsonc"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", "listend", "config.jsonc"), nil
}

// DefaultDataDir returns $XDG_DATA_HOME/listend, falling back to ~/.local/share/listend.
func DefaultDataDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, "listend"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for data directory")
	}
	return filepath.Join(home, ".local", "share", "listend"), nil
}

// ResolveStorePaths fills empty store locations from the data directory.
func ResolveStorePaths(cfg *Config) error {
	if strings.TrimSpace(cfg.Store.DataDir) == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return err
		}
		cfg.Store.DataDir = dir
	}
	cfg.Store.DataDir = expandHome(cfg.Store.DataDir)

	if strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = filepath.Join(cfg.Store.DataDir, "listend.db")
	}
	cfg.Store.Path = expandHome(cfg.Store.Path)
	return nil
}

// SessionResourceDir is the per-session directory handed to hooks.
func SessionResourceDir(cfg Config, sessionID string) string {
	return filepath.Join(cfg.Store.DataDir, "sessions", sessionID)
}

func expandHome(path string) string {
	path = strings.TrimSpace(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

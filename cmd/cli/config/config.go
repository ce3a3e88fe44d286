package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const defaultAPIURL = "http://localhost:8080"

// APIURL returns the base URL of the aquamarine API.
// It can be overridden with the AQUAMARINE_API_URL environment variable.
func APIURL() string {
	if v := os.Getenv("AQUAMARINE_API_URL"); v != "" {
		return strings.TrimSuffix(v, "/")
	}
	return defaultAPIURL
}

// TokenPath is where the CLI keeps its bearer token (~/.aquamarine/token).
func TokenPath() (string, error) {
	if p := os.Getenv("AQUAMARINE_TOKEN_FILE"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".aquamarine", "token"), nil
}

// Token returns AQUAMARINE_TOKEN, or the saved token file. An empty token
// with a nil error means none is configured.
func Token() (string, error) {
	if v := os.Getenv("AQUAMARINE_TOKEN"); v != "" {
		return v, nil
	}
	path, err := TokenPath()
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// SaveToken writes token to TokenPath with owner-only permissions.
func SaveToken(token string) error {
	path, err := TokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}

package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const tokenFileName = "api_token"

// TokenPath returns where the generated API token is kept.
func TokenPath(cfg Config) string {
	return filepath.Join(cfg.Storage.DataDir, tokenFileName)
}

// EnsureAPIToken returns the API token. YOUPAC_API_TOKEN wins; otherwise the
// token stored under the data dir is used, and one is generated on first run.
func EnsureAPIToken(cfg Config) (string, error) {
	if cfg.Auth.APIToken != "" {
		return cfg.Auth.APIToken, nil
	}
	p := TokenPath(cfg)
	data, err := os.ReadFile(p)
	if err == nil {
		if tok := strings.TrimSpace(string(data)); tok != "" {
			return tok, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("reading api token: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating api token: %w", err)
	}
	tok := hex.EncodeToString(buf)
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}
	if err := os.WriteFile(p, []byte(tok+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("saving api token: %w", err)
	}
	return tok, nil
}

// ReadAPIToken returns the configured or stored token without creating one.
func ReadAPIToken(cfg Config) (string, error) {
	if cfg.Auth.APIToken != "" {
		return cfg.Auth.APIToken, nil
	}
	data, err := os.ReadFile(TokenPath(cfg))
	if err != nil {
		return "", fmt.Errorf("no api token found (start the server once or set YOUPAC_API_TOKEN): %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

package lattice

// config.go houses the logic for loading and resolving profiles from
// ~/.lattice.toml or environment variables.

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Profile holds a fully-resolved configuration ready for use by the client.
type Profile struct {
	ServerURL   string
	TokenID     string
	TokenSecret string
	Environment string
	LogLevel    string
}

// rawProfile mirrors the TOML structure on disk.
type rawProfile struct {
	ServerURL   string `toml:"server_url"`
	TokenID     string `toml:"token_id"`
	TokenSecret string `toml:"token_secret"`
	Environment string `toml:"environment"`
	LogLevel    string `toml:"loglevel"`
	Active      bool   `toml:"active"`
}

type config map[string]rawProfile

func configFilePath() (string, error) {
	if configPath := os.Getenv("LATTICE_CONFIG_PATH"); configPath != "" {
		return configPath, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot locate homedir: %w", err)
	}
	return filepath.Join(home, ".lattice.toml"), nil
}

// readConfigFile loads the config file, returning an empty config if
// the file does not exist.
func readConfigFile() (config, error) {
	path, err := configFilePath()
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config{}, nil // silent absence is fine
	} else if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg config
	if err := toml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// getProfile resolves a profile by name. Pass an empty string to
// instead return a profile with `active = true`; if several profiles
// are active, which one is picked is not defined.
func getProfile(name string, cfg config) Profile {
	if name == "" {
		for n, p := range cfg {
			if p.Active {
				name = n
				break
			}
		}
	}

	var raw rawProfile
	if name != "" {
		raw = cfg[name]
	}

	serverURL := firstNonEmpty(os.Getenv("LATTICE_SERVER_URL"), raw.ServerURL, "https://api.lattice.run:443")
	tokenID := firstNonEmpty(os.Getenv("LATTICE_TOKEN_ID"), raw.TokenID)
	tokenSecret := firstNonEmpty(os.Getenv("LATTICE_TOKEN_SECRET"), raw.TokenSecret)
	environment := firstNonEmpty(os.Getenv("LATTICE_ENVIRONMENT"), raw.Environment)
	logLevel := firstNonEmpty(os.Getenv("LATTICE_LOGLEVEL"), raw.LogLevel)

	return Profile{
		ServerURL:   serverURL,
		TokenID:     tokenID,
		TokenSecret: tokenSecret,
		Environment: environment,
		LogLevel:    logLevel,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func environmentName(environment string, profile Profile) string {
	return firstNonEmpty(environment, profile.Environment)
}

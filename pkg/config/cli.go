package config

import (
	"os"
	"path/filepath"
)

// CLIConfig holds configuration for the painel command line client.
type CLIConfig struct {
	APIBaseURL string
	Home       string
	LogLevel   string
}

// LoadCLIConfig constructs a CLIConfig from environment variables. Home defaults to
// ~/.painel when PAINEL_HOME is unset.
func LoadCLIConfig() CLIConfig {
	home := GetString("PAINEL_HOME", "")
	if home == "" {
		if dir, err := os.UserHomeDir(); err == nil {
			home = filepath.Join(dir, ".painel")
		} else {
			home = ".painel"
		}
	}
	return CLIConfig{
		APIBaseURL: GetString("API_BASE_URL", "http://localhost:8000"),
		Home:       home,
		LogLevel:   GetString("LOG_LEVEL", "warn"),
	}
}

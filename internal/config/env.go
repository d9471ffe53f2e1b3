package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// envFiles are loaded in order; values already present in the process
// environment, or set by an earlier file, are kept.
var envFiles = []string{".env", ".env.local"}

func loadEnvFiles(dir string) {
	for _, name := range envFiles {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			slog.Warn("Failed to load environment file", "path", p, "error", err)
			continue
		}
		slog.Debug("Loaded environment file", "path", p)
	}
}

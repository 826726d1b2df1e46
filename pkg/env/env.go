package env

import (
	"os"
	"strings"
)

// Get reads an environment variable, falling back when it is unset or blank.
// Station installs often ship .env files with empty placeholders, so blank
// counts as unset here.
func Get(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}

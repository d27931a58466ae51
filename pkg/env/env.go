package env

import (
	"os"
	"strconv"
	"strings"
)

// Prefix namespaces every variable the services read outside envconfig.
const Prefix = "CASHSTORE_"

// Get returns CASHSTORE_<key>, then the bare key, then fallback.
func Get(key, fallback string) string {
	if val := os.Getenv(Prefix + key); val != "" {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// Bool parses Get(key) as a boolean; unparsable values yield fallback.
func Bool(key string, fallback bool) bool {
	raw := strings.TrimSpace(Get(key, ""))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

package instance

import (
	"os"

	"github.com/angelmondragon/cashstore-backend/pkg/env"
)

// GetID returns the worker instance identifier: CASHSTORE_WORKER_ID, then the
// hostname, then a fixed default.
func GetID() string {
	if id := env.Get("WORKER_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}

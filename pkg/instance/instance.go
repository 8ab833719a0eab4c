package instance

import (
	"fmt"
	"os"

	"github.com/angelmondragon/dropship-backend/pkg/env"
)

// GetID names this process in distributed locks and logs. WORKER_ID wins;
// otherwise hostname and pid are combined so two replicas on one host
// never share an id.
func GetID() string {
	if id := env.Get("WORKER_ID", ""); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

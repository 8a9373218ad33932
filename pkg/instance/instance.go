package instance

import "os"

// ID identifies the running process in logs and cron lock ownership.
// KHATABOOK_INSTANCE_ID wins, then the platform DYNO, then HOSTNAME.
func ID() string {
	for _, key := range []string{"KHATABOOK_INSTANCE_ID", "DYNO", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}

package instance

import "github.com/leminhvu/packtrace-backend/pkg/env"

// GetID returns the station identifier that tags every log line. Multi-bench
// installs set PACKTRACE_STATION_ID per bench.
func GetID() string {
	return env.Get("PACKTRACE_STATION_ID", "station-0")
}

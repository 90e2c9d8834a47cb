package app

import "fmt"

// Version, Commit, and BuildTime are set via ldflags at build time.
//
//	go build -ldflags "-X github.com/iris-familiar/bay-area-food-map-sub001/internal/app.Version=1.4.0" ./cmd/...
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// BuildVersion returns the version string logged at startup and reported by
// the serving health endpoint.
func BuildVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime)
}

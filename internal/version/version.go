// Package version carries build information stamped in with ldflags:
//
//	go build -ldflags "-X github.com/rickgao/fleetwatch/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/fleetwatch/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/fleetwatch/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/fleetwatch
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown" // UTC, ISO 8601
)

// String is the line printed by "fleetwatch version".
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// UserAgent identifies the watcher on the channel handshake.
func UserAgent() string {
	return "fleetwatch/" + Version
}

// ABOUTME: Agent version string reported to the server on check-in and heartbeats
// ABOUTME: Overridden at build time via -ldflags "-X .../internal/version.Version=..."

package version

// Version is the agent version. Set by goreleaser at build time.
var Version = "dev"

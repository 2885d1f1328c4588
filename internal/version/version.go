package version

// Version is set at build time via -ldflags "-X github.com/jon4hz/vaxboard/internal/version.Version=...".
var Version = "dev"

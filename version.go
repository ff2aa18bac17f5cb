package sam

// Version is the library and samctl version. Release builds override it with
// -ldflags "-X github.com/LynxShu/ST-var-manager.Version=...".
var Version = "0.1.0-dev"

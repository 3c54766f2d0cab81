package config

// Version is the engine's release version, logged by cmd/solarb-engine
// at startup. It is not part of the control surface's responses or of
// persisted snapshots.
const Version = "0.1.0"

// GetVersion returns the current version.
func GetVersion() string {
	return Version
}

package conductor

// Schema versions accepted by this release. A router or config document whose
// "$version" differs is rejected with ErrVersionMismatch.
const (
	Version       = "0.1"
	RouterVersion = "0.1"
	ConfigVersion = "0.1"
)

// Reserved key prefixes. Top-level keys starting with either are metadata
// and never become routes or config attributes.
const (
	metaPrefix    = "$"
	commentPrefix = "#"
)

func isReservedKey(key string) bool {
	return len(key) > 0 && (key[:1] == metaPrefix || key[:1] == commentPrefix)
}

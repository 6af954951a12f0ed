package driven

// ConfigStore holds configuration as flat dotted keys such as
// "search.similarity_threshold". Values keep the type their source
// produced (TOML yields int64 and float64); readers coerce.
type ConfigStore interface {
	// Lookup returns the value under key and whether it is set.
	Lookup(key string) (any, bool)

	// GetString returns the string under key, or "" when it is unset or
	// holds another type.
	GetString(key string) string

	// Set stores value under key. File-backed stores write through.
	Set(key string, value any) error

	// Unset removes key so its default applies again.
	Unset(key string) error

	// Keys lists the keys that are set, sorted.
	Keys() []string

	// Load replaces every value with a fresh read of the backing source.
	Load() error

	// Path names the backing source for messages.
	Path() string
}

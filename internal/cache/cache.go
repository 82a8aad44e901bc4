package cache

// Store defines a minimal in-memory key-value API used for last-known-value caches.
// Entries never expire; a Set always overwrites. Implementations may or may not be
// goroutine-safe depending on configuration.
type Store[K comparable, V any] interface {
	// Get returns the value and whether it was present.
	Get(key K) (V, bool)

	// GetOr returns the value for key, or fallback if the key was never set.
	GetOr(key K, fallback V) V

	// Set stores value under key, replacing any previous value.
	Set(key K, value V)

	// Len returns the number of stored entries.
	Len() int

	// Range calls fn for every entry until fn returns false. Order is unspecified.
	Range(fn func(key K, value V) bool)

	// Clear removes all entries.
	Clear()
}

package types

// MetadataCache is the capability interface the rest of the application uses
// to look up and store decoded image dimensions. Implementations must behave
// as a single synchronous map: every call is linearized against every other.
//
// The fingerprint is an opaque validity token supplied by the caller (in
// practice the file's last-modified time formatted at second resolution). A
// stored record whose fingerprint differs from the caller's is stale: Get
// deletes it and reports a miss.
//
// The cache is an optimization, never a correctness dependency. Callers treat
// any error as a miss and recompute metadata from the file itself.
type MetadataCache interface {
	LifecycleManager

	// Get returns the cached dimensions for path, or nil on a miss. A hit
	// refreshes the record's recency; a fingerprint mismatch deletes the
	// stale record and reports a miss.
	Get(path, fingerprint string) (*ImageDimensions, error)

	// Set upserts the record for path unconditionally and enforces the
	// configured capacity by evicting the least recently used records.
	Set(path, fingerprint string, width, height uint32, fileSize uint64) error

	Stats() (CacheStats, error)
	Clear() error

	// Flush merges any write-ahead buffering into the primary database file
	// so an abrupt process exit afterwards loses no committed records.
	Flush() error
}

type ImageDimensions struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

type CacheStats struct {
	EntryCount int `json:"entry_count"`
	MaxEntries int `json:"max_entries"`
}

type MetadataCacheCreator func(config interface{}) (MetadataCache, error)

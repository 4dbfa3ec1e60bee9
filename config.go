package mfsstore

// Configuration constants
const (
	// Persisted layout, relative to the store name
	RecordExtension = ".json"
	HandledDir      = "handled"
	HandledFile     = "_handled.json"
	IndexMapsDir    = "indexMaps"
	IndexMapsFile   = "_trees.json"

	// Record cache
	DefaultCacheSize = 1024

	// File backend configuration
	DefaultFilePermissions = 0644
	DefaultDirPermissions  = 0755
	DefaultLockStripes     = 32
)

// Config describes one projection store
type Config struct {
	Name      string  // store root under the blob store, "<dbname>"
	Schema    Schema  // indexed columns, immutable once the store exists
	CacheSize int     // record cache entries; 0 uses DefaultCacheSize, negative disables
	Logger    Logger  // nil uses NoOpLogger
	Metrics   Metrics // nil uses NoOpMetrics
}

// Validate checks if the Config is valid
func (c Config) Validate() error {
	if c.Name == "" {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Name",
			"reason": "store name is required",
		})
	}
	if err := validatePath(c.Name); err != nil {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Name",
			"value":  c.Name,
			"reason": err.Error(),
		})
	}
	return c.Schema.Validate()
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = &NoOpLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = &NoOpMetrics{}
	}
	if c.CacheSize == 0 {
		c.CacheSize = DefaultCacheSize
	}
	return c
}

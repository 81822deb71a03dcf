package coffer

// Config holds configuration for the Coffer engine.
type Config struct {
	// DisableAudit turns off the audit trail. Mutations and denied
	// accesses are no longer recorded.
	DisableAudit bool `json:"disable_audit,omitempty"`

	// MaxListLimit caps the page size accepted by listing operations.
	// Defaults to 1000.
	MaxListLimit int `json:"max_list_limit,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxListLimit: 1000,
	}
}

func (c Config) auditEnabled() bool { return !c.DisableAudit }

func (c Config) maxListLimit() int {
	if c.MaxListLimit > 0 {
		return c.MaxListLimit
	}
	return 1000
}

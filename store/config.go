package store

import "time"

const (
	// DefaultSlowOperationThreshold is the elapsed time above which an
	// operation is reported as slow.
	DefaultSlowOperationThreshold = 5 * time.Second

	// DefaultTooManyRowsThreshold is the result size above which Find
	// reports a warning.
	DefaultTooManyRowsThreshold = 2000
)

// Config holds the connection and threshold settings used by Client.Open.
//
// Consistency is always session level: point reads and scans are issued as
// strongly consistent reads so a client observes its own writes. Writes
// always echo the previous document image.
type Config struct {
	// Endpoint is the base URL of the store.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Key is the access key id.
	Key string `mapstructure:"key" yaml:"key"`

	// Secret is the secret access key.
	Secret string `mapstructure:"secret" yaml:"secret"`

	// Database namespaces containers: each container is stored in a table
	// named "<Database>.<container>".
	Database string `mapstructure:"database" yaml:"database"`

	// PreferredRegions in order of preference. The first entry is the region
	// requests are signed for.
	PreferredRegions []string `mapstructure:"preferred_regions" yaml:"preferred_regions"`

	// SlowOperationThreshold. Default: 5s
	SlowOperationThreshold time.Duration `mapstructure:"slow_operation_threshold" yaml:"slow_operation_threshold"`

	// TooManyRowsThreshold. Default: 2000
	TooManyRowsThreshold int `mapstructure:"too_many_rows_threshold" yaml:"too_many_rows_threshold"`
}

// DefaultConfig returns a Config with default thresholds and no connection
// settings.
func DefaultConfig() Config {
	return Config{
		SlowOperationThreshold: DefaultSlowOperationThreshold,
		TooManyRowsThreshold:   DefaultTooManyRowsThreshold,
	}
}

// Region returns the first preferred region, or "" when none is set.
func (c Config) Region() string {
	if len(c.PreferredRegions) == 0 {
		return ""
	}
	return c.PreferredRegions[0]
}

// validate applies default thresholds and reports the first missing
// connection setting.
func (c *Config) validate() error {
	if c.SlowOperationThreshold <= 0 {
		c.SlowOperationThreshold = DefaultSlowOperationThreshold
	}
	if c.TooManyRowsThreshold <= 0 {
		c.TooManyRowsThreshold = DefaultTooManyRowsThreshold
	}

	switch {
	case c.Endpoint == "":
		return &ConfigurationError{Key: "endpoint", Reason: "must not be empty"}
	case c.Key == "":
		return &ConfigurationError{Key: "key", Reason: "must not be empty"}
	case c.Secret == "":
		return &ConfigurationError{Key: "secret", Reason: "must not be empty"}
	case c.Database == "":
		return &ConfigurationError{Key: "database", Reason: "must not be empty"}
	case len(c.PreferredRegions) == 0:
		return &ConfigurationError{Key: "preferred_regions", Reason: "must not be empty"}
	}
	for _, region := range c.PreferredRegions {
		if region == "" {
			return &ConfigurationError{Key: "preferred_regions", Reason: "must not contain empty regions"}
		}
	}
	return nil
}

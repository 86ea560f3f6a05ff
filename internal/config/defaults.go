package config

// DefaultConfig returns the built-in defaults used when no config file or
// environment overrides are present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Converter: ConverterConfig{
			DPI:     300,
			Workers: 0,
			Retries: 3,
		},
		Reconcile: ReconcileConfig{
			IntervalMinutes: 0,
		},
	}
}

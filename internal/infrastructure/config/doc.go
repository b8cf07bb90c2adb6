// Package config handles loading and validating Flux configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Overriding with environment variables (FLUX_*, with PORT honoured unprefixed)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Credentials (Redis URL, Postgres DSN, MQTT password, InfluxDB token)
//     should be set via environment variables or a .env file
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Addr())
package config

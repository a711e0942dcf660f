// Package config handles loading and validating the school auth service
// configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The JWT secret and bootstrap admin password should be set via
//     environment variables, never committed in a config file
//   - The config file should have restricted permissions (0600)
//   - Only HMAC algorithms are accepted; the secret must be at least 32 bytes
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Database.URL)
package config

// Package config handles loading and validating VehiCtrl configuration.
//
// Both binaries (relayd and registryd) read the same YAML file and only use
// the sections that concern them. This package manages:
//   - Loading an optional .env file into the environment
//   - Loading configuration from YAML files
//   - Overriding with environment variables (VEHICTL_*)
//   - Validation of ports, GPIO wiring and store location
//
// Usage:
//
//	if err := config.LoadDotEnv(); err != nil {
//	    return err
//	}
//	cfg, err := config.Load("configs/vehictl.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Relay.GPIO.Pins.Ignition)
//
// Security Considerations:
//   - MQTT credentials should be set via environment variables or .env
//   - The config file should have restricted permissions (0600)
package config

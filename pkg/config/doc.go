// Package config provides configuration management for the Returnless tap.
//
// A single TapConfig carries the two settings the connector is defined by
// (auth_token and start_date) together with the ambient sections used by
// the HTTP client, the output writer and observability.
//
// # Sources
//
// Configuration is assembled in three layers, later layers winning:
//
//  1. Defaults from NewTapConfig
//  2. A config file (JSON or YAML) with ${VAR_NAME} substitution
//  3. RETURNLESS_* environment variables, bound through viper
//
// # Usage
//
//	cfg, err := config.LoadTapConfig("config.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//	watermark, ok, err := cfg.Watermark()
//
// # Environment Variables
//
//	RETURNLESS_AUTH_TOKEN=...
//	RETURNLESS_START_DATE=2025-01-01
//	RETURNLESS_STREAMS=forms,tags
//	RETURNLESS_HTTP_MAX_RETRIES=5
package config

// Package config loads the bankcap configuration.
//
// # Configuration Sources
//
// Values are resolved in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// Variables follow the pattern BANKCAP_<SECTION>_<FIELD>:
//
//	BANKCAP_SOURCE_URL=https://example.org/banks
//	BANKCAP_TRANSFORM_CURRENCIES=GBP,EUR,INR
//	BANKCAP_RETRY_MAX_ATTEMPTS=3
//	BANKCAP_HANDOFF_BACKEND=redis
//
// The YAML file is taken from the path passed to Load, then BANKCAP_CONFIG_FILE,
// then config.yaml or configs/config.yaml in the working directory.
package config

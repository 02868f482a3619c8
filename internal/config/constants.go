package config

// Application constants
const (
	AppName    = "bankcap"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable, e.g. BANKCAP_SOURCE_URL
	EnvPrefix = "BANKCAP"

	// ConfigFileEnv names the variable that points at the YAML file
	ConfigFileEnv = "BANKCAP_CONFIG_FILE"

	// DefaultSourceURL is the archived Wikipedia list of largest banks
	DefaultSourceURL = "https://web.archive.org/web/20230908091635/https://en.wikipedia.org/wiki/List_of_largest_banks"

	// DefaultTableClass identifies the market capitalisation table
	DefaultTableClass = "wikitable sortable mw-collapsible"

	// DefaultPlaceholder marks a missing metric cell (U+2014 EM DASH)
	DefaultPlaceholder = "—"

	DefaultTableName    = "Largest_banks"
	DefaultCSVPath      = "Largest_banks_data.csv"
	DefaultDBPath       = "Banks.db"
	DefaultRatesPath    = "exchange_rate.csv"
	DefaultProgressPath = "code_log.txt"

	RoundingHalfEven = "half_even"
	RoundingHalfAway = "half_away"
)

package config

import "fmt"

// Config holds everything the relay daemon needs at startup. Secret fields
// carry `json:"-"` and are sourced from the environment by Load.
type Config struct {
	// Log config
	LogLevel   int    `json:"log_level"`   // 0 = debug, 1 = info, ...
	LogFormat  string `json:"log_format"`  // "json" or "console"
	LogSampler bool   `json:"log_sampler"` // if true, samples logs (1 in 5)

	// Home directory for config and data (default: ~/.0xmrelay)
	Home string `json:"home"`

	// Ledger configuration
	LedgerRPCURLs           []string `json:"ledger_rpc_urls"`           // EVM RPC endpoints
	ChainID                 int64    `json:"chain_id"`                  // expected chain ID
	ForwarderAddress        string   `json:"forwarder_address"`         // ERC-2771 forwarder
	TrackerAddress          string   `json:"tracker_address"`           // milestone tracker contract
	TokenAddress            string   `json:"token_address"`             // fee token (ERC-20 with permit)
	CertificateAddress      string   `json:"certificate_address"`       // certificate (ERC-721) contract
	RelayerAddress          string   `json:"relayer_address"`           // fee accessor contract
	InclusionTimeoutSeconds int      `json:"inclusion_timeout_seconds"` // hard cap on the inclusion wait (default: 90)

	// Content store (IPFS) configuration
	ContentStoreURL            string `json:"content_store_url"`             // kubo RPC endpoint (default: 127.0.0.1:5001)
	ContentFetchTimeoutSeconds int    `json:"content_fetch_timeout_seconds"` // per-fetch timeout (default: 15)

	// Document store configuration
	DBFileName string `json:"db_file_name"` // SQLite file under <home>/data

	// API surface
	APIPort int `json:"api_port"` // HTTP port for the operation surface (default: 8080)

	// Decline cleanup
	ExpirySweepIntervalSeconds int `json:"expiry_sweep_interval_seconds"` // sweeper cadence (default: 3600)
	DeclineRetentionSeconds    int `json:"decline_retention_seconds"`     // artifact deferral after decline (default: 72h)

	// Secrets, environment-only
	RelayAdminKeyHex string `json:"-"` // RELAY_ADMIN_KEY: gas-paying relay account
	VaultPassphrase  string `json:"-"` // VAULT_PASSPHRASE: key vault encryption passphrase
}

// RequireLedgerAddresses fails fast when any contract address is missing.
// Startup-time, so a half-configured daemon never signs anything.
func (c *Config) RequireLedgerAddresses() error {
	missing := func(name, v string) error {
		if v == "" {
			return fmt.Errorf("missing required address: %s", name)
		}
		return nil
	}
	for _, check := range []struct{ name, v string }{
		{"forwarder_address", c.ForwarderAddress},
		{"tracker_address", c.TrackerAddress},
		{"token_address", c.TokenAddress},
		{"certificate_address", c.CertificateAddress},
		{"relayer_address", c.RelayerAddress},
	} {
		if err := missing(check.name, check.v); err != nil {
			return err
		}
	}
	if c.RelayAdminKeyHex == "" {
		return fmt.Errorf("missing RELAY_ADMIN_KEY in environment")
	}
	if c.VaultPassphrase == "" {
		return fmt.Errorf("missing VAULT_PASSPHRASE in environment")
	}
	return nil
}

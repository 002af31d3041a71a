package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig(dir)
	cfg.ForwarderAddress = "0x1111111111111111111111111111111111111111"
	cfg.LedgerRPCURLs = []string{"http://localhost:8545", "http://localhost:8546"}

	require.NoError(t, Save(cfg, dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg.ForwarderAddress, loaded.ForwarderAddress)
	assert.Equal(t, cfg.LedgerRPCURLs, loaded.LedgerRPCURLs)
	assert.Equal(t, "relay_data.db", loaded.DBFileName)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())

	assert.Equal(t, []string{"http://localhost:8545"}, cfg.LedgerRPCURLs)
	assert.Equal(t, 90, cfg.InclusionTimeoutSeconds)
	assert.Equal(t, 15, cfg.ContentFetchTimeoutSeconds)
	assert.Equal(t, 3*24*3600, cfg.DeclineRetentionSeconds)
	assert.Equal(t, 8080, cfg.APIPort)
}

func TestValidate_RejectsBadLogConfig(t *testing.T) {
	cfg := &Config{LogLevel: 9, LogFormat: "console"}
	assert.Error(t, validateConfig(cfg))

	cfg = &Config{LogLevel: 1, LogFormat: "xml"}
	assert.Error(t, validateConfig(cfg))
}

func TestRequireLedgerAddresses(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	err := cfg.RequireLedgerAddresses()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forwarder_address")

	cfg.ForwarderAddress = "0x01"
	cfg.TrackerAddress = "0x02"
	cfg.TokenAddress = "0x03"
	cfg.CertificateAddress = "0x04"
	cfg.RelayerAddress = "0x05"
	err = cfg.RequireLedgerAddresses()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RELAY_ADMIN_KEY")

	cfg.RelayAdminKeyHex = "ab"
	cfg.VaultPassphrase = "secret"
	assert.NoError(t, cfg.RequireLedgerAddresses())
}

func TestEnvSecretsNotPersisted(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.RelayAdminKeyHex = "deadbeef"
	require.NoError(t, Save(cfg, dir))

	t.Setenv("RELAY_ADMIN_KEY", "")
	t.Setenv("VAULT_PASSPHRASE", "")
	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Empty(t, loaded.RelayAdminKeyHex)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `{
		"db_path": "/tmp/indexer.db",
		"w3_urls": ["https://rpc1.example", "https://rpc2.example"],
		"subgraph_url": "https://subgraph.example/query",
		"the_graph_api_key": "secret",
		"marketplace_contract": "0x0000000000000000000000000000000000000001",
		"genesis_block": 100
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/indexer.db", cfg.DBPath)
	assert.Len(t, cfg.W3URLs, 2)
	assert.Equal(t, "resources/blockchain_contracts.json", cfg.ContractsFile)
	assert.Equal(t, uint64(100), cfg.GenesisBlock)
}

func TestLoadMissingRequiredKey(t *testing.T) {
	path := writeConfig(t, `{"w3_urls": ["https://rpc1.example"]}`)

	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "db_path", cfgErr.Key)
}

func TestLoadInvalidContractAddress(t *testing.T) {
	path := writeConfig(t, `{
		"db_path": "/tmp/indexer.db",
		"w3_urls": ["https://rpc1.example"],
		"subgraph_url": "https://subgraph.example/query",
		"marketplace_contract": "not-an-address"
	}`)

	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "marketplace_contract", cfgErr.Key)
}

func TestLoadCatalogueAppliesRWAOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blockchain_contracts.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"RWA": {"address": "0x06752d890a27259428eE6f4822Bf96B05Fb4b170", "decimals": 18},
		"USDC": {"address": "0x1111111111111111111111111111111111111111", "decimals": 6}
	}`), 0o600))

	cat, err := LoadCatalogue(path)
	require.NoError(t, err)

	dec, ok := cat.Decimals("RWA")
	require.True(t, ok)
	assert.Equal(t, 9, dec)

	dec, ok = cat.Decimals("USDC")
	require.True(t, ok)
	assert.Equal(t, 6, dec)

	_, ok = cat.Decimals("UNKNOWN")
	assert.False(t, ok)
}

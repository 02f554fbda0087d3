package config

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omgolab/go-netprobe/pkg/port"
)

func TestGetGenesisTxn(t *testing.T) {
	var cfg NodeConfig
	assert.Nil(t, GetGenesisTxn(&cfg))

	txn := &Transaction{Payload: []byte("genesis")}
	cfg.Execution.Genesis = txn
	assert.Same(t, txn, GetGenesisTxn(&cfg))

	// The accessor must not disturb the rest of the config.
	assert.Equal(t, "", cfg.Network.ListenAddress)
}

func TestLoadRestoresGenesis(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("opaque genesis bytes")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "genesis.blob"), payload, 0o644))

	cfg := &NodeConfig{}
	cfg.Execution.GenesisFileLocation = "genesis.blob"
	cfgPath := filepath.Join(dir, "node.yaml")
	require.NoError(t, cfg.Save(cfgPath))

	loaded, err := Load(cfgPath)
	require.NoError(t, err)
	txn := GetGenesisTxn(loaded)
	require.NotNil(t, txn)
	assert.Equal(t, payload, txn.Payload)
}

func TestLoadMissingGenesisFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &NodeConfig{}
	cfg.Execution.GenesisFileLocation = "does-not-exist.blob"
	cfgPath := filepath.Join(dir, "node.yaml")
	require.NoError(t, cfg.Save(cfgPath))

	_, err := Load(cfgPath)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := &NodeConfig{
		Network: NetworkConfig{ListenAddress: "/ip4/0.0.0.0/tcp/12345"},
	}
	cfgPath := filepath.Join(dir, "node.yaml")
	require.NoError(t, cfg.Save(cfgPath))

	loaded, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Network.ListenAddress, loaded.Network.ListenAddress)
	assert.Nil(t, GetGenesisTxn(loaded))
}

func TestRandomizeListenAddress(t *testing.T) {
	var cfg NodeConfig
	cfg.RandomizeListenAddress()

	m, err := cfg.ListenMultiaddr()
	require.NoError(t, err)

	ip, err := m.ValueForProtocol(ma.P_IP4)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", ip)

	raw, err := m.ValueForProtocol(ma.P_TCP)
	require.NoError(t, err)
	p, err := strconv.Atoi(raw)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p, port.MinPort)
	assert.Less(t, p, port.MaxPort)
}

func TestListenMultiaddrUnset(t *testing.T) {
	var cfg NodeConfig
	_, err := cfg.ListenMultiaddr()
	assert.Error(t, err)
}

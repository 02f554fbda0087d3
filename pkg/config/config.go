// Package config holds the node configuration read during process
// startup and test-harness setup. It owns the YAML layout and hands
// opaque collaborator-owned values (the genesis transaction) back to the
// layers that understand them.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	ma "github.com/multiformats/go-multiaddr"
	"gopkg.in/yaml.v3"

	"github.com/omgolab/go-netprobe/pkg/hostaddr"
)

// Transaction is the opaque genesis payload produced by the execution
// layer. This package stores it and hands it back untouched.
type Transaction struct {
	Payload []byte
}

// ExecutionConfig is the execution section of the node configuration.
type ExecutionConfig struct {
	// GenesisFileLocation points at a genesis payload on disk, resolved
	// relative to the config file when not absolute.
	GenesisFileLocation string `yaml:"genesis_file_location,omitempty"`

	// Genesis is populated by Load from GenesisFileLocation. It is never
	// serialized inline; the payload lives in its own file.
	Genesis *Transaction `yaml:"-"`
}

// NetworkConfig is the network section of the node configuration.
type NetworkConfig struct {
	// ListenAddress is the multiaddr the node binds its transport to.
	ListenAddress string `yaml:"listen_address,omitempty"`
}

// NodeConfig is the root configuration object.
type NodeConfig struct {
	Execution ExecutionConfig `yaml:"execution,omitempty"`
	Network   NetworkConfig   `yaml:"network,omitempty"`
}

// GetGenesisTxn returns the genesis transaction stored in the execution
// section, or nil when absent. The config is not mutated.
func GetGenesisTxn(config *NodeConfig) *Transaction {
	return config.Execution.Genesis
}

// ListenMultiaddr parses the configured listen address.
func (c *NodeConfig) ListenMultiaddr() (ma.Multiaddr, error) {
	if c.Network.ListenAddress == "" {
		return nil, fmt.Errorf("no listen address configured")
	}
	return ma.NewMultiaddr(c.Network.ListenAddress)
}

// RandomizeListenAddress replaces the listen address with a wildcard-IPv4
// multiaddr carrying a freshly reserved port. Test harnesses call this to
// stand up several nodes on one host without colliding.
func (c *NodeConfig) RandomizeListenAddress() {
	c.Network.ListenAddress = hostaddr.GetAvailablePortInMultiaddr(true).String()
}

// Load reads a NodeConfig from a YAML file. When the execution section
// names a genesis file, its payload is read in as well.
func Load(path string) (*NodeConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg NodeConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if loc := cfg.Execution.GenesisFileLocation; loc != "" {
		if !filepath.IsAbs(loc) {
			loc = filepath.Join(filepath.Dir(path), loc)
		}
		payload, err := os.ReadFile(loc)
		if err != nil {
			return nil, fmt.Errorf("reading genesis payload %s: %w", loc, err)
		}
		cfg.Execution.Genesis = &Transaction{Payload: payload}
	}

	return &cfg, nil
}

// Save writes the configuration as YAML. The genesis payload itself is
// not written; only its file location survives a round trip.
func (c *NodeConfig) Save(path string) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

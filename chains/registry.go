package chains

import (
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"dario.cat/mergo"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/validator-dashboard/config"
	"github.com/ethpandaops/validator-dashboard/types"
)

var logger = logrus.StandardLogger().WithField("module", "chains")

type registryFile struct {
	Chains map[string]*types.ChainConfig `yaml:"chains"`
}

// Registry maps chain ids to their static chain configuration.
type Registry struct {
	chains        map[uint64]*types.ChainConfig
	forkVersions  map[uint64]phase0.Version
	forkVersionId map[phase0.Version]uint64
}

// LoadRegistry builds the registry from the embedded chain list, the optional registry file and the
// chains configured inline. Later sources override single fields of earlier entries with the same key.
func LoadRegistry(cfg *types.Config) (*Registry, error) {
	entries := map[string]*types.ChainConfig{}

	builtin := registryFile{}
	if err := yaml.Unmarshal([]byte(config.ChainsYml), &builtin); err != nil {
		return nil, fmt.Errorf("error decoding built-in chain registry: %w", err)
	}
	if err := mergeEntries(entries, builtin.Chains); err != nil {
		return nil, err
	}

	if cfg != nil && cfg.Chain.RegistryPath != "" {
		data, err := os.ReadFile(cfg.Chain.RegistryPath)
		if err != nil {
			return nil, fmt.Errorf("error reading chain registry %v: %w", cfg.Chain.RegistryPath, err)
		}

		custom := registryFile{}
		if err := yaml.Unmarshal(data, &custom); err != nil {
			return nil, fmt.Errorf("error decoding chain registry %v: %w", cfg.Chain.RegistryPath, err)
		}
		if err := mergeEntries(entries, custom.Chains); err != nil {
			return nil, err
		}
	}

	if cfg != nil {
		if err := mergeEntries(entries, cfg.Chain.Chains); err != nil {
			return nil, err
		}
	}

	return NewRegistry(entries)
}

func mergeEntries(dst map[string]*types.ChainConfig, src map[string]*types.ChainConfig) error {
	for key, entry := range src {
		if entry == nil {
			continue
		}

		existing := dst[key]
		if existing == nil {
			copied := *entry
			dst[key] = &copied
			continue
		}

		if err := mergo.Merge(existing, entry, mergo.WithOverride); err != nil {
			return fmt.Errorf("error merging chain %v: %w", key, err)
		}
	}

	return nil
}

// NewRegistry validates the given entries and indexes them by chain id and fork version.
func NewRegistry(entries map[string]*types.ChainConfig) (*Registry, error) {
	registry := &Registry{
		chains:        map[uint64]*types.ChainConfig{},
		forkVersions:  map[uint64]phase0.Version{},
		forkVersionId: map[phase0.Version]uint64{},
	}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		entry := entries[key]
		if entry.ChainId == 0 {
			return nil, fmt.Errorf("chain %v has no chainId", key)
		}
		if entry.Name == "" {
			entry.Name = key
		}
		if other := registry.chains[entry.ChainId]; other != nil {
			return nil, fmt.Errorf("chain %v: duplicate chainId %v (already used by %v)", key, entry.ChainId, other.Name)
		}

		forkVersion, err := ParseForkVersion(entry.GenesisForkVersion)
		if err != nil {
			return nil, fmt.Errorf("chain %v: %w", key, err)
		}

		registry.chains[entry.ChainId] = entry
		registry.forkVersions[entry.ChainId] = forkVersion
		if _, exists := registry.forkVersionId[forkVersion]; exists {
			logger.Warnf("chain %v shares genesis fork version %v with another chain", key, entry.GenesisForkVersion)
		} else {
			registry.forkVersionId[forkVersion] = entry.ChainId
		}
	}

	return registry, nil
}

// Get returns the chain entry for chainID or nil when the chain is not registered.
func (r *Registry) Get(chainID uint64) *types.ChainConfig {
	return r.chains[chainID]
}

// ForkVersion returns the genesis fork version registered for chainID.
func (r *Registry) ForkVersion(chainID uint64) (phase0.Version, bool) {
	forkVersion, ok := r.forkVersions[chainID]
	return forkVersion, ok
}

// ChainIDByForkVersion reverse-looks up the chain id for a genesis fork version, 0 if unknown.
func (r *Registry) ChainIDByForkVersion(forkVersion phase0.Version) uint64 {
	return r.forkVersionId[forkVersion]
}

// Chains returns all entries sorted by chain id.
func (r *Registry) Chains() []*types.ChainConfig {
	chains := make([]*types.ChainConfig, 0, len(r.chains))
	for _, chain := range r.chains {
		chains = append(chains, chain)
	}
	sort.Slice(chains, func(i, j int) bool {
		return chains[i].ChainId < chains[j].ChainId
	})
	return chains
}

// ParseForkVersion decodes a 4 byte fork version with optional 0x prefix.
func ParseForkVersion(value string) (phase0.Version, error) {
	var version phase0.Version

	raw, err := hex.DecodeString(strings.TrimPrefix(value, "0x"))
	if err != nil {
		return version, fmt.Errorf("invalid fork version %q: %w", value, err)
	}
	if len(raw) != len(version) {
		return version, fmt.Errorf("invalid fork version %q: expected %v bytes, got %v", value, len(version), len(raw))
	}

	copy(version[:], raw)
	return version, nil
}

// TxUrl renders the explorer link for a transaction hash, empty if the chain has no explorer.
func TxUrl(chain *types.ChainConfig, hash string) string {
	if chain == nil || chain.ExplorerTxUrl == "" {
		return ""
	}
	return strings.ReplaceAll(chain.ExplorerTxUrl, "{hash}", hash)
}

// AddressUrl renders the explorer link for an address, empty if the chain has no explorer.
func AddressUrl(chain *types.ChainConfig, address string) string {
	if chain == nil || chain.ExplorerAddressUrl == "" {
		return ""
	}
	return strings.ReplaceAll(chain.ExplorerAddressUrl, "{address}", address)
}

// Copyright 2025 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package parascfg

import (
	"errors"
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/pelletier/go-toml/v2"
)

var (
	ErrUnknownChain   = errors.New("unknown paras chain config")
	ErrInvalidMaxSize = errors.New("max size must be positive")
)

// Config is the part of the host configuration consumed by the paras module.
type Config struct {
	// AcceptancePeriod is the number of relay-chain blocks during which a
	// candidate can still be disputed. Past code is kept for this long after
	// it was replaced. With zero, past code is pruned at the block after the
	// replacement was noted.
	AcceptancePeriod uint64 `toml:"acceptance_period"`
	// ValidationUpgradeDelay is the delay callers add to the relay-parent
	// number when choosing the block at which a scheduled upgrade is expected.
	// The paras module does not enforce it.
	ValidationUpgradeDelay uint64            `toml:"validation_upgrade_delay"`
	MaxCodeSize            datasize.ByteSize `toml:"max_code_size"`
	MaxHeadDataSize        datasize.ByteSize `toml:"max_head_data_size"`
	SessionLength          uint64            `toml:"session_length"`
}

// UpgradeTarget is the block at which an upgrade signalled by a candidate
// with the given relay-parent is expected to be applied.
func (c Config) UpgradeTarget(relayParent uint64) uint64 {
	return relayParent + c.ValidationUpgradeDelay
}

// IsSessionBoundary tells whether a new session starts at blockNum. Block 0 is
// genesis and never a boundary.
func (c Config) IsSessionBoundary(blockNum uint64) bool {
	if c.SessionLength == 0 || blockNum == 0 {
		return false
	}
	return blockNum%c.SessionLength == 0
}

func (c Config) Validate() error {
	if c.MaxCodeSize == 0 {
		return fmt.Errorf("%w: max_code_size", ErrInvalidMaxSize)
	}
	if c.MaxHeadDataSize == 0 {
		return fmt.Errorf("%w: max_head_data_size", ErrInvalidMaxSize)
	}
	return nil
}

func ConfigByChainName(chainName string) (Config, error) {
	switch chainName {
	case DevChainName:
		return devConfig, nil
	case TestnetChainName:
		return testnetConfig, nil
	case MainnetChainName:
		return mainnetConfig, nil
	default:
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownChain, chainName)
	}
}

// LoadFile overlays the values found in a TOML file on top of base.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read paras config: %w", err)
	}

	cfg := base
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse paras config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid paras config %s: %w", path, err)
	}

	return cfg, nil
}

const (
	DevChainName     = "dev"
	TestnetChainName = "testnet"
	MainnetChainName = "mainnet"
)

var (
	devConfig = Config{
		AcceptancePeriod:       10,
		ValidationUpgradeDelay: 5,
		MaxCodeSize:            defaultMaxCodeSize,
		MaxHeadDataSize:        defaultMaxHeadDataSize,
		SessionLength:          10,
	}

	testnetConfig = Config{
		AcceptancePeriod:       defaultAcceptancePeriod,
		ValidationUpgradeDelay: 300,
		MaxCodeSize:            defaultMaxCodeSize,
		MaxHeadDataSize:        defaultMaxHeadDataSize,
		SessionLength:          600,
	}

	mainnetConfig = Config{
		AcceptancePeriod:       defaultAcceptancePeriod,
		ValidationUpgradeDelay: 14_400,
		MaxCodeSize:            defaultMaxCodeSize,
		MaxHeadDataSize:        defaultMaxHeadDataSize,
		SessionLength:          2_400,
	}
)

const (
	defaultAcceptancePeriod = 600
	defaultMaxCodeSize      = 3 * datasize.MB
	defaultMaxHeadDataSize  = 32 * datasize.KB
)

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

package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/erigontech/paras/paras/parascfg"
)

var (
	DataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the state database and logs",
	}

	ChainFlag = cli.StringFlag{
		Name:  "chain",
		Usage: fmt.Sprintf("Config preset to start from (%s,%s,%s)", parascfg.DevChainName, parascfg.TestnetChainName, parascfg.MainnetChainName),
		Value: parascfg.DevChainName,
	}

	ConfigFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML file overriding values of the chain preset",
	}

	AcceptancePeriodFlag = cli.Uint64Flag{
		Name:  "acceptance-period",
		Usage: "Number of blocks during which past code is kept after it was replaced",
	}

	UpgradeDelayFlag = cli.Uint64Flag{
		Name:  "upgrade-delay",
		Usage: "Delay added to the relay parent when scheduling code upgrades without an explicit block",
	}

	MetricsAddrFlag = cli.StringFlag{
		Name:  "metrics.addr",
		Usage: "Serve prometheus metrics on this address, disabled when empty",
	}

	KeepStatesFlag = cli.Uint64Flag{
		Name:  "db.keep-states",
		Usage: "Number of most recent state snapshots to keep in the database, 0 keeps all",
	}

	ResumeFlag = cli.BoolFlag{
		Name:  "resume",
		Usage: "Resume from the latest state in the database instead of genesis",
	}

	BlockFlag = cli.Uint64Flag{
		Name:  "block",
		Usage: "Block whose state to show, the latest one when not set",
	}
)

var configFlags = []cli.Flag{
	&ChainFlag,
	&ConfigFileFlag,
	&AcceptancePeriodFlag,
	&UpgradeDelayFlag,
}

// loadConfig builds the config from the chain preset, the config file and
// the individual flags, in increasing priority.
func loadConfig(cliCtx *cli.Context) (parascfg.Config, error) {
	cfg, err := parascfg.ConfigByChainName(cliCtx.String(ChainFlag.Name))
	if err != nil {
		return parascfg.Config{}, err
	}

	if path := cliCtx.String(ConfigFileFlag.Name); path != "" {
		if cfg, err = parascfg.LoadFile(path, cfg); err != nil {
			return parascfg.Config{}, err
		}
	}

	if cliCtx.IsSet(AcceptancePeriodFlag.Name) {
		cfg.AcceptancePeriod = cliCtx.Uint64(AcceptancePeriodFlag.Name)
	}
	if cliCtx.IsSet(UpgradeDelayFlag.Name) {
		cfg.ValidationUpgradeDelay = cliCtx.Uint64(UpgradeDelayFlag.Name)
	}

	if err := cfg.Validate(); err != nil {
		return parascfg.Config{}, err
	}
	return cfg, nil
}

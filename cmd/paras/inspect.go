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
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/erigontech/paras/paras"
	"github.com/erigontech/paras/paras/parasdb"
	"github.com/erigontech/paras/turbo/logging"
)

var inspectCommand = cli.Command{
	Action: inspect,
	Name:   "inspect",
	Usage:  "Print a stored paras state",
	Flags: []cli.Flag{
		&BlockFlag,
	},
}

func inspect(cliCtx *cli.Context) error {
	dataDir := cliCtx.String(DataDirFlag.Name)
	if dataDir == "" {
		return errors.New("inspect needs --datadir")
	}

	logger := logging.SetupLoggerCtx("paras", cliCtx)

	db, err := parasdb.Open(parasdb.Options{Path: filepath.Join(dataDir, "parasdb")}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	var s *paras.State
	if cliCtx.IsSet(BlockFlag.Name) {
		s, err = db.ReadState(cliCtx.Context, cliCtx.Uint64(BlockFlag.Name))
	} else {
		s, err = db.LatestState(cliCtx.Context)
	}
	if err != nil {
		return err
	}

	return printState(cliCtx.App.Writer, s)
}

func printState(w io.Writer, s *paras.State) error {
	root, err := s.Root()
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(w, "block:      %d\n", s.BlockNumber)
	_, _ = fmt.Fprintf(w, "root:       %s\n", root)
	_, _ = fmt.Fprintf(w, "parachains: %v\n", s.Parachains)
	_, _ = fmt.Fprintf(w, "upcoming:   %v\n", s.UpcomingParas)
	_, _ = fmt.Fprintf(w, "outgoing:   %v\n", s.OutgoingParas)
	_, _ = fmt.Fprintf(w, "pruning:    %d tasks\n", len(s.PastCodePruning))
	for _, task := range s.PastCodePruning {
		_, _ = fmt.Fprintf(w, "  para %d noted at %d\n", task.Para, task.ActivatedAt)
	}

	for _, rec := range s.Paras {
		_, _ = fmt.Fprintf(w, "para %d\n", rec.Id)
		if rec.Head != nil {
			_, _ = fmt.Fprintf(w, "  head:         %d bytes\n", len(*rec.Head))
		}
		if rec.CurrentCode != nil {
			_, _ = fmt.Fprintf(w, "  code:         %s\n", rec.CurrentCode.Hash())
		}
		if rec.FutureCodeUpgradeAt != nil {
			_, _ = fmt.Fprintf(w, "  upgrade:      %s at %d\n", rec.FutureCode.Hash(), *rec.FutureCodeUpgradeAt)
		}
		if rec.PastCodeMeta != nil {
			for _, t := range rec.PastCodeMeta.UpgradeTimes {
				_, _ = fmt.Fprintf(w, "  replaced:     at %d noted at %d\n", t.ExpectedAt, t.ActivatedAt)
			}
			if rec.PastCodeMeta.LastPruned != nil {
				_, _ = fmt.Fprintf(w, "  last pruned:  %d\n", *rec.PastCodeMeta.LastPruned)
			}
		}
		for _, e := range rec.PastCode {
			_, _ = fmt.Fprintf(w, "  past code:    %s replaced at %d\n", e.Code.Hash(), e.ReplacedAt)
		}
		if rec.UpcomingGenesis != nil {
			_, _ = fmt.Fprintf(w, "  onboarding:   %s parachain=%t\n", rec.UpcomingGenesis.ValidationCode.Hash(), rec.UpcomingGenesis.Parachain)
		}
	}
	return nil
}

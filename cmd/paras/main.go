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
	"os"

	"github.com/urfave/cli/v2"

	"github.com/erigontech/paras/turbo/logging"
)

func main() {
	app := cli.NewApp()
	app.Name = "paras"
	app.Usage = "Replay and inspect the paras validation code ledger"
	app.UsageText = app.Name + ` [command] [flags]`

	app.Commands = []*cli.Command{
		&replayCommand,
		&inspectCommand,
	}

	app.Flags = append([]cli.Flag{&DataDirFlag}, logging.Flags...)

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

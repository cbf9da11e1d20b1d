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
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ledgerwatch/log/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/erigontech/paras/metrics"
	"github.com/erigontech/paras/paras"
	"github.com/erigontech/paras/paras/parascfg"
	"github.com/erigontech/paras/paras/parasdb"
	"github.com/erigontech/paras/paras/scenario"
	"github.com/erigontech/paras/turbo/logging"
)

var replayCommand = cli.Command{
	Action:    replay,
	Name:      "replay",
	Usage:     "Replay a scenario block by block against the paras module",
	ArgsUsage: "<scenario.yaml>",
	Flags: append([]cli.Flag{
		&MetricsAddrFlag,
		&KeepStatesFlag,
		&ResumeFlag,
	}, configFlags...),
}

func replay(cliCtx *cli.Context) error {
	if cliCtx.NArg() != 1 {
		return fmt.Errorf("expected exactly one scenario file, got %d arguments", cliCtx.NArg())
	}

	logger := logging.SetupLoggerCtx("paras", cliCtx)

	cfg, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}

	sc, err := scenario.Load(cliCtx.Args().First())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cliCtx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var db *parasdb.DB
	if dataDir := cliCtx.String(DataDirFlag.Name); dataDir != "" {
		db, err = parasdb.Open(parasdb.Options{Path: filepath.Join(dataDir, "parasdb")}, logger)
		if err != nil {
			return err
		}
		defer db.Close()
	} else if cliCtx.Bool(ResumeFlag.Name) {
		return errors.New("--resume needs --datadir")
	}

	m, err := initModule(ctx, cliCtx.Bool(ResumeFlag.Name), cfg, sc, db, logger)
	if err != nil {
		return err
	}

	var opts []scenario.RunnerOpt
	if db != nil {
		opts = append(opts, scenario.WithDB(db), scenario.WithKeepStates(cliCtx.Uint64(KeepStatesFlag.Name)))
	}
	runner := scenario.NewRunner(m, sc, logger, opts...)

	g, gCtx := errgroup.WithContext(ctx)
	runCtx, stopServing := context.WithCancel(gCtx)

	if addr := cliCtx.String(MetricsAddrFlag.Name); addr != "" {
		g.Go(func() error {
			return serveMetrics(runCtx, addr, logger)
		})
	}

	var res *scenario.Result
	g.Go(func() error {
		defer stopServing()
		var err error
		res, err = runner.Run(gCtx)
		return err
	})

	err = g.Wait()
	if res != nil {
		printResult(cliCtx.App.Writer, res)
	}
	return err
}

func initModule(ctx context.Context, resume bool, cfg parascfg.Config, sc *scenario.Scenario, db *parasdb.DB, logger log.Logger) (*paras.Module, error) {
	if !resume {
		return paras.New(cfg, sc.Genesis, logger), nil
	}

	s, err := db.LatestState(ctx)
	if errors.Is(err, parasdb.ErrStateNotFound) {
		logger.Info("[paras] nothing to resume from, starting at genesis")
		return paras.New(cfg, sc.Genesis, logger), nil
	}
	if err != nil {
		return nil, err
	}

	logger.Info("[paras] resuming", "blockNum", s.BlockNumber)
	return paras.Restore(cfg, s, logger)
}

func serveMetrics(ctx context.Context, addr string, logger log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/debug/metrics/prometheus", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("[paras] serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func printResult(w io.Writer, res *scenario.Result) {
	for _, q := range res.Queries {
		status := "ok"
		if q.Failure != "" {
			status = "FAIL " + q.Failure
		}
		code := "none"
		if q.Found {
			code = q.Code.Hash().String()
		}
		_, _ = fmt.Fprintf(w, "block=%d para=%d at=%d code=%s %s\n", q.Block, q.Para, q.At, code, status)
	}
	_, _ = fmt.Fprintf(w, "last block %d, %s, root %s\n", res.LastBlock, res.Weight, res.Root)
}

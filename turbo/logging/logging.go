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

package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ledgerwatch/log/v3"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logDirPerm     = 0o755
	logFileMaxSize = 64 // megabytes
	logFileBackups = 5
	logFileMaxAge  = 14 // days
)

// SetupLoggerCtx configures the root logger from the logging flags and
// returns it. File logs go to <log.dir.path>/<filePrefix>.log, or to
// <datadir>/logs when only a datadir is given.
func SetupLoggerCtx(filePrefix string, ctx *cli.Context) log.Logger {
	consoleLevel := levelOrInfo(ctx.String(LogConsoleVerbosityFlag.Name))
	dirLevel := levelOrInfo(ctx.String(LogDirVerbosityFlag.Name))

	dir := ctx.String(LogDirPathFlag.Name)
	if dir == "" && ctx.String("datadir") != "" {
		dir = filepath.Join(ctx.String("datadir"), "logs")
	}

	setupRoot(filePrefix, dir, consoleLevel, dirLevel, ctx.Bool(LogJsonFlag.Name), ctx.Bool(LogDirJsonFlag.Name))
	return log.Root()
}

func setupRoot(filePrefix, dir string, consoleLevel, dirLevel log.Lvl, consoleJson, dirJson bool) {
	logger := log.Root()

	console := log.StderrHandler
	if consoleJson {
		console = log.StreamHandler(os.Stderr, log.JsonFormat())
	}
	logger.SetHandler(log.LvlFilterHandler(consoleLevel, console))

	if dir == "" {
		logger.Debug(fmt.Sprintf("[%s] no --datadir or --%s, not writing log files", filePrefix, LogDirPathFlag.Name))
		return
	}

	file, err := fileHandler(dir, filePrefix, dirJson)
	if err != nil {
		logger.Warn(fmt.Sprintf("[%s] not writing log files", filePrefix), "err", err)
		return
	}
	logger.SetHandler(log.MultiHandler(logger.GetHandler(), log.LvlFilterHandler(dirLevel, file)))
	logger.Info(fmt.Sprintf("[%s] writing log files", filePrefix), "file", filepath.Join(dir, filePrefix+".log"), "level", dirLevel)
}

// fileHandler writes rotated logs to <dir>/<prefix>.log.
func fileHandler(dir, prefix string, jsonFormat bool) (log.Handler, error) {
	if err := os.MkdirAll(dir, logDirPerm); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}

	format := log.TerminalFormatNoColor()
	if jsonFormat {
		format = log.JsonFormat()
	}

	return log.StreamHandler(&lumberjack.Logger{
		Filename:   filepath.Join(dir, prefix+".log"),
		MaxSize:    logFileMaxSize,
		MaxBackups: logFileBackups,
		MaxAge:     logFileMaxAge,
	}, format), nil
}

func levelOrInfo(s string) log.Lvl {
	lvl, err := tryGetLogLevel(s)
	if err != nil {
		return log.LvlInfo
	}
	return lvl
}

// tryGetLogLevel accepts a level name ("debug") or its verbosity number ("4").
func tryGetLogLevel(s string) (log.Lvl, error) {
	if lvl, err := log.LvlFromString(s); err == nil {
		return lvl, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return log.Lvl(n), nil
}

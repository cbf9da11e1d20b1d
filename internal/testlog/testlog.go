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

// Package testlog provides a log handler for unit tests.
package testlog

import (
	"strings"
	"sync"
	"testing"

	"github.com/ledgerwatch/log/v3"
)

// Logger returns a logger which logs to the unit test log of t.
func Logger(t testing.TB, level log.Lvl) log.Logger {
	l := log.New()
	l.SetHandler(log.LvlFilterHandler(level, &handler{t: t}))
	return l
}

type handler struct {
	mu sync.Mutex
	t  testing.TB
}

func (h *handler) Log(r *log.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.t.Helper()
	h.t.Log(strings.TrimSuffix(string(log.TerminalFormatNoColor().Format(r)), "\n"))
	return nil
}

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

package scenario

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/paras/paras"
	"github.com/erigontech/paras/paras/parasdb"
)

var ErrExpectationFailed = errors.New("scenario expectation failed")

// QueryResult is the outcome of a code_at event.
type QueryResult struct {
	Block        uint64
	Para         paras.ParaId
	At           uint64
	Intermediate *uint64
	Code         paras.ValidationCode
	Found        bool
	// Failure is set when the result did not match the expectation.
	Failure string
}

type Result struct {
	// LastBlock is the last block that was run.
	LastBlock uint64
	Weight    paras.Weight
	Queries   []QueryResult
	Root      paras.CodeHash
}

// Failures are the queries whose expectations were not met.
func (r *Result) Failures() []QueryResult {
	var failed []QueryResult
	for _, q := range r.Queries {
		if q.Failure != "" {
			failed = append(failed, q)
		}
	}
	return failed
}

type RunnerOpt func(*Runner)

// WithDB persists the state after every block.
func WithDB(db *parasdb.DB) RunnerOpt {
	return func(r *Runner) { r.db = db }
}

// WithKeepStates keeps only the snapshots of the last n blocks in the db.
// Zero keeps everything.
func WithKeepStates(n uint64) RunnerOpt {
	return func(r *Runner) { r.keepStates = n }
}

// Runner drives a module through the blocks of a scenario that come after the
// module's current block.
type Runner struct {
	module     *paras.Module
	scenario   *Scenario
	logger     log.Logger
	db         *parasdb.DB
	keepStates uint64
}

func NewRunner(module *paras.Module, scenario *Scenario, logger log.Logger, opts ...RunnerOpt) *Runner {
	r := &Runner{
		module:   module,
		scenario: scenario,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Module() *paras.Module {
	return r.module
}

// Run runs blocks until the last block of the scenario or until ctx is done.
// The result is returned even when an expectation failed, together with
// ErrExpectationFailed.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	cfg := r.module.Config()
	if err := r.scenario.Validate(cfg); err != nil {
		return nil, err
	}

	res := &Result{LastBlock: r.module.BlockNumber()}
	events := make(map[uint64][]Event, len(r.scenario.Blocks))
	for _, b := range r.scenario.Blocks {
		events[b.Number] = b.Events
	}

	for b := r.module.BlockNumber() + 1; b <= r.scenario.Until; b++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if r.isSessionBoundary(b) {
			res.Weight = res.Weight.Add(r.module.OnSessionChange(b))
		}
		res.Weight = res.Weight.Add(r.module.OnBlockStart(b))

		for _, ev := range events[b] {
			res.Weight = res.Weight.Add(r.apply(b, &ev, res))
		}

		if r.db != nil {
			if err := r.persist(ctx, b); err != nil {
				return res, err
			}
		}
		res.LastBlock = b
	}

	root, err := r.module.Export().Root()
	if err != nil {
		return res, err
	}
	res.Root = root

	failures := res.Failures()
	r.logger.Info("[scenario] done", "lastBlock", res.LastBlock, "queries", len(res.Queries), "failures", len(failures), "weight", res.Weight, "root", root)
	if len(failures) > 0 {
		f := failures[0]
		return res, fmt.Errorf("%w: %d failed, first at block %d: para %d at %d: %s", ErrExpectationFailed, len(failures), f.Block, f.Para, f.At, f.Failure)
	}
	return res, nil
}

func (r *Runner) isSessionBoundary(b uint64) bool {
	if len(r.scenario.Sessions) > 0 {
		return slices.Contains(r.scenario.Sessions, b)
	}
	return r.module.Config().IsSessionBoundary(b)
}

func (r *Runner) apply(b uint64, ev *Event, res *Result) paras.Weight {
	m := r.module
	switch ev.Op {
	case OpRegister:
		return m.ScheduleParaInitialize(ev.Para, paras.GenesisArgs{
			GenesisHead:    ev.Head,
			ValidationCode: ev.Code,
			Parachain:      ev.Parachain,
		})
	case OpDeregister:
		return m.ScheduleParaCleanup(ev.Para)
	case OpScheduleUpgrade:
		expectedAt := m.Config().UpgradeTarget(ev.relayParent(b))
		if ev.ExpectedAt != nil {
			expectedAt = *ev.ExpectedAt
		}
		return m.ScheduleCodeUpgrade(ev.Para, ev.Code, expectedAt)
	case OpHead:
		return m.OnHeadAdvance(ev.Para, ev.Head, ev.relayParent(b))
	case OpCodeAt:
		res.Queries = append(res.Queries, r.query(b, ev))
	}
	return paras.Weight{}
}

func (r *Runner) query(b uint64, ev *Event) QueryResult {
	code, found := r.module.ValidationCodeAt(ev.Para, ev.At, ev.Intermediate)
	q := QueryResult{
		Block:        b,
		Para:         ev.Para,
		At:           ev.At,
		Intermediate: ev.Intermediate,
		Code:         code,
		Found:        found,
	}

	switch {
	case ev.ExpectAbsent && found:
		q.Failure = fmt.Sprintf("expected no code, got %x", []byte(code))
	case ev.Expect != nil && !found:
		q.Failure = fmt.Sprintf("expected code %x, got none", []byte(*ev.Expect))
	case ev.Expect != nil && !bytes.Equal(*ev.Expect, code):
		q.Failure = fmt.Sprintf("expected code %x, got %x", []byte(*ev.Expect), []byte(code))
	}

	if q.Failure != "" {
		r.logger.Warn("[scenario] unexpected code", "block", b, "para", ev.Para, "at", ev.At, "failure", q.Failure)
	} else {
		r.logger.Debug("[scenario] code at", "block", b, "para", ev.Para, "at", ev.At, "found", found)
	}
	return q
}

func (r *Runner) persist(ctx context.Context, b uint64) error {
	if err := r.db.WriteState(ctx, r.module.Export()); err != nil {
		return err
	}
	if r.keepStates == 0 || b < r.keepStates {
		return nil
	}
	_, err := r.db.PruneStatesBefore(ctx, b-r.keepStates+1)
	return err
}

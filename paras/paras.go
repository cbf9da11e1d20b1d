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

// Package paras stores data on parachains and parathreads.
//
// It tracks which paras are parachains, what their current head data is, what
// their validation code is, and what their past and upcoming validation code is.
// A para is not live until it is registered and activated here, and activation
// only happens at session boundaries.
//
// Everything is a function of the relay-chain block number handed in by the
// host, so replicas replaying the same blocks end up with identical state.
package paras

import (
	"slices"

	"github.com/google/btree"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/paras/paras/parascfg"
)

// paraState is everything stored for one para.
type paraState struct {
	id ParaId

	head    HeadData
	hasHead bool

	currentCode    ValidationCode
	hasCurrentCode bool

	pastCodeMeta *PastCodeMeta
	// past code keyed by the block number at which it was replaced
	pastCode map[uint64]ValidationCode

	futureCodeUpgradeAt *uint64
	futureCode          ValidationCode

	upcomingGenesis *GenesisArgs
}

func (s *paraState) empty() bool {
	return !s.hasHead &&
		!s.hasCurrentCode &&
		s.pastCodeMeta == nil &&
		len(s.pastCode) == 0 &&
		s.futureCodeUpgradeAt == nil &&
		s.upcomingGenesis == nil
}

func lessParaState(a, b *paraState) bool {
	return a.id < b.id
}

// Module is the paras state of a relay chain. It is driven by the host once
// per block (OnBlockStart), on every included para block (OnHeadAdvance) and
// once per session (OnSessionChange). Not safe for concurrent use.
type Module struct {
	config parascfg.Config
	logger log.Logger

	blockNum uint64
	paras    *btree.BTreeG[*paraState]

	// All parachains, ascending. Parathreads are not included.
	parachains []ParaId
	// Paras with past code to prune and the relay-chain block at which the
	// replacement was noted, ascending by block. Multiple entries per para
	// are allowed.
	pastCodePruning []PruningTask
	// Paras to onboard at the next session, ascending, each with an entry in
	// upcomingGenesis.
	upcomingParas []ParaId
	// Paras to clean up at the next session, ascending.
	outgoingParas []ParaId

	pendingUpgrades int
}

func New(config parascfg.Config, genesis Genesis, logger log.Logger) *Module {
	m := newModule(config, logger)
	m.buildGenesis(genesis)
	m.updateMetrics()
	return m
}

func newModule(config parascfg.Config, logger log.Logger) *Module {
	return &Module{
		config: config,
		logger: logger,
		paras:  btree.NewG[*paraState](32, lessParaState),
	}
}

func (m *Module) Config() parascfg.Config {
	return m.config
}

// BlockNumber is the relay-chain block number last reported by the host.
func (m *Module) BlockNumber() uint64 {
	return m.blockNum
}

func (m *Module) para(id ParaId) (*paraState, bool) {
	return m.paras.Get(&paraState{id: id})
}

func (m *Module) paraOrInsert(id ParaId) *paraState {
	if st, ok := m.para(id); ok {
		return st
	}
	st := &paraState{id: id}
	m.paras.ReplaceOrInsert(st)
	return st
}

// release drops the para's entry once nothing is stored for it anymore.
func (m *Module) release(st *paraState) {
	if st.empty() {
		m.paras.Delete(st)
	}
}

// ValidationCodeAt fetches the validation code to be used when validating a
// block in the context of the given relay-chain height. assumeIntermediate,
// if given, tells the lookup to proceed as if an intermediate para block had
// been included with that relay-chain height as its context; it must be
// before at. This may return past, current, or (with certain choices of
// assumeIntermediate) future code.
//
// If at is not within the acceptance period of the current block number, or
// the code was already pruned, the result is absent.
func (m *Module) ValidationCodeAt(id ParaId, at uint64, assumeIntermediate *uint64) (ValidationCode, bool) {
	if assumeIntermediate != nil && at <= *assumeIntermediate {
		m.logger.Trace("[paras] intermediate context not before queried block", "para", id, "at", at, "intermediate", *assumeIntermediate)
		return nil, false
	}

	if window := m.config.AcceptancePeriod + 1; m.blockNum > window && at < m.blockNum-window {
		m.logger.Trace("[paras] queried block outside acceptance period", "para", id, "at", at, "now", m.blockNum)
		return nil, false
	}

	st, ok := m.para(id)
	if !ok {
		return nil, false
	}

	if assumeIntermediate != nil && st.futureCodeUpgradeAt != nil && *st.futureCodeUpgradeAt <= *assumeIntermediate {
		return st.futureCode, true
	}

	var meta PastCodeMeta
	if st.pastCodeMeta != nil {
		meta = *st.pastCodeMeta
	}

	use, ok := meta.CodeAt(at)
	if !ok {
		return nil, false
	}
	if use.Current {
		if !st.hasCurrentCode {
			return nil, false
		}
		return st.currentCode, true
	}

	code, ok := st.pastCode[use.ReplacedAt]
	return code, ok
}

// Parachains are all the registered parachains, ascending.
func (m *Module) Parachains() []ParaId {
	return slices.Clone(m.parachains)
}

func (m *Module) Head(id ParaId) (HeadData, bool) {
	st, ok := m.para(id)
	if !ok || !st.hasHead {
		return nil, false
	}
	return st.head, true
}

func (m *Module) CurrentCode(id ParaId) (ValidationCode, bool) {
	st, ok := m.para(id)
	if !ok || !st.hasCurrentCode {
		return nil, false
	}
	return st.currentCode, true
}

// PastCodeMeta returns a copy of the para's past code metadata, which is
// empty when nothing is tracked.
func (m *Module) PastCodeMeta(id ParaId) PastCodeMeta {
	st, ok := m.para(id)
	if !ok || st.pastCodeMeta == nil {
		return PastCodeMeta{}
	}
	return st.pastCodeMeta.clone()
}

// HasPastCodeMeta tells whether past code metadata is stored for the para.
func (m *Module) HasPastCodeMeta(id ParaId) bool {
	st, ok := m.para(id)
	return ok && st.pastCodeMeta != nil
}

// PastCode is the code of the para that was replaced at the given block.
func (m *Module) PastCode(id ParaId, replacedAt uint64) (ValidationCode, bool) {
	st, ok := m.para(id)
	if !ok {
		return nil, false
	}
	code, ok := st.pastCode[replacedAt]
	return code, ok
}

func (m *Module) PastCodePruning() []PruningTask {
	return slices.Clone(m.pastCodePruning)
}

// FutureCodeUpgradeAt is the block number at which the pending code upgrade
// of the para is expected.
func (m *Module) FutureCodeUpgradeAt(id ParaId) (uint64, bool) {
	st, ok := m.para(id)
	if !ok || st.futureCodeUpgradeAt == nil {
		return 0, false
	}
	return *st.futureCodeUpgradeAt, true
}

func (m *Module) FutureCode(id ParaId) (ValidationCode, bool) {
	st, ok := m.para(id)
	if !ok || st.futureCodeUpgradeAt == nil {
		return nil, false
	}
	return st.futureCode, true
}

func (m *Module) UpcomingParas() []ParaId {
	return slices.Clone(m.upcomingParas)
}

func (m *Module) UpcomingParaGenesis(id ParaId) (GenesisArgs, bool) {
	st, ok := m.para(id)
	if !ok || st.upcomingGenesis == nil {
		return GenesisArgs{}, false
	}
	return *st.upcomingGenesis, true
}

func (m *Module) OutgoingParas() []ParaId {
	return slices.Clone(m.outgoingParas)
}

// insertSorted inserts id into the ascending list unless present. Returns
// false if it was already there.
func insertSorted(list []ParaId, id ParaId) ([]ParaId, bool) {
	i, found := slices.BinarySearch(list, id)
	if found {
		return list, false
	}
	return slices.Insert(list, i, id), true
}

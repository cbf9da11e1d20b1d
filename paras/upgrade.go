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

package paras

import "sort"

// ScheduleCodeUpgrade schedules a future code upgrade of the para, applied
// once a block of the same para executed in the context of a relay-chain block
// with number >= expectedAt is included.
//
// If there is already a scheduled upgrade for the para, this is a no-op.
func (m *Module) ScheduleCodeUpgrade(id ParaId, code ValidationCode, expectedAt uint64) Weight {
	st := m.paraOrInsert(id)
	if st.futureCodeUpgradeAt != nil {
		m.logger.Debug("[paras] code upgrade already scheduled, ignoring", "para", id, "scheduledAt", *st.futureCodeUpgradeAt, "requestedAt", expectedAt)
		return ReadsWrites(1, 0)
	}

	st.futureCodeUpgradeAt = &expectedAt
	st.futureCode = code
	m.pendingUpgrades++
	m.updateMetrics()

	m.logger.Debug("[paras] scheduled code upgrade", "para", id, "expectedAt", expectedAt, "codeHash", code.Hash())
	return ReadsWrites(1, 2)
}

// OnHeadAdvance notes that a para has progressed to a new head, where the new
// head was executed in the context of the relay-chain block relayParent. A
// pending code upgrade is applied if it was expected at or before relayParent;
// otherwise it stays pending, however late that makes it.
func (m *Module) OnHeadAdvance(id ParaId, head HeadData, relayParent uint64) Weight {
	st := m.paraOrInsert(id)
	st.head = head
	st.hasHead = true

	if st.futureCodeUpgradeAt == nil {
		return ReadsWrites(1, 1)
	}

	expectedAt := *st.futureCodeUpgradeAt
	if expectedAt > relayParent {
		return ReadsWrites(1, 1)
	}

	newCode := st.futureCode
	st.futureCodeUpgradeAt = nil
	st.futureCode = nil
	m.pendingUpgrades--

	var priorCode ValidationCode
	if st.hasCurrentCode {
		priorCode = st.currentCode
	}
	st.currentCode = newCode
	st.hasCurrentCode = true

	w := m.notePastCode(st, expectedAt, m.blockNum, priorCode)
	codeUpgradesAppliedCounter.AddUint64(1)
	m.updateMetrics()

	m.logger.Info("[paras] applied code upgrade", "para", id, "expectedAt", expectedAt, "relayParent", relayParent, "now", m.blockNum, "codeHash", newCode.Hash())
	return w.Add(ReadsWrites(3, 1+3))
}

// notePastCode notes the replacement of the code of a para, which occurred in
// the context of relay-chain block at and was noted at block now. The replaced
// code is kept under at and scheduled for pruning once now leaves the
// acceptance period.
func (m *Module) notePastCode(st *paraState, at, now uint64, oldCode ValidationCode) Weight {
	if st.pastCodeMeta == nil {
		st.pastCodeMeta = &PastCodeMeta{}
	}
	st.pastCodeMeta.NoteReplacement(at, now)

	if st.pastCode == nil {
		st.pastCode = make(map[uint64]ValidationCode)
	}
	st.pastCode[at] = oldCode

	// after every task noted at or before now, so equal blocks keep arrival order
	i := sort.Search(len(m.pastCodePruning), func(i int) bool {
		return m.pastCodePruning[i].ActivatedAt > now
	})
	m.pastCodePruning = append(m.pastCodePruning, PruningTask{})
	copy(m.pastCodePruning[i+1:], m.pastCodePruning[i:])
	m.pastCodePruning[i] = PruningTask{Para: st.id, ActivatedAt: now}

	return ReadsWrites(2, 3)
}

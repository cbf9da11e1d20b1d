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

import "slices"

// ScheduleParaInitialize schedules a para to be initialized at the start of
// the next session. Repeated requests before that session are ignored, and so
// are their genesis arguments.
func (m *Module) ScheduleParaInitialize(id ParaId, genesis GenesisArgs) Weight {
	var inserted bool
	m.upcomingParas, inserted = insertSorted(m.upcomingParas, id)
	if !inserted {
		m.logger.Debug("[paras] para already scheduled for initialization", "para", id)
		return ReadsWrites(1, 0)
	}

	st := m.paraOrInsert(id)
	st.upcomingGenesis = &genesis

	m.logger.Debug("[paras] scheduled para initialization", "para", id, "parachain", genesis.Parachain, "codeHash", genesis.ValidationCode.Hash())
	return ReadsWrites(1, 2)
}

// ScheduleParaCleanup schedules a para to be cleaned up at the start of the
// next session.
func (m *Module) ScheduleParaCleanup(id ParaId) Weight {
	var inserted bool
	m.outgoingParas, inserted = insertSorted(m.outgoingParas, id)
	if !inserted {
		m.logger.Debug("[paras] para already scheduled for cleanup", "para", id)
		return ReadsWrites(1, 0)
	}

	m.logger.Debug("[paras] scheduled para cleanup", "para", id)
	return ReadsWrites(1, 1)
}

// OnSessionChange is called by the host at the first block of a new session.
// Outgoing paras are cleaned up before incoming ones are applied, so a para
// that is both leaving and arriving ends up onboarded afresh.
func (m *Module) OnSessionChange(now uint64) Weight {
	m.blockNum = now

	outgoing, incoming := len(m.outgoingParas), len(m.upcomingParas)
	parachains, w := m.cleanUpOutgoing(now)
	parachains, wIn := m.applyIncoming(parachains)
	m.parachains = parachains
	m.updateMetrics()

	m.logger.Info("[paras] new session", "now", now, "outgoing", outgoing, "incoming", incoming, "parachains", len(parachains))
	return w.Add(wIn).Add(ReadsWrites(0, 1))
}

// cleanUpOutgoing cleans up all outgoing paras and returns the new parachain
// list.
func (m *Module) cleanUpOutgoing(now uint64) ([]ParaId, Weight) {
	parachains := slices.Clone(m.parachains)
	outgoing := m.outgoingParas
	m.outgoingParas = nil

	w := ReadsWrites(2, 1)
	for _, id := range outgoing {
		if i, found := slices.BinarySearch(parachains, id); found {
			parachains = slices.Delete(parachains, i, i+1)
		}

		w = w.Add(ReadsWrites(1, 3))
		st, ok := m.para(id)
		if !ok {
			continue
		}

		st.head = nil
		st.hasHead = false
		if st.futureCodeUpgradeAt != nil {
			st.futureCodeUpgradeAt = nil
			st.futureCode = nil
			m.pendingUpgrades--
		}

		if st.hasCurrentCode {
			removed := st.currentCode
			st.currentCode = nil
			st.hasCurrentCode = false
			w = w.Add(m.notePastCode(st, now, now, removed))
		}
		m.release(st)

		paraOffboardedCounter.AddUint64(1)
		m.logger.Debug("[paras] cleaned up para", "para", id, "now", now)
	}
	return parachains, w
}

// applyIncoming onboards all upcoming paras, adding the parachains among them
// to the given list.
func (m *Module) applyIncoming(parachains []ParaId) ([]ParaId, Weight) {
	upcoming := m.upcomingParas
	m.upcomingParas = nil

	w := ReadsWrites(1, 1)
	for _, id := range upcoming {
		w = w.Add(ReadsWrites(1, 1))
		st, ok := m.para(id)
		if !ok || st.upcomingGenesis == nil {
			continue
		}
		genesis := *st.upcomingGenesis
		st.upcomingGenesis = nil

		if genesis.Parachain {
			parachains, _ = insertSorted(parachains, id)
		}

		st.head = genesis.GenesisHead
		st.hasHead = true
		st.currentCode = genesis.ValidationCode
		st.hasCurrentCode = true
		w = w.Add(ReadsWrites(0, 2))

		paraOnboardedCounter.AddUint64(1)
		m.logger.Debug("[paras] onboarded para", "para", id, "parachain", genesis.Parachain, "codeHash", genesis.ValidationCode.Hash())
	}
	return parachains, w
}

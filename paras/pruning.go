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

// OnBlockStart is called by the host at the start of every relay-chain block.
// It prunes past code whose acceptance period has fully elapsed.
func (m *Module) OnBlockStart(now uint64) Weight {
	m.blockNum = now
	w := m.pruneOldCode(now)
	m.updateMetrics()
	return w
}

// pruneOldCode drops past code noted at or before now - (acceptance period + 1).
// Nothing is pruned until the chain is past the first acceptance period.
func (m *Module) pruneOldCode(now uint64) Weight {
	acceptancePeriod := m.config.AcceptancePeriod
	if now <= acceptancePeriod {
		return ReadsWrites(1, 0)
	}

	// The block at which a replacement was noted counts towards the acceptance
	// period, hence the +1.
	pruningHeight := now - (acceptancePeriod + 1)

	// The queue is ascending by ActivatedAt so the due tasks are a prefix.
	due := sort.Search(len(m.pastCodePruning), func(i int) bool {
		return m.pastCodePruning[i].ActivatedAt > pruningHeight
	})
	if due == 0 {
		return ReadsWrites(1, 0)
	}

	tasks := m.pastCodePruning[:due]
	for _, task := range tasks {
		m.prunePara(task.Para, pruningHeight)
	}
	m.pastCodePruning = append(m.pastCodePruning[:0:0], m.pastCodePruning[due:]...)

	n := uint64(len(tasks))
	return ReadsWrites(1+n, 2*n)
}

func (m *Module) prunePara(id ParaId, pruningHeight uint64) {
	st, ok := m.para(id)
	if !ok || st.pastCodeMeta == nil {
		return
	}

	for _, replacedAt := range st.pastCodeMeta.PruneUpTo(pruningHeight) {
		if _, ok := st.pastCode[replacedAt]; ok {
			delete(st.pastCode, replacedAt)
			pastCodePrunedCounter.AddUint64(1)
		}
		m.logger.Debug("[paras] pruned past code", "para", id, "replacedAt", replacedAt, "pruningHeight", pruningHeight)
	}

	// The meta is only kept while there is something left to prune, or while
	// the para is live and needs LastPruned to answer lookups.
	if _, ok := st.pastCodeMeta.MostRecentChange(); !ok && !st.hasHead {
		st.pastCodeMeta = nil
		m.logger.Debug("[paras] dropped past code meta of offboarded para", "para", id)
	}
	m.release(st)
}

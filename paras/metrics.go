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

import "github.com/erigontech/paras/metrics"

var (
	parachainsGauge            = metrics.GetOrCreateGauge("paras_parachains", "Number of live parachains")
	pastCodePruningGauge       = metrics.GetOrCreateGauge("paras_past_code_pruning_queue", "Number of pending past code pruning tasks")
	pendingUpgradesGauge       = metrics.GetOrCreateGauge("paras_pending_upgrades", "Number of scheduled code upgrades not yet applied")
	upcomingParasGauge         = metrics.GetOrCreateGauge("paras_upcoming", "Number of paras to onboard at the next session")
	outgoingParasGauge         = metrics.GetOrCreateGauge("paras_outgoing", "Number of paras to clean up at the next session")
	codeUpgradesAppliedCounter = metrics.GetOrCreateCounter("paras_code_upgrades_applied", "Code upgrades applied")
	pastCodePrunedCounter      = metrics.GetOrCreateCounter("paras_past_code_pruned", "Past code blobs pruned")
	paraOnboardedCounter       = metrics.GetOrCreateCounter("paras_onboarded", "Paras onboarded at session boundaries")
	paraOffboardedCounter      = metrics.GetOrCreateCounter("paras_offboarded", "Paras cleaned up at session boundaries")
)

func (m *Module) updateMetrics() {
	parachainsGauge.SetInt(len(m.parachains))
	pastCodePruningGauge.SetInt(len(m.pastCodePruning))
	pendingUpgradesGauge.SetInt(m.pendingUpgrades)
	upcomingParasGauge.SetInt(len(m.upcomingParas))
	outgoingParasGauge.SetInt(len(m.outgoingParas))
}

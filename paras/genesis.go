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

// GenesisPara is a para that is live from the genesis block.
type GenesisPara struct {
	Id   ParaId      `yaml:"id"`
	Args GenesisArgs `yaml:",inline"`
}

// Genesis is the initial paras state of a relay chain.
type Genesis struct {
	Paras []GenesisPara `yaml:"paras"`
}

func (m *Module) buildGenesis(genesis Genesis) {
	var parachains []ParaId
	for _, p := range genesis.Paras {
		if p.Args.Parachain {
			parachains = append(parachains, p.Id)
		}
	}
	slices.Sort(parachains)
	m.parachains = slices.Compact(parachains)

	for _, p := range genesis.Paras {
		m.logger.Info("[paras] initializing genesis para", "para", p.Id, "parachain", p.Args.Parachain, "codeHash", p.Args.ValidationCode.Hash())
		st := m.paraOrInsert(p.Id)
		st.currentCode = p.Args.ValidationCode
		st.hasCurrentCode = true
		st.head = p.Args.GenesisHead
		st.hasHead = true
	}
}

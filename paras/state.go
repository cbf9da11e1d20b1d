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

import (
	"errors"
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"github.com/ledgerwatch/log/v3"
	"github.com/zeebo/blake3"

	"github.com/erigontech/paras/paras/parascfg"
)

var ErrInvalidState = errors.New("invalid paras state")

// Core deterministic encoding, so equal states encode to equal bytes on every
// replica. Nil slices are written as empty ones so a present but empty head or
// code survives a round trip.
var (
	stateEncMode cbor.EncMode
	stateDecMode cbor.DecMode
)

func init() {
	var err error
	encOptions := cbor.CoreDetEncOptions()
	encOptions.NilContainers = cbor.NilContainerAsEmpty
	if stateEncMode, err = encOptions.EncMode(); err != nil {
		panic("paras: cbor encoder initialization failed: " + err.Error())
	}
	if stateDecMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic("paras: cbor decoder initialization failed: " + err.Error())
	}
}

// State is a full snapshot of the paras state at some relay-chain block.
type State struct {
	BlockNumber     uint64        `cbor:"1,keyasint"`
	Parachains      []ParaId      `cbor:"2,keyasint"`
	Paras           []ParaRecord  `cbor:"3,keyasint"`
	PastCodePruning []PruningTask `cbor:"4,keyasint"`
	UpcomingParas   []ParaId      `cbor:"5,keyasint"`
	OutgoingParas   []ParaId      `cbor:"6,keyasint"`
}

// ParaRecord is everything stored for one para. Absent items are nil.
type ParaRecord struct {
	Id                  ParaId          `cbor:"1,keyasint"`
	Head                *HeadData       `cbor:"2,keyasint,omitempty"`
	CurrentCode         *ValidationCode `cbor:"3,keyasint,omitempty"`
	PastCodeMeta        *PastCodeMeta   `cbor:"4,keyasint,omitempty"`
	PastCode            []PastCodeEntry `cbor:"5,keyasint,omitempty"`
	FutureCodeUpgradeAt *uint64         `cbor:"6,keyasint,omitempty"`
	FutureCode          ValidationCode  `cbor:"7,keyasint,omitempty"`
	UpcomingGenesis     *GenesisArgs    `cbor:"8,keyasint,omitempty"`
}

// PastCodeEntry is past code keyed by the block at which it was replaced.
type PastCodeEntry struct {
	ReplacedAt uint64         `cbor:"1,keyasint"`
	Code       ValidationCode `cbor:"2,keyasint"`
}

// Export takes a snapshot of the module state. Paras are ordered by id and
// past code by replacement block, so the snapshot is deterministic.
func (m *Module) Export() *State {
	s := &State{
		BlockNumber:     m.blockNum,
		Parachains:      slices.Clone(m.parachains),
		PastCodePruning: slices.Clone(m.pastCodePruning),
		UpcomingParas:   slices.Clone(m.upcomingParas),
		OutgoingParas:   slices.Clone(m.outgoingParas),
	}

	m.paras.Ascend(func(st *paraState) bool {
		rec := ParaRecord{Id: st.id}
		if st.hasHead {
			head := slices.Clone(st.head)
			rec.Head = &head
		}
		if st.hasCurrentCode {
			code := slices.Clone(st.currentCode)
			rec.CurrentCode = &code
		}
		if st.pastCodeMeta != nil {
			meta := st.pastCodeMeta.clone()
			rec.PastCodeMeta = &meta
		}
		for replacedAt, code := range st.pastCode {
			rec.PastCode = append(rec.PastCode, PastCodeEntry{ReplacedAt: replacedAt, Code: slices.Clone(code)})
		}
		slices.SortFunc(rec.PastCode, func(a, b PastCodeEntry) int {
			switch {
			case a.ReplacedAt < b.ReplacedAt:
				return -1
			case a.ReplacedAt > b.ReplacedAt:
				return 1
			}
			return 0
		})
		if st.futureCodeUpgradeAt != nil {
			at := *st.futureCodeUpgradeAt
			rec.FutureCodeUpgradeAt = &at
			rec.FutureCode = slices.Clone(st.futureCode)
		}
		if st.upcomingGenesis != nil {
			g := *st.upcomingGenesis
			rec.UpcomingGenesis = &g
		}
		s.Paras = append(s.Paras, rec)
		return true
	})
	return s
}

// Restore rebuilds a module from a snapshot taken by Export.
func Restore(config parascfg.Config, s *State, logger log.Logger) (*Module, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	m := newModule(config, logger)
	m.blockNum = s.BlockNumber
	m.parachains = slices.Clone(s.Parachains)
	m.pastCodePruning = slices.Clone(s.PastCodePruning)
	m.upcomingParas = slices.Clone(s.UpcomingParas)
	m.outgoingParas = slices.Clone(s.OutgoingParas)

	for _, rec := range s.Paras {
		st := &paraState{id: rec.Id}
		if rec.Head != nil {
			st.head = slices.Clone(*rec.Head)
			st.hasHead = true
		}
		if rec.CurrentCode != nil {
			st.currentCode = slices.Clone(*rec.CurrentCode)
			st.hasCurrentCode = true
		}
		if rec.PastCodeMeta != nil {
			meta := rec.PastCodeMeta.clone()
			st.pastCodeMeta = &meta
		}
		if len(rec.PastCode) > 0 {
			st.pastCode = make(map[uint64]ValidationCode, len(rec.PastCode))
			for _, e := range rec.PastCode {
				st.pastCode[e.ReplacedAt] = slices.Clone(e.Code)
			}
		}
		if rec.FutureCodeUpgradeAt != nil {
			at := *rec.FutureCodeUpgradeAt
			st.futureCodeUpgradeAt = &at
			st.futureCode = slices.Clone(rec.FutureCode)
			m.pendingUpgrades++
		}
		if rec.UpcomingGenesis != nil {
			g := *rec.UpcomingGenesis
			st.upcomingGenesis = &g
		}
		if st.empty() {
			continue
		}
		m.paras.ReplaceOrInsert(st)
	}

	m.updateMetrics()
	logger.Debug("[paras] restored state", "blockNum", s.BlockNumber, "paras", m.paras.Len(), "parachains", len(m.parachains))
	return m, nil
}

func (s *State) validate() error {
	if !strictlyAscending(s.Parachains) {
		return fmt.Errorf("%w: parachains not strictly ascending", ErrInvalidState)
	}
	if !strictlyAscending(s.UpcomingParas) {
		return fmt.Errorf("%w: upcoming paras not strictly ascending", ErrInvalidState)
	}
	if !strictlyAscending(s.OutgoingParas) {
		return fmt.Errorf("%w: outgoing paras not strictly ascending", ErrInvalidState)
	}
	for i := 1; i < len(s.PastCodePruning); i++ {
		if s.PastCodePruning[i-1].ActivatedAt > s.PastCodePruning[i].ActivatedAt {
			return fmt.Errorf("%w: past code pruning queue not ascending at %d", ErrInvalidState, i)
		}
	}
	for i := 1; i < len(s.Paras); i++ {
		if s.Paras[i-1].Id >= s.Paras[i].Id {
			return fmt.Errorf("%w: para records not strictly ascending at %d", ErrInvalidState, i)
		}
	}
	for _, rec := range s.Paras {
		if rec.PastCodeMeta == nil {
			continue
		}
		times := rec.PastCodeMeta.UpgradeTimes
		for i := 1; i < len(times); i++ {
			if times[i-1].ExpectedAt < times[i].ExpectedAt || times[i-1].ActivatedAt < times[i].ActivatedAt {
				return fmt.Errorf("%w: past code meta of para %d not ordered by recency", ErrInvalidState, rec.Id)
			}
		}
	}
	return nil
}

func strictlyAscending(ids []ParaId) bool {
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			return false
		}
	}
	return true
}

// Encode serializes the state with deterministic CBOR.
func (s *State) Encode() ([]byte, error) {
	b, err := stateEncMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode paras state: %w", err)
	}
	return b, nil
}

func DecodeState(b []byte) (*State, error) {
	var s State
	if err := stateDecMode.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode paras state: %w", err)
	}
	return &s, nil
}

// Root is the blake3 digest of the encoded state. Replicas that processed the
// same blocks have the same root.
func (s *State) Root() (CodeHash, error) {
	b, err := s.Encode()
	if err != nil {
		return CodeHash{}, err
	}
	return blake3.Sum256(b), nil
}

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
	"testing"

	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/paras/internal/testlog"
)

// busyModule has something in every part of the state.
func busyModule(t *testing.T) *Module {
	m := newTestModule(t,
		parachain(0, ValidationCode{1, 2, 3}),
		parachain(1, ValidationCode{}),
		parathread(2, ValidationCode{2}),
	)
	runToBlock(m, 2)
	m.ScheduleCodeUpgrade(0, ValidationCode{4, 5, 6}, 3)
	m.OnHeadAdvance(0, HeadData{0xaa}, 3)
	m.ScheduleCodeUpgrade(1, ValidationCode{9}, 20)
	m.OnHeadAdvance(1, HeadData{}, 2)
	m.ScheduleParaCleanup(2)
	runToBlock(m, 5, 5)
	m.ScheduleParaInitialize(7, GenesisArgs{GenesisHead: HeadData{7}, ValidationCode: ValidationCode{7}, Parachain: true})
	m.ScheduleParaCleanup(0)
	return m
}

func TestExportRestore(t *testing.T) {
	m := busyModule(t)
	s := m.Export()

	require.Equal(t, uint64(5), s.BlockNumber)
	require.Equal(t, []ParaId{0, 1}, s.Parachains)
	require.Equal(t, []ParaId{7}, s.UpcomingParas)
	require.Equal(t, []ParaId{0}, s.OutgoingParas)
	require.Equal(t, []PruningTask{{0, 2}, {2, 5}}, s.PastCodePruning)
	require.Len(t, s.Paras, 4)

	restored, err := Restore(m.Config(), s, testlog.Logger(t, log.LvlDebug))
	require.NoError(t, err)
	require.Equal(t, m.BlockNumber(), restored.BlockNumber())
	require.Equal(t, m.Parachains(), restored.Parachains())
	require.Equal(t, m.PastCodePruning(), restored.PastCodePruning())
	require.Equal(t, m.PastCodeMeta(0), restored.PastCodeMeta(0))

	code, ok := restored.PastCode(0, 3)
	requireCode(t, ValidationCode{1, 2, 3}, code, ok)
	code, ok = restored.CurrentCode(1)
	require.True(t, ok)
	require.Empty(t, code)
	head, ok := restored.Head(1)
	require.True(t, ok)
	require.Empty(t, head)
	at, ok := restored.FutureCodeUpgradeAt(1)
	require.True(t, ok)
	require.Equal(t, uint64(20), at)
	args, ok := restored.UpcomingParaGenesis(7)
	require.True(t, ok)
	require.Equal(t, ValidationCode{7}, args.ValidationCode)
	require.Equal(t, 1, restored.pendingUpgrades)

	want, err := s.Root()
	require.NoError(t, err)
	got, err := restored.Export().Root()
	require.NoError(t, err)
	require.Equal(t, want, got)

	// the restored module carries on like the exported one
	runToBlock(m, 13, 10)
	runToBlock(restored, 13, 10)
	want, err = m.Export().Root()
	require.NoError(t, err)
	got, err = restored.Export().Root()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestRestoreReplacementsAtSameBlock(t *testing.T) {
	m := newTestModule(t, parachain(0, ValidationCode{1, 2, 3}))
	runToBlock(m, 3)

	// offboarded and onboarded again in the same session, then upgraded at
	// the session block
	m.ScheduleParaCleanup(0)
	m.ScheduleParaInitialize(0, GenesisArgs{GenesisHead: HeadData{1}, ValidationCode: ValidationCode{2}, Parachain: true})
	runToBlock(m, 4, 4)
	m.ScheduleCodeUpgrade(0, ValidationCode{3}, 4)
	m.OnHeadAdvance(0, HeadData{2}, 4)

	require.Equal(t, []ReplacementTimes{{4, 4}, {4, 4}}, m.PastCodeMeta(0).UpgradeTimes)

	b, err := m.Export().Encode()
	require.NoError(t, err)
	decoded, err := DecodeState(b)
	require.NoError(t, err)

	restored, err := Restore(m.Config(), decoded, testlog.Logger(t, log.LvlDebug))
	require.NoError(t, err)
	require.Equal(t, m.PastCodeMeta(0), restored.PastCodeMeta(0))
	require.Equal(t, m.PastCodePruning(), restored.PastCodePruning())
	want, err := m.Export().Root()
	require.NoError(t, err)
	got, err := restored.Export().Root()
	require.NoError(t, err)
	require.Equal(t, want, got)

	code, ok := restored.CurrentCode(0)
	requireCode(t, ValidationCode{3}, code, ok)
}

func TestEncodeDecodeKeepsEmptyItems(t *testing.T) {
	s := busyModule(t).Export()
	b, err := s.Encode()
	require.NoError(t, err)

	decoded, err := DecodeState(b)
	require.NoError(t, err)

	b2, err := decoded.Encode()
	require.NoError(t, err)
	require.Equal(t, b, b2)

	var rec *ParaRecord
	for i := range decoded.Paras {
		if decoded.Paras[i].Id == 1 {
			rec = &decoded.Paras[i]
		}
	}
	require.NotNil(t, rec)
	require.NotNil(t, rec.Head)
	require.NotNil(t, rec.CurrentCode)
}

func TestRootDependsOnState(t *testing.T) {
	a := newTestModule(t, parachain(0, ValidationCode{1}))
	b := newTestModule(t, parachain(0, ValidationCode{1}))

	rootA, err := a.Export().Root()
	require.NoError(t, err)
	rootB, err := b.Export().Root()
	require.NoError(t, err)
	require.Equal(t, rootA, rootB)

	b.OnHeadAdvance(0, HeadData{1}, 0)
	rootB, err = b.Export().Root()
	require.NoError(t, err)
	require.NotEqual(t, rootA, rootB)
}

func TestRestoreRejectsInvalidState(t *testing.T) {
	logger := testlog.Logger(t, log.LvlDebug)
	for _, tc := range []struct {
		name  string
		state State
	}{
		{"unsorted parachains", State{Parachains: []ParaId{2, 1}}},
		{"duplicate upcoming", State{UpcomingParas: []ParaId{1, 1}}},
		{"unsorted outgoing", State{OutgoingParas: []ParaId{3, 2}}},
		{"unsorted pruning", State{PastCodePruning: []PruningTask{{1, 5}, {2, 4}}}},
		{"unsorted paras", State{Paras: []ParaRecord{{Id: 2}, {Id: 1}}}},
		{"meta not by recency", State{Paras: []ParaRecord{{Id: 1, PastCodeMeta: &PastCodeMeta{
			UpgradeTimes: []ReplacementTimes{{10, 12}, {20, 25}},
		}}}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Restore(testConfig(), &tc.state, logger)
			require.ErrorIs(t, err, ErrInvalidState)
		})
	}
}

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

package parasdb

import (
	"context"
	"testing"

	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/paras/internal/testlog"
	"github.com/erigontech/paras/paras"
	"github.com/erigontech/paras/paras/parascfg"
)

func newTestDB(t *testing.T) *DB {
	db, err := Open(Options{InMemory: true}, testlog.Logger(t, log.LvlDebug))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func newTestModule(t *testing.T) *paras.Module {
	cfg, err := parascfg.ConfigByChainName(parascfg.DevChainName)
	require.NoError(t, err)
	genesis := paras.Genesis{Paras: []paras.GenesisPara{
		{Id: 1, Args: paras.GenesisArgs{GenesisHead: paras.HeadData{1}, ValidationCode: paras.ValidationCode{1, 2, 3}, Parachain: true}},
	}}
	return paras.New(cfg, genesis, testlog.Logger(t, log.LvlDebug))
}

func TestWriteReadState(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	m := newTestModule(t)

	m.OnBlockStart(1)
	m.ScheduleCodeUpgrade(1, paras.ValidationCode{4, 5, 6}, 1)
	m.OnHeadAdvance(1, paras.HeadData{2}, 1)
	s := m.Export()
	require.NoError(t, db.WriteState(ctx, s))

	got, err := db.ReadState(ctx, 1)
	require.NoError(t, err)
	wantRoot, err := s.Root()
	require.NoError(t, err)
	gotRoot, err := got.Root()
	require.NoError(t, err)
	require.Equal(t, wantRoot, gotRoot)

	root, err := db.ReadRoot(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, wantRoot, root)

	restored, err := paras.Restore(m.Config(), got, testlog.Logger(t, log.LvlDebug))
	require.NoError(t, err)
	code, ok := restored.PastCode(1, 1)
	require.True(t, ok)
	require.Equal(t, paras.ValidationCode{1, 2, 3}, code)

	_, err = db.ReadState(ctx, 2)
	require.ErrorIs(t, err, ErrStateNotFound)
	_, err = db.ReadRoot(ctx, 2)
	require.ErrorIs(t, err, ErrStateNotFound)
}

func TestLatestState(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	m := newTestModule(t)

	_, err := db.LatestState(ctx)
	require.ErrorIs(t, err, ErrStateNotFound)

	for _, b := range []uint64{1, 2, 300, 4} {
		m.OnBlockStart(b)
		require.NoError(t, db.WriteState(ctx, m.Export()))
	}

	s, err := db.LatestState(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(300), s.BlockNumber)
}

func TestPruneStatesBefore(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	m := newTestModule(t)

	for b := uint64(1); b <= 10; b++ {
		m.OnBlockStart(b)
		require.NoError(t, db.WriteState(ctx, m.Export()))
	}

	n, err := db.PruneStatesBefore(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 6, n)

	blockNums, err := db.BlockNumbers(ctx)
	require.NoError(t, err)
	require.Equal(t, []uint64{7, 8, 9, 10}, blockNums)

	_, err = db.ReadState(ctx, 6)
	require.ErrorIs(t, err, ErrStateNotFound)
	_, err = db.ReadState(ctx, 7)
	require.NoError(t, err)

	n, err = db.PruneStatesBefore(ctx, 7)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestCancelledContext(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, db.WriteState(ctx, newTestModule(t).Export()), context.Canceled)
	_, err := db.ReadState(ctx, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	logger := testlog.Logger(t, log.LvlDebug)

	db, err := Open(Options{Path: dir}, logger)
	require.NoError(t, err)
	m := newTestModule(t)
	m.OnBlockStart(3)
	require.NoError(t, db.WriteState(ctx, m.Export()))
	require.NoError(t, db.Close())

	db, err = Open(Options{Path: dir}, logger)
	require.NoError(t, err)
	defer db.Close()
	s, err := db.LatestState(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), s.BlockNumber)
}

func TestCachedStateIsReplacedOnWrite(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	m := newTestModule(t)

	m.OnBlockStart(1)
	require.NoError(t, db.WriteState(ctx, m.Export()))
	s, err := db.ReadState(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, s.UpcomingParas)

	m.ScheduleParaInitialize(9, paras.GenesisArgs{ValidationCode: paras.ValidationCode{9}})
	require.NoError(t, db.WriteState(ctx, m.Export()))
	s, err = db.ReadState(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []paras.ParaId{9}, s.UpcomingParas)
}

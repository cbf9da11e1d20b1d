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

// Package parasdb persists snapshots of the paras state, one per relay-chain
// block, so a replica can resume or compare its state with others.
package parasdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/paras/metrics"
	"github.com/erigontech/paras/paras"
)

var ErrStateNotFound = errors.New("paras state not found")

var (
	statesWrittenCounter = metrics.GetOrCreateCounter("parasdb_states_written", "Paras state snapshots written")
	statesPrunedCounter  = metrics.GetOrCreateCounter("parasdb_states_pruned", "Paras state snapshots pruned")
)

// key prefixes, followed by the big-endian block number
var (
	statesPrefix = []byte("ParaStates/")
	rootsPrefix  = []byte("ParaStateRoots/")
)

const defaultCacheSize = 16

type Options struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	// CacheSize is the number of decoded states kept in memory. Defaults to
	// 16 when zero.
	CacheSize int
}

// DB stores zstd compressed snapshots. States handed out by the read
// methods may be shared with the cache and must not be modified.
type DB struct {
	db     *badger.DB
	logger log.Logger

	encoder *zstd.Encoder
	decoder *zstd.Decoder
	states  *lru.Cache[uint64, *paras.State]
}

func Open(opts Options, logger log.Logger) (*DB, error) {
	path := opts.Path
	if opts.InMemory {
		path = ""
	}
	bopts := badger.DefaultOptions(path).
		WithInMemory(opts.InMemory).
		WithLogger(badgerLogger{logger})

	cacheSize := opts.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	states, err := lru.New[uint64, *paras.State](cacheSize)
	if err != nil {
		return nil, err
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, err
	}

	db, err := badger.Open(bopts)
	if err != nil {
		encoder.Close()
		decoder.Close()
		return nil, fmt.Errorf("failed to open paras db: %w", err)
	}

	logger.Debug("[parasdb] opened", "path", opts.Path, "inMemory", opts.InMemory, "cacheSize", cacheSize)
	return &DB{
		db:      db,
		logger:  logger,
		encoder: encoder,
		decoder: decoder,
		states:  states,
	}, nil
}

func (db *DB) Close() error {
	db.decoder.Close()
	err := db.encoder.Close()
	if cerr := db.db.Close(); cerr != nil {
		err = cerr
	}
	return err
}

func (db *DB) decodeState(val []byte) (*paras.State, error) {
	raw, err := db.decoder.DecodeAll(val, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress paras state: %w", err)
	}
	return paras.DecodeState(raw)
}

func blockKey(prefix []byte, blockNum uint64) []byte {
	k := make([]byte, len(prefix)+8)
	copy(k, prefix)
	binary.BigEndian.PutUint64(k[len(prefix):], blockNum)
	return k
}

func blockNumFromKey(prefix, k []byte) uint64 {
	return binary.BigEndian.Uint64(k[len(prefix):])
}

// WriteState stores the state snapshot and its root under the snapshot's
// block number, replacing what was there.
func (db *DB) WriteState(ctx context.Context, s *paras.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v, err := s.Encode()
	if err != nil {
		return err
	}
	root, err := s.Root()
	if err != nil {
		return err
	}

	compressed := db.encoder.EncodeAll(v, nil)
	err = db.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(blockKey(statesPrefix, s.BlockNumber), compressed); err != nil {
			return err
		}
		return txn.Set(blockKey(rootsPrefix, s.BlockNumber), root[:])
	})
	if err != nil {
		return fmt.Errorf("failed to write paras state at block %d: %w", s.BlockNumber, err)
	}

	db.states.Remove(s.BlockNumber)

	statesWrittenCounter.AddUint64(1)
	db.logger.Trace("[parasdb] wrote state", "blockNum", s.BlockNumber, "root", root, "size", len(v), "compressed", len(compressed))
	return nil
}

func (db *DB) ReadState(ctx context.Context, blockNum uint64) (*paras.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s, ok := db.states.Get(blockNum); ok {
		return s, nil
	}

	var s *paras.State
	err := db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(statesPrefix, blockNum))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			s, err = db.decodeState(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: block %d", ErrStateNotFound, blockNum)
	}
	if err != nil {
		return nil, err
	}
	db.states.Add(blockNum, s)
	return s, nil
}

func (db *DB) ReadRoot(ctx context.Context, blockNum uint64) (paras.CodeHash, error) {
	if err := ctx.Err(); err != nil {
		return paras.CodeHash{}, err
	}

	var root paras.CodeHash
	err := db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(rootsPrefix, blockNum))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != len(root) {
				return fmt.Errorf("unexpected root length %d", len(val))
			}
			copy(root[:], val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return paras.CodeHash{}, fmt.Errorf("%w: block %d", ErrStateNotFound, blockNum)
	}
	return root, err
}

// LatestState is the snapshot with the highest block number.
func (db *DB) LatestState(ctx context.Context) (*paras.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var s *paras.State
	err := db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = statesPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(blockKey(statesPrefix, ^uint64(0)))
		if !it.ValidForPrefix(statesPrefix) {
			return ErrStateNotFound
		}

		return it.Item().Value(func(val []byte) error {
			var err error
			s, err = db.decodeState(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// BlockNumbers lists the block numbers of all stored snapshots, ascending.
func (db *DB) BlockNumbers(ctx context.Context) ([]uint64, error) {
	var blockNums []uint64
	err := db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = rootsPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(rootsPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			blockNums = append(blockNums, blockNumFromKey(rootsPrefix, it.Item().Key()))
		}
		return nil
	})
	return blockNums, err
}

// PruneStatesBefore deletes all snapshots taken before blockNum and returns
// how many were deleted.
func (db *DB) PruneStatesBefore(ctx context.Context, blockNum uint64) (int, error) {
	var keys [][]byte
	err := db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = rootsPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		end := blockKey(rootsPrefix, blockNum)
		for it.Rewind(); it.ValidForPrefix(rootsPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			k := it.Item().KeyCopy(nil)
			if bytes.Compare(k, end) >= 0 {
				break
			}
			keys = append(keys, k)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	wb := db.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, err
		}
		if err := wb.Delete(blockKey(statesPrefix, blockNumFromKey(rootsPrefix, k))); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("failed to prune paras states before block %d: %w", blockNum, err)
	}

	for _, k := range keys {
		db.states.Remove(blockNumFromKey(rootsPrefix, k))
	}

	statesPrunedCounter.AddInt(len(keys))
	db.logger.Debug("[parasdb] pruned states", "before", blockNum, "count", len(keys))
	return len(keys), nil
}

// badgerLogger routes badger's own logs to the paras logger.
type badgerLogger struct {
	logger log.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error("[parasdb] " + trimNewline(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn("[parasdb] " + trimNewline(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug("[parasdb] " + trimNewline(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace("[parasdb] " + trimNewline(fmt.Sprintf(format, args...)))
}

func trimNewline(s string) string {
	return strings.TrimRight(s, "\n")
}

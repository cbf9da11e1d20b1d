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
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// ParaId identifies a registered para (parachain or parathread).
type ParaId uint32

func (id ParaId) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ValidationCode is the opaque validation logic of a para.
type ValidationCode []byte

func (c ValidationCode) Hash() CodeHash {
	return blake3.Sum256(c)
}

func (c ValidationCode) MarshalText() ([]byte, error) {
	return marshalHex(c), nil
}

func (c *ValidationCode) UnmarshalText(input []byte) error {
	b, err := unmarshalHex(input)
	if err != nil {
		return fmt.Errorf("invalid validation code: %w", err)
	}
	*c = b
	return nil
}

// HeadData is the opaque head state of a para's chain.
type HeadData []byte

func (h HeadData) MarshalText() ([]byte, error) {
	return marshalHex(h), nil
}

func (h *HeadData) UnmarshalText(input []byte) error {
	b, err := unmarshalHex(input)
	if err != nil {
		return fmt.Errorf("invalid head data: %w", err)
	}
	*h = b
	return nil
}

func marshalHex(b []byte) []byte {
	result := make([]byte, len(b)*2+2)
	copy(result, "0x")
	hex.Encode(result[2:], b)
	return result
}

// unmarshalHex accepts hex with or without the 0x prefix.
func unmarshalHex(input []byte) ([]byte, error) {
	s := strings.TrimPrefix(strings.TrimPrefix(string(input), "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return b, nil
}

type CodeHash [32]byte

func (h CodeHash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// TerminalString is used by the logger to print a shortened hash.
func (h CodeHash) TerminalString() string {
	return hex.EncodeToString(h[:3]) + ".." + hex.EncodeToString(h[29:])
}

// GenesisArgs are the arguments used to initialize a para at a session boundary.
type GenesisArgs struct {
	GenesisHead    HeadData       `cbor:"1,keyasint" yaml:"head"`
	ValidationCode ValidationCode `cbor:"2,keyasint" yaml:"code"`
	// True if parachain, false if parathread.
	Parachain bool `cbor:"3,keyasint" yaml:"parachain"`
}

// PruningTask schedules the past code of a para for pruning once the relay-chain
// block at which it was replaced leaves the acceptance period.
type PruningTask struct {
	Para        ParaId `cbor:"1,keyasint"`
	ActivatedAt uint64 `cbor:"2,keyasint"`
}

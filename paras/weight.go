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

import "fmt"

// Weight counts the storage items an operation touched. The host prices it;
// nothing in this package depends on it for correctness.
type Weight struct {
	Reads  uint64
	Writes uint64
}

func ReadsWrites(reads, writes uint64) Weight {
	return Weight{Reads: reads, Writes: writes}
}

func (w Weight) Add(other Weight) Weight {
	return Weight{Reads: w.Reads + other.Reads, Writes: w.Writes + other.Writes}
}

func (w Weight) String() string {
	return fmt.Sprintf("reads=%d writes=%d", w.Reads, w.Writes)
}

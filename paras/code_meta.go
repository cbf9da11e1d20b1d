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

// ReplacementTimes records when a code replacement happened.
type ReplacementTimes struct {
	// ExpectedAt is the relay-chain block number from which the new code is used
	// for validation, from the perspective of the para. It is also the key of the
	// replaced code in the past code store.
	ExpectedAt uint64 `cbor:"1,keyasint"`
	// ActivatedAt is the relay-chain block at which the replacement was noted.
	// The acceptance period is counted from here.
	ActivatedAt uint64 `cbor:"2,keyasint"`
}

// PastCodeMeta tracks previous validation code of a para that is still kept in
// the state.
//
// UpgradeTimes is ordered by recency, most recent first. Both fields are
// strictly descending along the slice.
type PastCodeMeta struct {
	UpgradeTimes []ReplacementTimes `cbor:"1,keyasint"`
	// LastPruned is the highest pruned code replacement, if any.
	LastPruned *uint64 `cbor:"2,keyasint,omitempty"`
}

// UseCodeAt tells which code to use for validating at some block number.
type UseCodeAt struct {
	// Current means the current code of the para.
	Current bool
	// ReplacedAt keys the past code that was replaced at this block. Only
	// meaningful when Current is false.
	ReplacedAt uint64
}

func useCurrent() UseCodeAt { return UseCodeAt{Current: true} }

func useReplacedAt(n uint64) UseCodeAt { return UseCodeAt{ReplacedAt: n} }

// NoteReplacement notes that a replacement occurred at the given block number.
// Callers must not note a replacement older than any already noted one.
func (m *PastCodeMeta) NoteReplacement(at, includedAt uint64) {
	m.UpgradeTimes = append(m.UpgradeTimes, ReplacementTimes{})
	copy(m.UpgradeTimes[1:], m.UpgradeTimes)
	m.UpgradeTimes[0] = ReplacementTimes{ExpectedAt: at, ActivatedAt: includedAt}
}

// CodeAt yields which code should be used to validate at the given block
// number. ok is false when that code is no longer known.
func (m PastCodeMeta) CodeAt(at uint64) (use UseCodeAt, ok bool) {
	// past code is stored under the block number at which it stopped being used
	endPosition := -1
	for i, t := range m.UpgradeTimes {
		if t.ExpectedAt < at {
			endPosition = i
			break
		}
	}

	if endPosition >= 0 {
		if endPosition == 0 {
			// the most recent replacement is before `at`, so the code put in
			// place then is the current one
			return useCurrent(), true
		}
		// endPosition is the replacement that set the code used at `at`; the
		// one before it is where that code got replaced
		return useReplacedAt(m.UpgradeTimes[endPosition-1].ExpectedAt), true
	}

	if m.LastPruned != nil && *m.LastPruned >= at {
		return UseCodeAt{}, false
	}

	// no replacement before `at` and nothing relevant pruned: either there are
	// no entries at all, or all of them are after `at` and the oldest one holds
	// the code
	if len(m.UpgradeTimes) == 0 {
		return useCurrent(), true
	}
	return useReplacedAt(m.UpgradeTimes[len(m.UpgradeTimes)-1].ExpectedAt), true
}

// MostRecentChange is the block at which the most recently tracked code change
// occurred, from the perspective of the para.
func (m PastCodeMeta) MostRecentChange() (uint64, bool) {
	if len(m.UpgradeTimes) == 0 {
		return 0, false
	}
	return m.UpgradeTimes[0].ExpectedAt, true
}

// PruneUpTo prunes all code upgrade logs noted at or before upTo. Code replaced
// at x is used to validate blocks before x, so upTo must be outside of the
// acceptance period.
//
// Returns the block numbers at which the pruned code was replaced, ascending.
func (m *PastCodeMeta) PruneUpTo(upTo uint64) []uint64 {
	pos := -1
	for i, t := range m.UpgradeTimes {
		if t.ActivatedAt <= upTo {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil
	}

	lastPruned := m.UpgradeTimes[pos].ExpectedAt
	m.LastPruned = &lastPruned

	pruned := make([]uint64, 0, len(m.UpgradeTimes)-pos)
	for i := len(m.UpgradeTimes) - 1; i >= pos; i-- {
		pruned = append(pruned, m.UpgradeTimes[i].ExpectedAt)
	}
	if pos == 0 {
		m.UpgradeTimes = nil
	} else {
		m.UpgradeTimes = m.UpgradeTimes[:pos:pos]
	}
	return pruned
}

func (m *PastCodeMeta) clone() PastCodeMeta {
	c := PastCodeMeta{}
	if len(m.UpgradeTimes) > 0 {
		c.UpgradeTimes = append([]ReplacementTimes(nil), m.UpgradeTimes...)
	}
	if m.LastPruned != nil {
		lastPruned := *m.LastPruned
		c.LastPruned = &lastPruned
	}
	return c
}

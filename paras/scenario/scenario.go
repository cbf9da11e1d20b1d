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

// Package scenario replays a scripted sequence of relay-chain blocks against
// the paras module, the way a relay chain host would drive it.
package scenario

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/erigontech/paras/paras"
	"github.com/erigontech/paras/paras/parascfg"
)

var (
	ErrInvalidScenario = errors.New("invalid scenario")
	ErrCodeTooLarge    = errors.New("validation code too large")
	ErrHeadTooLarge    = errors.New("head data too large")
)

// Op names the kind of an event.
type Op string

const (
	OpRegister        Op = "register"
	OpDeregister      Op = "deregister"
	OpScheduleUpgrade Op = "schedule_upgrade"
	OpHead            Op = "head"
	OpCodeAt          Op = "code_at"
)

// Scenario is a genesis and the events of the blocks that follow it.
type Scenario struct {
	Genesis paras.Genesis `yaml:"genesis"`
	// Sessions are the blocks at which a new session starts. When empty, the
	// session length of the config decides.
	Sessions []uint64 `yaml:"sessions"`
	// Until is the last block to run.
	Until  uint64  `yaml:"until"`
	Blocks []Block `yaml:"blocks"`
}

type Block struct {
	Number uint64  `yaml:"number"`
	Events []Event `yaml:"events"`
}

// Event is something that happens during a block, after the block start and
// session hooks ran.
type Event struct {
	Op   Op           `yaml:"op"`
	Para paras.ParaId `yaml:"para"`

	// register, head
	Head paras.HeadData `yaml:"head"`
	// register, schedule_upgrade
	Code      paras.ValidationCode `yaml:"code"`
	Parachain bool                 `yaml:"parachain"`

	// head, schedule_upgrade. Defaults to the parent block.
	RelayParent *uint64 `yaml:"relay_parent"`
	// schedule_upgrade. Defaults to the upgrade target of the relay parent.
	ExpectedAt *uint64 `yaml:"expected_at"`

	// code_at
	At           uint64                `yaml:"at"`
	Intermediate *uint64               `yaml:"intermediate"`
	Expect       *paras.ValidationCode `yaml:"expect"`
	ExpectAbsent bool                  `yaml:"expect_absent"`
}

func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	return &sc, nil
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Validate checks that blocks are ascending and within the scenario, that
// events are well formed, and that blobs fit the configured limits.
func (sc *Scenario) Validate(cfg parascfg.Config) error {
	for _, p := range sc.Genesis.Paras {
		if err := checkSizes(cfg, p.Args.GenesisHead, p.Args.ValidationCode); err != nil {
			return fmt.Errorf("genesis para %d: %w", p.Id, err)
		}
	}

	var prev uint64
	for i, b := range sc.Blocks {
		if b.Number == 0 {
			return fmt.Errorf("%w: block 0 is genesis and has no events", ErrInvalidScenario)
		}
		if i > 0 && b.Number <= prev {
			return fmt.Errorf("%w: block %d after block %d", ErrInvalidScenario, b.Number, prev)
		}
		if b.Number > sc.Until {
			return fmt.Errorf("%w: block %d after the last block %d", ErrInvalidScenario, b.Number, sc.Until)
		}
		prev = b.Number

		for j, ev := range b.Events {
			if err := ev.validate(cfg, b.Number); err != nil {
				return fmt.Errorf("block %d event %d: %w", b.Number, j, err)
			}
		}
	}
	return nil
}

func (ev *Event) validate(cfg parascfg.Config, blockNum uint64) error {
	switch ev.Op {
	case OpRegister:
		return checkSizes(cfg, ev.Head, ev.Code)
	case OpDeregister:
		return nil
	case OpScheduleUpgrade:
		return checkSizes(cfg, nil, ev.Code)
	case OpHead:
		if ev.RelayParent != nil && *ev.RelayParent > blockNum {
			return fmt.Errorf("%w: relay parent %d after block", ErrInvalidScenario, *ev.RelayParent)
		}
		return checkSizes(cfg, ev.Head, nil)
	case OpCodeAt:
		if ev.Expect != nil && ev.ExpectAbsent {
			return fmt.Errorf("%w: code_at expects both code and absence", ErrInvalidScenario)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidScenario, ev.Op)
	}
}

func checkSizes(cfg parascfg.Config, head paras.HeadData, code paras.ValidationCode) error {
	if uint64(len(code)) > cfg.MaxCodeSize.Bytes() {
		return fmt.Errorf("%w: %d > %s", ErrCodeTooLarge, len(code), cfg.MaxCodeSize.HR())
	}
	if uint64(len(head)) > cfg.MaxHeadDataSize.Bytes() {
		return fmt.Errorf("%w: %d > %s", ErrHeadTooLarge, len(head), cfg.MaxHeadDataSize.HR())
	}
	return nil
}

// relayParent of an event in the given block, the parent block unless set.
func (ev *Event) relayParent(blockNum uint64) uint64 {
	if ev.RelayParent != nil {
		return *ev.RelayParent
	}
	if blockNum == 0 {
		return 0
	}
	return blockNum - 1
}

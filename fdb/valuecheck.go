// Copyright 2024 The fdbclient Authors
// This file is part of fdbclient.
//
// fdbclient is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// fdbclient is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with fdbclient. If not, see <http://www.gnu.org/licenses/>.

package fdb

import (
	"bytes"

	"github.com/tidwall/btree"
)

// ValueCheckOutcome is the resolved state of a registered value-check (spec
// §3/§4.6).
type ValueCheckOutcome int8

const (
	ValueCheckUnknown ValueCheckOutcome = iota
	ValueCheckSuccess
	ValueCheckFailed
)

// valueCheck is one registered assertion: "I expect key to hold expected".
type valueCheck struct {
	tag      string
	key      []byte
	expected []byte
	outcome  ValueCheckOutcome
}

func valueCheckLess(a, b valueCheck) bool {
	if a.tag != b.tag {
		return a.tag < b.tag
	}
	return bytes.Compare(a.key, b.key) < 0
}

// valueCheckSet holds a single attempt's registered checks in tag order
// (ordered traversal is what lets GetValueChecksFromPreviousAttempt iterate
// deterministically, spec §4.6).
type valueCheckSet struct {
	tree *btree.BTreeG[valueCheck]
}

func newValueCheckSet() *valueCheckSet {
	return &valueCheckSet{tree: btree.NewBTreeG(valueCheckLess)}
}

func (s *valueCheckSet) add(tag string, key, expected []byte) {
	s.tree.Set(valueCheck{tag: tag, key: append([]byte{}, key...), expected: append([]byte{}, expected...)})
}

// outcomeFor reports the outcome for the first registered check with the
// given tag (ties broken by key order, via tree order).
func (s *valueCheckSet) outcomeFor(tag string) ValueCheckOutcome {
	var found ValueCheckOutcome = ValueCheckUnknown
	s.tree.Ascend(valueCheck{tag: tag}, func(vc valueCheck) bool {
		if vc.tag != tag {
			return false
		}
		found = vc.outcome
		return false
	})
	return found
}

// list returns every check matching the optional tag/outcome filters (empty
// tag or nil outcome mean "any").
func (s *valueCheckSet) list(tagFilter string, outcomeFilter *ValueCheckOutcome) []ValueCheckResult {
	var out []ValueCheckResult
	s.tree.Scan(func(vc valueCheck) bool {
		if tagFilter != "" && vc.tag != tagFilter {
			return true
		}
		if outcomeFilter != nil && vc.outcome != *outcomeFilter {
			return true
		}
		out = append(out, ValueCheckResult{Tag: vc.tag, Key: vc.key, Outcome: vc.outcome})
		return true
	})
	return out
}

// all returns every registered check with its raw expected bytes, for
// commit-time evaluation (unlike list, which produces the caller-facing
// ValueCheckResult shape with no expected value).
func (s *valueCheckSet) all() []valueCheck {
	var out []valueCheck
	s.tree.Scan(func(vc valueCheck) bool {
		out = append(out, vc)
		return true
	})
	return out
}

// setOutcome overwrites (or inserts) a check's recorded outcome.
func (s *valueCheckSet) setOutcome(vc valueCheck) {
	s.tree.Set(vc)
}

// ValueCheckResult is one entry returned from GetValueChecksFromPreviousAttempt.
type ValueCheckResult struct {
	Tag     string
	Key     []byte
	Outcome ValueCheckOutcome
}

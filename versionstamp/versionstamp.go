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

// Package versionstamp implements the 96-bit versionstamp described in
// spec §3: an 8-byte commit version, a 2-byte intra-transaction order, and a
// 2-byte user-assigned suffix, plus the 80-bit wire form some call sites pack
// without the user suffix.
package versionstamp

import (
	"encoding/binary"
	"fmt"
)

// Stamp is a versionstamp, complete or incomplete. A zero-value Stamp is
// incomplete with user version 0 and an all-zero placeholder; it differs from
// NewIncomplete(0), whose placeholder is all 0xff.
type Stamp struct {
	txVersion [8]byte
	order     [2]byte
	user      [2]byte
	complete  bool
}

// NewIncomplete returns a Stamp to be embedded via a versionstamp mutation;
// the database fills in txVersion/order at commit. userVersion disambiguates
// multiple incomplete stamps within one transaction (spec §3). Its 10-byte
// placeholder defaults to all-ones, the canonical incomplete marker (spec
// §6); a transaction embedding this stamp in a real key substitutes its own
// per-attempt random token instead, via NewIncompleteWithToken, so that
// literal 0xFF runs in unrelated application data cannot collide with the
// substitution marker (spec §9).
func NewIncomplete(userVersion uint16) Stamp {
	var s Stamp
	for i := range s.txVersion {
		s.txVersion[i] = 0xff
	}
	for i := range s.order {
		s.order[i] = 0xff
	}
	binary.BigEndian.PutUint16(s.user[:], userVersion)
	s.complete = false
	return s
}

// NewIncompleteWithToken builds an incomplete Stamp around an explicit
// 10-byte placeholder — the shape fdb.Transaction uses, substituting its own
// per-attempt randomly generated token (fdbc.Transaction.VersionstampToken)
// so every stamp created by one attempt shares an identical, collision-
// resistant placeholder (spec §9).
func NewIncompleteWithToken(token [10]byte, userVersion uint16) Stamp {
	var s Stamp
	copy(s.txVersion[:], token[0:8])
	copy(s.order[:], token[8:10])
	binary.BigEndian.PutUint16(s.user[:], userVersion)
	s.complete = false
	return s
}

// NewComplete constructs an already-resolved Stamp, e.g. from a committed
// transaction's 10-byte native stamp plus the caller's user version.
func NewComplete(txVersion uint64, order uint16, userVersion uint16) Stamp {
	var s Stamp
	binary.BigEndian.PutUint64(s.txVersion[:], txVersion)
	binary.BigEndian.PutUint16(s.order[:], order)
	binary.BigEndian.PutUint16(s.user[:], userVersion)
	s.complete = true
	return s
}

// Incomplete reports whether this stamp still awaits commit-time resolution.
func (s Stamp) Incomplete() bool { return !s.complete }

// TxVersion returns the 8-byte commit version. While Incomplete it returns
// the placeholder's first 8 bytes instead, which carry no version.
func (s Stamp) TxVersion() uint64 { return binary.BigEndian.Uint64(s.txVersion[:]) }

// Order returns the 2-byte intra-transaction order. While Incomplete it
// returns the placeholder's last 2 bytes instead, which carry no order.
func (s Stamp) Order() uint16 { return binary.BigEndian.Uint16(s.order[:]) }

// UserVersion returns the 2-byte caller-assigned suffix, present on both
// complete and incomplete stamps.
func (s Stamp) UserVersion() uint16 { return binary.BigEndian.Uint16(s.user[:]) }

// Resolve fills in the database-assigned portion of an incomplete stamp,
// returning the now-complete Stamp. Resolving an already-complete Stamp is a
// programming error and returns an error rather than silently overwriting.
func (s Stamp) Resolve(txVersion uint64, order uint16) (Stamp, error) {
	if s.complete {
		return Stamp{}, fmt.Errorf("versionstamp: already complete")
	}
	out := s
	binary.BigEndian.PutUint64(out.txVersion[:], txVersion)
	binary.BigEndian.PutUint16(out.order[:], order)
	out.complete = true
	return out, nil
}

// Bytes returns the 12-byte wire form (8+2 stamp, 2 user version) used by the
// tuple layer for complete stamps. It fails for an incomplete stamp; the
// tuple layer encodes one of those from Token and UserVersion instead.
func (s Stamp) Bytes() ([]byte, error) {
	if !s.complete {
		return nil, fmt.Errorf("versionstamp: cannot encode incomplete stamp")
	}
	out := make([]byte, 12)
	copy(out[0:8], s.txVersion[:])
	copy(out[8:10], s.order[:])
	copy(out[10:12], s.user[:])
	return out, nil
}

// Token returns the 10-byte placeholder (txVersion||order: all 0xff for
// NewIncomplete, the supplied token for NewIncompleteWithToken) an
// incomplete stamp's bytes look like before resolution: this is exactly what
// a native driver scans for when substituting the real commit version into a
// key or value (spec §3, fdbc.Transaction.VersionstampToken).
func (s Stamp) Token() [10]byte {
	var tok [10]byte
	copy(tok[0:8], s.txVersion[:])
	copy(tok[8:10], s.order[:])
	return tok
}

// Parse decodes a 12-byte wire form into a complete Stamp.
func Parse(b []byte) (Stamp, error) {
	if len(b) != 12 {
		return Stamp{}, fmt.Errorf("versionstamp: expected 12 bytes, got %d", len(b))
	}
	var s Stamp
	copy(s.txVersion[:], b[0:8])
	copy(s.order[:], b[8:10])
	copy(s.user[:], b[10:12])
	s.complete = true
	return s, nil
}

// String renders the textual form "@<hex-tx>-<hex-order>[#<hex-user>]", or
// "@?" with the user suffix (if non-zero) for an incomplete stamp.
func (s Stamp) String() string {
	if !s.complete {
		if s.UserVersion() != 0 {
			return fmt.Sprintf("@?#%04x", s.UserVersion())
		}
		return "@?"
	}
	if s.UserVersion() != 0 {
		return fmt.Sprintf("@%016x-%04x#%04x", s.TxVersion(), s.Order(), s.UserVersion())
	}
	return fmt.Sprintf("@%016x-%04x", s.TxVersion(), s.Order())
}

// Compare orders two Stamps the same way their packed bytes would sort.
// Two incomplete stamps compare by their placeholder bytes and then by user
// version, so incomplete stamps sharing one placeholder order by user version.
func Compare(a, b Stamp) int {
	if a.complete != b.complete {
		// An incomplete stamp has no defined position among complete ones;
		// by convention it sorts after every complete stamp, matching the
		// commit-resolves-to-"at least this large" intuition.
		if !a.complete {
			return 1
		}
		return -1
	}
	for i := 0; i < 8; i++ {
		if d := int(a.txVersion[i]) - int(b.txVersion[i]); d != 0 {
			return sign(d)
		}
	}
	for i := 0; i < 2; i++ {
		if d := int(a.order[i]) - int(b.order[i]); d != 0 {
			return sign(d)
		}
	}
	for i := 0; i < 2; i++ {
		if d := int(a.user[i]) - int(b.user[i]); d != 0 {
			return sign(d)
		}
	}
	return 0
}

func sign(d int) int {
	if d > 0 {
		return 1
	}
	if d < 0 {
		return -1
	}
	return 0
}

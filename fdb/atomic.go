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
	"context"

	"github.com/erigontech/fdbclient/fdbc"
	"github.com/erigontech/fdbclient/versionstamp"
)

// MutationType names the atomic mutation kinds spec §4.4 lists.
type MutationType = fdbc.MutationType

const (
	MutationAdd                       = fdbc.MutationAdd
	MutationBitAnd                    = fdbc.MutationBitAnd
	MutationBitOr                     = fdbc.MutationBitOr
	MutationBitXor                    = fdbc.MutationBitXor
	MutationMin                       = fdbc.MutationMin
	MutationMax                       = fdbc.MutationMax
	MutationCompareAndClear           = fdbc.MutationCompareAndClear
	MutationAppendIfFits              = fdbc.MutationAppendIfFits
	MutationVersionstampedKey         = fdbc.MutationVersionstampedKey
	MutationVersionstampedValue       = fdbc.MutationVersionstampedValue
	MutationSetVersionstampedKeyFixed = fdbc.MutationSetVersionstampedKeyFixed
)

// requiredAPIVersion maps a mutation kind to the API version it first became
// available at, gating AtomicOp per spec §4.4.
func requiredAPIVersion(kind MutationType) int {
	switch kind {
	case MutationVersionstampedKey, MutationVersionstampedValue:
		return apiVersionVersionstampedOps
	case MutationSetVersionstampedKeyFixed:
		return apiVersionSetVersionstampedKey
	default:
		return apiVersionBase
	}
}

// AtomicOp applies an atomic mutation to key with parameter param. Fails
// with ErrInvalidMutationType for an unrecognized kind, or one not available
// at the pinned API version.
func (t *Transaction) AtomicOp(key Key, param []byte, kind MutationType) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	switch kind {
	case MutationAdd, MutationBitAnd, MutationBitOr, MutationBitXor, MutationMin, MutationMax,
		MutationCompareAndClear, MutationAppendIfFits, MutationVersionstampedKey,
		MutationVersionstampedValue, MutationSetVersionstampedKeyFixed:
	default:
		return ErrInvalidMutationType
	}
	if version, set := currentAPIVersion(); set && version < requiredAPIVersion(kind) {
		return ErrInvalidMutationType
	}
	n, err := t.nativeOrErr()
	if err != nil {
		return err
	}
	n.AtomicOp(key, param, kind)
	return nil
}

// CreateVersionStamp returns an incomplete versionstamp.Stamp carrying this
// attempt's placeholder token (spec §4.4's create_version_stamp): every
// stamp produced by the same attempt shares the same 10-byte token, and
// Reset reseeds it.
func (t *Transaction) CreateVersionStamp(userVersion uint16) (versionstamp.Stamp, error) {
	n, err := t.nativeOrErr()
	if err != nil {
		return versionstamp.Stamp{}, err
	}
	return versionstamp.NewIncompleteWithToken(n.VersionstampToken(), userVersion), nil
}

// GetVersionStamp returns the concrete stamp this attempt's commit version
// assigned. It requests and resolves the stamp in the same call, so it
// succeeds only once the transaction has committed; called before Commit it
// returns the driver's error.
func (t *Transaction) GetVersionStamp(ctx context.Context) (versionstamp.Stamp, error) {
	n, err := t.nativeOrErr()
	if err != nil {
		return versionstamp.Stamp{}, err
	}
	fut := n.GetVersionstamp()
	v, err := fut.Get(ctx)
	if err != nil {
		return versionstamp.Stamp{}, wrapNative(err)
	}
	raw := v.([10]byte)
	txVersion := uint64(0)
	for i := 0; i < 8; i++ {
		txVersion = txVersion<<8 | uint64(raw[i])
	}
	order := uint16(raw[8])<<8 | uint16(raw[9])
	return versionstamp.NewComplete(txVersion, order, 0), nil
}

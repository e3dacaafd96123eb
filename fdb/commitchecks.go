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
	"context"

	"github.com/erigontech/fdbclient/fdbc"
)

// evaluateValueChecks implements spec §4.6: immediately before committing,
// re-read every key registered via AddValueCheck this attempt. If every
// actual value matches its expected value, commit proceeds normally.
// Otherwise every check's outcome is recorded (failed for the mismatches,
// success for the matches), the commit is aborted, and a synthetic
// not-committed error is returned so the retry loop tries again — with the
// next attempt able to see exactly these outcomes via
// TestValueCheckFromPreviousAttempt/GetValueChecksFromPreviousAttempt.
func (t *Transaction) evaluateValueChecks(ctx context.Context) error {
	checks := t.ctx.currentChecks.all()
	if len(checks) == 0 {
		return nil
	}

	anyFailed := false
	for _, c := range checks {
		actual, err := t.Get(ctx, c.key)
		if err != nil {
			return err
		}
		outcome := ValueCheckSuccess
		if !bytes.Equal(actual, c.expected) {
			outcome = ValueCheckFailed
			anyFailed = true
		}
		c.outcome = outcome
		t.ctx.currentChecks.setOutcome(c)
	}

	if anyFailed {
		return &Error{Code: fdbc.CodeNotCommitted, Message: "value-check failed"}
	}
	return nil
}

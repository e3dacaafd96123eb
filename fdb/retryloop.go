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
	"errors"
	"fmt"
	"time"

	"github.com/erigontech/fdbclient/fdbc"
)

// runRetryLoop implements spec §4.7: it drives handler through as many
// attempts as needed, each on a fresh Transaction sharing one
// TransactionContext, committing on success in ModeReadWrite and retrying
// through Transaction.OnError whenever the native layer, the commit, or the
// handler's own failure reports a retryable condition.
func (db *Database) runRetryLoop(ctx context.Context, mode Mode, handler func(tx *Transaction) (any, error)) (any, error) {
	rc := newTransactionContext()

	for {
		if rc.Retries > 0 {
			// Pace the retry: the Database-wide limiter keeps concurrent retry
			// loops from spinning in lockstep, then this loop sleeps its own
			// backoff, capped by max_retry_delay.
			if db.opts.RetryBackoffRatePerSecond > 0 {
				if err := db.limiter.Wait(ctx); err != nil {
					return nil, err
				}
			}
			select {
			case <-time.After(db.retryDelay(rc.Retries)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		rc.beginAttempt()

		native, err := db.native.BeginTransaction()
		if err != nil {
			return nil, fmt.Errorf("fdb: begin transaction: %w", err)
		}
		tx := newTransaction(db, native, ctx, rc, db.opts, mode == ModeReadOnly)
		db.applyAttemptOptions(tx)
		db.metrics.AttemptsTotal.Inc()

		result, herr := handler(tx)
		if herr != nil {
			// A handler that raises while a value-check registered in this
			// attempt does not hold (or after one failed in the previous
			// attempt) is treated as a signal to retry, not a fatal
			// application error (spec §4.7.b): the handler likely aborted
			// because it saw stale state, which is exactly what the check
			// caught.
			var checkErr *Error
			failedNow := errors.As(tx.evaluateValueChecks(ctx), &checkErr) && checkErr.Code == fdbc.CodeNotCommitted
			if !failedNow && !rc.hadFailedCheck() {
				tx.Dispose()
				return nil, herr
			}
			onErr := tx.OnError(ctx, &Error{Code: fdbc.CodeNotCommitted, Message: "retry after failed value check"})
			tx.Dispose()
			if onErr != nil {
				return nil, onErr
			}
			db.metrics.RetriesTotal.Inc()
			rc.Retries++
			continue
		}

		if mode == ModeReadOnly {
			tx.Dispose()
			return result, nil
		}

		commitErr := tx.Commit(ctx)
		if commitErr == nil {
			tx.Dispose()
			return result, nil
		}

		if errors.Is(commitErr, ErrTransactionCancelled) || errors.Is(commitErr, ErrOperationNotAllowed) {
			tx.Dispose()
			return nil, commitErr
		}

		onErr := tx.OnError(ctx, commitErr)
		tx.Dispose()
		if onErr != nil {
			return nil, onErr
		}
		db.metrics.RetriesTotal.Inc()
		if fe, ok := commitErr.(*Error); ok && fe.Code == fdbc.CodeNotCommitted {
			db.metrics.ConflictsTotal.Inc()
		}
		rc.Retries++
	}
}

// applyAttemptOptions re-applies the database's sticky per-transaction
// options at the start of every attempt (spec §5: timeout and retry_limit
// reset to their Database defaults after each retry unless the caller's
// handler re-sets them itself).
func (db *Database) applyAttemptOptions(tx *Transaction) {
	if db.opts.TimeoutMillis > 0 {
		_ = tx.SetOption(fdbc.OptionTimeout, encodeOptionInt(db.opts.TimeoutMillis))
	}
	if db.opts.RetryLimit > 0 {
		_ = tx.SetOption(fdbc.OptionRetryLimit, encodeOptionInt(int64(db.opts.RetryLimit)))
	}
	if db.opts.ReadYourWritesDisable {
		_ = tx.SetOption(fdbc.OptionReadYourWritesDisable, nil)
	}
	if db.opts.SnapshotReadYourWrites {
		_ = tx.SetOption(fdbc.OptionSnapshotReadYourWritesDisable, nil)
	}
}

func encodeOptionInt(v int64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

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
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/time/rate"

	"github.com/erigontech/fdbclient/fdbc"
	"github.com/erigontech/fdbclient/internal/clog"
)

// DatabaseOptions are the process-wide defaults every new transaction
// inherits at begin time (spec §5: "not retroactively" — changing these
// after a transaction has begun does not affect it).
//
// SnapshotReadYourWrites, when true, sets OptionSnapshotReadYourWritesDisable
// on every attempt: snapshot reads then stop seeing the transaction's own
// writes.
type DatabaseOptions struct {
	TimeoutMillis             int64   `toml:"timeout"`
	RetryLimit                int     `toml:"retry_limit"`
	MaxRetryDelayMillis       int64   `toml:"max_retry_delay"`
	Tracing                   bool    `toml:"tracing"`
	ReadYourWritesDisable     bool    `toml:"read_your_writes_disable"`
	SnapshotReadYourWrites    bool    `toml:"snapshot_read_your_writes"`
	ReadAccessToSystemKeys    bool    `toml:"read_access_to_system_keys"`
	RetryBackoffRatePerSecond float64 `toml:"retry_backoff_rate_per_second"`
}

// DefaultDatabaseOptions mirrors the native client's own defaults: no
// timeout, no retry limit, a 1-second max retry delay.
func DefaultDatabaseOptions() DatabaseOptions {
	return DatabaseOptions{
		MaxRetryDelayMillis:       1000,
		RetryBackoffRatePerSecond: 100,
	}
}

// LoadDatabaseOptions reads a TOML config file into DatabaseOptions, layered
// on top of DefaultDatabaseOptions for any field the file omits.
func LoadDatabaseOptions(path string) (DatabaseOptions, error) {
	opts := DefaultDatabaseOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return DatabaseOptions{}, fmt.Errorf("fdb: read database options: %w", err)
	}
	if err := toml.Unmarshal(data, &opts); err != nil {
		return DatabaseOptions{}, fmt.Errorf("fdb: parse database options: %w", err)
	}
	return opts, nil
}

// Database is a shared handle over one cluster, underpinned by a
// fdbc.Database native handle. Many concurrent transactions may be created
// from the same Database (spec §5's "shared resources").
type Database struct {
	native  fdbc.Database
	opts    DatabaseOptions
	metrics *Metrics
	limiter *rate.Limiter
	log     *clog.Logger
}

// Open begins using driver to talk to the cluster named by clusterFile
// (driver-specific; fdbc/memdriver treats "" or ":memory:" as an ephemeral
// store).
func Open(driver fdbc.Driver, clusterFile string, opts DatabaseOptions) (*Database, error) {
	native, err := driver.OpenDatabase(clusterFile)
	if err != nil {
		return nil, fmt.Errorf("fdb: open database: %w", err)
	}
	db := &Database{
		native:  native,
		opts:    opts,
		metrics: NewMetrics("fdbclient"),
		// The limiter paces retries across every concurrently running retry
		// loop sharing this Database, so a correlated failure (e.g. a
		// transaction-too-old storm) does not spin every caller in lockstep;
		// it complements, not replaces, each attempt's own max_retry_delay
		// sleep.
		limiter: rate.NewLimiter(rate.Limit(opts.RetryBackoffRatePerSecond), 1),
		log:     clog.New("fdb.database"),
	}
	return db, nil
}

// Metrics returns the Database's Prometheus collectors, for the caller to
// register with its own registry.
func (db *Database) Metrics() *Metrics { return db.metrics }

// Close releases the native database handle.
func (db *Database) Close() { db.native.Close() }

// Mode selects which operations a retry-loop invocation's handler may
// perform (spec §4.7).
type Mode int8

const (
	ModeReadOnly Mode = iota
	ModeReadWrite
)

// Read runs handler in a read-only retry loop: any write/atomic/conflict
// call inside handler fails with ErrOperationNotAllowed, and no commit is
// attempted on success.
func Read(ctx context.Context, db *Database, handler func(tx *Transaction) (any, error)) (any, error) {
	return db.runRetryLoop(ctx, ModeReadOnly, handler)
}

// Write runs handler in a read-write retry loop and commits on success.
func Write(ctx context.Context, db *Database, handler func(tx *Transaction) (any, error)) (any, error) {
	return db.runRetryLoop(ctx, ModeReadWrite, handler)
}

// ReadWrite is an alias for Write kept for call sites that want to name the
// mode explicitly alongside Read, matching the three top-level helpers spec
// §6 names (read/write/read_write).
func ReadWrite(ctx context.Context, db *Database, handler func(tx *Transaction) (any, error)) (any, error) {
	return Write(ctx, db, handler)
}

func (db *Database) retryDelay(attempt int) time.Duration {
	max := time.Duration(db.opts.MaxRetryDelayMillis) * time.Millisecond
	if max <= 0 {
		return 0
	}
	d := time.Duration(attempt) * 10 * time.Millisecond
	if d > max {
		d = max
	}
	return d
}

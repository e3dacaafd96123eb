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
	"github.com/erigontech/fdbclient/fdbc"
	"github.com/erigontech/fdbclient/internal/annotation"
)

// TransactionContext lives across every attempt of one retry-loop
// invocation (spec §3/§4.6): the attempt counter, the previous attempt's
// native error, and the previous attempt's resolved value-check outcomes.
// "Previous" means exactly that — only the immediately prior attempt's
// checks are visible; anything older is discarded at the start of each
// attempt.
type TransactionContext struct {
	Retries       int
	PreviousError fdbc.Code
	hasPrevError  bool

	previousChecks *valueCheckSet // outcomes from the attempt that just finished
	currentChecks  *valueCheckSet // checks registered so far in the in-flight attempt

	annotations *annotation.Set
}

func newTransactionContext() *TransactionContext {
	return &TransactionContext{
		currentChecks: newValueCheckSet(),
	}
}

// AddValueCheck registers an assertion for the in-flight attempt: "key is
// expected to hold expected at commit time" (spec §4.6).
func (c *TransactionContext) AddValueCheck(tag string, key, expected []byte) {
	c.currentChecks.add(tag, key, expected)
}

// TestValueCheckFromPreviousAttempt reports the outcome of the first check
// tagged tag in the attempt that just finished, or ValueCheckUnknown if none
// was registered (including on the very first attempt).
func (c *TransactionContext) TestValueCheckFromPreviousAttempt(tag string) ValueCheckOutcome {
	if c.previousChecks == nil {
		return ValueCheckUnknown
	}
	return c.previousChecks.outcomeFor(tag)
}

// GetValueChecksFromPreviousAttempt lists every check from the prior attempt
// matching the optional tag/outcome filters. Pass "" for tag and nil for
// outcome to mean "any".
func (c *TransactionContext) GetValueChecksFromPreviousAttempt(tag string, outcome *ValueCheckOutcome) []ValueCheckResult {
	if c.previousChecks == nil {
		return nil
	}
	return c.previousChecks.list(tag, outcome)
}

// hadFailedCheck reports whether the just-finished attempt had at least one
// failed value-check — the retry-loop rule that turns an application
// exception into a retry (spec §4.7.b).
func (c *TransactionContext) hadFailedCheck() bool {
	if c.previousChecks == nil {
		return false
	}
	failed := ValueCheckFailed
	return len(c.previousChecks.list("", &failed)) > 0
}

// beginAttempt rotates currentChecks into previousChecks and starts a fresh,
// empty set for the attempt about to run.
func (c *TransactionContext) beginAttempt() {
	c.previousChecks = c.currentChecks
	c.currentChecks = newValueCheckSet()
}

// recordError stashes the native error code this attempt ended with, for
// the next attempt's PreviousError.
func (c *TransactionContext) recordError(code fdbc.Code) {
	c.PreviousError = code
	c.hasPrevError = true
}

// Annotate attaches a tracing note to this context; a no-op unless an
// annotation set was installed. Nothing in this package installs one, with or
// without tracing enabled, so Annotate records nothing.
func (c *TransactionContext) Annotate(key, value string) {
	if c.annotations != nil {
		c.annotations.Note(key, value)
	}
}

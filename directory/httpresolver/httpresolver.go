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

// Package httpresolver is a reference directory.Resolver: it resolves
// logical paths against an HTTP directory-layer metadata service. It exists
// to demonstrate the consumed Resolver contract end to end, not as a
// production directory-layer client (spec §1's non-goals exclude the
// directory layer's on-disk schema and administration tooling).
package httpresolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/erigontech/fdbclient/directory"
	"github.com/erigontech/fdbclient/fdb"
)

// Resolver resolves a path by GETting BaseURL joined with the path
// components (URL-escaped, slash-separated). A 404 response maps to
// directory.ErrNotFound; any other non-2xx status is a resolution error.
type Resolver struct {
	BaseURL string
	client  *retryablehttp.Client
}

// New builds a Resolver against baseURL, retrying transient failures up to
// maxRetries times with the library's default exponential backoff.
func New(baseURL string, maxRetries int) *Resolver {
	client := retryablehttp.NewClient()
	client.RetryMax = maxRetries
	client.HTTPClient.Timeout = DefaultTimeout
	client.Logger = nil
	return &Resolver{BaseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

// Resolve implements directory.Resolver.
func (r *Resolver) Resolve(ctx context.Context, tx *fdb.Transaction, path []string) ([]byte, error) {
	escaped := make([]string, len(path))
	for i, p := range path {
		escaped[i] = url.PathEscape(p)
	}
	target := r.BaseURL + "/" + strings.Join(escaped, "/")

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("httpresolver: build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpresolver: resolve %q: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, directory.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("httpresolver: resolve %q: status %d", target, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpresolver: read response: %w", err)
	}
	return body, nil
}

// HTTPClient returns the underlying http.Client-compatible handle, for
// callers that want to share connection pooling with other calls.
func (r *Resolver) HTTPClient() *http.Client { return r.client.StandardClient() }

// DefaultTimeout is the per-request timeout New's client applies; a shorter
// deadline on ctx still ends a request sooner.
const DefaultTimeout = 10 * time.Second

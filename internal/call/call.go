// Copyright 2026 The txtwire Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package call re-issues failed remote calls up to a fixed ceiling
// and logs the outcome.  Only transient failures are retried; a
// not-found or other terminal status is returned to the caller on
// the first attempt.  There is no backoff between attempts.
package call

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"

	"github.com/txtwire/txtwire/internal/metrics"
)

// Ceiling is the fixed maximum number of retries after the first
// attempt, so an operation that never succeeds issues Ceiling+1
// underlying calls.
const Ceiling = 3

// GiveUpError reports that an operation was abandoned at the retry
// ceiling.  Cause is the error from the final attempt.
type GiveUpError struct {
	Label    string
	Attempts int
	Cause    error
}

func (e *GiveUpError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Label, e.Attempts, e.Cause)
}

func (e *GiveUpError) Unwrap() error { return e.Cause }

// Transient reports whether err is worth retrying.  HTTP 408, 429
// and 5xx count; so do transport-level failures.  Context
// cancellation and any other HTTP status, 404 in particular, are
// terminal.
func Transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusRequestTimeout:
			return true
		case apiErr.Code == http.StatusTooManyRequests:
			return true
		case apiErr.Code >= 500:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Do invokes fn, re-issuing it on transient failure until it
// succeeds or the ceiling is reached.  Returns nil on success, the
// error itself on a terminal failure, and a *GiveUpError once the
// ceiling is exhausted.
func Do(ctx context.Context, label string, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= Ceiling+1; attempt++ {
		metrics.Attempts.WithLabelValues(label).Inc()
		if attempt > 1 {
			metrics.Retries.WithLabelValues(label).Inc()
		}
		err = fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.Printf("%s: succeeded on attempt %d", label, attempt)
			}
			return nil
		}
		if !Transient(err) {
			return err
		}
		log.Printf("%s: attempt %d failed: %v", label, attempt, err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	metrics.GaveUps.WithLabelValues(label).Inc()
	return &GiveUpError{Label: label, Attempts: Ceiling + 1, Cause: err}
}

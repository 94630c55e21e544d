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

// Package api is the facade over the messaging backend's REST API.
// One method per remote operation; user-content fields are encrypted
// before a request body is built, so nothing in this package ever
// puts plaintext content on the wire.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"

	"github.com/txtwire/txtwire/internal/call"
	"github.com/txtwire/txtwire/internal/crypto"
	"github.com/txtwire/txtwire/internal/record"
)

const (
	// The backend's documented per-client request budget.
	requestsPerSecond = 10
	requestBurst      = 20
)

var (
	// ErrNotLoggedIn is returned by every account-scoped method
	// when no session is attached.  No network call is made.
	ErrNotLoggedIn = errors.New("api: not logged in")

	// ErrUnauthorized is returned by Login when the backend
	// rejects the credentials.
	ErrUnauthorized = errors.New("api: invalid credentials")
)

// Client talks to the messaging backend.  Construct with New, then
// attach a session with SetSession before calling account-scoped
// methods.  Safe for concurrent use once the session is attached.
type Client struct {
	base    *url.URL
	hc      *http.Client
	limiter *rate.Limiter
	session record.Session
	coder   *crypto.Coder
}

// New returns a Client for the backend at baseURL.  hc may be nil,
// in which case a client with a 30 second timeout is used.
func New(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parse backend url %q", baseURL)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		base:    u,
		hc:      hc,
		limiter: rate.NewLimiter(requestsPerSecond, requestBurst),
	}, nil
}

// SetSession attaches the account session and its encryption coder.
func (c *Client) SetSession(s record.Session, coder *crypto.Coder) {
	c.session = s
	c.coder = coder
}

// Session returns the attached session.
func (c *Client) Session() record.Session { return c.session }

// ready enforces the no-op contract: account-scoped methods return
// ErrNotLoggedIn, without touching the network, unless both the
// account ID and the encryption coder are present.
func (c *Client) ready() error {
	if c.session.AccountID == "" || c.coder == nil {
		return ErrNotLoggedIn
	}
	return nil
}

// query returns the account-scoping query parameters shared by all
// authenticated endpoints.
func (c *Client) query() url.Values {
	return url.Values{"account_id": {c.session.AccountID}}
}

// do performs one HTTP exchange.  body and out may be nil; non-2xx
// statuses surface as *googleapi.Error so that callers and the retry
// layer can branch on the code.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "encode %s body", path)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return errors.Wrapf(err, "build %s %s", method, path)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return err
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrapf(err, "decode %s response", path)
		}
	}
	return nil
}

// push is the shared path for account-scoped writes: check the
// session, then run the exchange under the retry ceiling.
func (c *Client) push(ctx context.Context, label, method, path string, body interface{}) error {
	if err := c.ready(); err != nil {
		return err
	}
	return call.Do(ctx, label, func(ctx context.Context) error {
		return c.do(ctx, method, path, c.query(), body, nil)
	})
}

// fetch is push's counterpart for account-scoped reads.
func (c *Client) fetch(ctx context.Context, label, path string, query url.Values, out interface{}) error {
	if err := c.ready(); err != nil {
		return err
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("account_id", c.session.AccountID)
	return call.Do(ctx, label, func(ctx context.Context) error {
		return c.do(ctx, http.MethodGet, path, query, nil, out)
	})
}

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

package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"

	"github.com/txtwire/txtwire/internal/call"
)

// LoginResponse is the payload returned by Signup and Login.  The
// salts feed the client-side key derivation; they are opaque to the
// backend.
type LoginResponse struct {
	AccountID   string `json:"account_id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Salt1       string `json:"salt1"`
	Salt2       string `json:"salt2"`
}

type signupRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phone_number"`
}

type loginRequest struct {
	Email    string `json:"username"`
	Password string `json:"password"`
}

// Signup creates a new account and blocks until the backend
// responds.  Does not require a session.
func (c *Client) Signup(ctx context.Context, name, email, password, phoneNumber string) (*LoginResponse, error) {
	var resp LoginResponse
	body := signupRequest{Name: name, Email: email, Password: password, PhoneNumber: phoneNumber}
	if err := c.do(ctx, http.MethodPost, "accounts/signup", nil, body, &resp); err != nil {
		return nil, errors.Wrap(err, "signup")
	}
	return &resp, nil
}

// Login authenticates existing credentials and blocks until the
// backend responds.  Rejected credentials yield ErrUnauthorized; any
// transport failure yields a nil response and the underlying error.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "accounts/login", nil, loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, errors.Wrap(err, "login")
	}
	return &resp, nil
}

// RemoveAccount deletes the account and everything stored under it.
func (c *Client) RemoveAccount(ctx context.Context) error {
	return c.push(ctx, "accounts.remove", http.MethodPost, "accounts/remove", nil)
}

// CleanAccount wipes the account's synchronized rows but keeps the
// account itself, ahead of a full re-upload.
func (c *Client) CleanAccount(ctx context.Context) error {
	return c.push(ctx, "accounts.clean", http.MethodPost, "accounts/clean", nil)
}

// DismissNotification tells the other devices on the account to
// clear their notification for a conversation.
func (c *Client) DismissNotification(ctx context.Context, conversationID int64) error {
	if err := c.ready(); err != nil {
		return err
	}
	query := c.query()
	query.Set("id", strconv.FormatInt(conversationID, 10))
	query.Set("device_id", c.session.DeviceID)
	return call.Do(ctx, "accounts.dismiss", func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, "accounts/dismissed_notification", query, nil, nil)
	})
}

// MediaFolder resolves the account's folder handle in the object
// store.  The blob store calls this lazily and caches the result.
func (c *Client) MediaFolder(ctx context.Context, accountID string) (string, error) {
	if accountID == "" {
		return "", ErrNotLoggedIn
	}
	var resp struct {
		Folder string `json:"folder"`
	}
	err := c.do(ctx, http.MethodGet, "media/folder", url.Values{"account_id": {accountID}}, nil, &resp)
	if err != nil {
		return "", errors.Wrap(err, "resolve media folder")
	}
	if resp.Folder == "" {
		return "", errors.New("backend returned an empty media folder")
	}
	return resp.Folder, nil
}

// StorageToken fetches a short-lived bearer token for the object
// store.  The storehttp package wraps this in an oauth2 token
// source.
func (c *Client) StorageToken(ctx context.Context) (token string, expiry time.Time, err error) {
	if err := c.ready(); err != nil {
		return "", time.Time{}, err
	}
	var resp struct {
		Token     string `json:"token"`
		ExpiresIn int64  `json:"expires_in"`
	}
	if err := c.do(ctx, http.MethodGet, "media/token", c.query(), nil, &resp); err != nil {
		return "", time.Time{}, errors.Wrap(err, "fetch storage token")
	}
	return resp.Token, time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second), nil
}

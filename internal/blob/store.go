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

// Package blob moves encrypted media payloads between the device and
// the object-storage bucket.  Blobs are keyed by the account's media
// folder plus the message ID; payloads are sealed with the account
// key before upload and opened after download, so the bucket only
// ever holds ciphertext.
package blob

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"

	"github.com/txtwire/txtwire/internal/call"
	"github.com/txtwire/txtwire/internal/crypto"
	"github.com/txtwire/txtwire/internal/metrics"
	"github.com/txtwire/txtwire/internal/record"
)

// ErrNotFound reports that the requested blob does not exist in the
// bucket.  It is terminal: a missing blob is never retried.
var ErrNotFound = errors.New("blob: not found")

// Resolver resolves an account's folder handle in the bucket.  The
// api.Client satisfies this.
type Resolver interface {
	MediaFolder(ctx context.Context, accountID string) (string, error)
}

// Store is the object-store client.  Folder handles are resolved
// lazily per account and cached for the life of the Store; a racing
// pair of first transfers costs at worst one redundant resolution.
// Safe for concurrent use.
type Store struct {
	bucket   string
	hc       *http.Client
	resolver Resolver
	coder    *crypto.Coder

	mu      sync.Mutex
	folders map[string]string
}

// New returns a Store for the bucket at bucketURL, for example
// https://firebasestorage.googleapis.com/v0/b/txtwire-media.  hc
// must carry the storage bearer credentials (see storehttp).
func New(bucketURL string, hc *http.Client, resolver Resolver, coder *crypto.Coder) (*Store, error) {
	if _, err := url.Parse(bucketURL); err != nil {
		return nil, errors.Wrapf(err, "parse bucket url %q", bucketURL)
	}
	return &Store{
		bucket:   strings.TrimSuffix(bucketURL, "/"),
		hc:       hc,
		resolver: resolver,
		coder:    coder,
		folders:  make(map[string]string),
	}, nil
}

// folder returns the cached folder handle for the account, resolving
// it on first use.  Resolution failure fails the transfer before any
// bucket call is made.
func (s *Store) folder(ctx context.Context, accountID string) (string, error) {
	if accountID == "" {
		return "", errors.New("blob: no account")
	}
	s.mu.Lock()
	if f, ok := s.folders[accountID]; ok {
		s.mu.Unlock()
		return f, nil
	}
	s.mu.Unlock()

	f, err := s.resolver.MediaFolder(ctx, accountID)
	if err != nil {
		return "", errors.Wrap(err, "resolve media folder")
	}
	s.mu.Lock()
	s.folders[accountID] = f
	s.mu.Unlock()
	return f, nil
}

func (s *Store) objectURL(folder string, blobID int64) string {
	object := folder + "/" + strconv.FormatInt(blobID, 10)
	return s.bucket + "/o/" + url.PathEscape(object)
}

// Upload seals plaintext with the account key and writes it to the
// bucket under the account's folder and the blob ID.  Transient
// failures are retried to the ceiling; the returned error is nil,
// terminal, or a *call.GiveUpError.
func (s *Store) Upload(ctx context.Context, session record.Session, blobID int64, plaintext []byte) error {
	folder, err := s.folder(ctx, session.AccountID)
	if err != nil {
		return err
	}
	ciphertext, err := s.coder.Encrypt(plaintext)
	if err != nil {
		return errors.Wrap(err, "seal blob")
	}

	u := s.objectURL(folder, blobID)
	err = call.Do(ctx, "blob.upload", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(ciphertext))
		if err != nil {
			return errors.Wrap(err, "build upload request")
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		resp, err := s.hc.Do(req)
		if err != nil {
			return errors.Wrapf(err, "upload blob %d", blobID)
		}
		defer resp.Body.Close()
		return googleapi.CheckResponse(resp)
	})
	if err != nil {
		return err
	}
	metrics.BlobBytesUp.Add(float64(len(ciphertext)))
	return nil
}

// Download fetches a blob, opens it with the account key and writes
// the plaintext to dst atomically.  A missing blob returns
// ErrNotFound on the first attempt; transient failures are retried
// to the ceiling.  On failure nothing is written at dst.
func (s *Store) Download(ctx context.Context, session record.Session, blobID int64, dst string) error {
	folder, err := s.folder(ctx, session.AccountID)
	if err != nil {
		return err
	}

	u := s.objectURL(folder, blobID) + "?alt=media"
	var ciphertext []byte
	err = call.Do(ctx, "blob.download", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return errors.Wrap(err, "build download request")
		}
		resp, err := s.hc.Do(req)
		if err != nil {
			return errors.Wrapf(err, "download blob %d", blobID)
		}
		defer resp.Body.Close()
		if err := googleapi.CheckResponse(resp); err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
				return errors.Wrapf(ErrNotFound, "blob %d", blobID)
			}
			return err
		}
		ciphertext, err = io.ReadAll(resp.Body)
		return errors.Wrapf(err, "read blob %d", blobID)
	})
	if err != nil {
		return err
	}
	metrics.BlobBytesDown.Add(float64(len(ciphertext)))

	plaintext, err := s.coder.Decrypt(ciphertext)
	if err != nil {
		return errors.Wrapf(err, "open blob %d", blobID)
	}

	tmp := dst + ".partial"
	if err := os.WriteFile(tmp, plaintext, 0600); err != nil {
		return errors.Wrapf(err, "write blob %d", blobID)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "finalize blob %d", blobID)
	}
	return nil
}

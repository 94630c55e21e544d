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

// Package sync moves the full account state between the local store
// and the backend.  Upload pushes everything up after a fresh login on
// the primary device; Restore pulls everything down onto a secondary
// device or after a reinstall.
package sync

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/txtwire/txtwire/internal/blob"
	"github.com/txtwire/txtwire/internal/media"
	"github.com/txtwire/txtwire/internal/persist"
	"github.com/txtwire/txtwire/internal/record"
)

const (
	// Messages travel in batched requests; one request per message
	// would starve against the client rate limiter on any real
	// mailbox.
	uploadBatchSize = 500

	// Remote message listing pages at this size.
	pageSize = 500

	// Parallel blob transfers per sync.
	blobConcurrency = 4
)

// Upload pushes the entire local store to the account: conversations,
// messages, contacts, drafts, blacklists, scheduled messages,
// settings, and the media payloads archived on this device.
func Upload(ctx context.Context, b Backend, db *persist.DB, blobs BlobStore, ar *media.Archive) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	log.Print("Pushing conversations")
	err = tx.ListConversations(ctx, func(v record.Conversation) error {
		return b.AddConversation(ctx, v)
	})
	if err != nil {
		return errors.Wrap(err, "unable to push conversations")
	}

	log.Print("Pushing messages")
	if err := pushMessages(ctx, b, tx); err != nil {
		return errors.Wrap(err, "unable to push messages")
	}

	log.Print("Pushing contacts")
	err = tx.ListContacts(ctx, func(v record.Contact) error {
		return b.AddContact(ctx, v)
	})
	if err != nil {
		return errors.Wrap(err, "unable to push contacts")
	}

	log.Print("Pushing drafts")
	err = tx.ListDrafts(ctx, func(v record.Draft) error {
		return b.AddDraft(ctx, v)
	})
	if err != nil {
		return errors.Wrap(err, "unable to push drafts")
	}

	log.Print("Pushing blacklists")
	err = tx.ListBlacklists(ctx, func(v record.Blacklist) error {
		return b.AddBlacklist(ctx, v)
	})
	if err != nil {
		return errors.Wrap(err, "unable to push blacklists")
	}

	log.Print("Pushing scheduled messages")
	err = tx.ListScheduledMessages(ctx, func(v record.ScheduledMessage) error {
		return b.AddScheduledMessage(ctx, v)
	})
	if err != nil {
		return errors.Wrap(err, "unable to push scheduled messages")
	}

	log.Print("Pushing settings")
	err = tx.ListSettings(ctx, func(s record.Setting) error {
		return b.PushSetting(ctx, s)
	})
	if err != nil {
		return errors.Wrap(err, "unable to push settings")
	}

	log.Print("Pushing media")
	if err := pushBlobs(ctx, b, blobs, tx, ar); err != nil {
		return errors.Wrap(err, "unable to push media")
	}

	if err := tx.WriteSyncPoint(ctx, time.Now().UnixMilli()); err != nil {
		return err
	}
	return tx.Commit()
}

// pushMessages streams message rows into batched upload requests.
func pushMessages(ctx context.Context, b Backend, tx *persist.Tx) error {
	grp, ctx := errgroup.WithContext(ctx)
	msgs := make(chan record.Message, 1000)

	grp.Go(func() error {
		defer close(msgs)
		return tx.ListMessages(ctx, func(m record.Message) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msgs <- m:
				return nil
			}
		})
	})
	grp.Go(func() error {
		batch := make([]record.Message, 0, uploadBatchSize)
		for m := range msgs {
			batch = append(batch, m)
			if len(batch) == uploadBatchSize {
				if err := b.AddMessages(ctx, batch); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
		return b.AddMessages(ctx, batch)
	})
	return grp.Wait()
}

// pushBlobs uploads the payload of every media message archived on
// this device.  Media that never landed here has nothing to push.
func pushBlobs(ctx context.Context, b Backend, blobs BlobStore, tx *persist.Tx, ar *media.Archive) error {
	session := b.Session()
	grp, ctx := errgroup.WithContext(ctx)
	ids := make(chan record.Message)

	grp.Go(func() error {
		defer close(ids)
		return tx.ListMediaMessages(ctx, func(m record.Message) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ids <- m:
				return nil
			}
		})
	})
	for i := 0; i < blobConcurrency; i++ {
		grp.Go(func() error {
			for m := range ids {
				if !ar.Has(session.AccountID, m.ID) {
					continue
				}
				plaintext, err := os.ReadFile(ar.Dest(session.AccountID, m.ID))
				if err != nil {
					return errors.Wrapf(err, "unable to read media for message %d", m.ID)
				}
				if err := blobs.Upload(ctx, session, m.ID, plaintext); err != nil {
					return errors.Wrapf(err, "unable to upload media for message %d", m.ID)
				}
			}
			return nil
		})
	}
	return grp.Wait()
}

// Restore pulls the account's remote state into the local store, then
// downloads the media payloads not already archived.
func Restore(ctx context.Context, b Backend, db *persist.DB, blobs BlobStore, ar *media.Archive) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	log.Print("Pulling conversations")
	convs, err := b.ListConversations(ctx)
	if err != nil {
		return errors.Wrap(err, "unable to pull conversations")
	}
	for _, v := range convs {
		if err := tx.UpsertConversation(ctx, v); err != nil {
			return err
		}
	}

	log.Print("Pulling messages")
	if err := pullMessages(ctx, b, tx); err != nil {
		return errors.Wrap(err, "unable to pull messages")
	}

	log.Print("Pulling contacts")
	contacts, err := b.ListContacts(ctx)
	if err != nil {
		return errors.Wrap(err, "unable to pull contacts")
	}
	for _, v := range contacts {
		if err := tx.UpsertContact(ctx, v); err != nil {
			return err
		}
	}

	log.Print("Pulling drafts")
	drafts, err := b.ListDrafts(ctx)
	if err != nil {
		return errors.Wrap(err, "unable to pull drafts")
	}
	for _, v := range drafts {
		if err := tx.UpsertDraft(ctx, v); err != nil {
			return err
		}
	}

	log.Print("Pulling blacklists")
	blacklists, err := b.ListBlacklist(ctx)
	if err != nil {
		return errors.Wrap(err, "unable to pull blacklists")
	}
	for _, v := range blacklists {
		if err := tx.UpsertBlacklist(ctx, v); err != nil {
			return err
		}
	}

	log.Print("Pulling scheduled messages")
	scheduled, err := b.ListScheduledMessages(ctx)
	if err != nil {
		return errors.Wrap(err, "unable to pull scheduled messages")
	}
	for _, v := range scheduled {
		if err := tx.UpsertScheduledMessage(ctx, v); err != nil {
			return err
		}
	}

	log.Print("Pulling media")
	if err := pullBlobs(ctx, b, blobs, tx, ar); err != nil {
		return errors.Wrap(err, "unable to pull media")
	}

	if err := tx.WriteSyncPoint(ctx, time.Now().UnixMilli()); err != nil {
		return err
	}
	return tx.Commit()
}

// pullMessages pages through the remote message list and mirrors each
// row locally.
func pullMessages(ctx context.Context, b Backend, tx *persist.Tx) error {
	for offset := 0; ; offset += pageSize {
		page, err := b.ListMessages(ctx, pageSize, offset)
		if err != nil {
			return err
		}
		for _, m := range page {
			if err := tx.UpsertMessage(ctx, m); err != nil {
				return err
			}
		}
		if len(page) < pageSize {
			return nil
		}
	}
}

// pullBlobs downloads the payload of every media message that is not
// already archived on this device.
func pullBlobs(ctx context.Context, b Backend, blobs BlobStore, tx *persist.Tx, ar *media.Archive) error {
	session := b.Session()
	grp, ctx := errgroup.WithContext(ctx)
	ids := make(chan record.Message)

	grp.Go(func() error {
		defer close(ids)
		return tx.ListMediaMessages(ctx, func(m record.Message) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ids <- m:
				return nil
			}
		})
	})
	for i := 0; i < blobConcurrency; i++ {
		grp.Go(func() error {
			for m := range ids {
				if ar.Has(session.AccountID, m.ID) {
					continue
				}
				err := blobs.Download(ctx, session, m.ID, ar.Dest(session.AccountID, m.ID))
				if errors.Is(err, blob.ErrNotFound) {
					// In practice the message list sometimes
					// references payloads that were never uploaded
					// or have expired; skip them.
					log.Printf("media for message %d not in store; skipping", m.ID)
					continue
				}
				if err != nil {
					return errors.Wrapf(err, "unable to download media for message %d", m.ID)
				}
			}
			return nil
		})
	}
	return grp.Wait()
}

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

package sync

// This file declares the interfaces the sync engine consumes.  The
// api and blob packages satisfy them; tests substitute fakes.

import (
	"context"

	"github.com/txtwire/txtwire/internal/record"
)

// RecordPusher uploads local records to the account.
type RecordPusher interface {
	AddConversation(ctx context.Context, v record.Conversation) error
	AddMessages(ctx context.Context, msgs []record.Message) error
	AddContact(ctx context.Context, v record.Contact) error
	AddDraft(ctx context.Context, v record.Draft) error
	AddBlacklist(ctx context.Context, v record.Blacklist) error
	AddScheduledMessage(ctx context.Context, v record.ScheduledMessage) error
	PushSetting(ctx context.Context, s record.Setting) error
}

// RecordLister retrieves the account's records from the backend,
// already decrypted.
type RecordLister interface {
	ListConversations(ctx context.Context) ([]record.Conversation, error)
	ListMessages(ctx context.Context, limit, offset int) ([]record.Message, error)
	ListContacts(ctx context.Context) ([]record.Contact, error)
	ListDrafts(ctx context.Context) ([]record.Draft, error)
	ListBlacklist(ctx context.Context) ([]record.Blacklist, error)
	ListScheduledMessages(ctx context.Context) ([]record.ScheduledMessage, error)
}

// Backend provides all remote account actions available to the sync
// engine.
type Backend interface {
	Session() record.Session
	RecordPusher
	RecordLister
}

// BlobStore moves media payloads to and from the object store.
// Implementations encrypt on the way up and decrypt on the way down.
type BlobStore interface {
	Upload(ctx context.Context, session record.Session, blobID int64, plaintext []byte) error
	Download(ctx context.Context, session record.Session, blobID int64, dst string) error
}

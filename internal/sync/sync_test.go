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

import (
	"context"
	"os"
	"path/filepath"
	stdsync "sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/txtwire/txtwire/internal/blob"
	"github.com/txtwire/txtwire/internal/media"
	"github.com/txtwire/txtwire/internal/persist"
	"github.com/txtwire/txtwire/internal/record"

	_ "github.com/mattn/go-sqlite3"
)

// fakeBackend records pushes and serves canned lists.  Blob workers
// never touch it, so only the blob store needs locking.
type fakeBackend struct {
	session record.Session

	conversations []record.Conversation
	messages      []record.Message
	contacts      []record.Contact
	drafts        []record.Draft
	blacklists    []record.Blacklist
	scheduled     []record.ScheduledMessage
	settings      []record.Setting

	messageBatches int
}

func (f *fakeBackend) Session() record.Session { return f.session }

func (f *fakeBackend) AddConversation(ctx context.Context, v record.Conversation) error {
	f.conversations = append(f.conversations, v)
	return nil
}

func (f *fakeBackend) AddMessages(ctx context.Context, msgs []record.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	f.messageBatches++
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeBackend) AddContact(ctx context.Context, v record.Contact) error {
	f.contacts = append(f.contacts, v)
	return nil
}

func (f *fakeBackend) AddDraft(ctx context.Context, v record.Draft) error {
	f.drafts = append(f.drafts, v)
	return nil
}

func (f *fakeBackend) AddBlacklist(ctx context.Context, v record.Blacklist) error {
	f.blacklists = append(f.blacklists, v)
	return nil
}

func (f *fakeBackend) AddScheduledMessage(ctx context.Context, v record.ScheduledMessage) error {
	f.scheduled = append(f.scheduled, v)
	return nil
}

func (f *fakeBackend) PushSetting(ctx context.Context, s record.Setting) error {
	f.settings = append(f.settings, s)
	return nil
}

func (f *fakeBackend) ListConversations(ctx context.Context) ([]record.Conversation, error) {
	return f.conversations, nil
}

func (f *fakeBackend) ListMessages(ctx context.Context, limit, offset int) ([]record.Message, error) {
	if offset >= len(f.messages) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.messages) {
		end = len(f.messages)
	}
	return f.messages[offset:end], nil
}

func (f *fakeBackend) ListContacts(ctx context.Context) ([]record.Contact, error) {
	return f.contacts, nil
}

func (f *fakeBackend) ListDrafts(ctx context.Context) ([]record.Draft, error) {
	return f.drafts, nil
}

func (f *fakeBackend) ListBlacklist(ctx context.Context) ([]record.Blacklist, error) {
	return f.blacklists, nil
}

func (f *fakeBackend) ListScheduledMessages(ctx context.Context) ([]record.ScheduledMessage, error) {
	return f.scheduled, nil
}

// fakeBlobStore keeps payloads in memory, keyed by blob ID.
type fakeBlobStore struct {
	mu    stdsync.Mutex
	blobs map[int64][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[int64][]byte)}
}

func (f *fakeBlobStore) Upload(ctx context.Context, session record.Session, blobID int64, plaintext []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[blobID] = append([]byte(nil), plaintext...)
	return nil
}

func (f *fakeBlobStore) Download(ctx context.Context, session record.Session, blobID int64, dst string) error {
	f.mu.Lock()
	payload, ok := f.blobs[blobID]
	f.mu.Unlock()
	if !ok {
		return blob.ErrNotFound
	}
	return os.WriteFile(dst, payload, 0600)
}

func testFixtures(t *testing.T) (*persist.DB, *media.Archive) {
	t.Helper()
	dir := t.TempDir()
	db, err := persist.Open(context.Background(), filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("persist.Open() = %v, want nil", err)
	}
	t.Cleanup(func() { db.Close() })
	ar, err := media.New(filepath.Join(dir, "media"))
	if err != nil {
		t.Fatalf("media.New() = %v, want nil", err)
	}
	return db, ar
}

func seedLocal(t *testing.T, db *persist.DB, msgs []record.Message) {
	t.Helper()
	ctx := context.Background()
	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	conv := record.Conversation{ID: 1, Title: "Jane", PhoneNumbers: "555-0100", Timestamp: 100}
	if err := tx.UpsertConversation(ctx, conv); err != nil {
		t.Fatal(err)
	}
	for _, m := range msgs {
		if err := tx.UpsertMessage(ctx, m); err != nil {
			t.Fatal(err)
		}
	}
	if err := tx.UpsertContact(ctx, record.Contact{PhoneNumber: "555-0100", Name: "Jane"}); err != nil {
		t.Fatal(err)
	}
	if err := tx.UpsertDraft(ctx, record.Draft{ID: 1, ConversationID: 1, Data: "wip", MimeType: record.MimeText}); err != nil {
		t.Fatal(err)
	}
	if err := tx.UpsertBlacklist(ctx, record.Blacklist{ID: 1, PhoneNumber: "555-0666"}); err != nil {
		t.Fatal(err)
	}
	if err := tx.UpsertScheduledMessage(ctx, record.ScheduledMessage{ID: 1, To: "555-0100", Data: "later", MimeType: record.MimeText, Timestamp: 500}); err != nil {
		t.Fatal(err)
	}
	if err := tx.WriteSetting(ctx, record.Setting{Key: "base_theme", Type: "string", Value: "dark"}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func TestUploadPushesEverything(t *testing.T) {
	db, ar := testFixtures(t)
	ctx := context.Background()

	msgs := []record.Message{
		{ID: 1, ConversationID: 1, Data: "hi", MimeType: record.MimeText, Timestamp: 10},
		{ID: 2, ConversationID: 1, Data: "photo", MimeType: "image/jpeg", Timestamp: 20},
		{ID: 3, ConversationID: 1, Data: "clip", MimeType: "video/mp4", Timestamp: 30},
	}
	seedLocal(t, db, msgs)

	// Only message 2's payload is archived on this device.
	session := record.Session{AccountID: "acct1", DeviceID: "dev1"}
	if err := os.WriteFile(ar.Dest("acct1", 2), []byte("jpeg-bytes"), 0600); err != nil {
		t.Fatal(err)
	}

	b := &fakeBackend{session: session}
	blobs := newFakeBlobStore()
	if err := Upload(ctx, b, db, blobs, ar); err != nil {
		t.Fatalf("Upload() = %v, want nil", err)
	}

	if len(b.conversations) != 1 || b.conversations[0].Title != "Jane" {
		t.Errorf("pushed conversations = %+v, want one titled Jane", b.conversations)
	}
	if b.messageBatches != 1 {
		t.Errorf("message batches = %d, want 1 for a small mailbox", b.messageBatches)
	}
	if diff := cmp.Diff(msgs, b.messages); diff != "" {
		t.Errorf("pushed messages mismatch (-want +got):\n%s", diff)
	}
	if len(b.contacts) != 1 || len(b.drafts) != 1 || len(b.blacklists) != 1 || len(b.scheduled) != 1 {
		t.Errorf("pushed records = %d contacts, %d drafts, %d blacklists, %d scheduled; want 1 of each",
			len(b.contacts), len(b.drafts), len(b.blacklists), len(b.scheduled))
	}
	if len(b.settings) != 1 || b.settings[0].Key != "base_theme" {
		t.Errorf("pushed settings = %+v, want base_theme", b.settings)
	}

	// Only the archived payload goes up.
	if got, want := string(blobs.blobs[2]), "jpeg-bytes"; got != want {
		t.Errorf("uploaded blob 2 = %q, want %q", got, want)
	}
	if _, ok := blobs.blobs[3]; ok {
		t.Error("uploaded blob 3, but its payload was never on this device")
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	ts, err := tx.LatestSyncPoint(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ts == 0 {
		t.Error("LatestSyncPoint() = 0 after Upload, want a sync point")
	}
}

func TestRestorePullsEverything(t *testing.T) {
	db, ar := testFixtures(t)
	ctx := context.Background()

	session := record.Session{AccountID: "acct1", DeviceID: "dev2"}
	b := &fakeBackend{
		session: session,
		conversations: []record.Conversation{
			{ID: 1, Title: "Jane", PhoneNumbers: "555-0100", Timestamp: 100},
		},
		messages: []record.Message{
			{ID: 1, ConversationID: 1, Data: "hi", MimeType: record.MimeText, Timestamp: 10},
			{ID: 2, ConversationID: 1, Data: "photo", MimeType: "image/jpeg", Timestamp: 20},
			{ID: 3, ConversationID: 1, Data: "clip", MimeType: "video/mp4", Timestamp: 30},
		},
		contacts:   []record.Contact{{PhoneNumber: "555-0100", Name: "Jane"}},
		drafts:     []record.Draft{{ID: 1, ConversationID: 1, Data: "wip", MimeType: record.MimeText}},
		blacklists: []record.Blacklist{{ID: 1, PhoneNumber: "555-0666"}},
		scheduled:  []record.ScheduledMessage{{ID: 1, To: "555-0100", Data: "later", MimeType: record.MimeText, Timestamp: 500}},
	}

	// Message 2 has a payload in the store; message 3 does not, which
	// must not fail the restore.
	blobs := newFakeBlobStore()
	blobs.blobs[2] = []byte("jpeg-bytes")

	if err := Restore(ctx, b, db, blobs, ar); err != nil {
		t.Fatalf("Restore() = %v, want nil", err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()

	n, err := tx.MessageCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("MessageCount() = %d, want 3", n)
	}
	n, err = tx.ConversationCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("ConversationCount() = %d, want 1", n)
	}

	var contacts []record.Contact
	err = tx.ListContacts(ctx, func(v record.Contact) error {
		contacts = append(contacts, v)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(b.contacts, contacts); diff != "" {
		t.Errorf("restored contacts mismatch (-want +got):\n%s", diff)
	}

	if !ar.Has("acct1", 2) {
		t.Error("media for message 2 not archived after Restore")
	}
	payload, err := os.ReadFile(ar.Dest("acct1", 2))
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != "jpeg-bytes" {
		t.Errorf("archived payload = %q, want jpeg-bytes", payload)
	}
	if ar.Has("acct1", 3) {
		t.Error("media for message 3 archived, but the store had no payload")
	}

	ts, err := tx.LatestSyncPoint(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ts == 0 {
		t.Error("LatestSyncPoint() = 0 after Restore, want a sync point")
	}
}

func TestRestoreSkipsArchivedMedia(t *testing.T) {
	db, ar := testFixtures(t)
	ctx := context.Background()

	session := record.Session{AccountID: "acct1", DeviceID: "dev2"}
	b := &fakeBackend{
		session: session,
		messages: []record.Message{
			{ID: 2, ConversationID: 1, Data: "photo", MimeType: "image/jpeg", Timestamp: 20},
		},
	}

	// The payload is already on disk; the store has nothing, so a
	// download attempt would clobber the file with nothing.
	if err := os.WriteFile(ar.Dest("acct1", 2), []byte("already-here"), 0600); err != nil {
		t.Fatal(err)
	}
	blobs := newFakeBlobStore()

	if err := Restore(ctx, b, db, blobs, ar); err != nil {
		t.Fatalf("Restore() = %v, want nil", err)
	}
	payload, err := os.ReadFile(ar.Dest("acct1", 2))
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != "already-here" {
		t.Errorf("archived payload = %q, want untouched already-here", payload)
	}
}

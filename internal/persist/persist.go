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

// Package persist is the local sqlite mirror of the device's
// messaging state.  Rows here hold plaintext; encryption happens at
// the api and blob layers on the way out.
package persist

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/txtwire/txtwire/internal/record"
)

var createTableSql = []string{
	// The conversations table mirrors the device's conversation
	// list.  conversation_id is the device-local identifier, the
	// same value used as the remote row key during sync.
	`
CREATE TABLE IF NOT EXISTS conversations (
conversation_id INTEGER NOT NULL PRIMARY KEY,
color INTEGER NOT NULL,
color_dark INTEGER NOT NULL,
color_light INTEGER NOT NULL,
color_accent INTEGER NOT NULL,
led_color INTEGER NOT NULL,
pinned INTEGER NOT NULL,
read INTEGER NOT NULL,
timestamp INTEGER NOT NULL,
title TEXT NOT NULL,
phone_numbers TEXT NOT NULL,
snippet TEXT NOT NULL,
ringtone TEXT NOT NULL,
id_matcher TEXT NOT NULL,
mute INTEGER NOT NULL,
archive INTEGER NOT NULL,
private_notifications INTEGER NOT NULL
);`,
	// The messages table mirrors the device's message store.
	//
	// Field: mime_type
	//
	//   "text/plain" messages carry their payload in data.  Any
	//   other mime type marks a media message whose payload lives
	//   in the blob store under message_id; data then holds only a
	//   local reference.
	`
CREATE TABLE IF NOT EXISTS messages (
message_id INTEGER NOT NULL PRIMARY KEY,
conversation_id INTEGER NOT NULL,
message_type INTEGER NOT NULL,
data TEXT NOT NULL,
timestamp INTEGER NOT NULL,
mime_type TEXT NOT NULL,
read INTEGER NOT NULL,
seen INTEGER NOT NULL,
message_from TEXT NOT NULL,
color INTEGER NOT NULL,
FOREIGN KEY (conversation_id) REFERENCES conversations (conversation_id)
);`,
	`
CREATE TABLE IF NOT EXISTS contacts (
phone_number TEXT NOT NULL PRIMARY KEY,
name TEXT NOT NULL,
color INTEGER NOT NULL,
color_dark INTEGER NOT NULL,
color_light INTEGER NOT NULL,
color_accent INTEGER NOT NULL
);`,
	`
CREATE TABLE IF NOT EXISTS drafts (
draft_id INTEGER NOT NULL PRIMARY KEY,
conversation_id INTEGER NOT NULL,
data TEXT NOT NULL,
mime_type TEXT NOT NULL
);`,
	`
CREATE TABLE IF NOT EXISTS blacklists (
blacklist_id INTEGER NOT NULL PRIMARY KEY,
phone_number TEXT NOT NULL
);`,
	`
CREATE TABLE IF NOT EXISTS scheduled_messages (
scheduled_id INTEGER NOT NULL PRIMARY KEY,
send_to TEXT NOT NULL,
data TEXT NOT NULL,
mime_type TEXT NOT NULL,
timestamp INTEGER NOT NULL,
title TEXT NOT NULL,
repeat INTEGER NOT NULL
);`,
	// Synchronized preference values, kept in the wire encoding
	// (see record.Setting) so a restore can replay them directly.
	`
CREATE TABLE IF NOT EXISTS settings (
pref TEXT NOT NULL PRIMARY KEY,
type TEXT NOT NULL,
value TEXT NOT NULL
);`,
	// The sync_points table holds the timestamp of each completed
	// sync.  The highest value is the latest point; rows are never
	// updated in place.
	`
CREATE TABLE IF NOT EXISTS sync_points (
timestamp INTEGER NOT NULL,
PRIMARY KEY (timestamp)
);`,
}

type DB struct {
	db *sql.DB
}

type Tx struct {
	tx *sql.Tx
}

func dsnFromPath(path string, addValues url.Values) (string, error) {
	var u *url.URL
	if !strings.HasPrefix(path, "file:") {
		u = &url.URL{Scheme: "file", Path: path}
	} else {
		var err error
		u, err = url.Parse(path)
		if err != nil {
			return "", err
		}
	}
	values := u.Query()
	for k, v := range addValues {
		for _, item := range v {
			values.Add(k, item)
		}
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

func Open(ctx context.Context, path string) (*DB, error) {
	// The _busy_timeout is a SQLite extension that controls how
	// long SQLite will poll before giving up.  The default of 5
	// seconds is too short when a restore and the UI share the
	// database; go with 5 minutes.
	var busyTimeout = int(5*time.Minute) / int(time.Millisecond)

	dsn, err := dsnFromPath(path, url.Values{
		"_busy_timeout": {fmt.Sprintf("%d", busyTimeout)}})
	if err != nil {
		return nil, errors.Wrapf(err,
			"Open(%q) failed: could not form a DB DSN from "+
				"the given path",
			path)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(err,
			"Open(%q) failed: could not open database at %q",
			path, dsn)
	}

	if err = initSchema(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrapf(err,
			"Open(%q) failed: could not initialize the "+
				"database schema", path)
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin transaction failed")
	}
	return &Tx{tx}, nil
}

func (tx *Tx) Commit() error {
	return tx.tx.Commit()
}

func (tx *Tx) Rollback() error {
	return tx.tx.Rollback()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	for _, sql := range createTableSql {
		if _, err := db.ExecContext(ctx, sql); err != nil {
			return errors.Wrapf(err, "while executing %q", sql)
		}
	}
	return nil
}

func (tx *Tx) UpsertConversation(ctx context.Context, v record.Conversation) error {
	const q = `INSERT OR REPLACE INTO conversations
		(conversation_id, color, color_dark, color_light, color_accent,
		 led_color, pinned, read, timestamp, title, phone_numbers,
		 snippet, ringtone, id_matcher, mute, archive, private_notifications)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := tx.tx.ExecContext(ctx, q,
		v.ID, v.Color, v.ColorDark, v.ColorLight, v.ColorAccent,
		v.LEDColor, v.Pinned, v.Read, v.Timestamp, v.Title, v.PhoneNumbers,
		v.Snippet, v.Ringtone, v.IDMatcher, v.Mute, v.Archive, v.Private)
	return errors.Wrap(err, "conversation upsert failed")
}

func (tx *Tx) ListConversations(ctx context.Context, handler func(record.Conversation) error) error {
	const q = `
SELECT conversation_id, color, color_dark, color_light, color_accent,
       led_color, pinned, read, timestamp, title, phone_numbers,
       snippet, ringtone, id_matcher, mute, archive, private_notifications
FROM conversations ORDER BY timestamp DESC`
	rows, err := tx.tx.QueryContext(ctx, q)
	if err != nil {
		return errors.Wrap(err, "db query failed in ListConversations")
	}
	defer rows.Close()

	for rows.Next() {
		var v record.Conversation
		if err := rows.Scan(&v.ID, &v.Color, &v.ColorDark, &v.ColorLight,
			&v.ColorAccent, &v.LEDColor, &v.Pinned, &v.Read, &v.Timestamp,
			&v.Title, &v.PhoneNumbers, &v.Snippet, &v.Ringtone, &v.IDMatcher,
			&v.Mute, &v.Archive, &v.Private); err != nil {
			return errors.Wrap(err, "db scan failed in ListConversations")
		}
		if err := handler(v); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (tx *Tx) UpsertMessage(ctx context.Context, v record.Message) error {
	const q = `INSERT OR REPLACE INTO messages
		(message_id, conversation_id, message_type, data, timestamp,
		 mime_type, read, seen, message_from, color)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := tx.tx.ExecContext(ctx, q,
		v.ID, v.ConversationID, v.Type, v.Data, v.Timestamp,
		v.MimeType, v.Read, v.Seen, v.From, v.Color)
	return errors.Wrap(err, "message upsert failed")
}

func scanMessages(rows *sql.Rows, handler func(record.Message) error) error {
	for rows.Next() {
		var v record.Message
		if err := rows.Scan(&v.ID, &v.ConversationID, &v.Type, &v.Data,
			&v.Timestamp, &v.MimeType, &v.Read, &v.Seen, &v.From, &v.Color); err != nil {
			return errors.Wrap(err, "db scan failed for message row")
		}
		if err := handler(v); err != nil {
			return err
		}
	}
	return rows.Err()
}

const messageColumns = `message_id, conversation_id, message_type, data,
       timestamp, mime_type, read, seen, message_from, color`

func (tx *Tx) ListMessages(ctx context.Context, handler func(record.Message) error) error {
	rows, err := tx.tx.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages ORDER BY timestamp`)
	if err != nil {
		return errors.Wrap(err, "db query failed in ListMessages")
	}
	defer rows.Close()
	return scanMessages(rows, handler)
}

// ListMediaMessages visits only messages whose payload lives in the
// blob store.
func (tx *Tx) ListMediaMessages(ctx context.Context, handler func(record.Message) error) error {
	rows, err := tx.tx.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE mime_type != '' AND mime_type != $1 ORDER BY timestamp`,
		record.MimeText)
	if err != nil {
		return errors.Wrap(err, "db query failed in ListMediaMessages")
	}
	defer rows.Close()
	return scanMessages(rows, handler)
}

func (tx *Tx) UpsertContact(ctx context.Context, v record.Contact) error {
	const q = `INSERT OR REPLACE INTO contacts
		(phone_number, name, color, color_dark, color_light, color_accent)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := tx.tx.ExecContext(ctx, q,
		v.PhoneNumber, v.Name, v.Color, v.ColorDark, v.ColorLight, v.ColorAccent)
	return errors.Wrap(err, "contact upsert failed")
}

func (tx *Tx) ListContacts(ctx context.Context, handler func(record.Contact) error) error {
	rows, err := tx.tx.QueryContext(ctx, `
SELECT phone_number, name, color, color_dark, color_light, color_accent
FROM contacts ORDER BY name`)
	if err != nil {
		return errors.Wrap(err, "db query failed in ListContacts")
	}
	defer rows.Close()

	for rows.Next() {
		var v record.Contact
		if err := rows.Scan(&v.PhoneNumber, &v.Name, &v.Color,
			&v.ColorDark, &v.ColorLight, &v.ColorAccent); err != nil {
			return errors.Wrap(err, "db scan failed in ListContacts")
		}
		if err := handler(v); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (tx *Tx) UpsertDraft(ctx context.Context, v record.Draft) error {
	const q = `INSERT OR REPLACE INTO drafts
		(draft_id, conversation_id, data, mime_type) VALUES ($1, $2, $3, $4)`
	_, err := tx.tx.ExecContext(ctx, q, v.ID, v.ConversationID, v.Data, v.MimeType)
	return errors.Wrap(err, "draft upsert failed")
}

func (tx *Tx) ListDrafts(ctx context.Context, handler func(record.Draft) error) error {
	rows, err := tx.tx.QueryContext(ctx,
		`SELECT draft_id, conversation_id, data, mime_type FROM drafts`)
	if err != nil {
		return errors.Wrap(err, "db query failed in ListDrafts")
	}
	defer rows.Close()

	for rows.Next() {
		var v record.Draft
		if err := rows.Scan(&v.ID, &v.ConversationID, &v.Data, &v.MimeType); err != nil {
			return errors.Wrap(err, "db scan failed in ListDrafts")
		}
		if err := handler(v); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (tx *Tx) UpsertBlacklist(ctx context.Context, v record.Blacklist) error {
	const q = `INSERT OR REPLACE INTO blacklists
		(blacklist_id, phone_number) VALUES ($1, $2)`
	_, err := tx.tx.ExecContext(ctx, q, v.ID, v.PhoneNumber)
	return errors.Wrap(err, "blacklist upsert failed")
}

func (tx *Tx) ListBlacklists(ctx context.Context, handler func(record.Blacklist) error) error {
	rows, err := tx.tx.QueryContext(ctx,
		`SELECT blacklist_id, phone_number FROM blacklists`)
	if err != nil {
		return errors.Wrap(err, "db query failed in ListBlacklists")
	}
	defer rows.Close()

	for rows.Next() {
		var v record.Blacklist
		if err := rows.Scan(&v.ID, &v.PhoneNumber); err != nil {
			return errors.Wrap(err, "db scan failed in ListBlacklists")
		}
		if err := handler(v); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (tx *Tx) UpsertScheduledMessage(ctx context.Context, v record.ScheduledMessage) error {
	const q = `INSERT OR REPLACE INTO scheduled_messages
		(scheduled_id, send_to, data, mime_type, timestamp, title, repeat)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := tx.tx.ExecContext(ctx, q,
		v.ID, v.To, v.Data, v.MimeType, v.Timestamp, v.Title, v.Repeat)
	return errors.Wrap(err, "scheduled message upsert failed")
}

func (tx *Tx) ListScheduledMessages(ctx context.Context, handler func(record.ScheduledMessage) error) error {
	rows, err := tx.tx.QueryContext(ctx, `
SELECT scheduled_id, send_to, data, mime_type, timestamp, title, repeat
FROM scheduled_messages ORDER BY timestamp`)
	if err != nil {
		return errors.Wrap(err, "db query failed in ListScheduledMessages")
	}
	defer rows.Close()

	for rows.Next() {
		var v record.ScheduledMessage
		if err := rows.Scan(&v.ID, &v.To, &v.Data, &v.MimeType,
			&v.Timestamp, &v.Title, &v.Repeat); err != nil {
			return errors.Wrap(err, "db scan failed in ListScheduledMessages")
		}
		if err := handler(v); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (tx *Tx) WriteSetting(ctx context.Context, v record.Setting) error {
	const q = `INSERT OR REPLACE INTO settings (pref, type, value) VALUES ($1, $2, $3)`
	_, err := tx.tx.ExecContext(ctx, q, v.Key, v.Type, v.Value)
	return errors.Wrap(err, "setting upsert failed")
}

func (tx *Tx) ListSettings(ctx context.Context, handler func(record.Setting) error) error {
	rows, err := tx.tx.QueryContext(ctx, `SELECT pref, type, value FROM settings`)
	if err != nil {
		return errors.Wrap(err, "db query failed in ListSettings")
	}
	defer rows.Close()

	for rows.Next() {
		var v record.Setting
		if err := rows.Scan(&v.Key, &v.Type, &v.Value); err != nil {
			return errors.Wrap(err, "db scan failed in ListSettings")
		}
		if err := handler(v); err != nil {
			return err
		}
	}
	return rows.Err()
}

// MessageCount and ConversationCount feed the account stats display.

func (tx *Tx) MessageCount(ctx context.Context) (int, error) {
	return tx.count(ctx, `SELECT COUNT(*) FROM messages`)
}

func (tx *Tx) ConversationCount(ctx context.Context) (int, error) {
	return tx.count(ctx, `SELECT COUNT(*) FROM conversations`)
}

func (tx *Tx) count(ctx context.Context, q string) (int, error) {
	var n int
	if err := tx.tx.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "db count failed")
	}
	return n, nil
}

// LatestSyncPoint returns the timestamp of the last completed sync,
// or zero when no sync has completed yet.
func (tx *Tx) LatestSyncPoint(ctx context.Context) (int64, error) {
	const q = `SELECT timestamp FROM sync_points ORDER BY timestamp DESC LIMIT 1`
	var ts int64
	if err := tx.tx.QueryRowContext(ctx, q).Scan(&ts); err != nil {
		if err == sql.ErrNoRows {
			err = nil // a non-error
		}
		return 0, err
	}
	return ts, nil
}

func (tx *Tx) WriteSyncPoint(ctx context.Context, timestamp int64) error {
	latest, err := tx.LatestSyncPoint(ctx)
	if err != nil {
		return err
	}
	if timestamp <= latest {
		return fmt.Errorf("attempt to decrease the latest sync point")
	}
	_, err = tx.tx.ExecContext(ctx,
		`INSERT INTO sync_points (timestamp) VALUES ($1)`, timestamp)
	return errors.Wrap(err, "db insert failed")
}

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
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/txtwire/txtwire/internal/call"
	"github.com/txtwire/txtwire/internal/record"
)

// Devices.

type addDeviceRequest struct {
	AccountID string        `json:"account_id"`
	Device    record.Device `json:"device"`
}

// AddDevice registers this device under the account and returns the
// server-assigned device ID.
func (c *Client) AddDevice(ctx context.Context, d record.Device) (int64, error) {
	if c.session.AccountID == "" {
		return 0, ErrNotLoggedIn
	}
	var resp struct {
		ID int64 `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "devices/add", c.query(),
		addDeviceRequest{AccountID: c.session.AccountID, Device: d}, &resp)
	if err != nil {
		return 0, errors.Wrap(err, "add device")
	}
	return resp.ID, nil
}

// UpdateDevice changes a device's name, FCM token or primary flag.
func (c *Client) UpdateDevice(ctx context.Context, d record.Device) error {
	if err := c.ready(); err != nil {
		return err
	}
	query := c.query()
	query.Set("name", d.Name)
	query.Set("fcm_token", d.FCMToken)
	query.Set("primary", strconv.FormatBool(d.Primary))
	return call.Do(ctx, "devices.update", func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, fmt.Sprintf("devices/update/%d", d.ID), query, nil, nil)
	})
}

// RemoveDevice unregisters a device from the account.
func (c *Client) RemoveDevice(ctx context.Context, id int64) error {
	return c.push(ctx, "devices.remove", http.MethodPost, fmt.Sprintf("devices/remove/%d", id), nil)
}

// ListDevices returns the account's registered devices.
func (c *Client) ListDevices(ctx context.Context) ([]record.Device, error) {
	var out []record.Device
	if err := c.fetch(ctx, "devices.list", "devices", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Contacts.

func (c *Client) AddContact(ctx context.Context, v record.Contact) error {
	if err := c.ready(); err != nil {
		return err
	}
	sealed, err := c.sealContact(v)
	if err != nil {
		return errors.Wrap(err, "seal contact")
	}
	return c.push(ctx, "contacts.add", http.MethodPost, "contacts/add",
		struct {
			Contacts []record.Contact `json:"contacts"`
		}{[]record.Contact{sealed}})
}

func (c *Client) UpdateContact(ctx context.Context, v record.Contact) error {
	if err := c.ready(); err != nil {
		return err
	}
	sealed, err := c.sealContact(v)
	if err != nil {
		return errors.Wrap(err, "seal contact")
	}
	return c.push(ctx, "contacts.update", http.MethodPost, "contacts/update", sealed)
}

// RemoveContact deletes a contact by its (encrypted) phone number.
func (c *Client) RemoveContact(ctx context.Context, phoneNumber string) error {
	if err := c.ready(); err != nil {
		return err
	}
	enc, err := c.coder.EncryptString(phoneNumber)
	if err != nil {
		return errors.Wrap(err, "seal phone number")
	}
	query := c.query()
	query.Set("phone_number", enc)
	return call.Do(ctx, "contacts.remove", func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, "contacts/remove", query, nil, nil)
	})
}

// ListContacts returns and decrypts the account's contacts.
func (c *Client) ListContacts(ctx context.Context) ([]record.Contact, error) {
	var out []record.Contact
	if err := c.fetch(ctx, "contacts.list", "contacts", nil, &out); err != nil {
		return nil, err
	}
	for i, v := range out {
		dec, err := c.openContact(v)
		if err != nil {
			return nil, errors.Wrap(err, "open contact")
		}
		out[i] = dec
	}
	return out, nil
}

// Conversations.

func (c *Client) AddConversation(ctx context.Context, v record.Conversation) error {
	if err := c.ready(); err != nil {
		return err
	}
	sealed, err := c.sealConversation(v)
	if err != nil {
		return errors.Wrap(err, "seal conversation")
	}
	return c.push(ctx, "conversations.add", http.MethodPost, "conversations/add", sealed)
}

func (c *Client) UpdateConversation(ctx context.Context, v record.Conversation) error {
	if err := c.ready(); err != nil {
		return err
	}
	sealed, err := c.sealConversation(v)
	if err != nil {
		return errors.Wrap(err, "seal conversation")
	}
	return c.push(ctx, "conversations.update", http.MethodPost,
		fmt.Sprintf("conversations/update/%d", v.ID), sealed)
}

// UpdateConversationSnippet updates just the preview text shown in
// the conversation list, the hottest write path during normal use.
func (c *Client) UpdateConversationSnippet(ctx context.Context, id int64, read bool, timestamp int64, snippet string) error {
	if err := c.ready(); err != nil {
		return err
	}
	enc, err := c.coder.EncryptString(snippet)
	if err != nil {
		return errors.Wrap(err, "seal snippet")
	}
	body := struct {
		Read      bool   `json:"read"`
		Timestamp int64  `json:"timestamp"`
		Snippet   string `json:"snippet"`
	}{read, timestamp, enc}
	return c.push(ctx, "conversations.update_snippet", http.MethodPost,
		fmt.Sprintf("conversations/update_snippet/%d", id), body)
}

func (c *Client) UpdateConversationTitle(ctx context.Context, id int64, title string) error {
	if err := c.ready(); err != nil {
		return err
	}
	enc, err := c.coder.EncryptString(title)
	if err != nil {
		return errors.Wrap(err, "seal title")
	}
	query := c.query()
	query.Set("title", enc)
	return call.Do(ctx, "conversations.update_title", func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, fmt.Sprintf("conversations/update_title/%d", id), query, nil, nil)
	})
}

func (c *Client) RemoveConversation(ctx context.Context, id int64) error {
	return c.push(ctx, "conversations.remove", http.MethodPost, fmt.Sprintf("conversations/remove/%d", id), nil)
}

// ReadConversation marks a conversation read on the other devices.
func (c *Client) ReadConversation(ctx context.Context, id int64) error {
	if err := c.ready(); err != nil {
		return err
	}
	query := c.query()
	query.Set("android_device", c.session.DeviceID)
	return call.Do(ctx, "conversations.read", func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, fmt.Sprintf("conversations/read/%d", id), query, nil, nil)
	})
}

func (c *Client) SeenConversation(ctx context.Context, id int64) error {
	return c.push(ctx, "conversations.seen", http.MethodPost, fmt.Sprintf("conversations/seen/%d", id), nil)
}

func (c *Client) ArchiveConversation(ctx context.Context, id int64, archive bool) error {
	path := fmt.Sprintf("conversations/archive/%d", id)
	if !archive {
		path = fmt.Sprintf("conversations/unarchive/%d", id)
	}
	return c.push(ctx, "conversations.archive", http.MethodPost, path, nil)
}

// ListConversations returns and decrypts the account's
// conversations.
func (c *Client) ListConversations(ctx context.Context) ([]record.Conversation, error) {
	var out []record.Conversation
	if err := c.fetch(ctx, "conversations.list", "conversations", nil, &out); err != nil {
		return nil, err
	}
	for i, v := range out {
		dec, err := c.openConversation(v)
		if err != nil {
			return nil, errors.Wrap(err, "open conversation")
		}
		out[i] = dec
	}
	return out, nil
}

// Messages.

// AddMessages uploads a batch of messages in one request.
func (c *Client) AddMessages(ctx context.Context, msgs []record.Message) error {
	if err := c.ready(); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	sealed := make([]record.Message, len(msgs))
	for i, m := range msgs {
		s, err := c.sealMessage(m)
		if err != nil {
			return errors.Wrap(err, "seal message")
		}
		sealed[i] = s
	}
	return c.push(ctx, "messages.add", http.MethodPost, "messages/add",
		struct {
			AccountID string           `json:"account_id"`
			Messages  []record.Message `json:"messages"`
		}{c.session.AccountID, sealed})
}

// UpdateMessage changes a message's delivery type and read/seen
// state.
func (c *Client) UpdateMessage(ctx context.Context, id int64, msgType int, read, seen bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	body := struct {
		Type int  `json:"message_type"`
		Read bool `json:"read"`
		Seen bool `json:"seen"`
	}{msgType, read, seen}
	return c.push(ctx, "messages.update", http.MethodPost, fmt.Sprintf("messages/update/%d", id), body)
}

func (c *Client) UpdateMessageType(ctx context.Context, id int64, msgType int) error {
	if err := c.ready(); err != nil {
		return err
	}
	query := c.query()
	query.Set("message_type", strconv.Itoa(msgType))
	return call.Do(ctx, "messages.update_type", func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, fmt.Sprintf("messages/update_type/%d", id), query, nil, nil)
	})
}

func (c *Client) RemoveMessage(ctx context.Context, id int64) error {
	return c.push(ctx, "messages.remove", http.MethodPost, fmt.Sprintf("messages/remove/%d", id), nil)
}

// CleanupMessages deletes remote messages older than the timestamp,
// mirroring the local auto-cleanup setting.
func (c *Client) CleanupMessages(ctx context.Context, olderThan int64) error {
	if err := c.ready(); err != nil {
		return err
	}
	query := c.query()
	query.Set("timestamp", strconv.FormatInt(olderThan, 10))
	return call.Do(ctx, "messages.cleanup", func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, "messages/cleanup", query, nil, nil)
	})
}

// ListMessages returns and decrypts one page of the account's
// messages, newest first.
func (c *Client) ListMessages(ctx context.Context, limit, offset int) ([]record.Message, error) {
	query := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
	var out []record.Message
	if err := c.fetch(ctx, "messages.list", "messages", query, &out); err != nil {
		return nil, err
	}
	for i, v := range out {
		dec, err := c.openMessage(v)
		if err != nil {
			return nil, errors.Wrap(err, "open message")
		}
		out[i] = dec
	}
	return out, nil
}

// Drafts.

func (c *Client) AddDraft(ctx context.Context, v record.Draft) error {
	if err := c.ready(); err != nil {
		return err
	}
	sealed, err := c.sealDraft(v)
	if err != nil {
		return errors.Wrap(err, "seal draft")
	}
	return c.push(ctx, "drafts.add", http.MethodPost, "drafts/add", sealed)
}

// RemoveDrafts clears every draft attached to a conversation.
func (c *Client) RemoveDrafts(ctx context.Context, conversationID int64) error {
	return c.push(ctx, "drafts.remove", http.MethodPost, fmt.Sprintf("drafts/remove/%d", conversationID), nil)
}

func (c *Client) ListDrafts(ctx context.Context) ([]record.Draft, error) {
	var out []record.Draft
	if err := c.fetch(ctx, "drafts.list", "drafts", nil, &out); err != nil {
		return nil, err
	}
	for i, v := range out {
		dec, err := c.openDraft(v)
		if err != nil {
			return nil, errors.Wrap(err, "open draft")
		}
		out[i] = dec
	}
	return out, nil
}

// Blacklists.

func (c *Client) AddBlacklist(ctx context.Context, v record.Blacklist) error {
	if err := c.ready(); err != nil {
		return err
	}
	sealed, err := c.sealBlacklist(v)
	if err != nil {
		return errors.Wrap(err, "seal blacklist")
	}
	return c.push(ctx, "blacklists.add", http.MethodPost, "blacklists/add", sealed)
}

func (c *Client) RemoveBlacklist(ctx context.Context, id int64) error {
	return c.push(ctx, "blacklists.remove", http.MethodPost, fmt.Sprintf("blacklists/remove/%d", id), nil)
}

func (c *Client) ListBlacklist(ctx context.Context) ([]record.Blacklist, error) {
	var out []record.Blacklist
	if err := c.fetch(ctx, "blacklists.list", "blacklists", nil, &out); err != nil {
		return nil, err
	}
	for i, v := range out {
		dec, err := c.openBlacklist(v)
		if err != nil {
			return nil, errors.Wrap(err, "open blacklist")
		}
		out[i] = dec
	}
	return out, nil
}

// Scheduled messages.

func (c *Client) AddScheduledMessage(ctx context.Context, v record.ScheduledMessage) error {
	if err := c.ready(); err != nil {
		return err
	}
	sealed, err := c.sealScheduled(v)
	if err != nil {
		return errors.Wrap(err, "seal scheduled message")
	}
	return c.push(ctx, "scheduled.add", http.MethodPost, "scheduled_messages/add", sealed)
}

func (c *Client) RemoveScheduledMessage(ctx context.Context, id int64) error {
	return c.push(ctx, "scheduled.remove", http.MethodPost, fmt.Sprintf("scheduled_messages/remove/%d", id), nil)
}

func (c *Client) ListScheduledMessages(ctx context.Context) ([]record.ScheduledMessage, error) {
	var out []record.ScheduledMessage
	if err := c.fetch(ctx, "scheduled.list", "scheduled_messages", nil, &out); err != nil {
		return nil, err
	}
	for i, v := range out {
		dec, err := c.openScheduled(v)
		if err != nil {
			return nil, errors.Wrap(err, "open scheduled message")
		}
		out[i] = dec
	}
	return out, nil
}

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

// This file seals and opens the user-content fields of each record
// type.  Timestamps, flags and color ints are metadata and travel
// plain; everything a person typed or is identified by does not.

import "github.com/txtwire/txtwire/internal/record"

// sealFields applies the coder to each listed field in place and
// stops on the first failure.
func (c *Client) sealFields(fields ...*string) error {
	for _, f := range fields {
		enc, err := c.coder.EncryptString(*f)
		if err != nil {
			return err
		}
		*f = enc
	}
	return nil
}

func (c *Client) openFields(fields ...*string) error {
	for _, f := range fields {
		dec, err := c.coder.DecryptString(*f)
		if err != nil {
			return err
		}
		*f = dec
	}
	return nil
}

func (c *Client) sealConversation(v record.Conversation) (record.Conversation, error) {
	err := c.sealFields(&v.Title, &v.PhoneNumbers, &v.Snippet, &v.Ringtone, &v.IDMatcher)
	return v, err
}

func (c *Client) openConversation(v record.Conversation) (record.Conversation, error) {
	err := c.openFields(&v.Title, &v.PhoneNumbers, &v.Snippet, &v.Ringtone, &v.IDMatcher)
	return v, err
}

func (c *Client) sealMessage(v record.Message) (record.Message, error) {
	err := c.sealFields(&v.Data, &v.MimeType, &v.From)
	return v, err
}

func (c *Client) openMessage(v record.Message) (record.Message, error) {
	err := c.openFields(&v.Data, &v.MimeType, &v.From)
	return v, err
}

func (c *Client) sealContact(v record.Contact) (record.Contact, error) {
	err := c.sealFields(&v.PhoneNumber, &v.Name)
	return v, err
}

func (c *Client) openContact(v record.Contact) (record.Contact, error) {
	err := c.openFields(&v.PhoneNumber, &v.Name)
	return v, err
}

func (c *Client) sealDraft(v record.Draft) (record.Draft, error) {
	err := c.sealFields(&v.Data, &v.MimeType)
	return v, err
}

func (c *Client) openDraft(v record.Draft) (record.Draft, error) {
	err := c.openFields(&v.Data, &v.MimeType)
	return v, err
}

func (c *Client) sealBlacklist(v record.Blacklist) (record.Blacklist, error) {
	err := c.sealFields(&v.PhoneNumber)
	return v, err
}

func (c *Client) openBlacklist(v record.Blacklist) (record.Blacklist, error) {
	err := c.openFields(&v.PhoneNumber)
	return v, err
}

func (c *Client) sealScheduled(v record.ScheduledMessage) (record.ScheduledMessage, error) {
	err := c.sealFields(&v.To, &v.Data, &v.MimeType, &v.Title)
	return v, err
}

func (c *Client) openScheduled(v record.ScheduledMessage) (record.ScheduledMessage, error) {
	err := c.openFields(&v.To, &v.Data, &v.MimeType, &v.Title)
	return v, err
}

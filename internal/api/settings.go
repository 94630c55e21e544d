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
	"strconv"

	"github.com/pkg/errors"

	"github.com/txtwire/txtwire/internal/call"
	"github.com/txtwire/txtwire/internal/record"
)

// SettingKey names one synchronized preference.  The single
// UpdateSetting entry point replaces a per-setting wrapper function
// for each of these.
type SettingKey string

const (
	SettingBaseTheme            SettingKey = "base_theme"
	SettingGlobalColor          SettingKey = "global_color"
	SettingGlobalColorDark      SettingKey = "global_color_dark"
	SettingGlobalColorLight     SettingKey = "global_color_light"
	SettingGlobalColorAccent    SettingKey = "global_color_accent"
	SettingUseGlobalTheme       SettingKey = "apply_theme_globally"
	SettingSignature            SettingKey = "signature"
	SettingDeliveryReports      SettingKey = "delivery_reports"
	SettingConvertToMMS         SettingKey = "convert_to_mms"
	SettingMMSSize              SettingKey = "mms_size_limit"
	SettingRounderBubbles       SettingKey = "rounder_bubbles"
	SettingSwipeDelete          SettingKey = "swipe_delete"
	SettingStripUnicode         SettingKey = "strip_unicode"
	SettingNotificationActions  SettingKey = "notification_actions"
	SettingVibrate              SettingKey = "vibrate"
	SettingWakeScreen           SettingKey = "wake_screen"
	SettingHeadsUp              SettingKey = "heads_up"
	SettingSoundURI             SettingKey = "ringtone"
	SettingPrivateConversations SettingKey = "private_conversations"
	SettingSmartReplies         SettingKey = "smart_replies"
	SettingInternalBrowser      SettingKey = "internal_browser"
	SettingQuickCompose         SettingKey = "quick_compose"
	SettingSnooze               SettingKey = "snooze"
	SettingFontSize             SettingKey = "font_size"
	SettingKeyboardLayout       SettingKey = "keyboard_layout"
	SettingMessageTimestamp     SettingKey = "message_timestamp"
	SettingCleanupOldMessages   SettingKey = "cleanup_old_messages"
)

// settingTypes maps each recognized key to the wire type remote
// devices use to decode the value: "string", "boolean", "int" or
// "long".  String settings are user content and get encrypted.
var settingTypes = map[SettingKey]string{
	SettingBaseTheme:            "string",
	SettingGlobalColor:          "int",
	SettingGlobalColorDark:      "int",
	SettingGlobalColorLight:     "int",
	SettingGlobalColorAccent:    "int",
	SettingUseGlobalTheme:       "boolean",
	SettingSignature:            "string",
	SettingDeliveryReports:      "boolean",
	SettingConvertToMMS:         "boolean",
	SettingMMSSize:              "long",
	SettingRounderBubbles:       "boolean",
	SettingSwipeDelete:          "boolean",
	SettingStripUnicode:         "boolean",
	SettingNotificationActions:  "string",
	SettingVibrate:              "string",
	SettingWakeScreen:           "string",
	SettingHeadsUp:              "string",
	SettingSoundURI:             "string",
	SettingPrivateConversations: "boolean",
	SettingSmartReplies:         "boolean",
	SettingInternalBrowser:      "boolean",
	SettingQuickCompose:         "boolean",
	SettingSnooze:               "long",
	SettingFontSize:             "string",
	SettingKeyboardLayout:       "string",
	SettingMessageTimestamp:     "boolean",
	SettingCleanupOldMessages:   "long",
}

// UpdateSetting pushes one preference value to the account.  The
// value's Go type must match the key's wire type; string values are
// encrypted before transmission.
func (c *Client) UpdateSetting(ctx context.Context, key SettingKey, value interface{}) error {
	if err := c.ready(); err != nil {
		return err
	}
	typ, ok := settingTypes[key]
	if !ok {
		return errors.Errorf("unrecognized setting %q", key)
	}

	var encoded string
	switch typ {
	case "boolean":
		b, ok := value.(bool)
		if !ok {
			return errors.Errorf("setting %q wants bool, got %T", key, value)
		}
		encoded = strconv.FormatBool(b)
	case "int":
		n, ok := value.(int)
		if !ok {
			return errors.Errorf("setting %q wants int, got %T", key, value)
		}
		encoded = strconv.Itoa(n)
	case "long":
		n, ok := value.(int64)
		if !ok {
			return errors.Errorf("setting %q wants int64, got %T", key, value)
		}
		encoded = strconv.FormatInt(n, 10)
	case "string":
		s, ok := value.(string)
		if !ok {
			return errors.Errorf("setting %q wants string, got %T", key, value)
		}
		enc, err := c.coder.EncryptString(s)
		if err != nil {
			return errors.Wrap(err, "seal setting value")
		}
		encoded = enc
	}

	return c.pushSetting(ctx, string(key), typ, encoded)
}

// PushSetting uploads a preference that is already in wire encoding,
// as stored locally; string values still get sealed on the way out.
// The full-account upload uses this to replay every saved setting.
func (c *Client) PushSetting(ctx context.Context, s record.Setting) error {
	if err := c.ready(); err != nil {
		return err
	}
	value := s.Value
	if s.Type == "string" {
		enc, err := c.coder.EncryptString(value)
		if err != nil {
			return errors.Wrap(err, "seal setting value")
		}
		value = enc
	}
	return c.pushSetting(ctx, s.Key, s.Type, value)
}

func (c *Client) pushSetting(ctx context.Context, pref, typ, value string) error {
	query := c.query()
	query.Set("pref", pref)
	query.Set("type", typ)
	query.Set("value", value)
	return call.Do(ctx, "accounts.update_setting", func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, "accounts/update_setting", query, nil, nil)
	})
}

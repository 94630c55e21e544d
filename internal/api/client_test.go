package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/txtwire/txtwire/internal/crypto"
	"github.com/txtwire/txtwire/internal/record"
)

// capture is an httptest handler that records every request and
// replies with a scripted sequence of statuses.
type capture struct {
	mu       sync.Mutex
	requests []capturedRequest
	statuses []int  // consumed one per request; empty means always 200
	reply    string // body sent with 200 responses
}

type capturedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Body   []byte
}

func (c *capture) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	query := make(map[string]string)
	for k, v := range r.URL.Query() {
		query[k] = v[0]
	}
	c.requests = append(c.requests, capturedRequest{
		Method: r.Method, Path: r.URL.Path, Query: query, Body: body,
	})

	status := http.StatusOK
	if len(c.statuses) > 0 {
		status = c.statuses[0]
		c.statuses = c.statuses[1:]
	}
	w.WriteHeader(status)
	if status == http.StatusOK && c.reply != "" {
		io.WriteString(w, c.reply)
	}
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *capture) last(t *testing.T) capturedRequest {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		t.Fatal("no requests captured")
	}
	return c.requests[len(c.requests)-1]
}

func testClient(t *testing.T, h *capture) (*Client, *crypto.Coder, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("New() = %v, want nil", err)
	}
	coder, err := crypto.New(crypto.DeriveKey("account-1", "hash", []byte("salt2")))
	if err != nil {
		t.Fatal(err)
	}
	c.SetSession(record.Session{AccountID: "account-1", DeviceID: "device-1"}, coder)
	return c, coder, srv
}

func TestAccountScopedMethodsNoOpWithoutSession(t *testing.T) {
	h := &capture{}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c, err := New(srv.URL, srv.Client())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	calls := map[string]func() error{
		"AddConversation": func() error { return c.AddConversation(ctx, record.Conversation{ID: 1}) },
		"AddMessages":     func() error { return c.AddMessages(ctx, []record.Message{{ID: 1}}) },
		"AddContact":      func() error { return c.AddContact(ctx, record.Contact{Name: "a"}) },
		"AddDraft":        func() error { return c.AddDraft(ctx, record.Draft{ID: 1}) },
		"AddBlacklist":    func() error { return c.AddBlacklist(ctx, record.Blacklist{ID: 1}) },
		"RemoveAccount":   func() error { return c.RemoveAccount(ctx) },
		"RemoveMessage":   func() error { return c.RemoveMessage(ctx, 1) },
		"UpdateSetting":   func() error { return c.UpdateSetting(ctx, SettingVibrate, "default") },
		"AddScheduled": func() error {
			return c.AddScheduledMessage(ctx, record.ScheduledMessage{ID: 1})
		},
	}
	for name, fn := range calls {
		if err := fn(); !errors.Is(err, ErrNotLoggedIn) {
			t.Errorf("%s without session = %v, want ErrNotLoggedIn", name, err)
		}
	}
	if got := h.count(); got != 0 {
		t.Errorf("network calls without session = %d, want 0", got)
	}
}

func TestLoginUnauthorized(t *testing.T) {
	h := &capture{statuses: []int{http.StatusUnauthorized}}
	c, _, _ := testClient(t, h)

	resp, err := c.Login(context.Background(), "user@example.com", "wrong")
	if resp != nil {
		t.Errorf("Login() response = %+v, want nil", resp)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Login() error = %v, want ErrUnauthorized", err)
	}
	if got := h.count(); got != 1 {
		t.Errorf("login attempts = %d, want 1 (bad credentials are terminal)", got)
	}
}

func TestLoginSuccess(t *testing.T) {
	h := &capture{reply: `{"account_id":"acct-9","name":"Jane","phone_number":"5550100","salt1":"czE=","salt2":"czI="}`}
	c, _, _ := testClient(t, h)

	resp, err := c.Login(context.Background(), "user@example.com", "right")
	if err != nil {
		t.Fatalf("Login() = %v, want nil", err)
	}
	want := &LoginResponse{
		AccountID: "acct-9", Name: "Jane", PhoneNumber: "5550100",
		Salt1: "czE=", Salt2: "czI=",
	}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("Login() response mismatch (-want +got):\n%s", diff)
	}
}

func TestAddConversationEncryptsUserContent(t *testing.T) {
	h := &capture{}
	c, coder, _ := testClient(t, h)

	conv := record.Conversation{
		ID:           7,
		Title:        "Jane Doe",
		PhoneNumbers: "555-0100",
		Snippet:      "see you at 8",
		IDMatcher:    "5550100",
		Timestamp:    1700000000000,
		Color:        0xff2196f3,
	}
	if err := c.AddConversation(context.Background(), conv); err != nil {
		t.Fatalf("AddConversation() = %v, want nil", err)
	}

	var sent record.Conversation
	if err := json.Unmarshal(h.last(t).Body, &sent); err != nil {
		t.Fatalf("request body: %v", err)
	}
	for name, pair := range map[string][2]string{
		"title":         {conv.Title, sent.Title},
		"phone_numbers": {conv.PhoneNumbers, sent.PhoneNumbers},
		"snippet":       {conv.Snippet, sent.Snippet},
		"id_matcher":    {conv.IDMatcher, sent.IDMatcher},
	} {
		plain, wire := pair[0], pair[1]
		if wire == plain {
			t.Errorf("%s crossed the wire in plaintext", name)
		}
		dec, err := coder.DecryptString(wire)
		if err != nil {
			t.Errorf("%s is not valid ciphertext: %v", name, err)
		} else if dec != plain {
			t.Errorf("%s round trip = %q, want %q", name, dec, plain)
		}
	}
	if sent.Timestamp != conv.Timestamp || sent.Color != conv.Color {
		t.Error("numeric metadata should travel unencrypted")
	}
	if got := h.last(t).Query["account_id"]; got != "account-1" {
		t.Errorf("account_id query = %q, want account-1", got)
	}
}

func TestAddMessagesRetriesTransientFailures(t *testing.T) {
	h := &capture{statuses: []int{http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusOK}}
	c, _, _ := testClient(t, h)

	msg := record.Message{ID: 3, ConversationID: 7, Data: "hello", MimeType: record.MimeText}
	if err := c.AddMessages(context.Background(), []record.Message{msg}); err != nil {
		t.Fatalf("AddMessages() = %v, want nil after retries", err)
	}
	if got := h.count(); got != 3 {
		t.Errorf("underlying calls = %d, want 3", got)
	}
}

func TestUpdateSetting(t *testing.T) {
	t.Run("unknown key", func(t *testing.T) {
		h := &capture{}
		c, _, _ := testClient(t, h)
		if err := c.UpdateSetting(context.Background(), SettingKey("bogus"), "x"); err == nil {
			t.Error("UpdateSetting accepted an unknown key")
		}
		if got := h.count(); got != 0 {
			t.Errorf("network calls = %d, want 0", got)
		}
	})

	t.Run("type mismatch", func(t *testing.T) {
		h := &capture{}
		c, _, _ := testClient(t, h)
		if err := c.UpdateSetting(context.Background(), SettingVibrate, 3); err == nil {
			t.Error("UpdateSetting accepted an int for a string setting")
		}
		if got := h.count(); got != 0 {
			t.Errorf("network calls = %d, want 0", got)
		}
	})

	t.Run("boolean", func(t *testing.T) {
		h := &capture{}
		c, _, _ := testClient(t, h)
		if err := c.UpdateSetting(context.Background(), SettingDeliveryReports, true); err != nil {
			t.Fatalf("UpdateSetting() = %v, want nil", err)
		}
		req := h.last(t)
		if req.Query["pref"] != "delivery_reports" || req.Query["type"] != "boolean" || req.Query["value"] != "true" {
			t.Errorf("query = %v, want delivery_reports/boolean/true", req.Query)
		}
	})

	t.Run("string value encrypted", func(t *testing.T) {
		h := &capture{}
		c, coder, _ := testClient(t, h)
		if err := c.UpdateSetting(context.Background(), SettingSignature, "sent from txtwire"); err != nil {
			t.Fatalf("UpdateSetting() = %v, want nil", err)
		}
		wire := h.last(t).Query["value"]
		if wire == "sent from txtwire" {
			t.Error("signature crossed the wire in plaintext")
		}
		if dec, err := coder.DecryptString(wire); err != nil || dec != "sent from txtwire" {
			t.Errorf("signature round trip = %q, %v", dec, err)
		}
	})
}

func TestListConversationsDecrypts(t *testing.T) {
	h := &capture{}
	c, coder, _ := testClient(t, h)

	title, err := coder.EncryptString("Jane Doe")
	if err != nil {
		t.Fatal(err)
	}
	snippet, err := coder.EncryptString("see you at 8")
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal([]record.Conversation{{ID: 7, Title: title, Snippet: snippet, Timestamp: 12}})
	if err != nil {
		t.Fatal(err)
	}
	h.reply = string(raw)

	got, err := c.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("ListConversations() = %v, want nil", err)
	}
	want := []record.Conversation{{ID: 7, Title: "Jane Doe", Snippet: "see you at 8", Timestamp: 12}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListConversations() mismatch (-want +got):\n%s", diff)
	}
}

func TestAddDeviceReturnsAssignedID(t *testing.T) {
	h := &capture{reply: `{"id":42}`}
	c, _, _ := testClient(t, h)

	id, err := c.AddDevice(context.Background(), record.Device{Name: "pixel", Primary: true})
	if err != nil {
		t.Fatalf("AddDevice() = %v, want nil", err)
	}
	if id != 42 {
		t.Errorf("AddDevice() id = %d, want 42", id)
	}
}

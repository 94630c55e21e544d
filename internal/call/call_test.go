package call

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"
)

func status(code int) error {
	return &googleapi.Error{Code: code, Message: http.StatusText(code)}
}

func TestTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"service unavailable", status(http.StatusServiceUnavailable), true},
		{"internal error", status(http.StatusInternalServerError), true},
		{"too many requests", status(http.StatusTooManyRequests), true},
		{"request timeout", status(http.StatusRequestTimeout), true},
		{"not found", status(http.StatusNotFound), false},
		{"unauthorized", status(http.StatusUnauthorized), false},
		{"bad request", status(http.StatusBadRequest), false},
		{"wrapped server error", errors.Wrap(status(http.StatusBadGateway), "upload"), true},
		{"context canceled", context.Canceled, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := Transient(tc.err); got != tc.want {
			t.Errorf("%s: Transient(%v) = %v, want %v", tc.name, tc.err, got, tc.want)
		}
	}
}

func TestDoStopsAtCeiling(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "test", func(context.Context) error {
		calls++
		return status(http.StatusServiceUnavailable)
	})

	if want := Ceiling + 1; calls != want {
		t.Errorf("underlying calls = %d, want %d", calls, want)
	}
	var gaveUp *GiveUpError
	if !errors.As(err, &gaveUp) {
		t.Fatalf("Do() = %v, want *GiveUpError", err)
	}
	if gaveUp.Attempts != Ceiling+1 {
		t.Errorf("GiveUpError.Attempts = %d, want %d", gaveUp.Attempts, Ceiling+1)
	}
	var apiErr *googleapi.Error
	if !errors.As(gaveUp.Cause, &apiErr) || apiErr.Code != http.StatusServiceUnavailable {
		t.Errorf("GiveUpError.Cause = %v, want the final 503", gaveUp.Cause)
	}
}

func TestDoEventualSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "test", func(context.Context) error {
		calls++
		if calls <= 2 {
			return status(http.StatusBadGateway)
		}
		return nil
	})

	if err != nil {
		t.Errorf("Do() = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("underlying calls = %d, want 3", calls)
	}
}

func TestDoTerminalErrorNotRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "test", func(context.Context) error {
		calls++
		return status(http.StatusNotFound)
	})

	if calls != 1 {
		t.Errorf("underlying calls = %d, want 1", calls)
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		t.Errorf("Do() = %v, want the 404", err)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, "test", func(context.Context) error {
		calls++
		cancel()
		return status(http.StatusServiceUnavailable)
	})

	if calls != 1 {
		t.Errorf("underlying calls = %d, want 1", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() = %v, want context.Canceled", err)
	}
}

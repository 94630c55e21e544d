/*
Package storehttp assembles the HTTP client used against the
object-storage bucket.

Bearer tokens are not minted locally: the backend exchanges the
account session for a short-lived storage token, and this package
wraps that exchange in an oauth2.TokenSource so the transport
refreshes on expiry without the blob layer knowing about tokens at
all.

The backend reports a token lifetime with each grant.  When it does
not, the source assumes five minutes, which keeps a long media
restore working at the cost of an occasional redundant exchange.
*/
package storehttp

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// TokenFetcher exchanges the account session for a storage bearer
// token.  The api.Client satisfies this.
type TokenFetcher interface {
	StorageToken(ctx context.Context) (token string, expiry time.Time, err error)
}

const fallbackLifetime = 5 * time.Minute

// backendTokenSource satisfies oauth2.TokenSource by asking the
// backend for a fresh storage token.
type backendTokenSource struct {
	fetcher TokenFetcher
}

func (s *backendTokenSource) Token() (*oauth2.Token, error) {
	token, expiry, err := s.fetcher.StorageToken(context.Background())
	if err != nil {
		return nil, err
	}
	if expiry.IsZero() {
		expiry = time.Now().Add(fallbackLifetime)
	}
	return &oauth2.Token{AccessToken: token, Expiry: expiry}, nil
}

// New returns an HTTP client whose requests carry the storage bearer
// token.  Tokens are cached and re-fetched on expiry via
// oauth2.ReuseTokenSource.
func New(f TokenFetcher) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(nil, &backendTokenSource{fetcher: f}),
			Base:   http.DefaultTransport,
		},
	}
}

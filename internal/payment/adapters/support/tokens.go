package support

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"github.com/payssd/chapchap-sub000/internal/payment/tokenstore"
)

// DefaultRefreshMargin treats a token as expired this long before the
// provider says it does.
const DefaultRefreshMargin = 60 * time.Second

var ErrEmptyToken = errors.New("provider returned an empty access token")

// TokenFetcher exchanges credentials for a bearer token.
type TokenFetcher func(ctx context.Context) (token string, expiresIn time.Duration, err error)

// TokenSource hands out cached bearer tokens and fetches new ones on miss.
type TokenSource struct {
	store  domain.TokenStore
	key    string
	margin time.Duration
	fetch  TokenFetcher

	mu sync.Mutex
}

func NewTokenSource(store domain.TokenStore, key string, margin time.Duration, fetch TokenFetcher) *TokenSource {
	if store == nil {
		store = tokenstore.NewMemory()
	}
	if margin < 0 {
		margin = 0
	}
	return &TokenSource{store: store, key: key, margin: margin, fetch: fetch}
}

// TokenKey scopes a cached token to one provider account without putting the
// client id itself into the store.
func TokenKey(provider domain.Provider, env Environment, clientID string) string {
	sum := sha256.Sum256([]byte(clientID))
	return fmt.Sprintf("chapchap:token:%s:%s:%s", provider, env, hex.EncodeToString(sum[:8]))
}

func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if token, ok := s.cached(ctx); ok {
		return token, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if token, ok := s.cached(ctx); ok {
		return token, nil
	}

	token, expiresIn, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrEmptyToken
	}
	if ttl := expiresIn - s.margin; ttl > 0 {
		// A store failure only costs a refetch next time.
		_ = s.store.Set(ctx, s.key, token, ttl)
	}
	return token, nil
}

// Invalidate drops the cached token, e.g. after a 401.
func (s *TokenSource) Invalidate(ctx context.Context) {
	_ = s.store.Delete(ctx, s.key)
}

func (s *TokenSource) cached(ctx context.Context) (string, bool) {
	token, ok, err := s.store.Get(ctx, s.key)
	if err != nil || !ok || token == "" {
		return "", false
	}
	return token, true
}

package auth

import (
	"time"

	"github.com/allegro/bigcache"
	"github.com/pkg/errors"
)

// Backend keeps the ids of revoked access tokens until they expire
type Backend interface {
	Revoke(jti string) error
	IsRevoked(jti string) bool
}

// cacheBackend is an in-memory deny list, entries are evicted
// once the longest possible token lifetime has passed
type cacheBackend struct {
	cache *bigcache.BigCache
}

// NewCacheBackend initializes a deny list whose entries live for ttl
func NewCacheBackend(ttl time.Duration) (Backend, error) {
	if ttl <= 0 {
		return nil, ErrInvalidExpirationTime
	}

	config := bigcache.DefaultConfig(ttl)
	config.CleanWindow = time.Minute

	cache, err := bigcache.NewBigCache(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize revoked token cache")
	}

	return &cacheBackend{cache: cache}, nil
}

func (b *cacheBackend) Revoke(jti string) error {
	if jti == "" {
		return ErrInvalidTokenID
	}

	return errors.Wrapf(b.cache.Set(jti, []byte{1}), "failed to revoke token %s", jti)
}

func (b *cacheBackend) IsRevoked(jti string) bool {
	_, err := b.cache.Get(jti)
	return err == nil
}

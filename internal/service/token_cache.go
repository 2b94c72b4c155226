package service

import (
	"context"
	"sync"

	"sandwichScope/internal/model"
	"sandwichScope/internal/storage"
)

// tokenCache caches stored tokens by id. Token rows never change once
// inserted, so entries are never invalidated.
type tokenCache struct {
	mu   sync.RWMutex
	data map[int64]model.Token
}

func newTokenCache() *tokenCache {
	return &tokenCache{data: make(map[int64]model.Token)}
}

func (c *tokenCache) get(id int64) (model.Token, bool) {
	c.mu.RLock()
	token, ok := c.data[id]
	c.mu.RUnlock()
	return token, ok
}

func (c *tokenCache) set(token model.Token) {
	c.mu.Lock()
	c.data[token.ID] = token
	c.mu.Unlock()
}

// load returns the token from cache or the store.
func (c *tokenCache) load(ctx context.Context, store storage.TokenStore, id int64) (model.Token, error) {
	if token, ok := c.get(id); ok {
		return token, nil
	}
	token, err := store.TokenByID(ctx, id)
	if err != nil {
		return model.Token{}, err
	}
	c.set(token)
	return token, nil
}

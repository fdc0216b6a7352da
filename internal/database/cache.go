package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ErrCacheDisabled is returned by builder operations when the client
// is nil (cache tier disabled). Callers treat it as a miss.
var ErrCacheDisabled = errors.New("cache disabled")

// CacheBuilder is a small fluent helper around valkey get/set/delete
// with JSON struct payloads and optional TTL.
type CacheBuilder struct {
	client CacheClient
	key    string
	value  any
	ttl    time.Duration
	ctx    context.Context
}

func NewCacheBuilder(client CacheClient, key string) *CacheBuilder {
	return &CacheBuilder{client: client, key: key, ctx: context.Background()}
}

func (b *CacheBuilder) WithStruct(value any) *CacheBuilder {
	b.value = value
	return b
}

func (b *CacheBuilder) WithTTL(ttl time.Duration) *CacheBuilder {
	b.ttl = ttl
	return b
}

func (b *CacheBuilder) WithContext(ctx context.Context) *CacheBuilder {
	b.ctx = ctx
	return b
}

func (b *CacheBuilder) Set() error {
	if b.client == nil {
		return ErrCacheDisabled
	}

	payload, err := json.Marshal(b.value)
	if err != nil {
		return err
	}

	builder := b.client.B().Set().Key(b.key).Value(string(payload))
	var cmd valkey.Completed
	if b.ttl > 0 {
		cmd = builder.Ex(b.ttl).Build()
	} else {
		cmd = builder.Build()
	}

	return b.client.Do(b.ctx, cmd).Error()
}

// Get unmarshals the cached value into dest. The boolean reports
// whether the key was present.
func (b *CacheBuilder) Get(dest any) (bool, error) {
	if b.client == nil {
		return false, nil
	}

	resp := b.client.Do(b.ctx, b.client.B().Get().Key(b.key).Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return false, nil
		}
		return false, err
	}

	payload, err := resp.ToString()
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		return false, err
	}

	return true, nil
}

func (b *CacheBuilder) Delete() error {
	if b.client == nil {
		return nil
	}
	return b.client.Do(b.ctx, b.client.B().Del().Key(b.key).Build()).Error()
}

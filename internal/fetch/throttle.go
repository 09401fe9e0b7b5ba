package fetch

import (
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheBlockCache implements BlockCache using memcache, so block
// windows survive worker restarts and are shared between replicas
type MemcacheBlockCache struct {
	client *memcache.Client
}

// NewMemcacheBlockCache creates a memcache-backed block cache
func NewMemcacheBlockCache(serverAddr string) *MemcacheBlockCache {
	return &MemcacheBlockCache{
		client: memcache.New(serverAddr),
	}
}

// Get retrieves a value from memcache
func (m *MemcacheBlockCache) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheBlockCache) Set(key string, value []byte, expiration time.Duration) error {
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
}

// Delete removes a value from memcache
func (m *MemcacheBlockCache) Delete(key string) error {
	return m.client.Delete(key)
}

package content

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ipfs/go-cid"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/sensorledger/integrity/module"
	"github.com/sensorledger/integrity/module/metrics"
)

const DefaultCacheSize = 1_000

// Cache serves content from memory and from a blobstore before falling back
// to a remote fetcher. Content is immutable under its reference, so entries
// never expire.
type Cache struct {
	log     zerolog.Logger
	metrics module.ContentCacheMetrics
	remote  module.ContentFetcher
	blobs   Blobstore
	memory  *lru.Cache[string, []byte]

	hits   *atomic.Uint64
	misses *atomic.Uint64
}

var _ module.ContentFetcher = (*Cache)(nil)

func NewCache(
	log zerolog.Logger,
	metrics module.ContentCacheMetrics,
	remote module.ContentFetcher,
	blobs Blobstore,
	size int,
) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	memory, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("could not create memory cache: %w", err)
	}
	return &Cache{
		log:     log.With().Str("component", "content_cache").Logger(),
		metrics: metrics,
		remote:  remote,
		blobs:   blobs,
		memory:  memory,
		hits:    atomic.NewUint64(0),
		misses:  atomic.NewUint64(0),
	}, nil
}

// Fetch returns the content stored under ref.
func (c *Cache) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if data, ok := c.memory.Get(ref); ok {
		c.hit(metrics.TierMemory)
		return clone(data), nil
	}

	id, err := cid.Decode(ref)
	persistent := err == nil
	if persistent {
		data, err := c.blobs.Get(ctx, id)
		switch {
		case err == nil:
			c.hit(metrics.TierBlockstore)
			c.memory.Add(ref, data)
			return clone(data), nil
		case !errors.Is(err, ErrNotFound):
			c.log.Warn().Err(err).Str("ref", ref).Msg("could not read content cache")
		}
	}

	c.misses.Inc()
	c.metrics.ContentCacheMiss()
	data, err := c.remote.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	c.memory.Add(ref, clone(data))
	if persistent {
		err := c.blobs.Put(ctx, id, data)
		if err != nil {
			c.log.Warn().Err(err).Str("ref", ref).Msg("could not persist content")
		}
	}
	return data, nil
}

// Hits returns the number of references served locally.
func (c *Cache) Hits() uint64 {
	return c.hits.Load()
}

// Misses returns the number of references fetched remotely.
func (c *Cache) Misses() uint64 {
	return c.misses.Load()
}

func (c *Cache) hit(tier string) {
	c.hits.Inc()
	c.metrics.ContentCacheHit(tier)
}

func clone(data []byte) []byte {
	return append([]byte(nil), data...)
}

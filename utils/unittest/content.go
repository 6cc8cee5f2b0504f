package unittest

import (
	"context"
	"errors"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	mh "github.com/multiformats/go-multihash"
)

var ErrContentNotFound = errors.New("content not found")

func TestDatastore() datastore.Batching {
	return dssync.MutexWrap(datastore.NewMapDatastore())
}

// ContentStore is an in-memory content-addressed store keyed by base32 CIDv1
// raw sha2-256 references.
type ContentStore struct {
	mu      sync.RWMutex
	content map[string][]byte
	fetches map[string]int
}

func NewContentStore() *ContentStore {
	return &ContentStore{
		content: make(map[string][]byte),
		fetches: make(map[string]int),
	}
}

// Put stores data and returns its reference.
func (s *ContentStore) Put(data []byte) string {
	c, err := cid.V1Builder{Codec: cid.Raw, MhType: mh.SHA2_256}.Sum(data)
	if err != nil {
		panic(err)
	}
	ref := c.String()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[ref] = append([]byte(nil), data...)
	return ref
}

// PutAt stores data under an arbitrary reference.
func (s *ContentStore) PutAt(ref string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[ref] = append([]byte(nil), data...)
}

func (s *ContentStore) Fetch(_ context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches[ref]++
	data, ok := s.content[ref]
	if !ok {
		return nil, ErrContentNotFound
	}
	return append([]byte(nil), data...), nil
}

// Fetches returns how often ref was fetched.
func (s *ContentStore) Fetches(ref string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetches[ref]
}

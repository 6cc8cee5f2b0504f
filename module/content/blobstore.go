package content

import (
	"context"
	"errors"
	"fmt"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	"github.com/ipfs/go-datastore"
	blockstore "github.com/ipfs/go-ipfs-blockstore"
	ipld "github.com/ipfs/go-ipld-format"
)

// Blobstore persists fetched content keyed by content identifier.
type Blobstore interface {
	Has(context.Context, cid.Cid) (bool, error)

	// Get returns the content stored under the identifier.
	// Expected errors:
	//   - ErrNotFound if nothing is stored under it
	Get(context.Context, cid.Cid) ([]byte, error)

	// Put stores data under the given identifier. The caller is responsible
	// for data matching the identifier.
	Put(context.Context, cid.Cid, []byte) error
}

var ErrNotFound = errors.New("blobstore: blob not found")

type blobstoreImpl struct {
	bs blockstore.Blockstore
}

// NewBlobstore returns a blobstore backed by the given datastore.
func NewBlobstore(ds datastore.Batching) *blobstoreImpl {
	return &blobstoreImpl{bs: blockstore.NewBlockstore(ds)}
}

func (bs *blobstoreImpl) Has(ctx context.Context, c cid.Cid) (bool, error) {
	return bs.bs.Has(ctx, c)
}

func (bs *blobstoreImpl) Get(ctx context.Context, c cid.Cid) ([]byte, error) {
	blob, err := bs.bs.Get(ctx, c)
	if ipld.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return blob.RawData(), nil
}

func (bs *blobstoreImpl) Put(ctx context.Context, c cid.Cid, data []byte) error {
	blob, err := blocks.NewBlockWithCid(data, c)
	if err != nil {
		return fmt.Errorf("could not create block for %s: %w", c, err)
	}
	return bs.bs.Put(ctx, blob)
}

// NoopBlobstore is a Blobstore that stores nothing, used when the persistent
// cache tier is disabled.
type NoopBlobstore struct{}

func NewNoopBlobstore() *NoopBlobstore {
	return &NoopBlobstore{}
}

func (n *NoopBlobstore) Has(context.Context, cid.Cid) (bool, error) {
	return false, nil
}

func (n *NoopBlobstore) Get(context.Context, cid.Cid) ([]byte, error) {
	return nil, ErrNotFound
}

func (n *NoopBlobstore) Put(context.Context, cid.Cid, []byte) error {
	return nil
}

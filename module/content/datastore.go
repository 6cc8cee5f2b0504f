package content

import (
	"context"
	"fmt"

	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	badgerds "github.com/ipfs/go-ds-badger2"
	"github.com/rs/zerolog"
)

// Datastore is a datastore that can be closed and garbage collected.
type Datastore interface {
	Datastore() ds.Batching
	Close() error
	CollectGarbage(ctx context.Context) error
}

var _ Datastore = (*BadgerDatastore)(nil)
var _ Datastore = (*MemoryDatastore)(nil)

// BadgerDatastore keeps cached content on disk.
type BadgerDatastore struct {
	ds *badgerds.Datastore
}

// NewBadgerDatastore opens the datastore at path. Default options are used
// if options is nil, with badger's log output routed to log.
func NewBadgerDatastore(log zerolog.Logger, path string, options *badgerds.Options) (*BadgerDatastore, error) {
	if options == nil {
		opts := badgerds.DefaultOptions
		opts.Options = opts.Options.WithLogger(newBadgerLogger(log))
		options = &opts
	}
	d, err := badgerds.NewDatastore(path, options)
	if err != nil {
		return nil, fmt.Errorf("could not open content cache at %s: %w", path, err)
	}
	return &BadgerDatastore{d}, nil
}

func (b *BadgerDatastore) Datastore() ds.Batching {
	return b.ds
}

func (b *BadgerDatastore) Close() error {
	return b.ds.Close()
}

func (b *BadgerDatastore) CollectGarbage(ctx context.Context) error {
	return b.ds.CollectGarbage(ctx)
}

// MemoryDatastore keeps cached content for the lifetime of the process.
type MemoryDatastore struct {
	ds ds.Batching
}

func NewMemoryDatastore() *MemoryDatastore {
	return &MemoryDatastore{ds: dssync.MutexWrap(ds.NewMapDatastore())}
}

func (m *MemoryDatastore) Datastore() ds.Batching {
	return m.ds
}

func (m *MemoryDatastore) Close() error {
	return m.ds.Close()
}

func (m *MemoryDatastore) CollectGarbage(context.Context) error {
	return nil
}

// OpenDatastore opens a badger datastore at path, or an in-memory datastore
// if path is empty.
func OpenDatastore(log zerolog.Logger, path string) (Datastore, error) {
	if path == "" {
		return NewMemoryDatastore(), nil
	}
	return NewBadgerDatastore(log, path, nil)
}

package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/sensorledger/integrity/model/commitment"
	"github.com/sensorledger/integrity/module"
)

const (
	DefaultPageSize       = 10_000
	DefaultTimestampCache = 1_000
	DefaultMaxRetries     = 5
	DefaultRetryDelay     = 200 * time.Millisecond
	DefaultMaxRetryDelay  = 5 * time.Second
)

// Client is the subset of the ledger RPC API the reader uses. It is
// implemented by *ethclient.Client.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var _ Client = (*ethclient.Client)(nil)
var _ module.CommitmentReader = (*Reader)(nil)

// Dial connects to the ledger RPC endpoint at url.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", url, err)
	}
	return client, nil
}

type Config struct {
	// StartBlock is the first block scanned for contract events.
	StartBlock uint64
	// PageSize is the number of blocks covered by one log query.
	PageSize       uint64
	TimestampCache int
	MaxRetries     uint64
	RetryDelay     time.Duration
	MaxRetryDelay  time.Duration
}

func DefaultConfig() Config {
	return Config{
		PageSize:       DefaultPageSize,
		TimestampCache: DefaultTimestampCache,
		MaxRetries:     DefaultMaxRetries,
		RetryDelay:     DefaultRetryDelay,
		MaxRetryDelay:  DefaultMaxRetryDelay,
	}
}

type Option func(*Config)

// WithStartBlock skips all blocks before start when scanning for events.
func WithStartBlock(start uint64) Option {
	return func(c *Config) {
		c.StartBlock = start
	}
}

func WithPageSize(size uint64) Option {
	return func(c *Config) {
		c.PageSize = size
	}
}

func WithRetries(max uint64, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = max
		c.RetryDelay = delay
	}
}

// Reader reads the commitment contract through a ledger RPC client.
type Reader struct {
	log        zerolog.Logger
	client     Client
	contract   common.Address
	config     Config
	timestamps *lru.Cache[uint64, uint64]
}

func NewReader(log zerolog.Logger, client Client, contract common.Address, opts ...Option) (*Reader, error) {
	config := DefaultConfig()
	for _, apply := range opts {
		apply(&config)
	}
	if config.PageSize == 0 {
		return nil, fmt.Errorf("page size must be positive")
	}

	timestamps, err := lru.New[uint64, uint64](config.TimestampCache)
	if err != nil {
		return nil, fmt.Errorf("could not create timestamp cache: %w", err)
	}

	return &Reader{
		log:        log.With().Str("component", "commitment_reader").Str("contract", contract.Hex()).Logger(),
		client:     client,
		contract:   contract,
		config:     config,
		timestamps: timestamps,
	}, nil
}

// ReadEvents scans the contract logs from the configured start block up to
// the latest block.
func (r *Reader) ReadEvents(ctx context.Context, fromBlock uint64) (*commitment.EventLog, error) {
	var latest uint64
	err := r.retry(ctx, func(ctx context.Context) error {
		var err error
		latest, err = r.client.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not read latest block number: %w", err)
	}

	events := commitment.NewEventLog()
	topics := [][]common.Hash{eventIDs()}
	count := 0
	for start := r.config.StartBlock; start <= latest; start += r.config.PageSize {
		end := start + r.config.PageSize - 1
		if end > latest {
			end = latest
		}
		query := ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: []common.Address{r.contract},
			Topics:    topics,
		}

		var logs []types.Log
		err := r.retry(ctx, func(ctx context.Context) error {
			var err error
			logs, err = r.client.FilterLogs(ctx, query)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("could not filter logs in blocks [%d, %d]: %w", start, end, err)
		}

		for _, l := range logs {
			if l.Removed {
				continue
			}
			err := decodeLog(l, fromBlock, events)
			if err != nil {
				return nil, err
			}
		}
		count += len(logs)

		if end == latest {
			break
		}
	}

	r.log.Debug().
		Int("logs", count).
		Uint64("latest_block", latest).
		Uint64("floor_block", fromBlock).
		Int("requests", len(events.RequestedBlocks)).
		Int("updates", len(events.Updated)).
		Int("cid_formats", len(events.CidFormatConfigs)).
		Int("sensors", len(events.SensorConfigs)).
		Msg("contract events read")

	return events, nil
}

// BlockTimestamp returns the timestamp of the block. Results are cached.
func (r *Reader) BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	if ts, ok := r.timestamps.Get(blockNumber); ok {
		return ts, nil
	}

	var header *types.Header
	err := r.retry(ctx, func(ctx context.Context) error {
		var err error
		header, err = r.client.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
		if errors.Is(err, ethereum.NotFound) {
			return module.ErrBlockNotFound
		}
		return err
	})
	if errors.Is(err, module.ErrBlockNotFound) {
		return 0, fmt.Errorf("block %d: %w", blockNumber, module.ErrBlockNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("could not read header of block %d: %w", blockNumber, err)
	}
	if header == nil {
		return 0, fmt.Errorf("block %d: %w", blockNumber, module.ErrBlockNotFound)
	}

	r.timestamps.Add(blockNumber, header.Time)
	return header.Time, nil
}

// CurrentRoot returns the aggregate root currently stored by the contract.
func (r *Reader) CurrentRoot(ctx context.Context) (common.Hash, error) {
	values, err := r.call(ctx, "merkleRoot")
	if err != nil {
		return common.Hash{}, err
	}
	return common.Hash(values[0].([32]byte)), nil
}

// Sensor returns the sensor address currently configured in the contract.
func (r *Reader) Sensor(ctx context.Context) (common.Address, error) {
	values, err := r.call(ctx, "sensor")
	if err != nil {
		return common.Address{}, err
	}
	return values[0].(common.Address), nil
}

// CidFormat returns the cid-format configuration currently stored by the contract.
func (r *Reader) CidFormat(ctx context.Context) (commitment.CidFormatConfig, error) {
	values, err := r.call(ctx, "cidDataFormat")
	if err != nil {
		return commitment.CidFormatConfig{}, err
	}
	length, err := toUint64(values[4])
	if err != nil {
		return commitment.CidFormatConfig{}, fmt.Errorf("invalid multihash length: %w", err)
	}
	return commitment.CidFormatConfig{
		Multibase:          values[0].(string),
		Version:            values[1].(string),
		Multicodec:         values[2].(string),
		MultihashAlgorithm: values[3].(string),
		MultihashLength:    length,
		TemplateRef:        values[5].(string),
	}, nil
}

func (r *Reader) call(ctx context.Context, method string) ([]interface{}, error) {
	input, err := contractABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("could not pack %s call: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &r.contract, Data: input}

	var output []byte
	err = r.retry(ctx, func(ctx context.Context) error {
		var err error
		output, err = r.client.CallContract(ctx, msg, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not call %s: %w", method, err)
	}

	values, err := contractABI.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("could not unpack %s result: %w", method, err)
	}
	return values, nil
}

// retry runs fn with capped exponential backoff. ErrBlockNotFound and context
// errors are not retried.
func (r *Reader) retry(ctx context.Context, fn func(context.Context) error) error {
	backoff, err := retry.NewExponential(r.config.RetryDelay)
	if err != nil {
		return fmt.Errorf("invalid retry delay: %w", err)
	}
	backoff = retry.WithCappedDuration(r.config.MaxRetryDelay, backoff)
	backoff = retry.WithMaxRetries(r.config.MaxRetries, backoff)

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil || errors.Is(err, module.ErrBlockNotFound) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		r.log.Debug().Err(err).Int("attempt", attempt).Msg("ledger request failed, retrying")
		return retry.RetryableError(err)
	})
}

package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/sensorledger/integrity/module"
)

const (
	// DefaultGateway resolves references through a subdomain gateway.
	DefaultGateway = "https://{cid}.ipfs.nftstorage.link/"

	DefaultMaxRetries    = 4
	DefaultRetryDelay    = 500 * time.Millisecond
	DefaultMaxRetryDelay = 10 * time.Second
	DefaultTimeout       = 30 * time.Second
	DefaultMaxSize       = 4 << 20
	// DefaultRequestsPerSecond stays below the limits public gateways enforce.
	DefaultRequestsPerSecond = 10

	refPlaceholder = "{cid}"
)

// ErrContentNotFound is returned when the gateway does not know a reference.
var ErrContentNotFound = errors.New("content not found")

// HashMismatchError indicates that fetched content does not hash to the
// reference it was requested under.
type HashMismatchError struct {
	Ref    string
	Actual cid.Cid
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("content of %s hashes to %s", e.Ref, e.Actual)
}

type GatewayConfig struct {
	// URL is either a template containing {cid} or a path gateway base URL.
	URL           string
	MaxRetries    uint64
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	Timeout       time.Duration
	MaxSize       int64
	// RequestsPerSecond limits requests to the gateway, 0 disables the limit.
	RequestsPerSecond float64
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		URL:           DefaultGateway,
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
		Timeout:       DefaultTimeout,
		MaxSize:       DefaultMaxSize,

		RequestsPerSecond: DefaultRequestsPerSecond,
	}
}

// Gateway fetches content from an HTTP gateway and checks it against its
// reference.
type Gateway struct {
	log     zerolog.Logger
	metrics module.ContentCacheMetrics
	client  *http.Client
	limiter *rate.Limiter
	config  GatewayConfig
}

var _ module.ContentFetcher = (*Gateway)(nil)

func NewGateway(log zerolog.Logger, metrics module.ContentCacheMetrics, config GatewayConfig) *Gateway {
	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	return &Gateway{
		log:     log.With().Str("component", "content_gateway").Logger(),
		metrics: metrics,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		config:  config,
	}
}

// URL returns the gateway URL of the reference.
func (g *Gateway) URL(ref string) string {
	if strings.Contains(g.config.URL, refPlaceholder) {
		return strings.ReplaceAll(g.config.URL, refPlaceholder, ref)
	}
	return strings.TrimSuffix(g.config.URL, "/") + "/ipfs/" + ref
}

// Fetch downloads the content stored under ref. Failed requests are retried
// with capped exponential backoff, missing content is not.
//
// Expected errors:
//   - ErrContentNotFound if the gateway does not know the reference
//   - HashMismatchError if the content does not match the reference
func (g *Gateway) Fetch(ctx context.Context, ref string) ([]byte, error) {
	backoff, err := retry.NewExponential(g.config.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("invalid retry delay: %w", err)
	}
	backoff = retry.WithCappedDuration(g.config.MaxRetryDelay, backoff)
	backoff = retry.WithMaxRetries(g.config.MaxRetries, backoff)

	url := g.URL(ref)
	attempt := 0
	var data []byte
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			g.metrics.ContentFetchRetried()
		}
		body, retryable, err := g.get(ctx, url)
		if err != nil && retryable {
			g.log.Debug().Err(err).Str("ref", ref).Int("attempt", attempt).Msg("content fetch failed, retrying")
			return retry.RetryableError(err)
		}
		data = body
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not fetch %s: %w", ref, err)
	}

	err = Check(ref, data)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (g *Gateway) get(ctx context.Context, url string) ([]byte, bool, error) {
	err := g.limiter.Wait(ctx)
	if err != nil {
		return nil, false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("could not create request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, ErrContentNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("gateway returned %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("gateway returned %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, g.config.MaxSize+1))
	if err != nil {
		return nil, true, fmt.Errorf("could not read response: %w", err)
	}
	if int64(len(data)) > g.config.MaxSize {
		return nil, false, fmt.Errorf("content exceeds %d bytes", g.config.MaxSize)
	}
	return data, false, nil
}

// Check verifies that data hashes to ref. References that are not content
// identifiers and dag-pb identifiers, whose hash covers the encoded node
// rather than the file bytes a gateway returns, are accepted unchecked.
func Check(ref string, data []byte) error {
	c, err := cid.Decode(ref)
	if err != nil || c.Prefix().Codec == cid.DagProtobuf {
		return nil
	}
	actual, err := c.Prefix().Sum(data)
	if err != nil {
		return fmt.Errorf("could not hash content of %s: %w", ref, err)
	}
	if !actual.Equals(c) {
		return &HashMismatchError{Ref: ref, Actual: actual}
	}
	return nil
}

func IsHashMismatch(err error) bool {
	var hashMismatchError *HashMismatchError
	return errors.As(err, &hashMismatchError)
}

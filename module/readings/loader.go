package readings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/sensorledger/integrity/model/commitment"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
	DefaultTimeout    = time.Minute
)

// Loader reads the stored sensor readings, either from a local JSON file or
// from the data API. Both hold a JSON array of five-column rows.
type Loader struct {
	log        zerolog.Logger
	client     *http.Client
	maxRetries uint64
	retryDelay time.Duration
}

func NewLoader(log zerolog.Logger) *Loader {
	return &Loader{
		log:        log.With().Str("component", "readings_loader").Logger(),
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
}

// WithRetries returns a copy of the loader with the given retry policy for API requests.
func (l *Loader) WithRetries(max uint64, delay time.Duration) *Loader {
	c := *l
	c.maxRetries = max
	c.retryDelay = delay
	return &c
}

// Load reads readings from source, which is an http(s) URL or a file path.
func (l *Loader) Load(ctx context.Context, source string) ([]commitment.Reading, error) {
	var (
		data []byte
		err  error
	)
	if IsURL(source) {
		data, err = l.fetch(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("could not load readings from %s: %w", source, err)
	}

	readings, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("could not parse readings from %s: %w", source, err)
	}
	l.log.Info().Str("source", source).Int("readings", len(readings)).Msg("readings loaded")
	return readings, nil
}

// Parse decodes a JSON array of raw reading rows.
func Parse(data []byte) ([]commitment.Reading, error) {
	var rows [][]json.RawMessage
	err := json.Unmarshal(data, &rows)
	if err != nil {
		return nil, fmt.Errorf("expected an array of rows: %w", err)
	}
	return commitment.ParseRows(rows)
}

func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	backoff, err := retry.NewExponential(l.retryDelay)
	if err != nil {
		return nil, fmt.Errorf("invalid retry delay: %w", err)
	}
	backoff = retry.WithMaxRetries(l.maxRetries, backoff)

	var data []byte
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := l.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("data api returned %s", resp.Status))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("data api returned %s", resp.Status)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		data = body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

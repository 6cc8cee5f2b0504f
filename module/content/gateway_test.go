package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/sensorledger/integrity/module/metrics"
	"github.com/sensorledger/integrity/utils/unittest"
)

func testGateway(url string) *Gateway {
	config := DefaultGatewayConfig()
	config.URL = url
	config.RetryDelay = time.Millisecond
	config.MaxRetries = 2
	config.MaxSize = 1024
	config.RequestsPerSecond = 0
	return NewGateway(unittest.Logger(), metrics.NewNoopCollector(), config)
}

func TestGatewayURL(t *testing.T) {
	assert.Equal(t, "https://bafy.ipfs.nftstorage.link/", testGateway(DefaultGateway).URL("bafy"))
	assert.Equal(t, "http://localhost:8080/ipfs/bafy", testGateway("http://localhost:8080/").URL("bafy"))
	assert.Equal(t, "http://gw/x/bafy/raw", testGateway("http://gw/x/{cid}/raw").URL("bafy"))
}

func TestGatewayFetch(t *testing.T) {
	store := unittest.NewContentStore()
	ref := store.Put([]byte(unittest.LeafTemplate))
	requests := atomic.NewInt32(0)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		data, err := store.Fetch(r.Context(), strings.TrimPrefix(r.URL.Path, "/ipfs/"))
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	}))
	defer server.Close()

	g := testGateway(server.URL)

	data, err := g.Fetch(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, unittest.LeafTemplate, string(data))
	assert.Equal(t, int32(2), requests.Load())

	// not found is final
	_, err = g.Fetch(context.Background(), "bafkreimissing")
	require.ErrorIs(t, err, ErrContentNotFound)
	assert.Equal(t, int32(3), requests.Load())
}

func TestGatewayRateLimit(t *testing.T) {
	store := unittest.NewContentStore()
	ref := store.Put([]byte("data"))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	config := DefaultGatewayConfig()
	config.URL = server.URL
	config.RequestsPerSecond = 20
	gateway := NewGateway(unittest.Logger(), metrics.NewNoopCollector(), config)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := gateway.Fetch(context.Background(), ref)
		require.NoError(t, err)
	}
	// the first request uses the burst, the others wait 50ms each
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestGatewayGivesUp(t *testing.T) {
	requests := atomic.NewInt32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := testGateway(server.URL).Fetch(context.Background(), "bafy")
	require.Error(t, err)
	assert.Equal(t, int32(3), requests.Load())
}

func TestGatewayRejectsTamperedContent(t *testing.T) {
	store := unittest.NewContentStore()
	ref := store.Put([]byte("original"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tampered"))
	}))
	defer server.Close()

	_, err := testGateway(server.URL).Fetch(context.Background(), ref)
	require.Error(t, err)
	assert.True(t, IsHashMismatch(err))
}

func TestGatewayRejectsOversizedContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer server.Close()

	_, err := testGateway(server.URL).Fetch(context.Background(), "not-a-cid")
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	store := unittest.NewContentStore()
	ref := store.Put([]byte("data"))

	assert.NoError(t, Check(ref, []byte("data")))
	assert.True(t, IsHashMismatch(Check(ref, []byte("other"))))
	assert.NoError(t, Check("not-a-cid", []byte("anything")))
	// dag-pb references cover the encoded node, not the file bytes
	assert.NoError(t, Check("QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", []byte("anything")))
}

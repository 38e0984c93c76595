package market

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a new test server and a RestClient configured to use it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	client := resty.New().SetBaseURL(server.URL)
	logger := zap.NewNop() // Use a no-op logger for tests

	rc := &RestClient{
		client:  client,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
	}

	return rc, server
}

func TestGetServerTime(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		expectedTime := time.Now().UnixMilli()
		mockResponse := fmt.Sprintf(`{"serverTime": %d}`, expectedTime)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/time", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(mockResponse))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		serverTime, err := rc.GetServerTime()

		assert.NoError(t, err)
		assert.Equal(t, expectedTime, serverTime)
	})

	t.Run("APIError", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code": -1100, "msg": "Illegal parameter"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		serverTime, err := rc.GetServerTime()

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get server time")
		assert.Equal(t, int64(0), serverTime)
	})
}

func TestGetKlines(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockResponse := `[
			[1700000000000, "100.0", "110.0", "95.0", "105.0", "12.5", 1700003599999],
			[1700003600000, "105.0", "112.0", "104.0", "110.0", "8.25", 1700007199999]
		]`

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/klines", r.URL.Path)
			assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
			assert.Equal(t, "1h", r.URL.Query().Get("interval"))
			assert.Equal(t, "500", r.URL.Query().Get("limit"))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(mockResponse))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		bars, err := rc.GetKlines("BTCUSDT", "1h", 500)

		require.NoError(t, err)
		require.Len(t, bars, 2)
		assert.Equal(t, time.UnixMilli(1700000000000).UTC(), bars[0].Timestamp)
		assert.Equal(t, "105", bars[0].Close.String())
		assert.Equal(t, "110", bars[1].Close.String())
		assert.Equal(t, "8.25", bars[1].Volume.String())
	})

	t.Run("MalformedKline", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[[1700000000000, "not-a-number", "1", "1", "1", "1"]]`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		_, err := rc.GetKlines("BTCUSDT", "1h", 10)
		assert.Error(t, err)
	})

	t.Run("BackwardsTimeline", func(t *testing.T) {
		mockResponse := `[
			[1700003600000, "1", "1", "1", "1", "1"],
			[1700000000000, "1", "1", "1", "1", "1"]
		]`

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(mockResponse))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		_, err := rc.GetKlines("BTCUSDT", "1h", 10)
		assert.ErrorIs(t, err, ErrNonMonotonicTimeline)
	})
}

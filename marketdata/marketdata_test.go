package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ornus/collector/coins"
	"github.com/ornus/collector/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// 2019-01-02 00:00:00 UTC
const dayMillis = 1546387200000

func kline(openMillis int64, open, high, low, close, volume string, trades int) string {
	return fmt.Sprintf(`[%d,"%s","%s","%s","%s","%s",%d,"100.5",%d,"1.5","2.5","0"]`,
		openMillis, open, high, low, close, volume, openMillis+86399999, trades)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, "", zap.NewNop())
	require.NoError(t, err)
	client.retryOptions = retry.Options{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	return client
}

func TestParseKlines(t *testing.T) {
	body := "[" + kline(dayMillis, "3700.1", "3800", "3650.5", "3780", "12000.25", 150000) + "]"

	bars, err := ParseKlines([]byte(body))
	require.NoError(t, err)
	require.Len(t, bars, 1)

	bar := bars[0]
	assert.Equal(t, time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC), bar.OpenTime)
	assert.Equal(t, 3700.1, bar.Open)
	assert.Equal(t, 3800.0, bar.High)
	assert.Equal(t, 3650.5, bar.Low)
	assert.Equal(t, 3780.0, bar.Close)
	assert.Equal(t, 12000.25, bar.Volume)
	assert.Equal(t, 100.5, bar.QuoteAssetVolume)
	assert.Equal(t, int64(150000), bar.NumTrades)
	assert.Equal(t, 2.5, bar.TakerQuoteVolume)
}

func TestParseKlines_Malformed(t *testing.T) {
	_, err := ParseKlines([]byte(`[[1,"2"]]`))
	assert.Error(t, err)

	_, err = ParseKlines([]byte(`[[1546387200000,"x","1","1","1","1",1,"1",1,"1","1","0"]]`))
	assert.Error(t, err)

	bars, err := ParseKlines([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestClient_GetBars(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, KLINES_ENDPOINT, r.URL.Path)
		assert.Equal(t, "ETHBTC", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		fmt.Fprint(w, "["+kline(dayMillis, "0.03", "0.031", "0.029", "0.0305", "5000", 42)+"]")
	})

	bars, err := client.GetBars(context.Background(), "ETHBTC", INTERVAL_DAILY, 5000)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 0.0305, bars[0].Close)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "[]")
	})

	bars, err := client.GetBars(context.Background(), "BTCUSDT", INTERVAL_DAILY, 1)
	require.NoError(t, err)
	assert.Empty(t, bars)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":-1121,"msg":"Invalid symbol."}`)
	})

	_, err := client.GetBars(context.Background(), "NOPEBTC", INTERVAL_DAILY, 1)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, retry.StatusCode(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_DailyMarketData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fmt.Sprint(dayMillis), r.URL.Query().Get("startTime"))
		switch r.URL.Query().Get("symbol") {
		case "BTCUSDT":
			fmt.Fprint(w, "["+kline(dayMillis, "4000", "4100", "3900", "4050", "20000", 300000)+"]")
		case "ETHBTC":
			fmt.Fprint(w, "["+kline(dayMillis, "0.5", "0.5", "0.25", "0.25", "7000", 1234)+"]")
		default:
			fmt.Fprint(w, "["+kline(dayMillis-86400000, "1", "1", "1", "1", "1", 1)+"]")
		}
	})

	day := time.Date(2019, 1, 2, 15, 30, 0, 0, time.UTC)

	btc, err := client.DailyMarketData(context.Background(), coins.New("Bitcoin", "BTC"), day)
	require.NoError(t, err)
	assert.Equal(t, 4050.0, btc.Close)
	assert.Equal(t, int64(300000), btc.NumTrades)

	eth, err := client.DailyMarketData(context.Background(), coins.New("Ethereum", "ETH"), day)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, eth.Open)
	assert.Equal(t, 2050.0, eth.High)
	assert.Equal(t, 975.0, eth.Low)
	assert.Equal(t, 1012.5, eth.Close)
	assert.Equal(t, 7000.0, eth.Volume)
	assert.Equal(t, int64(1234), eth.NumTrades)

	_, err = client.DailyMarketData(context.Background(), coins.New("Ripple", "XRP"), day)
	assert.ErrorIs(t, err, ErrNoBar)
}

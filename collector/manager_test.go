package collector

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ornus/collector/coins"
	"github.com/ornus/collector/retry"
	"github.com/ornus/collector/twitterapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type staticPool struct {
	mu   sync.Mutex
	keys []twitterapi.Credentials
}

func newStaticPool(consumers ...string) *staticPool {
	pool := &staticPool{}
	for _, consumer := range consumers {
		pool.keys = append(pool.keys, twitterapi.Credentials{
			AccessToken: "at", AccessSecret: "as", ConsumerKey: consumer, ConsumerSecret: "cs",
		})
	}
	return pool
}

func (p *staticPool) Next(ctx context.Context) (twitterapi.Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return twitterapi.Credentials{}, ErrNoCredentials
	}
	next := p.keys[0]
	p.keys = p.keys[1:]
	return next, nil
}

func (p *staticPool) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

type searchFunc func(consumer string, req twitterapi.SearchRequest) (*twitterapi.SearchResponse, error)

type fakeSearcher struct {
	consumer string
	search   searchFunc
}

func (f *fakeSearcher) SearchTweets(ctx context.Context, req twitterapi.SearchRequest) (*twitterapi.SearchResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.search(f.consumer, req)
}

func fakeFactory(search searchFunc) ClientFactory {
	return func(creds twitterapi.Credentials) (twitterapi.Searcher, error) {
		return &fakeSearcher{consumer: creds.ConsumerKey, search: search}, nil
	}
}

func statuses(ids ...uint64) *twitterapi.SearchResponse {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf(
			`{"id_str":"%d","created_at":"Fri Apr 25 10:43:41 +0000 2014","full_text":"great news","retweet_count":1,"user":{"id":%d}}`,
			id, id+1000))
	}
	body := `{"statuses":[` + strings.Join(parts, ",") + `]}`
	return &twitterapi.SearchResponse{APIResponse: twitterapi.APIResponse{StatusCode: 200, RawBody: []byte(body)}}
}

type constScorer float64

func (c constScorer) Polarity(string) float64 { return float64(c) }

func testCoins() []coins.Cryptocurrency {
	return []coins.Cryptocurrency{coins.New("Bitcoin", "BTC"), coins.New("Bitcoin_Cash", "BCHABC")}
}

func newTestManager(t *testing.T, pool KeyPool, search searchFunc, opts Options) *TweetManager {
	t.Helper()
	if opts.Scorer == nil {
		opts.Scorer = constScorer(0.5)
	}
	manager, err := NewTweetManager(context.Background(), testCoins(), pool, fakeFactory(search), opts, zap.NewNop())
	require.NoError(t, err)
	manager.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return manager
}

func TestNewTweetManager_EmptyCoins(t *testing.T) {
	_, err := NewTweetManager(context.Background(), nil, newStaticPool("a"), fakeFactory(nil), Options{}, zap.NewNop())
	assert.ErrorIs(t, err, coins.ErrEmptyList)
}

func TestNewTweetManager_ProbeSkipsRejectedKeys(t *testing.T) {
	var probed []string
	search := func(consumer string, req twitterapi.SearchRequest) (*twitterapi.SearchResponse, error) {
		probed = append(probed, consumer)
		if consumer == "bad" {
			return nil, &retry.HTTPError{StatusCode: http.StatusUnauthorized}
		}
		return statuses(), nil
	}

	manager := newTestManager(t, newStaticPool("bad", "good"), search, Options{Workers: 50})
	assert.Equal(t, []string{"bad", "good"}, probed)
	assert.Equal(t, 2, manager.workers)
}

func TestNewTweetManager_ProbeFatalError(t *testing.T) {
	search := func(consumer string, req twitterapi.SearchRequest) (*twitterapi.SearchResponse, error) {
		return nil, &retry.HTTPError{StatusCode: http.StatusBadRequest}
	}
	_, err := NewTweetManager(context.Background(), testCoins(), newStaticPool("a", "b"), fakeFactory(search), Options{}, zap.NewNop())
	assert.Error(t, err)
}

func TestGetTweets_NameThenTickerWithDedupe(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	queries := map[string]int{}
	search := func(consumer string, req twitterapi.SearchRequest) (*twitterapi.SearchResponse, error) {
		mu.Lock()
		queries[req.Query] = req.Count
		mu.Unlock()

		switch req.Query {
		case "Bitcoin":
			return statuses(1, 2), nil
		case "BTC":
			return statuses(2, 3), nil
		case "Bitcoin Cash":
			return statuses(10, 11, 12), nil
		default:
			return statuses(), nil
		}
	}

	manager := newTestManager(t, newStaticPool("k"), search, Options{})
	harvest, err := manager.GetTweets(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 1, harvest.Windows)
	assert.Equal(t, 3, harvest.PerCoin["Bitcoin"])
	assert.Equal(t, 3, harvest.PerCoin["Bitcoin_Cash"])
	assert.Empty(t, harvest.Failures)
	assert.Len(t, harvest.Tweets, 6)

	assert.Equal(t, 3, queries["Bitcoin"])
	assert.Equal(t, 1, queries["BTC"])
	_, tickerQueried := queries["BCHABC"]
	assert.False(t, tickerQueried, "ticker search skipped when name search filled the batch")

	for _, tweet := range harvest.Tweets {
		assert.NotEmpty(t, tweet.Coin)
		assert.Equal(t, 0.5, tweet.Sentiment)
	}
}

func TestGetTweets_RotatesOnRateLimit(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int64
	search := func(consumer string, req twitterapi.SearchRequest) (*twitterapi.SearchResponse, error) {
		if req.Query == probeQuery {
			return statuses(), nil
		}
		if consumer == "first" {
			return nil, &retry.HTTPError{StatusCode: http.StatusTooManyRequests}
		}
		id := uint64(calls.Add(1)) * 100
		return statuses(id, id+1), nil
	}

	var rotations atomic.Int64
	opts := Options{OnRotate: func(reason string, remaining int) { rotations.Add(1) }}
	manager := newTestManager(t, newStaticPool("first", "second", "third"), search, opts)

	harvest, err := manager.GetTweets(context.Background(), 2)
	require.NoError(t, err)

	assert.Empty(t, harvest.Failures)
	assert.Equal(t, 2, harvest.PerCoin["Bitcoin"])
	assert.Equal(t, 2, harvest.PerCoin["Bitcoin_Cash"])
	assert.Equal(t, int64(1), rotations.Load(), "concurrent failures on one generation rotate once")
}

func TestGetTweets_RecordsCoinFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	search := func(consumer string, req twitterapi.SearchRequest) (*twitterapi.SearchResponse, error) {
		if req.Query == "Bitcoin Cash" {
			return nil, &retry.HTTPError{StatusCode: http.StatusInternalServerError}
		}
		return statuses(7), nil
	}

	manager := newTestManager(t, newStaticPool("k"), search, Options{})
	harvest, err := manager.GetTweets(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, harvest.PerCoin["Bitcoin"])
	assert.Equal(t, 0, harvest.PerCoin["Bitcoin_Cash"])
	require.Contains(t, harvest.Failures, "Bitcoin_Cash")
	assert.Equal(t, http.StatusInternalServerError, retry.StatusCode(harvest.Failures["Bitcoin_Cash"]))
}

func TestGetTweets_AttemptsExhausted(t *testing.T) {
	defer goleak.VerifyNone(t)

	search := func(consumer string, req twitterapi.SearchRequest) (*twitterapi.SearchResponse, error) {
		if req.Query == probeQuery {
			return statuses(), nil
		}
		return nil, &retry.HTTPError{StatusCode: http.StatusTooManyRequests}
	}

	manager := newTestManager(t, newStaticPool("a", "b", "c", "d", "e", "f", "g", "h"), search, Options{Workers: 1, MaxAttempts: 2})
	harvest, err := manager.GetTweets(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, harvest.Failures, 2)
	assert.ErrorIs(t, harvest.Failures["Bitcoin"], ErrAttemptsExhausted)
}

func TestGetTweets_MultipleWindows(t *testing.T) {
	defer goleak.VerifyNone(t)

	var next atomic.Uint64
	search := func(consumer string, req twitterapi.SearchRequest) (*twitterapi.SearchResponse, error) {
		ids := make([]uint64, req.Count)
		for i := range ids {
			ids[i] = next.Add(1)
		}
		return statuses(ids...), nil
	}

	manager := newTestManager(t, newStaticPool("k"), search, Options{MaxTweetsPerWindow: 4, WindowInterval: time.Second})
	var waits []time.Duration
	manager.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	harvest, err := manager.GetTweets(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 3, harvest.Windows)
	assert.Equal(t, 10, harvest.PerCoin["Bitcoin"])
	assert.Equal(t, 10, harvest.PerCoin["Bitcoin_Cash"])
	assert.Len(t, harvest.Tweets, 20)
	assert.Len(t, waits, 2)
}

func TestGetTweets_PagesOlderTweetsEachWindow(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	maxIDs := map[string][]string{}
	search := func(consumer string, req twitterapi.SearchRequest) (*twitterapi.SearchResponse, error) {
		mu.Lock()
		maxIDs[req.Query] = append(maxIDs[req.Query], req.MaxID)
		mu.Unlock()

		// recent search: newest page unless max_id asks for older tweets
		newest := uint64(1000)
		if req.MaxID != "" {
			parsed, err := strconv.ParseUint(req.MaxID, 10, 64)
			if err != nil {
				return nil, err
			}
			newest = parsed
		}
		ids := make([]uint64, req.Count)
		for i := range ids {
			ids[i] = newest - uint64(i)
		}
		return statuses(ids...), nil
	}

	manager := newTestManager(t, newStaticPool("k"), search, Options{})
	harvest, err := manager.GetTweets(context.Background(), 300)
	require.NoError(t, err)

	assert.Equal(t, 3, harvest.Windows)
	assert.Equal(t, 300, harvest.PerCoin["Bitcoin"])
	assert.Equal(t, 300, harvest.PerCoin["Bitcoin_Cash"])
	assert.Empty(t, harvest.Failures)

	assert.Equal(t, []string{"", "900", "800"}, maxIDs["Bitcoin"])
	assert.Equal(t, []string{"", "900", "800"}, maxIDs["Bitcoin Cash"])

	oldest := uint64(1000)
	for _, tweet := range harvest.Tweets {
		oldest = min(oldest, tweet.ID)
	}
	assert.Equal(t, uint64(701), oldest)
}

func TestGetTweets_ContextCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	search := func(consumer string, req twitterapi.SearchRequest) (*twitterapi.SearchResponse, error) {
		return statuses(1), nil
	}
	manager := newTestManager(t, newStaticPool("k"), search, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := manager.GetTweets(ctx, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckKeys(t *testing.T) {
	search := func(consumer string, req twitterapi.SearchRequest) (*twitterapi.SearchResponse, error) {
		if consumer == "revoked-key" {
			return nil, &retry.HTTPError{StatusCode: http.StatusUnauthorized}
		}
		return statuses(), nil
	}

	keys := newStaticPool("working-key", "revoked-key").keys
	results := CheckKeys(context.Background(), keys, fakeFactory(search))

	require.Len(t, results, 2)
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	assert.Equal(t, "...-key", results[1].Consumer)
	assert.Error(t, results[1].Err)
}

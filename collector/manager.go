package collector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ornus/collector/coins"
	"github.com/ornus/collector/logger"
	"github.com/ornus/collector/sentiment"
	"github.com/ornus/collector/tweetparser"
	"github.com/ornus/collector/twitterapi"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DEFAULT_WORKERS               = 12
	DEFAULT_MAX_TWEETS_PER_WINDOW = twitterapi.MAX_SEARCH_COUNT
	DEFAULT_WINDOW_INTERVAL       = 5 * time.Second
	DEFAULT_MAX_ATTEMPTS          = 3

	probeQuery = "test"
)

var ErrAttemptsExhausted = errors.New("search attempts exhausted")

// ClientFactory builds a search client signed with one credential set.
type ClientFactory func(creds twitterapi.Credentials) (twitterapi.Searcher, error)

// Scorer assigns a polarity in [-1, 1] to tweet text.
type Scorer interface {
	Polarity(text string) float64
}

type Options struct {
	Workers            int
	MaxTweetsPerWindow int
	WindowInterval     time.Duration
	MaxAttempts        int
	Scorer             Scorer
	// OnRotate is called after every credential rotation with the reason and the keys left in the pool.
	OnRotate func(reason string, remaining int)
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DEFAULT_WORKERS
	}
	if o.MaxTweetsPerWindow <= 0 || o.MaxTweetsPerWindow > twitterapi.MAX_SEARCH_COUNT {
		o.MaxTweetsPerWindow = DEFAULT_MAX_TWEETS_PER_WINDOW
	}
	if o.WindowInterval <= 0 {
		o.WindowInterval = DEFAULT_WINDOW_INTERVAL
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DEFAULT_MAX_ATTEMPTS
	}
	if o.Scorer == nil {
		o.Scorer = sentiment.NewAnalyzer()
	}
	return o
}

// Harvest is the outcome of one GetTweets run.
type Harvest struct {
	Tweets   []tweetparser.Tweet
	PerCoin  map[string]int
	Failures map[string]error
	Windows  int
	Elapsed  time.Duration
}

// TweetManager pulls tweets for every coin through a bounded worker pool,
// rotating credentials when the current set is rejected or rate limited.
type TweetManager struct {
	coins     []coins.Cryptocurrency
	pool      KeyPool
	newClient ClientFactory
	opts      Options
	workers   int
	logger    *zap.Logger

	mu         sync.RWMutex
	client     twitterapi.Searcher
	generation uint64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewTweetManager(ctx context.Context, coinList []coins.Cryptocurrency, pool KeyPool, newClient ClientFactory, opts Options, log *zap.Logger) (*TweetManager, error) {
	if len(coinList) == 0 {
		return nil, coins.ErrEmptyList
	}
	if pool == nil || newClient == nil {
		return nil, fmt.Errorf("tweet manager requires a key pool and a client factory")
	}

	opts = opts.withDefaults()
	m := &TweetManager{
		coins:     coinList,
		pool:      pool,
		newClient: newClient,
		opts:      opts,
		workers:   min(opts.Workers, len(coinList)),
		logger:    logger.Named(log, "tweets"),
		now:       time.Now,
		sleep:     sleepContext,
	}

	if err := m.acquire(ctx); err != nil {
		return nil, err
	}

	m.logger.Info("Tweet manager ready",
		zap.Int("coins", len(coinList)),
		zap.Int("workers", m.workers))

	return m, nil
}

// acquire takes keys from the pool until one passes a one-tweet probe search.
func (m *TweetManager) acquire(ctx context.Context) error {
	for {
		creds, err := m.pool.Next(ctx)
		if err != nil {
			return fmt.Errorf("failed to get credentials: %w", err)
		}

		client, err := m.newClient(creds)
		if err != nil {
			return fmt.Errorf("failed to create search client: %w", err)
		}

		_, err = client.SearchTweets(ctx, twitterapi.SearchRequest{Query: probeQuery, Count: 1})
		if err == nil {
			m.mu.Lock()
			m.client = client
			m.generation++
			m.mu.Unlock()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !twitterapi.IsRotatable(err) {
			return fmt.Errorf("probe search failed: %w", err)
		}

		m.logger.Warn("Credential rejected by probe, trying next",
			zap.String("consumer", creds.Masked()),
			zap.Error(err))
	}
}

func (m *TweetManager) current() (twitterapi.Searcher, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client, m.generation
}

// rotate swaps in the next credential set unless another worker already
// rotated away from generation.
func (m *TweetManager) rotate(ctx context.Context, generation uint64, reason error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if generation != m.generation {
		return nil
	}

	creds, err := m.pool.Next(ctx)
	if err != nil {
		return fmt.Errorf("failed to rotate credentials: %w", err)
	}
	client, err := m.newClient(creds)
	if err != nil {
		return fmt.Errorf("failed to create search client: %w", err)
	}

	m.client = client
	m.generation++

	remaining := m.pool.Remaining()
	m.logger.Info("Rotated credentials",
		zap.String("consumer", creds.Masked()),
		zap.Int("remaining", remaining),
		zap.Error(reason))
	if m.opts.OnRotate != nil {
		m.opts.OnRotate(reason.Error(), remaining)
	}
	return nil
}

func (m *TweetManager) search(ctx context.Context, query string, count int, maxID string) ([]tweetparser.Tweet, error) {
	var lastErr error
	for attempt := 0; attempt < m.opts.MaxAttempts; attempt++ {
		client, generation := m.current()

		resp, err := client.SearchTweets(ctx, twitterapi.SearchRequest{Query: query, Count: count, MaxID: maxID})
		if err == nil {
			tweets, parseErr := resp.Tweets()
			if parseErr != nil {
				m.logger.Warn("Some statuses could not be parsed",
					zap.String("query", query),
					zap.Error(parseErr))
			}
			return tweets, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !twitterapi.IsRotatable(err) {
			return nil, err
		}

		lastErr = err
		if err := m.rotate(ctx, generation, err); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d attempts for %q: %v", ErrAttemptsExhausted, m.opts.MaxAttempts, query, lastErr)
}

type coinResult struct {
	tweets []tweetparser.Tweet
	err    error
}

// coinCursor carries one coin's state across windows.
type coinCursor struct {
	seen map[uint64]struct{}
	// oldest is the smallest tweet id returned so far per query
	oldest map[string]uint64
}

func newCoinCursor() *coinCursor {
	return &coinCursor{
		seen:   make(map[uint64]struct{}),
		oldest: make(map[string]uint64),
	}
}

// maxID pages below every tweet already returned for query.
func (c *coinCursor) maxID(query string) string {
	oldest, ok := c.oldest[query]
	if !ok || oldest == 0 {
		return ""
	}
	return strconv.FormatUint(oldest-1, 10)
}

func (c *coinCursor) observe(query string, tweets []tweetparser.Tweet) {
	for _, tweet := range tweets {
		if oldest, ok := c.oldest[query]; !ok || tweet.ID < oldest {
			c.oldest[query] = tweet.ID
		}
	}
}

// pullCoin searches by name, then by ticker for the rest of the batch.
// Each query continues below the oldest tweet it returned in earlier windows.
// Tweets already seen for the coin are dropped.
func (m *TweetManager) pullCoin(ctx context.Context, coin coins.Cryptocurrency, batch int, cursor *coinCursor) coinResult {
	result := coinResult{}

	for _, query := range []string{coin.SearchTerm(), coin.Ticker} {
		want := batch - len(result.tweets)
		if want <= 0 {
			break
		}

		tweets, err := m.search(ctx, query, want, cursor.maxID(query))
		if err != nil {
			result.err = err
			return result
		}
		cursor.observe(query, tweets)

		for _, tweet := range tweets {
			if len(result.tweets) >= batch {
				break
			}
			if _, dup := cursor.seen[tweet.ID]; dup {
				continue
			}
			cursor.seen[tweet.ID] = struct{}{}
			tweet.Coin = coin.Name
			tweet.Sentiment = m.opts.Scorer.Polarity(tweet.Text)
			result.tweets = append(result.tweets, tweet)
		}
	}

	return result
}

// GetTweets pulls up to perCoin tweets for every coin, at most
// MaxTweetsPerWindow per coin per window.
func (m *TweetManager) GetTweets(ctx context.Context, perCoin int) (*Harvest, error) {
	start := m.now()
	harvest := &Harvest{
		Tweets:   []tweetparser.Tweet{},
		PerCoin:  make(map[string]int, len(m.coins)),
		Failures: make(map[string]error),
	}

	cursors := make([]*coinCursor, len(m.coins))
	for i := range cursors {
		cursors[i] = newCoinCursor()
	}

	remaining := perCoin
	for remaining > 0 {
		windowStart := m.now()
		batch := min(remaining, m.opts.MaxTweetsPerWindow)

		results := make([]coinResult, len(m.coins))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(m.workers)
		for i, coin := range m.coins {
			g.Go(func() error {
				results[i] = m.pullCoin(gctx, coin, batch, cursors[i])
				return gctx.Err()
			})
		}
		waitErr := g.Wait()

		for i, coin := range m.coins {
			res := results[i]
			harvest.Tweets = append(harvest.Tweets, res.tweets...)
			harvest.PerCoin[coin.Name] += len(res.tweets)
			if res.err != nil && ctx.Err() == nil {
				harvest.Failures[coin.Name] = res.err
				m.logger.Error("Failed to pull tweets",
					zap.String("coin", coin.Name),
					zap.Error(res.err))
			}
		}
		harvest.Windows++

		if waitErr != nil || ctx.Err() != nil {
			harvest.Elapsed = m.now().Sub(start)
			if ctx.Err() != nil {
				return harvest, ctx.Err()
			}
			return harvest, waitErr
		}

		remaining -= batch
		m.logger.Info("Window complete",
			zap.Int("window", harvest.Windows),
			zap.Int("remaining", remaining),
			zap.Duration("elapsed", m.now().Sub(start)))

		if remaining > 0 {
			if wait := m.opts.WindowInterval - m.now().Sub(windowStart); wait > 0 {
				if err := m.sleep(ctx, wait); err != nil {
					harvest.Elapsed = m.now().Sub(start)
					return harvest, err
				}
			}
		}
	}

	harvest.Elapsed = m.now().Sub(start)
	return harvest, nil
}

// Coins returns the coins this manager pulls.
func (m *TweetManager) Coins() []coins.Cryptocurrency {
	return m.coins
}

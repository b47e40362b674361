package collector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ornus/collector/logger"
	"github.com/ornus/collector/twitterapi"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DEFAULT_RESET_WINDOW matches the search API rate-limit window.
const DEFAULT_RESET_WINDOW = 900 * time.Second

var ErrNoCredentials = errors.New("no usable credentials in key file")

// KeyPool hands out credential sets to the tweet manager.
type KeyPool interface {
	Next(ctx context.Context) (twitterapi.Credentials, error)
	Remaining() int
}

// CredentialPool is a FIFO queue of credential sets reloaded from disk once per reset window.
type CredentialPool struct {
	mu          sync.Mutex
	path        string
	resetWindow time.Duration
	logger      *zap.Logger

	all         []twitterapi.Credentials
	queue       []twitterapi.Credentials
	windowStart time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewCredentialPool(path string, resetWindow time.Duration, log *zap.Logger) (*CredentialPool, error) {
	if resetWindow <= 0 {
		resetWindow = DEFAULT_RESET_WINDOW
	}

	pool := &CredentialPool{
		path:        path,
		resetWindow: resetWindow,
		logger:      logger.Named(log, "credentials"),
		now:         time.Now,
		sleep:       sleepContext,
	}

	if err := pool.reload(); err != nil {
		return nil, err
	}

	pool.logger.Info("Credential pool loaded",
		zap.String("path", path),
		zap.Int("keys", len(pool.all)),
		zap.Duration("reset_window", resetWindow))

	return pool, nil
}

// LoadCredentials reads {"keys": [...]} from a JSON key file.
func LoadCredentials(path string) ([]twitterapi.Credentials, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}

	var keys []twitterapi.Credentials
	if err := v.UnmarshalKey("keys", &keys); err != nil {
		return nil, fmt.Errorf("failed to decode keys in %s: %w", path, err)
	}

	valid := make([]twitterapi.Credentials, 0, len(keys))
	for _, key := range keys {
		if key.Valid() {
			valid = append(valid, key)
		}
	}
	if len(valid) == 0 {
		return nil, ErrNoCredentials
	}

	return valid, nil
}

func (p *CredentialPool) reload() error {
	keys, err := LoadCredentials(p.path)
	if err != nil {
		return err
	}

	p.all = keys
	p.queue = append([]twitterapi.Credentials(nil), keys...)
	p.windowStart = p.now()
	return nil
}

func (p *CredentialPool) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// All returns every credential set loaded in the current window.
func (p *CredentialPool) All() []twitterapi.Credentials {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]twitterapi.Credentials(nil), p.all...)
}

// Next pops the next credential set. When the queue is empty it waits for the
// reset window to elapse, then reloads the key file and starts a new window.
func (p *CredentialPool) Next(ctx context.Context) (twitterapi.Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		wait := p.resetWindow - p.now().Sub(p.windowStart)
		if wait > 0 {
			p.logger.Warn("Credential pool exhausted, waiting for reset", zap.Duration("wait", wait))
			if err := p.sleep(ctx, wait); err != nil {
				return twitterapi.Credentials{}, err
			}
		}
		if err := p.reload(); err != nil {
			return twitterapi.Credentials{}, fmt.Errorf("failed to reload credentials: %w", err)
		}
		p.logger.Info("Credential pool reloaded", zap.Int("keys", len(p.queue)))
	}

	next := p.queue[0]
	p.queue = p.queue[1:]
	return next, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

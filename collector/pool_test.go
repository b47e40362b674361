package collector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const twoKeys = `{"keys": [
  {"ACCESS_TOKEN": "at-1", "ACCESS_SECRET": "as-1", "CONSUMER_KEY": "ck-key-0001", "CONSUMER_SECRET": "cs-1"},
  {"ACCESS_TOKEN": "at-2", "ACCESS_SECRET": "as-2", "CONSUMER_KEY": "ck-key-0002", "CONSUMER_SECRET": "cs-2"}
]}`

func writeKeyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api_keys.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewCredentialPool(t *testing.T) {
	pool, err := NewCredentialPool(writeKeyFile(t, twoKeys), 0, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 2, pool.Remaining())
	all := pool.All()
	require.Len(t, all, 2)
	assert.Equal(t, "at-1", all[0].AccessToken)
	assert.Equal(t, "ck-key-0002", all[1].ConsumerKey)
	assert.Equal(t, DEFAULT_RESET_WINDOW, pool.resetWindow)
}

func TestNewCredentialPool_Errors(t *testing.T) {
	_, err := NewCredentialPool(filepath.Join(t.TempDir(), "missing.json"), time.Minute, zap.NewNop())
	assert.Error(t, err)

	_, err = NewCredentialPool(writeKeyFile(t, `{"keys": []}`), time.Minute, zap.NewNop())
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = NewCredentialPool(writeKeyFile(t, `{"keys": [`), time.Minute, zap.NewNop())
	assert.Error(t, err)

	_, err = NewCredentialPool(writeKeyFile(t, `{"keys": [{"ACCESS_TOKEN": "only"}]}`), time.Minute, zap.NewNop())
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestCredentialPool_NextWaitsForReset(t *testing.T) {
	pool, err := NewCredentialPool(writeKeyFile(t, twoKeys), 15*time.Minute, zap.NewNop())
	require.NoError(t, err)

	clock := time.Date(2019, 1, 1, 12, 0, 0, 0, time.UTC)
	pool.now = func() time.Time { return clock }
	pool.windowStart = clock

	var slept []time.Duration
	pool.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		clock = clock.Add(d)
		return nil
	}

	first, err := pool.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-1", first.AccessToken)

	second, err := pool.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-2", second.AccessToken)
	assert.Equal(t, 0, pool.Remaining())

	clock = clock.Add(5 * time.Minute)
	third, err := pool.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-1", third.AccessToken)
	assert.Equal(t, []time.Duration{10 * time.Minute}, slept)
	assert.Equal(t, 1, pool.Remaining())

	// The window restarted at the reload, so the next exhaustion waits again.
	_, err = pool.Next(context.Background())
	require.NoError(t, err)
	_, err = pool.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{10 * time.Minute, 15 * time.Minute}, slept)
}

func TestCredentialPool_NextHonoursContext(t *testing.T) {
	pool, err := NewCredentialPool(writeKeyFile(t, twoKeys), time.Hour, zap.NewNop())
	require.NoError(t, err)

	_, _ = pool.Next(context.Background())
	_, _ = pool.Next(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = pool.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

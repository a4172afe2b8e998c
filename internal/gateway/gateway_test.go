package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestClient_MissingSettings(t *testing.T) {
	cases := []map[string]string{
		{},
		{EnvURL: "fern@tcp(localhost:3306)/fernid"},
		{EnvKey: "secret"},
		{EnvURL: "   ", EnvKey: "secret"},
	}
	for _, m := range cases {
		var opened int
		p := NewProvider(env(m), func(context.Context, Settings) (*Client, error) {
			opened++
			return &Client{}, nil
		})
		_, err := p.Client(context.Background())
		assert.ErrorIs(t, err, ErrConfig)
		assert.Zero(t, opened, "opener must not run without settings")
	}
}

func TestClient_ConstructedOnce(t *testing.T) {
	var opened atomic.Int32
	p := NewProvider(env(map[string]string{EnvURL: "u", EnvKey: "k"}),
		func(_ context.Context, s Settings) (*Client, error) {
			opened.Add(1)
			assert.Equal(t, Settings{URL: "u", Key: "k"}, s)
			return &Client{}, nil
		})

	var wg sync.WaitGroup
	got := make([]*Client, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := p.Client(context.Background())
			require.NoError(t, err)
			got[i] = c
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, opened.Load())
	for _, c := range got {
		assert.Same(t, got[0], c)
	}
}

func TestClient_OpenErrorNotCached(t *testing.T) {
	boom := errors.New("dial failed")
	fail := true
	p := NewProvider(env(map[string]string{EnvURL: "u", EnvKey: "k"}),
		func(context.Context, Settings) (*Client, error) {
			if fail {
				return nil, boom
			}
			return &Client{}, nil
		})

	_, err := p.Client(context.Background())
	assert.ErrorIs(t, err, boom)

	fail = false
	c, err := p.Client(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestDSN(t *testing.T) {
	dsn, err := DSN(Settings{URL: "fern@tcp(db:3306)/fernid", Key: "s3cret"})
	require.NoError(t, err)
	assert.Contains(t, dsn, "fern:s3cret@tcp(db:3306)/fernid")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")

	_, err = DSN(Settings{URL: "not a dsn", Key: "k"})
	assert.ErrorIs(t, err, ErrConfig)
}

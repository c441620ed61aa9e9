package limitsvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escuela/core"
)

func newConf(rate string, disabled bool) *core.Config {
	conf := &core.Config{}
	conf.RateLimit.Login = rate
	conf.RateLimit.Disabled = disabled
	return conf
}

func TestLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	lim, err := New(newConf("3-M", false))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, ok, err := lim.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i+1)
	}
	lctx, ok, err := lim.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.EqualValues(t, 0, lctx.Remaining)

	// other clients are counted apart
	_, ok, err = lim.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNew(t *testing.T) {
	_, err := New(newConf("ten per minute", false))
	assert.Error(t, err)

	lim, err := New(newConf("", true))
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		_, ok, _ := lim.Allow(context.Background(), "k")
		require.True(t, ok)
	}
}

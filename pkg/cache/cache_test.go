package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyCacheCachesResult(t *testing.T) {
	c, err := NewPolicyCache(time.Minute)
	require.NoError(t, err)

	var calls int32
	key := PolicyKey([]byte("ptb"), [32]byte{1})
	eval := func(context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return true, nil
	}

	allowed, err := c.GetOrEvaluate(context.Background(), key, eval)
	require.NoError(t, err)
	assert.True(t, allowed)
	c.store.Wait()

	allowed, err = c.GetOrEvaluate(context.Background(), key, eval)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPolicyKeyDifferentiatesAddresses(t *testing.T) {
	a := PolicyKey([]byte("ptb"), [32]byte{1})
	b := PolicyKey([]byte("ptb"), [32]byte{2})
	assert.NotEqual(t, a, b)
}

func TestUskCacheCachesResult(t *testing.T) {
	c, err := NewUskCache(time.Minute)
	require.NoError(t, err)

	var calls int32
	key := UskKey("alice", []byte("full-id"))
	extract := func() ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("usk-bytes"), nil
	}

	usk, err := c.GetOrExtract(key, extract)
	require.NoError(t, err)
	assert.Equal(t, []byte("usk-bytes"), usk)
	c.store.Wait()

	usk, err = c.GetOrExtract(key, extract)
	require.NoError(t, err)
	assert.Equal(t, []byte("usk-bytes"), usk)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

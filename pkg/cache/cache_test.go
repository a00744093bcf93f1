/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: cache_test.go
Description: Tests for the alphabet, the memoizing query cache, and the persistent
bbolt layer. Covers memoization counters, oracle error wrapping, and cache
persistence across reopen.
*/

package cache_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/kleascm/sflearn/pkg/cache"
	"github.com/kleascm/sflearn/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingOracle echoes its input and counts invocations.
func countingOracle(calls *int) interfaces.MembershipOracle {
	return func(input interfaces.Word) (interfaces.Word, error) {
		*calls++
		return input.Clone(), nil
	}
}

func TestAlphabet(t *testing.T) {
	a, err := cache.AlphabetFromString("abc")
	require.NoError(t, err)
	assert.Equal(t, 3, a.Len())
	assert.True(t, a.Contains(interfaces.Symbol('b')))
	assert.False(t, a.Contains(interfaces.Symbol('z')))
	assert.Equal(t, 1, a.Index(interfaces.Symbol('b')))
	assert.Equal(t, interfaces.Symbol('c'), a.Symbol(2))
	assert.True(t, a.ContainsWord(interfaces.WordFromString("cab")))
	assert.False(t, a.ContainsWord(interfaces.WordFromString("cad")))
}

func TestAlphabetRejectsDuplicates(t *testing.T) {
	_, err := cache.AlphabetFromString("aba")
	require.Error(t, err)

	_, err = cache.NewAlphabet(nil)
	require.Error(t, err)
}

func TestAlphabetSymbolsIsCopy(t *testing.T) {
	a, err := cache.AlphabetFromString("ab")
	require.NoError(t, err)
	symbols := a.Symbols()
	symbols[0] = 'z'
	assert.Equal(t, interfaces.Symbol('a'), a.Symbol(0))
}

func TestQueryCacheMemoization(t *testing.T) {
	calls := 0
	c := cache.NewQueryCache(countingOracle(&calls))

	input := interfaces.WordFromString("abc")
	out, err := c.Query(input)
	require.NoError(t, err)
	assert.True(t, out.Equal(input))

	out, err = c.Query(input)
	require.NoError(t, err)
	assert.True(t, out.Equal(input))

	assert.Equal(t, 1, calls, "identical queries must not be re-issued")
	assert.Equal(t, 1, c.Len())

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Queries)
	assert.Equal(t, int64(1), stats.Issued)
	assert.Equal(t, int64(1), stats.Hits)
}

func TestQueryCacheDistinguishesWords(t *testing.T) {
	calls := 0
	c := cache.NewQueryCache(countingOracle(&calls))

	// Words that would collide under naive string conversion must stay
	// distinct under the byte-exact key encoding.
	_, err := c.Query(interfaces.Word{1, 2})
	require.NoError(t, err)
	_, err = c.Query(interfaces.Word{258})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestQueryCacheLookup(t *testing.T) {
	calls := 0
	c := cache.NewQueryCache(countingOracle(&calls))

	_, ok := c.Lookup(interfaces.WordFromString("a"))
	assert.False(t, ok)
	assert.Equal(t, 0, calls, "Lookup must never issue a query")

	_, err := c.Query(interfaces.WordFromString("a"))
	require.NoError(t, err)
	out, ok := c.Lookup(interfaces.WordFromString("a"))
	assert.True(t, ok)
	assert.True(t, out.Equal(interfaces.WordFromString("a")))
}

func TestQueryCacheWrapsOracleError(t *testing.T) {
	cause := fmt.Errorf("target crashed")
	c := cache.NewQueryCache(func(input interfaces.Word) (interfaces.Word, error) {
		return nil, cause
	})

	_, err := c.Query(interfaces.WordFromString("a"))
	require.Error(t, err)

	var oerr *interfaces.OracleError
	require.True(t, errors.As(err, &oerr))
	assert.True(t, oerr.Input.Equal(interfaces.WordFromString("a")))
	assert.True(t, errors.Is(err, cause))
}

func TestBoltCachePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.db")

	b, err := cache.OpenBoltCache(path)
	require.NoError(t, err)
	require.NoError(t, b.Put(interfaces.WordFromString("ab"), interfaces.WordFromString("X")))
	require.NoError(t, b.Close())

	b, err = cache.OpenBoltCache(path)
	require.NoError(t, err)
	defer b.Close()

	out, ok, err := b.Get(interfaces.WordFromString("ab"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, out.Equal(interfaces.WordFromString("X")))

	_, ok, err = b.Get(interfaces.WordFromString("ba"))
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := b.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBoltCachePersistsEmptyWord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.db")

	b, err := cache.OpenBoltCache(path)
	require.NoError(t, err)
	require.NoError(t, b.Put(interfaces.Word{}, interfaces.WordFromString("x")))
	require.NoError(t, b.Close())

	b, err = cache.OpenBoltCache(path)
	require.NoError(t, err)
	defer b.Close()

	out, ok, err := b.Get(interfaces.Word{})
	require.NoError(t, err)
	require.True(t, ok, "empty-word query must survive reopen")
	assert.True(t, out.Equal(interfaces.WordFromString("x")))
}

func TestQueryCacheWriteThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.db")
	b, err := cache.OpenBoltCache(path)
	require.NoError(t, err)
	defer b.Close()

	calls := 0
	c := cache.NewQueryCache(countingOracle(&calls))
	c.SetPersistence(b)

	_, err = c.Query(interfaces.WordFromString("abc"))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// A fresh in-memory cache over the same persistent layer answers
	// without touching the oracle.
	resumed := cache.NewQueryCache(countingOracle(&calls))
	resumed.SetPersistence(b)
	out, err := resumed.Query(interfaces.WordFromString("abc"))
	require.NoError(t, err)
	assert.True(t, out.Equal(interfaces.WordFromString("abc")))
	assert.Equal(t, 1, calls, "persisted query must not be re-issued")
	assert.Equal(t, int64(1), resumed.Stats().Hits)
}

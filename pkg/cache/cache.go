/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: cache.go
Description: Memoizing wrapper around the membership oracle. Identical queries are
never re-issued to the target; the cache is append-only and safe to inspect
read-only while a learning run owns it. Oracle failures are wrapped as OracleError
and propagated without retry.
*/

package cache

import (
	"github.com/kleascm/sflearn/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// Stats tracks query cache usage over a learning run.
type Stats struct {
	Queries int64 // Total membership queries requested
	Issued  int64 // Queries actually forwarded to the oracle
	Hits    int64 // Queries answered from memory or the persistent layer
}

// QueryCache memoizes a membership oracle.
type QueryCache struct {
	oracle  interfaces.MembershipOracle
	entries map[string]interfaces.Word
	persist *BoltCache
	stats   Stats
	logger  *logrus.Logger
}

// NewQueryCache creates a cache around the given membership oracle.
func NewQueryCache(oracle interfaces.MembershipOracle) *QueryCache {
	return &QueryCache{
		oracle:  oracle,
		entries: make(map[string]interfaces.Word),
		logger:  logrus.New(),
	}
}

// SetLogger sets the logger used for query tracing.
func (c *QueryCache) SetLogger(logger *logrus.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetPersistence attaches a persistent bbolt layer. Cache misses consult the
// persistent layer before the oracle, and fresh answers are written through,
// so an interrupted run resumes without re-querying the target.
func (c *QueryCache) SetPersistence(persist *BoltCache) {
	c.persist = persist
}

// Lookup returns the cached output for the input, without ever issuing an
// oracle query.
func (c *QueryCache) Lookup(input interfaces.Word) (interfaces.Word, bool) {
	out, ok := c.entries[input.Key()]
	return out, ok
}

// Query returns the target output for the input, answering from the cache
// when possible and issuing a membership query otherwise.
func (c *QueryCache) Query(input interfaces.Word) (interfaces.Word, error) {
	c.stats.Queries++
	key := input.Key()
	if out, ok := c.entries[key]; ok {
		c.stats.Hits++
		return out, nil
	}
	if c.persist != nil {
		out, ok, err := c.persist.Get(input)
		if err != nil {
			return nil, &interfaces.OracleError{Input: input.Clone(), Err: err}
		}
		if ok {
			c.stats.Hits++
			c.entries[key] = out
			return out, nil
		}
	}
	out, err := c.oracle(input)
	if err != nil {
		return nil, &interfaces.OracleError{Input: input.Clone(), Err: err}
	}
	c.stats.Issued++
	c.entries[key] = out
	if c.persist != nil {
		if err := c.persist.Put(input, out); err != nil {
			// Persistence is an optimization; a failed write-through must not
			// lose an already-answered query.
			c.logger.WithFields(logrus.Fields{
				"input": input.String(),
			}).Warnf("Persistent cache write failed: %v", err)
		}
	}
	c.logger.WithFields(logrus.Fields{
		"input":  input.String(),
		"output": out.String(),
	}).Debug("Membership query issued")
	return out, nil
}

// Len returns the number of distinct queries held by the cache.
func (c *QueryCache) Len() int {
	return len(c.entries)
}

// Stats returns a snapshot of the cache usage counters.
func (c *QueryCache) Stats() Stats {
	return c.stats
}

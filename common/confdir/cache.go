/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package confdir

import (
	"sync"

	"github.com/hyperledger-labs/globalconf/globalconf"
)

type cacheKey struct {
	kind     globalconf.Kind
	instance string
}

type cacheEntry struct {
	digest [32]byte
	err    error
}

// validationCache remembers the last validation outcome per document. An entry is only
// used while the stored content hashes to the same digest.
type validationCache struct {
	lock    sync.RWMutex
	entries map[cacheKey]cacheEntry
}

func newValidationCache() *validationCache {
	return &validationCache{entries: make(map[cacheKey]cacheEntry)}
}

func (c *validationCache) get(key cacheKey, digest [32]byte) (error, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.digest != digest {
		return nil, false
	}
	return e.err, true
}

func (c *validationCache) put(key cacheKey, digest [32]byte, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.entries[key] = cacheEntry{digest: digest, err: err}
}

func (c *validationCache) len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.entries)
}

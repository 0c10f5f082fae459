package application

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/example/bloc-scheduler/internal/bloc"
	"github.com/example/bloc-scheduler/internal/validation"
)

// validationCache stores recently computed validation results so repeated
// validation of an unchanged planning avoids re-running every rule. Entries
// are keyed by a content fingerprint and bounded by size and TTL; any
// mutation through the planning service purges the cache.
type validationCache struct {
	lru *expirable.LRU[string, validation.Result]
}

func newValidationCache(ttl time.Duration, maxEntries int) *validationCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	return &validationCache{
		lru: expirable.NewLRU[string, validation.Result](maxEntries, nil, ttl),
	}
}

func (c *validationCache) Get(key string) (validation.Result, bool) {
	if c == nil {
		return validation.Result{}, false
	}
	return c.lru.Get(key)
}

func (c *validationCache) Store(key string, result validation.Result) {
	if c == nil {
		return
	}
	c.lru.Add(key, result)
}

func (c *validationCache) Invalidate() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

// planningFingerprint derives a stable cache key from the planning content.
// JSON encoding of the entity model is deterministic (struct field order),
// so equal plannings share a fingerprint.
func planningFingerprint(planning bloc.DayPlanning) string {
	payload, err := json.Marshal(planning)
	if err != nil {
		return planning.ID + "@" + planning.Date.String()
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

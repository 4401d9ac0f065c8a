package config

import (
	"strings"
	"time"
)

const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
	CacheBackendNone   = "none"
)

// CacheConfig defines the availability cache in front of the catalog
// lookups.  NegativeTTL zero means derive it from each namespace TTL.
type CacheConfig struct {
	Backend     string
	OpTimeout   time.Duration
	VenueTTL    time.Duration
	ResourceTTL time.Duration
	SlotTTL     time.Duration
	NegativeTTL time.Duration
}

// LoadCacheConfig reads the CACHE_* variables.  Unknown backends fall back
// to redis; non-positive TTLs fall back to their defaults.
func LoadCacheConfig() CacheConfig {
	c := CacheConfig{
		Backend:     strings.ToLower(envStr("CACHE_BACKEND", CacheBackendRedis)),
		OpTimeout:   envDur("CACHE_OP_TIMEOUT", 200*time.Millisecond),
		VenueTTL:    envDur("CACHE_TTL_VENUE_ACTIVE", 300*time.Second),
		ResourceTTL: envDur("CACHE_TTL_RESOURCE_ACTIVE", 120*time.Second),
		SlotTTL:     envDur("CACHE_TTL_SLOT_ACTIVE", 120*time.Second),
		NegativeTTL: envDur("CACHE_TTL_NEGATIVE", 0),
	}
	switch c.Backend {
	case CacheBackendRedis, CacheBackendMemory, CacheBackendNone:
	default:
		c.Backend = CacheBackendRedis
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = 200 * time.Millisecond
	}
	if c.VenueTTL <= 0 {
		c.VenueTTL = 300 * time.Second
	}
	if c.ResourceTTL <= 0 {
		c.ResourceTTL = 120 * time.Second
	}
	if c.SlotTTL <= 0 {
		c.SlotTTL = 120 * time.Second
	}
	if c.NegativeTTL < 0 {
		c.NegativeTTL = 0
	}
	return c
}

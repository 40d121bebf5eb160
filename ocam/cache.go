package ocam

import (
	"sync"
	"time"

	"go.viam.com/rdk/logging"
)

// LUTCache keeps the most recently built LUT and rebuilds it only when the requested key changes.
type LUTCache struct {
	sampler *Sampler
	logger  logging.Logger

	mu     sync.Mutex
	lut    *LUT
	builds int
}

func NewLUTCache(sampler *Sampler, logger logging.Logger) *LUTCache {
	return &LUTCache{sampler: sampler, logger: logger}
}

// EnsureUpToDate returns the LUT for key, rebuilding it if the cached one was built for a
// different key. The returned LUT must not be modified. A failed rebuild keeps the previous entry.
func (c *LUTCache) EnsureUpToDate(key Key) (*LUT, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lut != nil && c.lut.Key == key {
		return c.lut, nil
	}

	start := time.Now()
	lut, err := c.sampler.Build(key)
	if err != nil {
		return nil, err
	}
	c.lut = lut
	c.builds++

	if c.logger != nil {
		c.logger.Debugf("built %dx%d lut (focal %v) in %v", key.Width, key.Height, key.FocalLength, time.Since(start))
	}
	return lut, nil
}

func (c *LUTCache) Builds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builds
}

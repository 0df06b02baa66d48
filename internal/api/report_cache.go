package api

import (
	"github.com/crashscan/backend/internal/models"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultReportCacheSize is the number of report values kept for
// structured downloads. Older reports are still served as markdown.
const DefaultReportCacheSize = 256

// reportCache holds report values by report file id. A nil cache keeps
// nothing.
type reportCache struct {
	lru *lru.Cache[string, *models.Report]
}

func newReportCache(size int) *reportCache {
	if size <= 0 {
		size = DefaultReportCacheSize
	}
	c, err := lru.New[string, *models.Report](size)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &reportCache{lru: c}
}

func (c *reportCache) add(id string, rep *models.Report) {
	if c != nil {
		c.lru.Add(id, rep)
	}
}

func (c *reportCache) get(id string) (*models.Report, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(id)
}

func (c *reportCache) remove(id string) {
	if c != nil {
		c.lru.Remove(id)
	}
}

func (c *reportCache) len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

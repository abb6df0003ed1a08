package middleware

import (
	"net/http"
	"strings"
	"sync"
)

// CallCosts maps api path prefixes to the number of rate limit tokens a call consumes.
type CallCosts struct {
	mutex sync.RWMutex
	costs map[string]int
}

func NewCallCosts() *CallCosts {
	return &CallCosts{
		costs: map[string]int{},
	}
}

func (c *CallCosts) Set(pathPrefix string, cost int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.costs[pathPrefix] = cost
}

// Get returns the cost of the longest matching prefix, or 1.
func (c *CallCosts) Get(r *http.Request) int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	cost := 1
	matchLen := 0
	for prefix, prefixCost := range c.costs {
		if len(prefix) > matchLen && strings.HasPrefix(r.URL.Path, prefix) {
			cost = prefixCost
			matchLen = len(prefix)
		}
	}
	return cost
}

package plugin

import (
	"container/list"
	"regexp"
	"sync"
)

const (
	// DefaultRegexCacheSize is the default maximum number of cached
	// compiled patterns.
	DefaultRegexCacheSize = 100

	// MaxHostPatternLength caps the length of patterns submitted through
	// the regex host functions.
	MaxHostPatternLength = 512
)

// regexCache is a thread-safe LRU cache of compiled regular expressions.
// Plugins call the regex host functions per line, so compilation cost
// matters.
type regexCache struct {
	mu      sync.RWMutex
	entries map[string]*list.Element
	order   *list.List
	maxSize int
}

type regexCacheEntry struct {
	pattern string
	re      *regexp.Regexp
}

func newRegexCache(maxSize int) *regexCache {
	return &regexCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Get returns the compiled regex for pattern, compiling and caching it on
// first use. Patterns longer than MaxHostPatternLength are rejected.
func (c *regexCache) Get(pattern string) (*regexp.Regexp, error) {
	if len(pattern) > MaxHostPatternLength {
		return nil, &ABIError{
			Function: "regex_match",
			Reason:   "pattern exceeds maximum length",
		}
	}

	c.mu.RLock()
	if elem, ok := c.entries[pattern]; ok {
		c.mu.RUnlock()
		c.mu.Lock()
		c.order.MoveToFront(elem)
		re := elem.Value.(*regexCacheEntry).re
		c.mu.Unlock()
		return re, nil
	}
	c.mu.RUnlock()

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have compiled the same pattern meanwhile.
	if elem, ok := c.entries[pattern]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*regexCacheEntry).re, nil
	}

	if c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*regexCacheEntry).pattern)
		}
	}

	c.entries[pattern] = c.order.PushFront(&regexCacheEntry{pattern: pattern, re: re})
	return re, nil
}

// Len returns the current number of cached patterns.
func (c *regexCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

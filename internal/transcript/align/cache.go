package align

import (
	"strings"
	"sync"
)

// pairKey identifies an unordered pair of strings in the distance table.
type pairKey struct {
	a, b string
}

// Cache memoises normalised strings and character-level edit distances.
// Its lifetime is owned by the caller: call [Cache.Clear] between files or
// runs to bound memory. All methods are safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	normalized map[string]string
	distances  map[pairKey]int
}

// NewCache returns an empty, ready-to-use [Cache].
func NewCache() *Cache {
	return &Cache{
		normalized: make(map[string]string),
		distances:  make(map[pairKey]int),
	}
}

// Clear drops every memoised entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.normalized)
	clear(c.distances)
}

// Len reports the number of memoised normalisations and distances.
func (c *Cache) Len() (normalized, distances int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.normalized), len(c.distances)
}

func (c *Cache) normalize(text string) string {
	c.mu.RLock()
	v, ok := c.normalized[text]
	c.mu.RUnlock()
	if ok {
		return v
	}

	v = Normalize(text)

	c.mu.Lock()
	c.normalized[text] = v
	c.mu.Unlock()
	return v
}

func (c *Cache) levenshtein(s1, s2 string) int {
	key := pairKey{a: s1, b: s2}
	if s2 < s1 {
		key = pairKey{a: s2, b: s1}
	}

	c.mu.RLock()
	d, ok := c.distances[key]
	c.mu.RUnlock()
	if ok {
		return d
	}

	d = levenshtein([]rune(key.a), []rune(key.b))

	c.mu.Lock()
	c.distances[key] = d
	c.mu.Unlock()
	return d
}

// Normalize lowercases text and collapses whitespace runs into single
// spaces, trimming both ends. It does not consult any cache.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// levenshtein is the single-row Wagner–Fischer distance over runes.
func levenshtein(a, b []rune) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	if len(a) == 0 {
		return len(b)
	}

	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(b); j++ {
		curr[0] = j
		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[i] = min(prev[i]+1, curr[i-1]+1, prev[i-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(a)]
}

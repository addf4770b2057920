package wrappers

import "container/list"

// lru is a fixed-capacity least-recently-used cache. Not safe for
// concurrent use; callers hold their own lock.
type lru[K comparable, V any] struct {
	capacity int
	order    *list.List
	entries  map[K]*list.Element
}

type lruEntry[K comparable, V any] struct {
	key K
	val V
}

func newLRU[K comparable, V any](capacity int) *lru[K, V] {
	return &lru[K, V]{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[K]*list.Element, capacity),
	}
}

func (c *lru[K, V]) get(key K) (V, bool) {
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*lruEntry[K, V]).val, true
	}
	var zero V
	return zero, false
}

// put inserts or refreshes key, evicting the least-recently-used entry
// when the cache is full.
func (c *lru[K, V]) put(key K, val V) {
	if el, ok := c.entries[key]; ok {
		el.Value.(*lruEntry[K, V]).val = val
		c.order.MoveToFront(el)
		return
	}
	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*lruEntry[K, V]).key)
		}
	}
	c.entries[key] = c.order.PushFront(&lruEntry[K, V]{key: key, val: val})
}

func (c *lru[K, V]) remove(key K) {
	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
}

func (c *lru[K, V]) len() int {
	return c.order.Len()
}

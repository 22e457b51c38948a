package store

import (
	"container/list"
	"sync"
)

// LRU is a thread-safe, bounded least-recently-used cache in front of a
// backing Store (spec §1, §5, §6). Bypassing it is all-or-nothing: a
// capacity <= 0 disables the hot set for every call, and there is no
// per-request option to skip the cache for a single product. Eviction
// only drops products from the cache's own hot set — Save always writes
// through to the backing store, so an evicted id is still retrievable,
// just at backing-store cost.
type LRU struct {
	mu       sync.Mutex
	backing  Store
	capacity int
	order    *list.List               // front = most recently used
	entries  map[ID]*list.Element
}

type lruEntry struct {
	id      ID
	product Product
}

// NewLRU wraps backing with an LRU hot set of the given capacity. capacity
// <= 0 disables caching entirely (every Get/Save passes straight through),
// matching the DisableImageCache tunable (spec §6).
func NewLRU(backing Store, capacity int) *LRU {
	return &LRU{
		backing:  backing,
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[ID]*list.Element),
	}
}

func (c *LRU) Save(product Product) (ID, error) {
	id, err := c.backing.Save(product)
	if err != nil {
		return id, err
	}
	c.touch(id, product)
	return id, nil
}

func (c *LRU) Get(id ID) (Product, error) {
	c.mu.Lock()
	if el, ok := c.entries[id]; ok {
		c.order.MoveToFront(el)
		product := el.Value.(*lruEntry).product
		c.mu.Unlock()
		return product, nil
	}
	c.mu.Unlock()

	product, err := c.backing.Get(id)
	if err != nil {
		return product, err
	}
	c.touch(id, product)
	return product, nil
}

func (c *LRU) Has(id ID) bool {
	c.mu.Lock()
	_, ok := c.entries[id]
	c.mu.Unlock()
	if ok {
		return true
	}
	return c.backing.Has(id)
}

func (c *LRU) touch(id ID, product Product) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[id]; ok {
		el.Value.(*lruEntry).product = product
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&lruEntry{id: id, product: product})
	c.entries[id] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruEntry).id)
	}
}

package vulkan

import (
	"sync"

	"github.com/spaghettifunk/penumbra/engine/core"
)

// table maps the opaque handles handed to the frame core onto the Vulkan
// objects behind them. Zero is never issued.
type table[H ~uint64, V any] struct {
	mu    sync.RWMutex
	ids   *core.IDGenerator
	items map[H]V
}

func newTable[H ~uint64, V any]() *table[H, V] {
	return &table[H, V]{
		ids:   core.NewIDGenerator(),
		items: make(map[H]V),
	}
}

func (t *table[H, V]) put(v V) H {
	h := H(t.ids.Next())
	t.mu.Lock()
	t.items[h] = v
	t.mu.Unlock()
	return h
}

func (t *table[H, V]) get(h H) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.items[h]
	return v, ok
}

// take removes h and returns what it pointed to.
func (t *table[H, V]) take(h H) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[h]
	if ok {
		delete(t.items, h)
	}
	return v, ok
}

func (t *table[H, V]) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// drain empties the table and returns every entry still registered.
func (t *table[H, V]) drain() []V {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]V, 0, len(t.items))
	for h, v := range t.items {
		out = append(out, v)
		delete(t.items, h)
	}
	return out
}

// Package views holds in-memory renderings of entity sets: the map layer
// and the sidebar list kept by the terminal client and the tests.
package views

import (
	"sync"
)

// Keyed is anything rendered under a stable id.
type Keyed interface {
	Key() int64
}

// List is an ordered, id-keyed rendering. Items are kept in insertion
// order; Put on an existing key replaces the item in place.
type List[T Keyed] struct {
	mu    sync.RWMutex
	order []int64
	items map[int64]T

	// OnChange, when set, is called after every mutation with the new item count.
	OnChange func(n int)
}

func NewList[T Keyed]() *List[T] {
	return &List[T]{items: make(map[int64]T)}
}

// Reset replaces the whole content.
func (l *List[T]) Reset(items []T) {
	l.mu.Lock()
	l.order = l.order[:0]
	l.items = make(map[int64]T, len(items))
	for _, it := range items {
		k := it.Key()
		if _, ok := l.items[k]; !ok {
			l.order = append(l.order, k)
		}
		l.items[k] = it
	}
	n := len(l.order)
	l.mu.Unlock()
	l.changed(n)
}

func (l *List[T]) Put(item T) {
	l.mu.Lock()
	k := item.Key()
	if _, ok := l.items[k]; !ok {
		l.order = append(l.order, k)
	}
	l.items[k] = item
	n := len(l.order)
	l.mu.Unlock()
	l.changed(n)
}

// Remove drops the item with key k. Unknown keys are ignored.
func (l *List[T]) Remove(k int64) {
	l.mu.Lock()
	if _, ok := l.items[k]; !ok {
		l.mu.Unlock()
		return
	}
	delete(l.items, k)
	for i, v := range l.order {
		if v == k {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	n := len(l.order)
	l.mu.Unlock()
	l.changed(n)
}

func (l *List[T]) Get(k int64) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	it, ok := l.items[k]
	return it, ok
}

// Items returns a copy in insertion order.
func (l *List[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, 0, len(l.order))
	for _, k := range l.order {
		out = append(out, l.items[k])
	}
	return out
}

func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

func (l *List[T]) changed(n int) {
	if l.OnChange != nil {
		l.OnChange(n)
	}
}
